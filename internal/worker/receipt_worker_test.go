package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"pfm/internal/log"
	"pfm/internal/receipt"
)

type fakeStore struct {
	tasks map[string]*receipt.Task
	stale []string
}

func (f *fakeStore) GetReceiptTask(_ context.Context, taskID string) (receipt.Task, error) {
	t, ok := f.tasks[taskID]
	if !ok {
		return receipt.Task{}, receipt.ErrTaskNotFound
	}
	return *t, nil
}

func (f *fakeStore) SetReceiptTaskStatus(_ context.Context, taskID string, status receipt.Status, resultJSON, errMsg string) error {
	t, ok := f.tasks[taskID]
	if !ok {
		return receipt.ErrTaskNotFound
	}
	t.Status = status
	t.ResultJSON = resultJSON
	t.Error = errMsg
	return nil
}

func (f *fakeStore) ListStaleSubmittedTasks(context.Context, time.Time, int) ([]string, error) {
	return f.stale, nil
}

type fakeAnalyzer struct {
	invoice *receipt.Invoice
	err     error
	calls   int
}

func (f *fakeAnalyzer) Analyze(context.Context, string) (*receipt.Invoice, error) {
	f.calls++
	return f.invoice, f.err
}

type fakePublisher struct {
	published []string
	err       error
}

func (f *fakePublisher) PublishReceiptTask(_ context.Context, taskID string) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, taskID)
	return nil
}

func newTestWorker(store Store, analyzer receipt.Analyzer, pub Publisher) *ReceiptWorker {
	return NewReceiptWorker(store, analyzer, pub, time.Minute, log.New(log.DefaultConfig()))
}

func submittedTask(id string) *receipt.Task {
	return &receipt.Task{ID: id, OwnerID: "u1", Status: receipt.StatusSubmitted, ImageB64: "aW1n"}
}

func TestHandleTaskCompletes(t *testing.T) {
	store := &fakeStore{tasks: map[string]*receipt.Task{"t1": submittedTask("t1")}}
	analyzer := &fakeAnalyzer{invoice: &receipt.Invoice{
		Products:  []receipt.Product{{Description: "Milk", TotalPrice: 3}},
		TotalBill: receipt.TotalBill{FinalTotal: 3},
	}}
	w := newTestWorker(store, analyzer, &fakePublisher{})

	if err := w.HandleTask(context.Background(), "t1"); err != nil {
		t.Fatal(err)
	}
	task := store.tasks["t1"]
	if task.Status != receipt.StatusCompleted {
		t.Errorf("status = %q, want completed", task.Status)
	}
	if task.ResultJSON == "" {
		t.Error("completed task should carry the invoice JSON")
	}
	if _, err := receipt.ParseInvoice([]byte(task.ResultJSON)); err != nil {
		t.Errorf("stored result should parse back: %v", err)
	}
}

func TestHandleTaskUnreadableIsPermanent(t *testing.T) {
	store := &fakeStore{tasks: map[string]*receipt.Task{"t1": submittedTask("t1")}}
	analyzer := &fakeAnalyzer{err: receipt.ErrUnreadableResult}
	w := newTestWorker(store, analyzer, &fakePublisher{})

	// No error returned: the delivery must be acked, not requeued.
	if err := w.HandleTask(context.Background(), "t1"); err != nil {
		t.Fatalf("permanent failure should not requeue: %v", err)
	}
	task := store.tasks["t1"]
	if task.Status != receipt.StatusFailed {
		t.Errorf("status = %q, want failed", task.Status)
	}
	if task.Error == "" {
		t.Error("failed task should record the reason")
	}
}

func TestHandleTaskTransientRequeues(t *testing.T) {
	store := &fakeStore{tasks: map[string]*receipt.Task{"t1": submittedTask("t1")}}
	analyzer := &fakeAnalyzer{err: errors.New("connection refused")}
	w := newTestWorker(store, analyzer, &fakePublisher{})

	if err := w.HandleTask(context.Background(), "t1"); err == nil {
		t.Fatal("transient failure should surface so the delivery requeues")
	}
	if store.tasks["t1"].Status != receipt.StatusSubmitted {
		t.Errorf("status = %q, want reset to submitted", store.tasks["t1"].Status)
	}
}

func TestHandleTaskUnknownAndTerminal(t *testing.T) {
	done := submittedTask("t2")
	done.Status = receipt.StatusCompleted
	store := &fakeStore{tasks: map[string]*receipt.Task{"t2": done}}
	analyzer := &fakeAnalyzer{}
	w := newTestWorker(store, analyzer, &fakePublisher{})
	ctx := context.Background()

	if err := w.HandleTask(ctx, "missing"); err != nil {
		t.Errorf("unknown task should be dropped without error, got %v", err)
	}
	if err := w.HandleTask(ctx, "t2"); err != nil {
		t.Errorf("terminal task should be skipped without error, got %v", err)
	}
	if analyzer.calls != 0 {
		t.Error("analyzer must not run for unknown or finished tasks")
	}
}

func TestSweepStale(t *testing.T) {
	store := &fakeStore{
		tasks: map[string]*receipt.Task{},
		stale: []string{"a", "b", "c"},
	}
	pub := &fakePublisher{}
	w := newTestWorker(store, &fakeAnalyzer{}, pub)

	n, err := w.SweepStale(context.Background(), 10*time.Minute, 100)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 || len(pub.published) != 3 {
		t.Errorf("republished %d tasks, want 3", n)
	}
}

func TestSweepStalePublishFailureContinues(t *testing.T) {
	store := &fakeStore{stale: []string{"a", "b"}}
	pub := &fakePublisher{err: errors.New("broken pipe")}
	w := newTestWorker(store, &fakeAnalyzer{}, pub)

	n, err := w.SweepStale(context.Background(), 10*time.Minute, 100)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("republished = %d, want 0 when publishing fails", n)
	}
}
