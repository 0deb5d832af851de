// Package worker runs receipt analysis tasks pulled from the queue.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"pfm/internal/log"
	"pfm/internal/receipt"
)

// Store is the slice of task storage the worker needs.
type Store interface {
	GetReceiptTask(ctx context.Context, taskID string) (receipt.Task, error)
	SetReceiptTaskStatus(ctx context.Context, taskID string, status receipt.Status, resultJSON, errMsg string) error
	ListStaleSubmittedTasks(ctx context.Context, olderThan time.Time, limit int) ([]string, error)
}

// Publisher re-enqueues task ids, used when sweeping tasks whose
// original message was lost.
type Publisher interface {
	PublishReceiptTask(ctx context.Context, taskID string) error
}

type ReceiptWorker struct {
	store          Store
	analyzer       receipt.Analyzer
	publisher      Publisher
	analyzeTimeout time.Duration
	logger         *log.Logger
}

func NewReceiptWorker(store Store, analyzer receipt.Analyzer, publisher Publisher, analyzeTimeout time.Duration, logger *log.Logger) *ReceiptWorker {
	return &ReceiptWorker{
		store:          store,
		analyzer:       analyzer,
		publisher:      publisher,
		analyzeTimeout: analyzeTimeout,
		logger:         logger.WithComponent(log.ComponentWorker),
	}
}

// HandleTask processes one queued task id: load the stored image, run
// the analyzer and record the terminal status. A returned error means
// the delivery should be requeued; permanent failures are absorbed here
// by marking the task failed.
func (w *ReceiptWorker) HandleTask(ctx context.Context, taskID string) error {
	task, err := w.store.GetReceiptTask(ctx, taskID)
	if err != nil {
		if errors.Is(err, receipt.ErrTaskNotFound) {
			// The row is gone; requeueing cannot help.
			w.logger.WarnContext(ctx, "dropping message for unknown task", log.FieldTaskID, taskID)
			return nil
		}
		return fmt.Errorf("load task %s: %w", taskID, err)
	}

	if task.Status.Terminal() {
		w.logger.InfoContext(ctx, "task already finished, skipping",
			log.FieldTaskID, taskID, log.FieldStatus, string(task.Status))
		return nil
	}

	if err := w.store.SetReceiptTaskStatus(ctx, taskID, receipt.StatusProcessing, "", ""); err != nil {
		return fmt.Errorf("mark task %s processing: %w", taskID, err)
	}

	start := time.Now()
	actx, cancel := context.WithTimeout(ctx, w.analyzeTimeout)
	defer cancel()

	inv, err := w.analyzer.Analyze(actx, task.ImageB64)
	if err != nil {
		if errors.Is(err, receipt.ErrUnreadableResult) {
			// Permanent: the image will never parse. Record and ack.
			if serr := w.store.SetReceiptTaskStatus(ctx, taskID, receipt.StatusFailed, "", err.Error()); serr != nil {
				return fmt.Errorf("mark task %s failed: %w", taskID, serr)
			}
			w.logger.WarnContext(ctx, "receipt unreadable, task failed",
				log.FieldTaskID, taskID, log.FieldError, err)
			return nil
		}
		// Transient: reset for the requeued delivery.
		if serr := w.store.SetReceiptTaskStatus(ctx, taskID, receipt.StatusSubmitted, "", ""); serr != nil {
			w.logger.ErrorContext(ctx, "failed to reset task after transient error",
				log.FieldTaskID, taskID, log.FieldError, serr)
		}
		return fmt.Errorf("analyze task %s: %w", taskID, err)
	}

	resultJSON, err := json.Marshal(inv)
	if err != nil {
		return fmt.Errorf("marshal result for task %s: %w", taskID, err)
	}
	if err := w.store.SetReceiptTaskStatus(ctx, taskID, receipt.StatusCompleted, string(resultJSON), ""); err != nil {
		return fmt.Errorf("mark task %s completed: %w", taskID, err)
	}

	w.logger.InfoContext(ctx, "receipt task completed",
		log.FieldTaskID, taskID,
		log.FieldAmountCents, inv.Amount().Cents,
		log.FieldDuration, time.Since(start))
	return nil
}

// SweepStale republishes submitted tasks older than the cutoff whose
// queue message was presumably lost. Runs on a timer in the worker
// binary.
func (w *ReceiptWorker) SweepStale(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	ids, err := w.store.ListStaleSubmittedTasks(ctx, cutoff, limit)
	if err != nil {
		return 0, fmt.Errorf("list stale tasks: %w", err)
	}

	republished := 0
	for _, id := range ids {
		if err := w.publisher.PublishReceiptTask(ctx, id); err != nil {
			w.logger.ErrorContext(ctx, "failed to republish stale task",
				log.FieldTaskID, id, log.FieldError, err)
			continue
		}
		republished++
	}
	if republished > 0 {
		w.logger.InfoContext(ctx, "republished stale receipt tasks", "count", republished)
	}
	return republished, nil
}
