package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"pfm/internal/core"
	"pfm/internal/log"
	"pfm/internal/receipt"
)

type ReceiptStore interface {
	CreateReceiptTask(ctx context.Context, t receipt.Task) error
	GetReceiptTask(ctx context.Context, taskID string) (receipt.Task, error)
}

// Publisher hands task ids to the analysis worker.
type Publisher interface {
	PublishReceiptTask(ctx context.Context, taskID string) error
}

// ReceiptService runs the submit side of receipt analysis: store the
// image, enqueue the task id, answer status polls and turn a completed
// analysis into a ledger entry.
type ReceiptService struct {
	store        ReceiptStore
	publisher    Publisher
	transactions *TransactionService
	maxBytes     int64
	logger       *log.Logger
}

func NewReceiptService(store ReceiptStore, publisher Publisher, transactions *TransactionService, maxBytes int64, logger *log.Logger) *ReceiptService {
	return &ReceiptService{
		store:        store,
		publisher:    publisher,
		transactions: transactions,
		maxBytes:     maxBytes,
		logger:       logger.WithComponent(log.ComponentReceipt),
	}
}

// Submit stores the image under a fresh task id and enqueues the id for
// the worker. A publish failure is logged, not returned: the stale-task
// sweeper re-enqueues it later.
func (s *ReceiptService) Submit(ctx context.Context, userID, imageB64 string) (string, error) {
	if userID == "" {
		return "", core.ErrMissingUser
	}
	if imageB64 == "" {
		return "", receipt.ErrEmptyImage
	}
	if int64(len(imageB64)) > s.maxBytes {
		return "", receipt.ErrImageTooBig
	}

	taskID := uuid.NewString()
	task := receipt.Task{
		ID:       taskID,
		OwnerID:  userID,
		Status:   receipt.StatusSubmitted,
		ImageB64: imageB64,
	}
	if err := s.store.CreateReceiptTask(ctx, task); err != nil {
		return "", fmt.Errorf("store receipt task: %w", err)
	}

	if err := s.publisher.PublishReceiptTask(ctx, taskID); err != nil {
		s.logger.ErrorContext(ctx, "failed to enqueue receipt task",
			log.FieldTaskID, taskID, log.FieldError, err)
	} else {
		s.logger.InfoContext(ctx, "receipt task submitted",
			log.FieldUserID, userID, log.FieldTaskID, taskID)
	}
	return taskID, nil
}

// CheckStatus returns the task for a status poll. Another user's task
// reads as missing.
func (s *ReceiptService) CheckStatus(ctx context.Context, userID, taskID string) (receipt.Task, error) {
	task, err := s.store.GetReceiptTask(ctx, taskID)
	if err != nil {
		return receipt.Task{}, err
	}
	if task.OwnerID != userID {
		return receipt.Task{}, receipt.ErrTaskNotFound
	}
	return task, nil
}

// Result returns the parsed invoice of a completed task.
func (s *ReceiptService) Result(ctx context.Context, userID, taskID string) (*receipt.Invoice, error) {
	task, err := s.CheckStatus(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}
	switch task.Status {
	case receipt.StatusCompleted:
		return receipt.ParseInvoice([]byte(task.ResultJSON))
	case receipt.StatusFailed:
		return nil, fmt.Errorf("%w: %s", receipt.ErrTaskFailed, task.Error)
	default:
		return nil, receipt.ErrTaskNotReady
	}
}

// SeedTransaction records the completed analysis as an expense: the
// invoice's final total becomes the amount, the line items the note.
func (s *ReceiptService) SeedTransaction(ctx context.Context, userID, taskID string, categoryID int64, date core.Date) (core.Transaction, error) {
	inv, err := s.Result(ctx, userID, taskID)
	if err != nil {
		return core.Transaction{}, err
	}

	return s.transactions.Record(ctx, core.Transaction{
		OwnerID:    userID,
		Type:       core.Expense,
		Amount:     inv.Amount(),
		CategoryID: categoryID,
		Date:       date,
		Note:       inv.Summary(),
	})
}
