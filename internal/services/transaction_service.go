package services

import (
	"context"
	"fmt"

	"pfm/internal/budget"
	"pfm/internal/core"
	"pfm/internal/log"
	"pfm/internal/notify"
	"pfm/internal/report"
	"pfm/internal/storage"
)

type TransactionStore interface {
	CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
	GetTransaction(ctx context.Context, userID string, id int64) (core.Transaction, error)
	ListTransactions(ctx context.Context, userID string, f storage.TransactionFilter) ([]core.Transaction, error)
	UpdateTransaction(ctx context.Context, t core.Transaction) error
	DeleteTransaction(ctx context.Context, userID string, id int64) error
	GetCategory(ctx context.Context, id int64) (core.Category, error)
}

// TransactionService owns ledger writes. Every write runs the budget
// side effects (counter updates, threshold notifications) and drops the
// user's cached reports; only the ledger write itself can fail the call.
type TransactionService struct {
	store    TransactionStore
	tracker  *budget.Tracker
	notifier *notify.Engine
	reports  *report.Aggregator
	logger   *log.Logger
}

func NewTransactionService(store TransactionStore, tracker *budget.Tracker, notifier *notify.Engine, reports *report.Aggregator, logger *log.Logger) *TransactionService {
	return &TransactionService{
		store:    store,
		tracker:  tracker,
		notifier: notifier,
		reports:  reports,
		logger:   logger.WithComponent(log.ComponentLedger),
	}
}

// checkCategory loads the transaction's category, enforcing visibility
// and the type match between entry and category.
func (s *TransactionService) checkCategory(ctx context.Context, t core.Transaction) (core.Category, error) {
	cat, err := s.store.GetCategory(ctx, t.CategoryID)
	if err != nil {
		return core.Category{}, err
	}
	if !cat.VisibleTo(t.OwnerID) {
		return core.Category{}, core.ErrNotFound
	}
	if cat.Type != t.Type {
		return core.Category{}, core.ErrTypeMismatch
	}
	return cat, nil
}

// Record validates and persists a transaction. For expenses it then
// accrues the amount against the covering budget and, when a threshold
// band is newly entered, emits the notification. Failures past the
// ledger write are logged, never returned: the entry is already saved.
func (s *TransactionService) Record(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	cat, err := s.checkCategory(ctx, t)
	if err != nil {
		return core.Transaction{}, err
	}

	created, err := s.store.CreateTransaction(ctx, t)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("record transaction: %w", err)
	}

	s.logger.InfoContext(ctx, "transaction recorded",
		log.FieldUserID, created.OwnerID,
		log.FieldCategoryID, created.CategoryID,
		log.FieldAmountCents, created.Amount.Cents,
		"type", string(created.Type))

	if created.Type == core.Expense {
		s.applyToBudget(ctx, created, cat.Name)
	}
	s.reports.Invalidate(created.OwnerID)
	return created, nil
}

func (s *TransactionService) applyToBudget(ctx context.Context, t core.Transaction, categoryName string) {
	ev, err := s.tracker.Apply(ctx, t.OwnerID, t.CategoryID, t.Amount, t.Date)
	if err != nil {
		s.logger.ErrorContext(ctx, "budget tracking failed",
			log.FieldUserID, t.OwnerID, log.FieldError, err)
		return
	}
	if ev == nil || !ev.Crossed {
		return
	}

	_, err = s.notifier.ThresholdCrossed(ctx, t.OwnerID, categoryName, ev.Budget.PeriodLabel(), ev.Level, ev.Percent)
	if err != nil {
		s.logger.ErrorContext(ctx, "threshold notification failed",
			log.FieldUserID, t.OwnerID,
			log.FieldBudgetID, ev.Budget.ID,
			log.FieldError, err)
	}
}

// Get returns one of the user's transactions.
func (s *TransactionService) Get(ctx context.Context, userID string, id int64) (core.Transaction, error) {
	return s.store.GetTransaction(ctx, userID, id)
}

// List returns the user's transactions, newest first, optionally
// filtered by type, category or period.
func (s *TransactionService) List(ctx context.Context, userID string, f storage.TransactionFilter) ([]core.Transaction, error) {
	out, err := s.store.ListTransactions(ctx, userID, f)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return out, nil
}

// Update replaces a transaction and compensates the budget counters:
// the old expense amount is backed out of its window, the new one
// accrued into its own. The add side can cross a threshold and notify.
func (s *TransactionService) Update(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	old, err := s.store.GetTransaction(ctx, t.OwnerID, t.ID)
	if err != nil {
		return core.Transaction{}, err
	}
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	cat, err := s.checkCategory(ctx, t)
	if err != nil {
		return core.Transaction{}, err
	}

	if err := s.store.UpdateTransaction(ctx, t); err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}

	if old.Type == core.Expense {
		if err := s.tracker.Adjust(ctx, old.OwnerID, old.CategoryID, -old.Amount.Cents, old.Date); err != nil {
			s.logger.ErrorContext(ctx, "budget compensation failed",
				log.FieldUserID, old.OwnerID, log.FieldError, err)
		}
	}
	if t.Type == core.Expense {
		s.applyToBudget(ctx, t, cat.Name)
	}
	s.reports.Invalidate(t.OwnerID)
	return t, nil
}

// Delete removes a transaction and backs an expense amount out of its
// budget window.
func (s *TransactionService) Delete(ctx context.Context, userID string, id int64) error {
	old, err := s.store.GetTransaction(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteTransaction(ctx, userID, id); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}

	if old.Type == core.Expense {
		if err := s.tracker.Adjust(ctx, userID, old.CategoryID, -old.Amount.Cents, old.Date); err != nil {
			s.logger.ErrorContext(ctx, "budget compensation failed",
				log.FieldUserID, userID, log.FieldError, err)
		}
	}
	s.reports.Invalidate(userID)
	return nil
}
