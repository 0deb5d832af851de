package services

import (
	"context"
	"fmt"

	"pfm/internal/budget"
	"pfm/internal/core"
	"pfm/internal/log"
)

type BudgetStore interface {
	CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error)
	GetBudget(ctx context.Context, userID string, id int64) (core.Budget, error)
	ListBudgets(ctx context.Context, userID string) ([]core.Budget, error)
	DeleteBudget(ctx context.Context, userID string, id int64) error
	GetCategory(ctx context.Context, id int64) (core.Category, error)
}

type BudgetService struct {
	store   BudgetStore
	tracker *budget.Tracker
	logger  *log.Logger
}

func NewBudgetService(store BudgetStore, tracker *budget.Tracker, logger *log.Logger) *BudgetService {
	return &BudgetService{
		store:   store,
		tracker: tracker,
		logger:  logger.WithComponent(log.ComponentBudget),
	}
}

// Create validates and persists a budget, then seeds its spent counter
// from expenses already in the window. Budgets attach to expense
// categories only.
func (s *BudgetService) Create(ctx context.Context, b core.Budget) (core.Budget, error) {
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}

	cat, err := s.store.GetCategory(ctx, b.CategoryID)
	if err != nil {
		return core.Budget{}, err
	}
	if !cat.VisibleTo(b.OwnerID) {
		return core.Budget{}, core.ErrNotFound
	}
	if cat.Type != core.Expense {
		return core.Budget{}, core.ErrTypeMismatch
	}

	created, err := s.store.CreateBudget(ctx, b)
	if err != nil {
		return core.Budget{}, fmt.Errorf("create budget: %w", err)
	}

	// Expenses recorded before the budget existed still count against it.
	seeded, err := s.tracker.Reconcile(ctx, created.OwnerID, created.ID)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to seed budget counter",
			log.FieldBudgetID, created.ID, log.FieldError, err)
		return created, nil
	}

	s.logger.InfoContext(ctx, "budget created",
		log.FieldUserID, seeded.OwnerID,
		log.FieldBudgetID, seeded.ID,
		log.FieldCategoryID, seeded.CategoryID,
		log.FieldLimitCents, seeded.Limit.Cents,
		log.FieldSpentCents, seeded.Spent.Cents,
		log.FieldPeriod, string(seeded.Period))
	return seeded, nil
}

// Get returns one of the user's budgets.
func (s *BudgetService) Get(ctx context.Context, userID string, id int64) (core.Budget, error) {
	return s.store.GetBudget(ctx, userID, id)
}

// List returns the user's budgets, newest window first.
func (s *BudgetService) List(ctx context.Context, userID string) ([]core.Budget, error) {
	out, err := s.store.ListBudgets(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	return out, nil
}

// Delete removes a budget. Transactions in its window are untouched.
func (s *BudgetService) Delete(ctx context.Context, userID string, id int64) error {
	if err := s.store.DeleteBudget(ctx, userID, id); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "budget deleted",
		log.FieldUserID, userID, log.FieldBudgetID, id)
	return nil
}

// Reconcile repairs a budget's cached spent counter from the ledger.
func (s *BudgetService) Reconcile(ctx context.Context, userID string, id int64) (core.Budget, error) {
	return s.tracker.Reconcile(ctx, userID, id)
}
