// Package budget implements the budget tracker: matching expense
// transactions to the budget window that covers them, maintaining the
// accumulated spend counter, and deriving threshold-crossing events.
package budget

import (
	"context"
	"fmt"

	"pfm/internal/core"
	"pfm/internal/log"
)

// Store is the persistence the tracker needs. The spent counter must be
// incremented atomically by the store (single-statement update), not
// read-modify-written here.
type Store interface {
	ListBudgetsForCategory(ctx context.Context, userID string, categoryID int64) ([]core.Budget, error)
	GetBudget(ctx context.Context, userID string, id int64) (core.Budget, error)
	AddSpent(ctx context.Context, budgetID int64, deltaCents int64) (int64, error)
	SetSpent(ctx context.Context, budgetID int64, cents int64) error
	SetLastNotified(ctx context.Context, budgetID int64, level core.Level) error
	SumExpensesInWindow(ctx context.Context, userID string, categoryID int64, period core.PeriodType, year, month int) (int64, error)
}

// Event describes the outcome of applying an expense to a budget.
type Event struct {
	Budget  core.Budget // state after the increment
	Level   core.Level  // threshold band of the new ratio
	Crossed bool        // true when this apply entered a higher band than last notified
	Percent float64     // spent/limit as a percentage
}

type Tracker struct {
	store  Store
	logger *log.Logger
}

func NewTracker(store Store, logger *log.Logger) *Tracker {
	return &Tracker{
		store:  store,
		logger: logger.WithComponent(log.ComponentBudget),
	}
}

// Threshold maps a spend counter against a limit onto a level: at or over
// the limit is a warning, 90% or more is info. Budgets with a
// non-positive limit are treated as always overspent.
func Threshold(spentCents, limitCents int64) core.Level {
	if limitCents <= 0 {
		return core.LevelWarning
	}
	if spentCents >= limitCents {
		return core.LevelWarning
	}
	if spentCents*10 >= limitCents*9 {
		return core.LevelInfo
	}
	return core.LevelNone
}

// match picks the single budget whose window contains the date. The
// store returns budgets newest-created first, which doubles as the
// tie-break when several windows overlap: the most recently created
// budget wins.
func match(budgets []core.Budget, date core.Date) (core.Budget, bool) {
	for _, b := range budgets {
		if b.Contains(date) {
			return b, true
		}
	}
	return core.Budget{}, false
}

// Apply accrues an expense against the budget covering its date and
// reports the resulting threshold state. A missing budget is a normal
// outcome and returns (nil, nil).
//
// Event.Crossed is true only when the new level outranks the one last
// notified for this budget, so repeated expenses past a threshold do not
// re-notify; the recorded level is advanced in the same call.
func (t *Tracker) Apply(ctx context.Context, userID string, categoryID int64, amount core.Money, date core.Date) (*Event, error) {
	budgets, err := t.store.ListBudgetsForCategory(ctx, userID, categoryID)
	if err != nil {
		return nil, fmt.Errorf("load budgets: %w", err)
	}

	b, ok := match(budgets, date)
	if !ok {
		t.logger.DebugContext(ctx, "no budget matches expense",
			log.FieldUserID, userID,
			log.FieldCategoryID, categoryID,
			"date", date.String())
		return nil, nil
	}

	newSpent, err := t.store.AddSpent(ctx, b.ID, amount.Cents)
	if err != nil {
		return nil, fmt.Errorf("increment spent: %w", err)
	}
	b.Spent = core.Money{Cents: newSpent}

	level := Threshold(newSpent, b.Limit.Cents)
	crossed := level.Severity() > b.LastNotified.Severity()
	if crossed {
		if err := t.store.SetLastNotified(ctx, b.ID, level); err != nil {
			return nil, fmt.Errorf("record notified level: %w", err)
		}
		b.LastNotified = level
	}

	t.logger.InfoContext(ctx, "expense applied to budget",
		log.FieldBudgetID, b.ID,
		log.FieldUserID, userID,
		log.FieldAmountCents, amount.Cents,
		log.FieldSpentCents, newSpent,
		log.FieldLimitCents, b.Limit.Cents,
		log.FieldLevel, string(level))

	return &Event{
		Budget:  b,
		Level:   level,
		Crossed: crossed,
		Percent: percent(newSpent, b.Limit.Cents),
	}, nil
}

// Adjust compensates the spent counter for a transaction edit or delete.
// It never produces notifications, but it does lower the recorded
// notification level when the spend drops back under a threshold, so a
// later re-crossing notifies again.
func (t *Tracker) Adjust(ctx context.Context, userID string, categoryID int64, deltaCents int64, date core.Date) error {
	budgets, err := t.store.ListBudgetsForCategory(ctx, userID, categoryID)
	if err != nil {
		return fmt.Errorf("load budgets: %w", err)
	}

	b, ok := match(budgets, date)
	if !ok {
		return nil
	}

	newSpent, err := t.store.AddSpent(ctx, b.ID, deltaCents)
	if err != nil {
		return fmt.Errorf("adjust spent: %w", err)
	}

	level := Threshold(newSpent, b.Limit.Cents)
	if level.Severity() < b.LastNotified.Severity() {
		if err := t.store.SetLastNotified(ctx, b.ID, level); err != nil {
			return fmt.Errorf("record notified level: %w", err)
		}
	}

	t.logger.InfoContext(ctx, "budget spend adjusted",
		log.FieldBudgetID, b.ID,
		log.FieldUserID, userID,
		log.FieldAmountCents, deltaCents,
		log.FieldSpentCents, newSpent)
	return nil
}

// Recompute derives the spend total for a budget window directly from
// the ledger, independent of the cached counter.
func (t *Tracker) Recompute(ctx context.Context, b core.Budget) (core.Money, error) {
	total, err := t.store.SumExpensesInWindow(ctx, b.OwnerID, b.CategoryID, b.Period, b.Year, b.Month)
	if err != nil {
		return core.Money{}, fmt.Errorf("recompute spent: %w", err)
	}
	return core.Money{Cents: total}, nil
}

// Reconcile repairs the cached spent counter from the ledger and returns
// the corrected value. The recorded notification level is realigned to
// the recomputed spend.
func (t *Tracker) Reconcile(ctx context.Context, userID string, budgetID int64) (core.Budget, error) {
	b, err := t.store.GetBudget(ctx, userID, budgetID)
	if err != nil {
		return core.Budget{}, err
	}

	truth, err := t.Recompute(ctx, b)
	if err != nil {
		return core.Budget{}, err
	}

	if truth.Cents != b.Spent.Cents {
		t.logger.WarnContext(ctx, "spent counter drifted from ledger",
			log.FieldBudgetID, b.ID,
			log.FieldSpentCents, b.Spent.Cents,
			"recomputed_cents", truth.Cents)
		if err := t.store.SetSpent(ctx, b.ID, truth.Cents); err != nil {
			return core.Budget{}, err
		}
		b.Spent = truth
	}

	level := Threshold(b.Spent.Cents, b.Limit.Cents)
	if level != b.LastNotified {
		if err := t.store.SetLastNotified(ctx, b.ID, level); err != nil {
			return core.Budget{}, err
		}
		b.LastNotified = level
	}
	return b, nil
}

func percent(spentCents, limitCents int64) float64 {
	if limitCents <= 0 {
		return 100
	}
	return float64(spentCents) / float64(limitCents) * 100
}
