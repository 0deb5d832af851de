// Package report builds the read-side views over the ledger and budgets:
// monthly trends, category breakdowns, cash flow, budget-vs-actual and
// the year-end summary. Every view is side-effect-free and recomputable
// from storage at any time.
package report

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"pfm/internal/cache"
	"pfm/internal/core"
	"pfm/internal/log"
)

type Store interface {
	IncomeTrends(ctx context.Context, userID string) ([]core.TrendPoint, error)
	ExpenseTrends(ctx context.Context, userID string) ([]core.CategoryTrendPoint, error)
	ExpenseCategoryTotals(ctx context.Context, userID string) ([]core.CategoryAmount, error)
	ListBudgets(ctx context.Context, userID string) ([]core.Budget, error)
	GetCategory(ctx context.Context, id int64) (core.Category, error)
	SumExpensesInWindow(ctx context.Context, userID string, categoryID int64, period core.PeriodType, year, month int) (int64, error)
	TotalByType(ctx context.Context, userID string, txType core.EntryType, year int) (int64, error)
	ListNotifications(ctx context.Context, userID string, limit int) ([]core.Notification, error)
}

// Bundle is the full report payload for one user and year, the shape the
// web layer serves in a single response.
type Bundle struct {
	IncomeTrends      []core.TrendPoint
	ExpenseTrends     []core.CategoryTrendPoint
	ExpenseCategories []core.CategoryAmount
	CashFlow          []core.CashFlowEntry
	BudgetVsActual    []core.BudgetComparison
	YearEndSummary    core.YearSummary
}

type Aggregator struct {
	store  Store
	cache  cache.Cache[*Bundle]
	logger *log.Logger

	mu     sync.Mutex
	epochs map[string]uint64
}

func NewAggregator(store Store, c cache.Cache[*Bundle], logger *log.Logger) *Aggregator {
	return &Aggregator{
		store:  store,
		cache:  c,
		logger: logger.WithComponent(log.ComponentReport),
		epochs: make(map[string]uint64),
	}
}

// Invalidate drops every cached bundle for a user by advancing their
// cache epoch; stale entries age out of the LRU on their own.
func (a *Aggregator) Invalidate(userID string) {
	a.mu.Lock()
	a.epochs[userID]++
	a.mu.Unlock()
}

func (a *Aggregator) cacheKey(userID string, year int) string {
	a.mu.Lock()
	epoch := a.epochs[userID]
	a.mu.Unlock()
	return fmt.Sprintf("%s|%d|%d", userID, year, epoch)
}

// IncomeTrends returns income totals per (year, month), ascending.
func (a *Aggregator) IncomeTrends(ctx context.Context, userID string) ([]core.TrendPoint, error) {
	return a.store.IncomeTrends(ctx, userID)
}

// ExpenseTrends returns expense totals per (year, month, category),
// ascending.
func (a *Aggregator) ExpenseTrends(ctx context.Context, userID string) ([]core.CategoryTrendPoint, error) {
	return a.store.ExpenseTrends(ctx, userID)
}

// ExpenseCategoryBreakdown returns all-time expense totals per category,
// ordered by category name.
func (a *Aggregator) ExpenseCategoryBreakdown(ctx context.Context, userID string) ([]core.CategoryAmount, error) {
	return a.store.ExpenseCategoryTotals(ctx, userID)
}

// CashFlow pairs monthly income with monthly expenses. Iteration is
// income-driven: months with expenses but no income are not surfaced.
// That asymmetry matches the upstream product behavior and is kept
// deliberately.
func (a *Aggregator) CashFlow(ctx context.Context, userID string) ([]core.CashFlowEntry, error) {
	income, err := a.store.IncomeTrends(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("cash flow income: %w", err)
	}
	expenses, err := a.store.ExpenseTrends(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("cash flow expenses: %w", err)
	}

	expenseByBucket := make(map[[2]int]int64, len(expenses))
	for _, e := range expenses {
		expenseByBucket[[2]int{e.Year, e.Month}] += e.Total.Cents
	}

	out := make([]core.CashFlowEntry, 0, len(income))
	for _, in := range income {
		exp := expenseByBucket[[2]int{in.Year, in.Month}]
		out = append(out, core.CashFlowEntry{
			Year:    in.Year,
			Month:   in.Month,
			Income:  in.Total,
			Expense: core.Money{Cents: exp},
			Net:     core.Money{Cents: in.Total.Cents - exp},
		})
	}
	return out, nil
}

// BudgetVsActual compares every budget's limit with the freshly
// recomputed expense total for its window. The cached spent counter is
// deliberately not used here.
func (a *Aggregator) BudgetVsActual(ctx context.Context, userID string) ([]core.BudgetComparison, error) {
	budgets, err := a.store.ListBudgets(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("budget vs actual: %w", err)
	}

	out := make([]core.BudgetComparison, 0, len(budgets))
	for _, b := range budgets {
		actual, err := a.store.SumExpensesInWindow(ctx, userID, b.CategoryID, b.Period, b.Year, b.Month)
		if err != nil {
			return nil, fmt.Errorf("actual for budget %d: %w", b.ID, err)
		}
		cat, err := a.store.GetCategory(ctx, b.CategoryID)
		if err != nil {
			return nil, fmt.Errorf("category for budget %d: %w", b.ID, err)
		}
		out = append(out, core.BudgetComparison{
			Year:     b.Year,
			Month:    b.Month,
			Period:   b.Period,
			Category: cat.Name,
			Budgeted: b.Limit,
			Actual:   core.Money{Cents: actual},
		})
	}
	return out, nil
}

// YearEndSummary totals income and expenses for the given year.
func (a *Aggregator) YearEndSummary(ctx context.Context, userID string, year int) (core.YearSummary, error) {
	income, err := a.store.TotalByType(ctx, userID, core.Income, year)
	if err != nil {
		return core.YearSummary{}, fmt.Errorf("year income: %w", err)
	}
	expenses, err := a.store.TotalByType(ctx, userID, core.Expense, year)
	if err != nil {
		return core.YearSummary{}, fmt.Errorf("year expenses: %w", err)
	}
	return core.YearSummary{
		Year:          year,
		TotalIncome:   core.Money{Cents: income},
		TotalExpenses: core.Money{Cents: expenses},
		NetSavings:    core.Money{Cents: income - expenses},
	}, nil
}

// Overview is the dashboard view: all-time totals plus the five most
// recent notifications.
func (a *Aggregator) Overview(ctx context.Context, userID string) (core.Overview, error) {
	income, err := a.store.TotalByType(ctx, userID, core.Income, 0)
	if err != nil {
		return core.Overview{}, fmt.Errorf("overview income: %w", err)
	}
	expenses, err := a.store.TotalByType(ctx, userID, core.Expense, 0)
	if err != nil {
		return core.Overview{}, fmt.Errorf("overview expenses: %w", err)
	}
	notifications, err := a.store.ListNotifications(ctx, userID, 5)
	if err != nil {
		return core.Overview{}, fmt.Errorf("overview notifications: %w", err)
	}
	return core.Overview{
		TotalIncome:   core.Money{Cents: income},
		TotalExpenses: core.Money{Cents: expenses},
		TotalSavings:  core.Money{Cents: income - expenses},
		Notifications: notifications,
	}, nil
}

// Full computes the whole report bundle, fanning the independent
// sections out concurrently. Results are cached per user and year until
// the next ledger write or TTL expiry.
func (a *Aggregator) Full(ctx context.Context, userID string, year int) (*Bundle, error) {
	key := a.cacheKey(userID, year)
	if a.cache != nil {
		if cached, ok := a.cache.Get(key); ok {
			a.logger.DebugContext(ctx, "report bundle served from cache",
				log.FieldUserID, userID, log.FieldYear, year)
			return cached, nil
		}
	}

	var b Bundle
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		b.IncomeTrends, err = a.IncomeTrends(gctx, userID)
		return err
	})
	g.Go(func() (err error) {
		b.ExpenseTrends, err = a.ExpenseTrends(gctx, userID)
		return err
	})
	g.Go(func() (err error) {
		b.ExpenseCategories, err = a.ExpenseCategoryBreakdown(gctx, userID)
		return err
	})
	g.Go(func() (err error) {
		b.CashFlow, err = a.CashFlow(gctx, userID)
		return err
	})
	g.Go(func() (err error) {
		b.BudgetVsActual, err = a.BudgetVsActual(gctx, userID)
		return err
	})
	g.Go(func() (err error) {
		b.YearEndSummary, err = a.YearEndSummary(gctx, userID, year)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if a.cache != nil {
		a.cache.Set(key, &b)
	}
	return &b, nil
}
