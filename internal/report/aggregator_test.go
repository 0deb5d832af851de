package report

import (
	"context"
	"testing"
	"time"

	"pfm/internal/cache"
	"pfm/internal/core"
	"pfm/internal/log"
)

type fakeStore struct {
	income        []core.TrendPoint
	expenses      []core.CategoryTrendPoint
	categoryTotal []core.CategoryAmount
	budgets       []core.Budget
	categories    map[int64]core.Category
	windowSums    map[int64]int64 // keyed by category id
	yearTotals    map[string]int64
	notifications []core.Notification

	calls int
}

func (f *fakeStore) IncomeTrends(context.Context, string) ([]core.TrendPoint, error) {
	f.calls++
	return f.income, nil
}

func (f *fakeStore) ExpenseTrends(context.Context, string) ([]core.CategoryTrendPoint, error) {
	return f.expenses, nil
}

func (f *fakeStore) ExpenseCategoryTotals(context.Context, string) ([]core.CategoryAmount, error) {
	return f.categoryTotal, nil
}

func (f *fakeStore) ListBudgets(context.Context, string) ([]core.Budget, error) {
	return f.budgets, nil
}

func (f *fakeStore) GetCategory(_ context.Context, id int64) (core.Category, error) {
	c, ok := f.categories[id]
	if !ok {
		return core.Category{}, core.ErrNotFound
	}
	return c, nil
}

func (f *fakeStore) SumExpensesInWindow(_ context.Context, _ string, categoryID int64, _ core.PeriodType, _, _ int) (int64, error) {
	return f.windowSums[categoryID], nil
}

func (f *fakeStore) TotalByType(_ context.Context, _ string, txType core.EntryType, year int) (int64, error) {
	return f.yearTotals[string(txType)], nil
}

func (f *fakeStore) ListNotifications(_ context.Context, _ string, limit int) ([]core.Notification, error) {
	if limit > 0 && len(f.notifications) > limit {
		return f.notifications[:limit], nil
	}
	return f.notifications, nil
}

func newTestAggregator(store Store, c cache.Cache[*Bundle]) *Aggregator {
	return NewAggregator(store, c, log.New(log.DefaultConfig()))
}

func TestCashFlow(t *testing.T) {
	store := &fakeStore{
		income: []core.TrendPoint{
			{Year: 2024, Month: 3, Total: core.MustMoney("1000.00")},
			{Year: 2024, Month: 4, Total: core.MustMoney("500.00")},
		},
		expenses: []core.CategoryTrendPoint{
			{Year: 2024, Month: 3, Category: "Food", Total: core.MustMoney("250.00")},
			{Year: 2024, Month: 3, Category: "Travel", Total: core.MustMoney("150.00")},
			// May has expenses but no income: not surfaced.
			{Year: 2024, Month: 5, Category: "Food", Total: core.MustMoney("80.00")},
		},
	}
	a := newTestAggregator(store, nil)

	got, err := a.CashFlow(context.Background(), "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d buckets, want 2 (income-driven iteration)", len(got))
	}

	march := got[0]
	if march.Income.String() != "1000.00" || march.Expense.String() != "400.00" || march.Net.String() != "600.00" {
		t.Errorf("march bucket = income %s, expense %s, net %s; want 1000.00, 400.00, 600.00",
			march.Income, march.Expense, march.Net)
	}

	april := got[1]
	if april.Expense.Cents != 0 || april.Net.String() != "500.00" {
		t.Errorf("april bucket should report expense 0.00 and net 500.00, got expense %s net %s",
			april.Expense, april.Net)
	}
}

func TestBudgetVsActualRecomputesFresh(t *testing.T) {
	store := &fakeStore{
		budgets: []core.Budget{
			{ID: 1, OwnerID: "u1", CategoryID: 3, Period: core.Monthly, Month: 6, Year: 2024,
				Limit: core.MustMoney("100.00"),
				// The cached counter is wrong on purpose; the report must
				// not trust it.
				Spent: core.MustMoney("1.00")},
		},
		categories: map[int64]core.Category{3: {ID: 3, Name: "Food", Type: core.Expense}},
		windowSums: map[int64]int64{3: 9500},
	}
	a := newTestAggregator(store, nil)

	got, err := a.BudgetVsActual(context.Background(), "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d rows, want 1", len(got))
	}
	row := got[0]
	if row.Actual.String() != "95.00" {
		t.Errorf("actual = %s, want freshly recomputed 95.00", row.Actual)
	}
	if row.Budgeted.String() != "100.00" || row.Category != "Food" {
		t.Errorf("row = %+v", row)
	}
}

func TestYearEndSummaryNegativeSavings(t *testing.T) {
	store := &fakeStore{yearTotals: map[string]int64{
		"income":  0,
		"expense": 10500,
	}}
	a := newTestAggregator(store, nil)

	got, err := a.YearEndSummary(context.Background(), "u1", 2024)
	if err != nil {
		t.Fatal(err)
	}
	if got.TotalIncome.String() != "0.00" || got.TotalExpenses.String() != "105.00" {
		t.Errorf("totals = %s / %s", got.TotalIncome, got.TotalExpenses)
	}
	if got.NetSavings.String() != "-105.00" {
		t.Errorf("net savings = %s, want -105.00", got.NetSavings)
	}
}

func TestOverview(t *testing.T) {
	store := &fakeStore{
		yearTotals: map[string]int64{"income": 200000, "expense": 150000},
		notifications: []core.Notification{
			{ID: 2, OwnerID: "u1", Level: core.LevelWarning, Message: "Food budget has been overspent for June."},
			{ID: 1, OwnerID: "u1", Level: core.LevelInfo, Message: "95% of the June Food budget has been spent."},
		},
	}
	a := newTestAggregator(store, nil)

	got, err := a.Overview(context.Background(), "u1")
	if err != nil {
		t.Fatal(err)
	}
	if got.TotalSavings.String() != "500.00" {
		t.Errorf("savings = %s, want 500.00", got.TotalSavings)
	}
	if len(got.Notifications) != 2 || got.Notifications[0].ID != 2 {
		t.Errorf("notifications = %+v", got.Notifications)
	}
}

func TestFullBundleCaching(t *testing.T) {
	store := &fakeStore{
		income:     []core.TrendPoint{{Year: 2024, Month: 1, Total: core.MustMoney("100.00")}},
		yearTotals: map[string]int64{"income": 10000},
		categories: map[int64]core.Category{},
	}
	c := cache.NewLRU[*Bundle](8, time.Minute)
	a := newTestAggregator(store, c)
	ctx := context.Background()

	first, err := a.Full(ctx, "u1", 2024)
	if err != nil {
		t.Fatal(err)
	}
	callsAfterFirst := store.calls

	second, err := a.Full(ctx, "u1", 2024)
	if err != nil {
		t.Fatal(err)
	}
	if store.calls != callsAfterFirst {
		t.Error("second read should be served from cache")
	}
	if second != first {
		t.Error("cached bundle should be the same instance")
	}

	// A ledger write invalidates the user's cached bundles.
	a.Invalidate("u1")
	if _, err := a.Full(ctx, "u1", 2024); err != nil {
		t.Fatal(err)
	}
	if store.calls == callsAfterFirst {
		t.Error("invalidated bundle should be recomputed")
	}
}
