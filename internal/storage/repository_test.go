package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"pfm/internal/core"
	"pfm/internal/receipt"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func findByName(t *testing.T, cats []core.Category, name string) core.Category {
	t.Helper()
	for _, c := range cats {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("category %q not found", name)
	return core.Category{}
}

func TestMigrationsSeedGlobalCategories(t *testing.T) {
	repo := newTestRepository(t)

	cats, err := repo.ListVisibleCategories(context.Background(), "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(cats) == 0 {
		t.Fatal("expected seeded global categories")
	}

	food := findByName(t, cats, "Food")
	if !food.IsGlobal() || food.Type != core.Expense {
		t.Errorf("Food = %+v, want global expense category", food)
	}
	salary := findByName(t, cats, "Salary")
	if salary.Type != core.Income {
		t.Errorf("Salary type = %q, want income", salary.Type)
	}
}

func TestCategoryVisibilityScoping(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	mine, err := repo.CreateCategory(ctx, core.Category{OwnerID: "u1", Name: "Hobby", Type: core.Expense})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := repo.CreateCategory(ctx, core.Category{OwnerID: "u2", Name: "Secret", Type: core.Expense}); err != nil {
		t.Fatal(err)
	}

	cats, err := repo.ListVisibleCategories(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	for _, c := range cats {
		if c.OwnerID == "u2" {
			t.Errorf("u2's category leaked into u1's list: %+v", c)
		}
	}
	got, err := repo.GetCategory(ctx, mine.ID)
	if err != nil || got.Name != "Hobby" {
		t.Errorf("GetCategory = %+v, %v", got, err)
	}
	if _, err := repo.GetCategory(ctx, 99999); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("missing category err = %v", err)
	}
}

func TestTransactionRoundTripAndFilters(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	cats, err := repo.ListVisibleCategories(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	food := findByName(t, cats, "Food")
	salary := findByName(t, cats, "Salary")

	mk := func(txType core.EntryType, catID int64, amount string, date core.Date) core.Transaction {
		t.Helper()
		tx, err := repo.CreateTransaction(ctx, core.Transaction{
			OwnerID: "u1", Type: txType, Amount: core.MustMoney(amount),
			CategoryID: catID, Date: date, Note: "n",
		})
		if err != nil {
			t.Fatal(err)
		}
		return tx
	}
	mk(core.Income, salary.ID, "1000.00", core.NewDate(2024, 3, 1))
	exp := mk(core.Expense, food.ID, "19.99", core.NewDate(2024, 3, 5))
	mk(core.Expense, food.ID, "0.01", core.NewDate(2024, 4, 1))

	got, err := repo.GetTransaction(ctx, "u1", exp.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Amount.Cents != 1999 || got.Date.String() != "2024-03-05" {
		t.Errorf("round trip = %+v", got)
	}

	march, err := repo.ListTransactions(ctx, "u1", TransactionFilter{Year: 2024, Month: 3})
	if err != nil {
		t.Fatal(err)
	}
	if len(march) != 2 {
		t.Errorf("march has %d transactions, want 2", len(march))
	}
	expenses, err := repo.ListTransactions(ctx, "u1", TransactionFilter{Type: core.Expense})
	if err != nil {
		t.Fatal(err)
	}
	if len(expenses) != 2 {
		t.Errorf("got %d expenses, want 2", len(expenses))
	}
	// Newest occurrence first.
	if expenses[0].Date.String() != "2024-04-01" {
		t.Errorf("first listed = %s, want newest", expenses[0].Date)
	}

	if _, err := repo.GetTransaction(ctx, "u2", exp.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("foreign transaction err = %v", err)
	}
	if err := repo.DeleteTransaction(ctx, "u1", exp.ID); err != nil {
		t.Fatal(err)
	}
	if err := repo.DeleteTransaction(ctx, "u1", exp.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("double delete err = %v", err)
	}
}

func TestBudgetRoundTripAndAddSpent(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	cats, err := repo.ListVisibleCategories(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	food := findByName(t, cats, "Food")

	monthly, err := repo.CreateBudget(ctx, core.Budget{
		OwnerID: "u1", CategoryID: food.ID, Limit: core.MustMoney("100.00"),
		Period: core.Monthly, Month: 6, Year: 2024,
	})
	if err != nil {
		t.Fatal(err)
	}
	yearly, err := repo.CreateBudget(ctx, core.Budget{
		OwnerID: "u1", CategoryID: food.ID, Limit: core.MustMoney("1200.00"),
		Period: core.Yearly, Year: 2024,
	})
	if err != nil {
		t.Fatal(err)
	}

	got, err := repo.GetBudget(ctx, "u1", yearly.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Period != core.Yearly || got.Month != 0 {
		t.Errorf("yearly budget = %+v, month must stay zero", got)
	}

	// Newest-created first.
	byCat, err := repo.ListBudgetsForCategory(ctx, "u1", food.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(byCat) != 2 || byCat[0].ID != yearly.ID {
		t.Errorf("order = %v, want newest first", byCat)
	}

	spent, err := repo.AddSpent(ctx, monthly.ID, 1999)
	if err != nil {
		t.Fatal(err)
	}
	if spent != 1999 {
		t.Errorf("spent = %d, want 1999", spent)
	}
	spent, err = repo.AddSpent(ctx, monthly.ID, 1)
	if err != nil {
		t.Fatal(err)
	}
	if spent != 2000 {
		t.Errorf("spent = %d, want exactly 2000", spent)
	}
	if _, err := repo.AddSpent(ctx, 99999, 1); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("missing budget err = %v", err)
	}

	if err := repo.SetLastNotified(ctx, monthly.ID, core.LevelInfo); err != nil {
		t.Fatal(err)
	}
	got, err = repo.GetBudget(ctx, "u1", monthly.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.LastNotified != core.LevelInfo || got.Spent.Cents != 2000 {
		t.Errorf("budget after updates = %+v", got)
	}
}

func TestSumExpensesInWindow(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	cats, err := repo.ListVisibleCategories(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	food := findByName(t, cats, "Food")
	salary := findByName(t, cats, "Salary")

	seed := func(txType core.EntryType, catID int64, amount string, date core.Date) {
		t.Helper()
		if _, err := repo.CreateTransaction(ctx, core.Transaction{
			OwnerID: "u1", Type: txType, Amount: core.MustMoney(amount),
			CategoryID: catID, Date: date,
		}); err != nil {
			t.Fatal(err)
		}
	}
	seed(core.Expense, food.ID, "50.00", core.NewDate(2024, 6, 1))
	seed(core.Expense, food.ID, "45.00", core.NewDate(2024, 6, 30))
	seed(core.Expense, food.ID, "30.00", core.NewDate(2024, 7, 1))  // other month
	seed(core.Expense, food.ID, "20.00", core.NewDate(2023, 6, 15)) // other year
	seed(core.Income, salary.ID, "99.00", core.NewDate(2024, 6, 2)) // income ignored

	june, err := repo.SumExpensesInWindow(ctx, "u1", food.ID, core.Monthly, 2024, 6)
	if err != nil {
		t.Fatal(err)
	}
	if june != 9500 {
		t.Errorf("june total = %d, want 9500", june)
	}

	year, err := repo.SumExpensesInWindow(ctx, "u1", food.ID, core.Yearly, 2024, 0)
	if err != nil {
		t.Fatal(err)
	}
	if year != 12500 {
		t.Errorf("2024 total = %d, want 12500", year)
	}
}

func TestReportQueries(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	cats, err := repo.ListVisibleCategories(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	food := findByName(t, cats, "Food")
	travel := findByName(t, cats, "Transportation")
	salary := findByName(t, cats, "Salary")

	seed := func(txType core.EntryType, catID int64, amount string, date core.Date) {
		t.Helper()
		if _, err := repo.CreateTransaction(ctx, core.Transaction{
			OwnerID: "u1", Type: txType, Amount: core.MustMoney(amount),
			CategoryID: catID, Date: date,
		}); err != nil {
			t.Fatal(err)
		}
	}
	seed(core.Income, salary.ID, "1000.00", core.NewDate(2024, 3, 1))
	seed(core.Expense, food.ID, "250.00", core.NewDate(2024, 3, 5))
	seed(core.Expense, travel.ID, "150.00", core.NewDate(2024, 3, 9))
	seed(core.Expense, food.ID, "105.00", core.NewDate(2024, 5, 2))

	income, err := repo.IncomeTrends(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(income) != 1 || income[0].Year != 2024 || income[0].Month != 3 || income[0].Total.Cents != 100000 {
		t.Errorf("income trends = %+v", income)
	}

	expenses, err := repo.ExpenseTrends(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(expenses) != 3 {
		t.Errorf("expense trends = %+v, want 3 (year, month, category) buckets", expenses)
	}

	totals, err := repo.ExpenseCategoryTotals(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	foodTotal := int64(0)
	for _, ca := range totals {
		if ca.Name == "Food" {
			foodTotal = ca.Amount.Cents
		}
	}
	if foodTotal != 35500 {
		t.Errorf("food total = %d, want 35500", foodTotal)
	}

	allIncome, err := repo.TotalByType(ctx, "u1", core.Income, 0)
	if err != nil {
		t.Fatal(err)
	}
	if allIncome != 100000 {
		t.Errorf("all-time income = %d", allIncome)
	}
	y2023, err := repo.TotalByType(ctx, "u1", core.Expense, 2023)
	if err != nil {
		t.Fatal(err)
	}
	if y2023 != 0 {
		t.Errorf("2023 expenses = %d, want 0", y2023)
	}
}

func TestReceiptTaskLifecycle(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	task := receipt.Task{ID: "task-1", OwnerID: "u1", Status: receipt.StatusSubmitted, ImageB64: "aW1n"}
	if err := repo.CreateReceiptTask(ctx, task); err != nil {
		t.Fatal(err)
	}

	got, err := repo.GetReceiptTask(ctx, "task-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != receipt.StatusSubmitted || got.ImageB64 != "aW1n" {
		t.Errorf("task = %+v", got)
	}
	if _, err := repo.GetReceiptTask(ctx, "nope"); !errors.Is(err, receipt.ErrTaskNotFound) {
		t.Errorf("missing task err = %v", err)
	}

	if err := repo.SetReceiptTaskStatus(ctx, "task-1", receipt.StatusCompleted, `{"x":1}`, ""); err != nil {
		t.Fatal(err)
	}
	got, err = repo.GetReceiptTask(ctx, "task-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != receipt.StatusCompleted || got.ResultJSON != `{"x":1}` {
		t.Errorf("updated task = %+v", got)
	}
	if err := repo.SetReceiptTaskStatus(ctx, "nope", receipt.StatusFailed, "", "x"); !errors.Is(err, receipt.ErrTaskNotFound) {
		t.Errorf("missing task status err = %v", err)
	}
}

func TestListStaleSubmittedTasks(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	if err := repo.CreateReceiptTask(ctx, receipt.Task{ID: "old", OwnerID: "u1", Status: receipt.StatusSubmitted}); err != nil {
		t.Fatal(err)
	}
	if err := repo.CreateReceiptTask(ctx, receipt.Task{ID: "done", OwnerID: "u1", Status: receipt.StatusSubmitted}); err != nil {
		t.Fatal(err)
	}
	if err := repo.SetReceiptTaskStatus(ctx, "done", receipt.StatusCompleted, "", ""); err != nil {
		t.Fatal(err)
	}

	// Everything created above is older than a cutoff in the future.
	ids, err := repo.ListStaleSubmittedTasks(ctx, time.Now().Add(time.Hour), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 || ids[0] != "old" {
		t.Errorf("stale ids = %v, want [old]", ids)
	}

	none, err := repo.ListStaleSubmittedTasks(ctx, time.Now().Add(-time.Hour), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(none) != 0 {
		t.Errorf("stale ids with past cutoff = %v, want none", none)
	}
}

func TestNotificationsNewestFirstWithLimit(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	for _, msg := range []string{"first", "second", "third"} {
		if _, err := repo.CreateNotification(ctx, core.Notification{
			OwnerID: "u1", Message: msg, Level: core.LevelInfo,
		}); err != nil {
			t.Fatal(err)
		}
	}

	got, err := repo.ListNotifications(ctx, "u1", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Message != "third" {
		t.Errorf("notifications = %+v, want newest first with limit 2", got)
	}
}
