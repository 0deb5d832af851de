// pfm-demo exercises the whole stack against a local database: it
// records a month of activity for a demo user, triggers the budget
// notifications and prints the resulting reports.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"pfm/internal/budget"
	"pfm/internal/cache"
	"pfm/internal/config"
	"pfm/internal/core"
	"pfm/internal/log"
	"pfm/internal/notify"
	"pfm/internal/report"
	"pfm/internal/services"
	"pfm/internal/storage"
)

const demoUser = "demo"

func main() {
	_ = godotenv.Load()

	logger := log.New(log.DefaultConfig())
	log.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	repo, err := storage.NewRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("failed to open storage", log.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	tracker := budget.NewTracker(repo, logger)
	notifier := notify.NewEngine(repo, logger)
	reports := report.NewAggregator(repo,
		cache.NewLRU[*report.Bundle](cfg.ReportCacheSize, cfg.ReportCacheTTL), logger)
	categories := services.NewCategoryService(repo, logger)
	transactions := services.NewTransactionService(repo, tracker, notifier, reports, logger)
	budgets := services.NewBudgetService(repo, tracker, logger)

	ctx := context.Background()
	if err := run(ctx, categories, transactions, budgets, notifier, reports); err != nil {
		logger.Error("demo failed", log.FieldError, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, categories *services.CategoryService, transactions *services.TransactionService, budgets *services.BudgetService, notifier *notify.Engine, reports *report.Aggregator) error {
	food, err := findCategory(ctx, categories, "Food", core.Expense)
	if err != nil {
		return err
	}
	salary, err := findCategory(ctx, categories, "Salary", core.Income)
	if err != nil {
		return err
	}

	if _, err := budgets.Create(ctx, core.Budget{
		OwnerID:    demoUser,
		CategoryID: food.ID,
		Limit:      core.MustMoney("100.00"),
		Period:     core.Monthly,
		Month:      6,
		Year:       2024,
	}); err != nil {
		return fmt.Errorf("create budget: %w", err)
	}

	entries := []struct {
		entryType core.EntryType
		category  int64
		amount    string
		day       int
		note      string
	}{
		{core.Income, salary.ID, "1000.00", 1, "June salary"},
		{core.Expense, food.ID, "95.00", 10, "Groceries"},
		{core.Expense, food.ID, "10.00", 20, "Takeaway"},
	}
	for _, e := range entries {
		if _, err := transactions.Record(ctx, core.Transaction{
			OwnerID:    demoUser,
			Type:       e.entryType,
			Amount:     core.MustMoney(e.amount),
			CategoryID: e.category,
			Date:       core.NewDate(2024, 6, e.day),
			Note:       e.note,
		}); err != nil {
			return fmt.Errorf("record %s: %w", e.note, err)
		}
	}

	notifications, err := notifier.List(ctx, demoUser, 0)
	if err != nil {
		return err
	}
	fmt.Println("notifications:")
	for _, n := range notifications {
		fmt.Printf("  [%s] %s\n", n.Level, n.Message)
	}

	bundle, err := reports.Full(ctx, demoUser, 2024)
	if err != nil {
		return err
	}
	fmt.Println("cash flow:")
	for _, e := range bundle.CashFlow {
		fmt.Printf("  %04d-%02d income %s expense %s net %s\n",
			e.Year, e.Month, e.Income, e.Expense, e.Net)
	}
	fmt.Println("budget vs actual:")
	for _, c := range bundle.BudgetVsActual {
		fmt.Printf("  %s %s: budgeted %s actual %s\n",
			c.Category, c.Period, c.Budgeted, c.Actual)
	}
	fmt.Printf("year end: income %s, expenses %s, net savings %s\n",
		bundle.YearEndSummary.TotalIncome,
		bundle.YearEndSummary.TotalExpenses,
		bundle.YearEndSummary.NetSavings)
	return nil
}

// findCategory looks up one of the seeded global categories.
func findCategory(ctx context.Context, categories *services.CategoryService, name string, entryType core.EntryType) (core.Category, error) {
	all, err := categories.List(ctx, demoUser)
	if err != nil {
		return core.Category{}, err
	}
	for _, c := range all {
		if c.Name == name && c.Type == entryType {
			return c, nil
		}
	}
	return core.Category{}, fmt.Errorf("seeded category %q missing", name)
}
