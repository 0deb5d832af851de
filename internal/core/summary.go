package core

// TrendPoint is an amount aggregated into a (year, month) bucket.
type TrendPoint struct {
	Year  int
	Month int // 1-12
	Total Money
}

// CategoryTrendPoint is a (year, month) bucket additionally split by
// category name.
type CategoryTrendPoint struct {
	Year     int
	Month    int // 1-12
	Category string
	Total    Money
}

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string
	Amount Money
}

// CashFlowEntry is the per-month income/expense balance. Net may be
// negative.
type CashFlowEntry struct {
	Year    int
	Month   int // 1-12
	Income  Money
	Expense Money
	Net     Money
}

// BudgetComparison pairs a budget's limit with the freshly recomputed
// expense total for its window, independent of the cached spent counter.
type BudgetComparison struct {
	Year     int
	Month    int // 0 for yearly budgets
	Period   PeriodType
	Category string
	Budgeted Money
	Actual   Money
}

// YearSummary is the year-end roll-up. NetSavings is income minus
// expenses and may be negative.
type YearSummary struct {
	Year          int
	TotalIncome   Money
	TotalExpenses Money
	NetSavings    Money
}

// Overview is the dashboard view: all-time totals plus the most recent
// notifications, newest first.
type Overview struct {
	TotalIncome   Money
	TotalExpenses Money
	TotalSavings  Money
	Notifications []Notification
}
