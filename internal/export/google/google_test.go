package google

import (
	"testing"

	"pfm/internal/core"
	"pfm/internal/report"
)

func TestYearPrefixedName(t *testing.T) {
	cases := []struct {
		base string
		year int
		want string
	}{
		{"Reports", 2024, "2024 Reports"},
		{"2023 Reports", 2024, "2023 Reports"},
		{"", 2024, ""},
		{"  Summary ", 2024, "2024 Summary"},
	}
	for _, tc := range cases {
		if got := yearPrefixedName(tc.base, tc.year); got != tc.want {
			t.Errorf("yearPrefixedName(%q, %d) = %q, want %q", tc.base, tc.year, got, tc.want)
		}
	}
}

func TestBundleRows(t *testing.T) {
	b := &report.Bundle{
		CashFlow: []core.CashFlowEntry{
			{Year: 2024, Month: 3, Income: core.MustMoney("1000.00"), Expense: core.MustMoney("400.00"), Net: core.MustMoney("600.00")},
		},
		BudgetVsActual: []core.BudgetComparison{
			{Year: 2024, Month: 6, Period: core.Monthly, Category: "Food", Budgeted: core.MustMoney("100.00"), Actual: core.MustMoney("95.00")},
			{Year: 2024, Period: core.Yearly, Category: "Travel", Budgeted: core.MustMoney("500.00"), Actual: core.MustMoney("20.00")},
		},
		ExpenseCategories: []core.CategoryAmount{
			{Name: "Food", Amount: core.MustMoney("95.00")},
		},
		YearEndSummary: core.YearSummary{
			Year:          2024,
			TotalIncome:   core.MustMoney("1000.00"),
			TotalExpenses: core.MustMoney("495.00"),
			NetSavings:    core.MustMoney("505.00"),
		},
	}

	rows := BundleRows("u1", 2024, b)
	if len(rows) == 0 {
		t.Fatal("no rows")
	}
	if rows[0][0] != "Report" || rows[0][1] != "u1" {
		t.Errorf("header row = %v", rows[0])
	}

	// The summary row carries euros as floats for the sheet.
	summary := rows[3]
	if summary[3] != 505.00 {
		t.Errorf("net savings cell = %v, want 505.00", summary[3])
	}

	var sawMonthly, sawYearly bool
	for _, row := range rows {
		if len(row) >= 3 && row[1] == "2024-06" && row[2] == "Food" {
			sawMonthly = true
		}
		if len(row) >= 3 && row[1] == "2024" && row[2] == "Travel" {
			sawYearly = true
		}
	}
	if !sawMonthly || !sawYearly {
		t.Errorf("budget rows missing: monthly=%v yearly=%v", sawMonthly, sawYearly)
	}
}

func TestPeriodCell(t *testing.T) {
	if got := periodCell(core.Monthly, 2024, 6); got != "2024-06" {
		t.Errorf("monthly = %q", got)
	}
	if got := periodCell(core.Yearly, 2024, 0); got != "2024" {
		t.Errorf("yearly = %q", got)
	}
}
