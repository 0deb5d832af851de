// Package google exports report bundles to a Google Sheets spreadsheet
// using a service account.
package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"pfm/internal/core"
	ports "pfm/internal/export"
	"pfm/internal/log"
	"pfm/internal/report"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	// Base sheet name without year; the exported sheet is "<year> <base>".
	sheetBase string
	logger    *log.Logger
}

var _ ports.BundleWriter = (*Client)(nil)

// New creates a Sheets client. Credentials come from
// GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or
// GOOGLE_APPLICATION_CREDENTIALS, in that order.
func New(ctx context.Context, spreadsheetID, sheetBase string, logger *log.Logger) (*Client, error) {
	if strings.TrimSpace(spreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if strings.TrimSpace(sheetBase) == "" {
		sheetBase = "Reports"
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetBase:     sheetBase,
		logger:        logger.WithComponent(log.ComponentExport),
	}, nil
}

func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	var err error
	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// ExportBundle writes the bundle to the year's sheet starting at A1,
// replacing previous content in the written range.
func (c *Client) ExportBundle(ctx context.Context, userID string, year int, b *report.Bundle) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	rows := BundleRows(userID, year, b)
	sheetName := yearPrefixedName(c.sheetBase, year)
	rng := fmt.Sprintf("%s!A1", sheetName)

	vr := &gsheet.ValueRange{Values: rows}
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("write sheet %s: %w", sheetName, err)
	}

	ref := fmt.Sprintf("%s!A1:E%d", sheetName, len(rows))
	c.logger.InfoContext(ctx, "report bundle exported",
		log.FieldUserID, userID,
		log.FieldYear, year,
		"rows", len(rows),
		"ref", ref)
	return ref, nil
}

// BundleRows flattens a bundle into spreadsheet rows: year summary,
// cash flow, budget comparison and category breakdown sections.
func BundleRows(userID string, year int, b *report.Bundle) [][]any {
	rows := [][]any{
		{"Report", userID, year},
		{},
		{"Year summary", "Income", "Expenses", "Net savings"},
		{
			strconv.Itoa(b.YearEndSummary.Year),
			moneyCell(b.YearEndSummary.TotalIncome),
			moneyCell(b.YearEndSummary.TotalExpenses),
			moneyCell(b.YearEndSummary.NetSavings),
		},
		{},
		{"Cash flow", "Year", "Month", "Income", "Expense", "Net"},
	}
	for _, e := range b.CashFlow {
		rows = append(rows, []any{
			"", e.Year, e.Month,
			moneyCell(e.Income), moneyCell(e.Expense), moneyCell(e.Net),
		})
	}

	rows = append(rows, []any{}, []any{"Budget vs actual", "Period", "Category", "Budgeted", "Actual"})
	for _, cmp := range b.BudgetVsActual {
		rows = append(rows, []any{
			"", periodCell(cmp.Period, cmp.Year, cmp.Month), cmp.Category,
			moneyCell(cmp.Budgeted), moneyCell(cmp.Actual),
		})
	}

	rows = append(rows, []any{}, []any{"Expenses by category", "Category", "Total"})
	for _, ca := range b.ExpenseCategories {
		rows = append(rows, []any{"", ca.Name, moneyCell(ca.Amount)})
	}
	return rows
}

func moneyCell(m core.Money) float64 {
	return float64(m.Cents) / 100.0
}

func periodCell(p core.PeriodType, year, month int) string {
	if p == core.Monthly {
		return fmt.Sprintf("%04d-%02d", year, month)
	}
	return strconv.Itoa(year)
}

// yearPrefixedName returns "<year> <base>" unless base already starts
// with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
