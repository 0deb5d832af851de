// Package storage is the SQLite persistence layer. All monetary columns
// hold integer cents and dates are stored as ISO strings, so aggregate
// sums stay decimal-exact.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"pfm/internal/core"
	"pfm/internal/receipt"

	_ "modernc.org/sqlite"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = time.RFC3339
)

type Repository struct {
	db *sql.DB
}

func NewRepository(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// --- categories ---

func (r *Repository) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	c.CreatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (owner_id, name, category_type, created_at) VALUES (?, ?, ?, ?)`,
		c.OwnerID, c.Name, string(c.Type), c.CreatedAt.Format(timeLayout))
	if err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	c.ID, err = res.LastInsertId()
	if err != nil {
		return core.Category{}, fmt.Errorf("category insert id: %w", err)
	}
	return c, nil
}

func (r *Repository) GetCategory(ctx context.Context, id int64) (core.Category, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, owner_id, name, category_type, created_at FROM categories WHERE id = ?`, id)
	c, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, fmt.Errorf("category %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("get category: %w", err)
	}
	return c, nil
}

// ListVisibleCategories returns the user's own categories plus every
// global one, ordered by name.
func (r *Repository) ListVisibleCategories(ctx context.Context, userID string) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, owner_id, name, category_type, created_at
		 FROM categories
		 WHERE owner_id = '' OR owner_id = ?
		 ORDER BY name, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// --- transactions ---

// TransactionFilter narrows ListTransactions. Zero values mean "no
// constraint".
type TransactionFilter struct {
	Type       core.EntryType
	CategoryID int64
	Year       int
	Month      int
}

func (r *Repository) CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	t.CreatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (owner_id, tx_type, amount_cents, category_id, occurred_on, note, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.OwnerID, string(t.Type), t.Amount.Cents, t.CategoryID,
		t.Date.Format(dateLayout), t.Note, t.CreatedAt.Format(timeLayout))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}
	t.ID, err = res.LastInsertId()
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction insert id: %w", err)
	}
	return t, nil
}

func (r *Repository) GetTransaction(ctx context.Context, userID string, id int64) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, owner_id, tx_type, amount_cents, category_id, occurred_on, note, created_at
		 FROM transactions WHERE id = ? AND owner_id = ?`, id, userID)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, fmt.Errorf("transaction %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

// ListTransactions returns the user's transactions newest-first by
// occurrence date.
func (r *Repository) ListTransactions(ctx context.Context, userID string, f TransactionFilter) ([]core.Transaction, error) {
	query := `SELECT id, owner_id, tx_type, amount_cents, category_id, occurred_on, note, created_at
	          FROM transactions WHERE owner_id = ?`
	args := []any{userID}
	if f.Type != "" {
		query += ` AND tx_type = ?`
		args = append(args, string(f.Type))
	}
	if f.CategoryID > 0 {
		query += ` AND category_id = ?`
		args = append(args, f.CategoryID)
	}
	if f.Year > 0 {
		query += ` AND CAST(strftime('%Y', occurred_on) AS INTEGER) = ?`
		args = append(args, f.Year)
	}
	if f.Month > 0 {
		query += ` AND CAST(strftime('%m', occurred_on) AS INTEGER) = ?`
		args = append(args, f.Month)
	}
	query += ` ORDER BY occurred_on DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *Repository) UpdateTransaction(ctx context.Context, t core.Transaction) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET tx_type = ?, amount_cents = ?, category_id = ?, occurred_on = ?, note = ?
		 WHERE id = ? AND owner_id = ?`,
		string(t.Type), t.Amount.Cents, t.CategoryID, t.Date.Format(dateLayout), t.Note,
		t.ID, t.OwnerID)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	return requireRow(res, t.ID)
}

func (r *Repository) DeleteTransaction(ctx context.Context, userID string, id int64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM transactions WHERE id = ? AND owner_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return requireRow(res, id)
}

// --- budgets ---

func (r *Repository) CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	b.CreatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO budgets (owner_id, category_id, limit_cents, spent_cents, period_type, month, year, last_notified_level, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.OwnerID, b.CategoryID, b.Limit.Cents, b.Spent.Cents,
		string(b.Period), nullableMonth(b), b.Year, string(b.LastNotified),
		b.CreatedAt.Format(timeLayout))
	if err != nil {
		return core.Budget{}, fmt.Errorf("create budget: %w", err)
	}
	b.ID, err = res.LastInsertId()
	if err != nil {
		return core.Budget{}, fmt.Errorf("budget insert id: %w", err)
	}
	return b, nil
}

func (r *Repository) GetBudget(ctx context.Context, userID string, id int64) (core.Budget, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, owner_id, category_id, limit_cents, spent_cents, period_type, month, year, last_notified_level, created_at
		 FROM budgets WHERE id = ? AND owner_id = ?`, id, userID)
	b, err := scanBudget(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Budget{}, fmt.Errorf("budget %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Budget{}, fmt.Errorf("get budget: %w", err)
	}
	return b, nil
}

func (r *Repository) ListBudgets(ctx context.Context, userID string) ([]core.Budget, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, owner_id, category_id, limit_cents, spent_cents, period_type, month, year, last_notified_level, created_at
		 FROM budgets WHERE owner_id = ?
		 ORDER BY year DESC, month DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()
	return collectBudgets(rows)
}

// ListBudgetsForCategory returns the user's budgets for one category,
// newest created first. The tracker relies on this order for its
// tie-break when several windows match.
func (r *Repository) ListBudgetsForCategory(ctx context.Context, userID string, categoryID int64) ([]core.Budget, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, owner_id, category_id, limit_cents, spent_cents, period_type, month, year, last_notified_level, created_at
		 FROM budgets WHERE owner_id = ? AND category_id = ?
		 ORDER BY created_at DESC, id DESC`, userID, categoryID)
	if err != nil {
		return nil, fmt.Errorf("list budgets for category: %w", err)
	}
	defer rows.Close()
	return collectBudgets(rows)
}

func (r *Repository) DeleteBudget(ctx context.Context, userID string, id int64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM budgets WHERE id = ? AND owner_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete budget: %w", err)
	}
	return requireRow(res, id)
}

// AddSpent adds delta (which may be negative) to the budget's spent
// counter in a single statement, so concurrent writers cannot lose
// updates, and returns the new value.
func (r *Repository) AddSpent(ctx context.Context, budgetID int64, deltaCents int64) (int64, error) {
	var spent int64
	err := r.db.QueryRowContext(ctx,
		`UPDATE budgets SET spent_cents = spent_cents + ? WHERE id = ? RETURNING spent_cents`,
		deltaCents, budgetID).Scan(&spent)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("budget %d: %w", budgetID, core.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("add spent: %w", err)
	}
	return spent, nil
}

// SetSpent overwrites the cached counter, used by reconciliation.
func (r *Repository) SetSpent(ctx context.Context, budgetID int64, cents int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE budgets SET spent_cents = ? WHERE id = ?`, cents, budgetID)
	if err != nil {
		return fmt.Errorf("set spent: %w", err)
	}
	return requireRow(res, budgetID)
}

func (r *Repository) SetLastNotified(ctx context.Context, budgetID int64, level core.Level) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE budgets SET last_notified_level = ? WHERE id = ?`, string(level), budgetID)
	if err != nil {
		return fmt.Errorf("set last notified level: %w", err)
	}
	return requireRow(res, budgetID)
}

// SumExpensesInWindow independently totals the expense transactions a
// budget window covers. This is the ground truth the spent counter is a
// cache of.
func (r *Repository) SumExpensesInWindow(ctx context.Context, userID string, categoryID int64, period core.PeriodType, year, month int) (int64, error) {
	query := `SELECT COALESCE(SUM(amount_cents), 0)
	          FROM transactions
	          WHERE owner_id = ? AND category_id = ? AND tx_type = 'expense'
	            AND CAST(strftime('%Y', occurred_on) AS INTEGER) = ?`
	args := []any{userID, categoryID, year}
	if period == core.Monthly {
		query += ` AND CAST(strftime('%m', occurred_on) AS INTEGER) = ?`
		args = append(args, month)
	}
	var total int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum expenses in window: %w", err)
	}
	return total, nil
}

// --- notifications ---

func (r *Repository) CreateNotification(ctx context.Context, n core.Notification) (core.Notification, error) {
	n.CreatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO notifications (owner_id, message, level, created_at) VALUES (?, ?, ?, ?)`,
		n.OwnerID, n.Message, string(n.Level), n.CreatedAt.Format(timeLayout))
	if err != nil {
		return core.Notification{}, fmt.Errorf("create notification: %w", err)
	}
	n.ID, err = res.LastInsertId()
	if err != nil {
		return core.Notification{}, fmt.Errorf("notification insert id: %w", err)
	}
	return n, nil
}

// ListNotifications returns the user's notifications newest-first. A
// limit <= 0 returns all of them.
func (r *Repository) ListNotifications(ctx context.Context, userID string, limit int) ([]core.Notification, error) {
	query := `SELECT id, owner_id, message, level, created_at
	          FROM notifications WHERE owner_id = ?
	          ORDER BY created_at DESC, id DESC`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []core.Notification
	for rows.Next() {
		var n core.Notification
		var level, createdAt string
		if err := rows.Scan(&n.ID, &n.OwnerID, &n.Message, &level, &createdAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.Level = core.Level(level)
		n.CreatedAt, _ = time.Parse(timeLayout, createdAt)
		out = append(out, n)
	}
	return out, rows.Err()
}

// --- receipt tasks ---

func (r *Repository) CreateReceiptTask(ctx context.Context, t receipt.Task) error {
	now := time.Now().UTC().Format(timeLayout)
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO receipt_tasks (task_id, owner_id, status, image_b64, result_json, error, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.OwnerID, string(t.Status), t.ImageB64, t.ResultJSON, t.Error, now, now)
	if err != nil {
		return fmt.Errorf("create receipt task: %w", err)
	}
	return nil
}

func (r *Repository) GetReceiptTask(ctx context.Context, taskID string) (receipt.Task, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT task_id, owner_id, status, image_b64, result_json, error, created_at, updated_at
		 FROM receipt_tasks WHERE task_id = ?`, taskID)

	var t receipt.Task
	var status, createdAt, updatedAt string
	err := row.Scan(&t.ID, &t.OwnerID, &status, &t.ImageB64, &t.ResultJSON, &t.Error, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return receipt.Task{}, receipt.ErrTaskNotFound
	}
	if err != nil {
		return receipt.Task{}, fmt.Errorf("get receipt task: %w", err)
	}
	t.Status = receipt.Status(status)
	t.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	t.UpdatedAt, _ = time.Parse(timeLayout, updatedAt)
	return t, nil
}

// SetReceiptTaskStatus transitions a task and records its result or
// failure reason.
func (r *Repository) SetReceiptTaskStatus(ctx context.Context, taskID string, status receipt.Status, resultJSON, errMsg string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE receipt_tasks SET status = ?, result_json = ?, error = ?, updated_at = ? WHERE task_id = ?`,
		string(status), resultJSON, errMsg, time.Now().UTC().Format(timeLayout), taskID)
	if err != nil {
		return fmt.Errorf("set receipt task status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return receipt.ErrTaskNotFound
	}
	return nil
}

// ListStaleSubmittedTasks returns ids of tasks still waiting for a worker
// after the given cutoff, oldest first. The sweep republishes them.
func (r *Repository) ListStaleSubmittedTasks(ctx context.Context, olderThan time.Time, limit int) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT task_id FROM receipt_tasks
		 WHERE status = 'submitted' AND created_at < ?
		 ORDER BY created_at LIMIT ?`,
		olderThan.UTC().Format(timeLayout), limit)
	if err != nil {
		return nil, fmt.Errorf("list stale tasks: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan task id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// --- report aggregates ---

func (r *Repository) IncomeTrends(ctx context.Context, userID string) ([]core.TrendPoint, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT CAST(strftime('%Y', occurred_on) AS INTEGER) AS y,
		        CAST(strftime('%m', occurred_on) AS INTEGER) AS m,
		        SUM(amount_cents)
		 FROM transactions
		 WHERE owner_id = ? AND tx_type = 'income'
		 GROUP BY y, m ORDER BY y, m`, userID)
	if err != nil {
		return nil, fmt.Errorf("income trends: %w", err)
	}
	defer rows.Close()

	var out []core.TrendPoint
	for rows.Next() {
		var p core.TrendPoint
		if err := rows.Scan(&p.Year, &p.Month, &p.Total.Cents); err != nil {
			return nil, fmt.Errorf("scan trend point: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repository) ExpenseTrends(ctx context.Context, userID string) ([]core.CategoryTrendPoint, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT CAST(strftime('%Y', t.occurred_on) AS INTEGER) AS y,
		        CAST(strftime('%m', t.occurred_on) AS INTEGER) AS m,
		        c.name,
		        SUM(t.amount_cents)
		 FROM transactions t
		 JOIN categories c ON c.id = t.category_id
		 WHERE t.owner_id = ? AND t.tx_type = 'expense'
		 GROUP BY y, m, c.name ORDER BY y, m, c.name`, userID)
	if err != nil {
		return nil, fmt.Errorf("expense trends: %w", err)
	}
	defer rows.Close()

	var out []core.CategoryTrendPoint
	for rows.Next() {
		var p core.CategoryTrendPoint
		if err := rows.Scan(&p.Year, &p.Month, &p.Category, &p.Total.Cents); err != nil {
			return nil, fmt.Errorf("scan category trend point: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repository) ExpenseCategoryTotals(ctx context.Context, userID string) ([]core.CategoryAmount, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT c.name, SUM(t.amount_cents)
		 FROM transactions t
		 JOIN categories c ON c.id = t.category_id
		 WHERE t.owner_id = ? AND t.tx_type = 'expense'
		 GROUP BY c.name ORDER BY c.name`, userID)
	if err != nil {
		return nil, fmt.Errorf("expense category totals: %w", err)
	}
	defer rows.Close()

	var out []core.CategoryAmount
	for rows.Next() {
		var ca core.CategoryAmount
		if err := rows.Scan(&ca.Name, &ca.Amount.Cents); err != nil {
			return nil, fmt.Errorf("scan category amount: %w", err)
		}
		out = append(out, ca)
	}
	return out, rows.Err()
}

// TotalByType sums the user's transactions of one type, optionally scoped
// to a year (year <= 0 means all time).
func (r *Repository) TotalByType(ctx context.Context, userID string, txType core.EntryType, year int) (int64, error) {
	query := `SELECT COALESCE(SUM(amount_cents), 0) FROM transactions WHERE owner_id = ? AND tx_type = ?`
	args := []any{userID, string(txType)}
	if year > 0 {
		query += ` AND CAST(strftime('%Y', occurred_on) AS INTEGER) = ?`
		args = append(args, year)
	}
	var total int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("total by type: %w", err)
	}
	return total, nil
}

// --- scanning helpers ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCategory(row rowScanner) (core.Category, error) {
	var c core.Category
	var ctype, createdAt string
	if err := row.Scan(&c.ID, &c.OwnerID, &c.Name, &ctype, &createdAt); err != nil {
		return core.Category{}, err
	}
	c.Type = core.EntryType(ctype)
	c.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	return c, nil
}

func scanTransaction(row rowScanner) (core.Transaction, error) {
	var t core.Transaction
	var ttype, occurredOn, createdAt string
	if err := row.Scan(&t.ID, &t.OwnerID, &ttype, &t.Amount.Cents, &t.CategoryID, &occurredOn, &t.Note, &createdAt); err != nil {
		return core.Transaction{}, err
	}
	t.Type = core.EntryType(ttype)
	if d, err := time.Parse(dateLayout, occurredOn); err == nil {
		t.Date = core.Date{Time: d}
	}
	t.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	return t, nil
}

func scanBudget(row rowScanner) (core.Budget, error) {
	var b core.Budget
	var period, level, createdAt string
	var month sql.NullInt64
	if err := row.Scan(&b.ID, &b.OwnerID, &b.CategoryID, &b.Limit.Cents, &b.Spent.Cents,
		&period, &month, &b.Year, &level, &createdAt); err != nil {
		return core.Budget{}, err
	}
	b.Period = core.PeriodType(period)
	if month.Valid {
		b.Month = int(month.Int64)
	}
	b.LastNotified = core.Level(level)
	b.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	return b, nil
}

func collectBudgets(rows *sql.Rows) ([]core.Budget, error) {
	var out []core.Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func nullableMonth(b core.Budget) any {
	if b.Period == core.Monthly {
		return b.Month
	}
	return nil
}

func requireRow(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("row %d: %w", id, core.ErrNotFound)
	}
	return nil
}
