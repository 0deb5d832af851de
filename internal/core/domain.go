package core

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

const (
	Income  EntryType = "income"
	Expense EntryType = "expense"
)

const (
	Monthly PeriodType = "monthly"
	Yearly  PeriodType = "yearly"
)

const (
	LevelNone    Level = ""
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
)

type (
	// EntryType classifies both categories and transactions as money
	// flowing in or out. A transaction's type must match its category's.
	EntryType string

	// PeriodType is the explicit discriminant for a budget window.
	// Monthly budgets cover one calendar month of a year, yearly budgets
	// the whole year.
	PeriodType string

	// Level is the severity of a budget threshold crossing.
	Level string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	Category struct {
		ID        int64
		OwnerID   string // empty means global, visible to every user
		Name      string
		Type      EntryType
		CreatedAt time.Time
	}

	Transaction struct {
		ID         int64
		OwnerID    string
		Type       EntryType
		Amount     Money
		CategoryID int64
		Date       Date
		Note       string
		CreatedAt  time.Time
	}

	Budget struct {
		ID           int64
		OwnerID      string
		CategoryID   int64
		Limit        Money
		Spent        Money // derived cache of matching expense totals
		Period       PeriodType
		Month        int // 1..12, monthly budgets only
		Year         int
		LastNotified Level
		CreatedAt    time.Time
	}

	Notification struct {
		ID        int64
		OwnerID   string
		Message   string
		Level     Level
		CreatedAt time.Time
	}
)

var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrInvalidDate    = errors.New("invalid date")
	ErrInvalidPeriod  = errors.New("invalid budget period")
	ErrTypeMismatch   = errors.New("transaction type does not match category type")
	ErrEmptyName      = errors.New("empty name")
	ErrMissingUser    = errors.New("missing user identifier")
	ErrGlobalReadOnly = errors.New("global categories are read-only")
)

func (t EntryType) Valid() bool {
	return t == Income || t == Expense
}

func (p PeriodType) Valid() bool {
	return p == Monthly || p == Yearly
}

// Severity orders levels so that crossings can be compared: a notification
// is only worth emitting when the new level outranks the last one sent.
func (l Level) Severity() int {
	switch l {
	case LevelWarning:
		return 2
	case LevelInfo:
		return 1
	default:
		return 0
	}
}

// NewDate creates a Date from year, month, day in UTC.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// Year returns the calendar year of the date.
func (d Date) Year() int {
	return d.Time.Year()
}

// Month returns the calendar month as 1..12.
func (d Date) Month() int {
	return int(d.Time.Month())
}

func (d Date) String() string {
	return d.Format("2006-01-02")
}

func (c Category) IsGlobal() bool {
	return c.OwnerID == ""
}

// VisibleTo reports whether the category can be used by the given user:
// either it is global or it belongs to them.
func (c Category) VisibleTo(userID string) bool {
	return c.IsGlobal() || c.OwnerID == userID
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if len(c.Name) > 50 {
		return errors.New("category name too long (max 50 characters)")
	}
	if !c.Type.Valid() {
		return errors.New("invalid category type")
	}
	return nil
}

func (t Transaction) Validate() error {
	if t.OwnerID == "" {
		return ErrMissingUser
	}
	if !t.Type.Valid() {
		return errors.New("invalid transaction type")
	}
	if t.Amount.Cents < 0 {
		return ErrInvalidAmount
	}
	if t.CategoryID <= 0 {
		return errors.New("missing category")
	}
	if len(t.Note) > 500 {
		return errors.New("note too long (max 500 characters)")
	}
	return t.Date.Validate()
}

func (b Budget) Validate() error {
	if b.OwnerID == "" {
		return ErrMissingUser
	}
	if b.CategoryID <= 0 {
		return errors.New("missing category")
	}
	if b.Limit.Cents < 0 {
		return ErrInvalidAmount
	}
	if !b.Period.Valid() {
		return ErrInvalidPeriod
	}
	if b.Period == Monthly && (b.Month < 1 || b.Month > 12) {
		return ErrInvalidPeriod
	}
	if b.Year < 1 {
		return ErrInvalidPeriod
	}
	return nil
}

// Contains reports whether a transaction occurring on the given date falls
// inside this budget's window.
func (b Budget) Contains(d Date) bool {
	switch b.Period {
	case Monthly:
		return d.Year() == b.Year && d.Month() == b.Month
	case Yearly:
		return d.Year() == b.Year
	default:
		return false
	}
}

// PeriodLabel renders the budget window for notification text, e.g. "June"
// for a monthly budget or "2024" for a yearly one.
func (b Budget) PeriodLabel() string {
	if b.Period == Monthly && b.Month >= 1 && b.Month <= 12 {
		return time.Month(b.Month).String()
	}
	return strconv.Itoa(b.Year)
}
