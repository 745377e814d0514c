package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Daily     Granularity = "daily"
	Weekly    Granularity = "weekly"
	Monthly   Granularity = "monthly"
	Quarterly Granularity = "quarterly"
	Yearly    Granularity = "yearly"
)

const (
	Income  Direction = "income"
	Expense Direction = "expense"
)

const (
	Fixed    Kind = "fixed"
	Variable Kind = "variable"
)

const (
	Need NeedOrWant = "need"
	Want NeedOrWant = "want"
)

type (
	// Granularity selects the time-bucket width for aggregation.
	Granularity string

	// Direction tells income and expense records apart.
	Direction string

	// Kind classifies a transaction as a fixed or variable cost.
	Kind string

	// NeedOrWant is the expense-only need/want classification.
	NeedOrWant string

	Date struct {
		time.Time
	}

	// DateRange is an inclusive calendar-date interval.
	DateRange struct {
		Start Date
		End   Date
	}

	Transaction struct {
		ID         string
		OwnerID    string
		CategoryID string
		Amount     decimal.Decimal
		Date       Date
		Kind       Kind
		Direction  Direction
		NeedOrWant NeedOrWant // expenses only
	}

	Category struct {
		ID        string
		OwnerID   string
		Name      string
		Direction Direction
		Threshold decimal.Decimal // zero means no threshold configured
	}

	Trip struct {
		ID             string
		OwnerID        string
		Name           string
		StartDate      Date
		EndDate        Date // zero means still open, "now" is the effective end
		TransactionIDs []string
	}

	// Entry is a transaction already joined with its category name, the
	// shape the aggregation engine consumes. Category is empty when the
	// referenced category no longer exists.
	Entry struct {
		ID         string          `json:"id"`
		Amount     decimal.Decimal `json:"amount"`
		Kind       Kind            `json:"kind"`
		NeedOrWant NeedOrWant      `json:"needOrWant,omitempty"`
		Date       Date            `json:"date"`
		Category   string          `json:"category,omitempty"`
	}
)

var (
	ErrInvalidAmount      = errors.New("amount must be positive")
	ErrInvalidDate        = errors.New("invalid date")
	ErrInvalidDirection   = errors.New("direction must be income or expense")
	ErrInvalidKind        = errors.New("kind must be fixed or variable")
	ErrInvalidNeedOrWant  = errors.New("need/want must be need or want")
	ErrInvalidGranularity = errors.New("unrecognized granularity")
	ErrEmptyName          = errors.New("name cannot be empty")
	ErrEmptyCategory      = errors.New("category is required")
	ErrEndBeforeStart     = errors.New("end date must not precede start date")
)

// ParseGranularity reports whether s is one of the known granularities.
// Callers that tolerate unknown values fall back to Monthly instead.
func ParseGranularity(s string) (Granularity, bool) {
	switch Granularity(s) {
	case Daily, Weekly, Monthly, Quarterly, Yearly:
		return Granularity(s), true
	}
	return Monthly, false
}

// NewDate creates a Date at midnight UTC.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

// DateOf truncates t to its calendar date in UTC.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

func (d Date) String() string {
	return d.Format("2006-01-02")
}

// MarshalJSON renders the date as a plain YYYY-MM-DD string.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte(`""`), nil
	}
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// Contains reports whether d falls inside the range, both ends inclusive.
// Comparison ignores time-of-day beyond the stored date.
func (r DateRange) Contains(d Date) bool {
	day := DateOf(d.Time).Time
	return !day.Before(DateOf(r.Start.Time).Time) && !day.After(DateOf(r.End.Time).Time)
}

func (r DateRange) Validate() error {
	if err := r.Start.Validate(); err != nil {
		return err
	}
	if err := r.End.Validate(); err != nil {
		return err
	}
	if r.End.Before(r.Start.Time) {
		return ErrEndBeforeStart
	}
	return nil
}

func (t Transaction) Validate() error {
	if t.Amount.IsNegative() || t.Amount.IsZero() {
		return ErrInvalidAmount
	}
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(t.CategoryID) == "" {
		return ErrEmptyCategory
	}
	switch t.Direction {
	case Income, Expense:
	default:
		return ErrInvalidDirection
	}
	switch t.Kind {
	case Fixed, Variable:
	default:
		return ErrInvalidKind
	}
	if t.Direction == Expense {
		switch t.NeedOrWant {
		case Need, Want:
		default:
			return ErrInvalidNeedOrWant
		}
	} else if t.NeedOrWant != "" {
		return ErrInvalidNeedOrWant
	}
	return nil
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if len(c.Name) > 100 {
		return errors.New("name too long (max 100 characters)")
	}
	switch c.Direction {
	case Income, Expense:
	default:
		return ErrInvalidDirection
	}
	if c.Threshold.IsNegative() {
		return errors.New("threshold cannot be negative")
	}
	return nil
}

func (t Trip) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return ErrEmptyName
	}
	if len(t.Name) > 200 {
		return errors.New("name too long (max 200 characters)")
	}
	if err := t.StartDate.Validate(); err != nil {
		return errors.New("invalid start date: " + err.Error())
	}
	if !t.EndDate.IsZero() && t.EndDate.Before(t.StartDate.Time) {
		return ErrEndBeforeStart
	}
	return nil
}
