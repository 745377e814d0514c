package core

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-03-09")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.String() != "2025-03-09" {
		t.Fatalf("got %q", d.String())
	}
	if _, err := ParseDate("09/03/2025"); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
}

func TestDateJSON(t *testing.T) {
	b, err := json.Marshal(NewDate(2025, 1, 5))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `"2025-01-05"` {
		t.Fatalf("got %s", b)
	}

	var d Date
	if err := json.Unmarshal([]byte(`"2024-12-31"`), &d); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if d.String() != "2024-12-31" {
		t.Fatalf("got %q", d.String())
	}

	var zero Date
	b, _ = json.Marshal(zero)
	if string(b) != `""` {
		t.Fatalf("zero date marshals to %s", b)
	}
}

func TestDateRangeContains(t *testing.T) {
	r := DateRange{Start: NewDate(2025, 1, 10), End: NewDate(2025, 1, 20)}
	cases := []struct {
		d    Date
		want bool
	}{
		{NewDate(2025, 1, 10), true},
		{NewDate(2025, 1, 20), true},
		{NewDate(2025, 1, 15), true},
		{NewDate(2025, 1, 9), false},
		{NewDate(2025, 1, 21), false},
	}
	for _, tc := range cases {
		if got := r.Contains(tc.d); got != tc.want {
			t.Errorf("Contains(%s) = %v, want %v", tc.d, got, tc.want)
		}
	}
}

func TestCategoryValidate(t *testing.T) {
	good := Category{Name: "Groceries", Direction: Expense}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Category{Name: "", Direction: Expense}).Validate(); !errors.Is(err, ErrEmptyName) {
		t.Fatalf("expected ErrEmptyName")
	}
	if err := (Category{Name: "Rent", Direction: "sideways"}).Validate(); !errors.Is(err, ErrInvalidDirection) {
		t.Fatalf("expected ErrInvalidDirection")
	}
	neg := Category{Name: "Rent", Direction: Expense, Threshold: decimal.NewFromInt(-1)}
	if err := neg.Validate(); err == nil {
		t.Fatalf("expected error for negative threshold")
	}
}

func TestTripValidate(t *testing.T) {
	good := Trip{Name: "Lisbon", StartDate: NewDate(2025, 5, 1), EndDate: NewDate(2025, 5, 7)}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	open := Trip{Name: "Sabbatical", StartDate: NewDate(2025, 5, 1)}
	if err := open.Validate(); err != nil {
		t.Fatalf("open trip should be valid, got %v", err)
	}
	inverted := Trip{Name: "Backwards", StartDate: NewDate(2025, 5, 7), EndDate: NewDate(2025, 5, 1)}
	if err := inverted.Validate(); !errors.Is(err, ErrEndBeforeStart) {
		t.Fatalf("expected ErrEndBeforeStart, got %v", err)
	}
}
