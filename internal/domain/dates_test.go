package domain

import (
	"errors"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

func TestAddMonthsClamped(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"2024-01-31", 1, "2024-02-29"},
		{"2023-01-31", 1, "2023-02-28"},
		{"2024-01-31", 2, "2024-03-31"},
		{"2024-11-30", 3, "2025-02-28"},
		{"2024-03-31", -1, "2024-02-29"},
		{"2024-01-15", -13, "2022-12-15"},
		{"2024-02-29", 12, "2025-02-28"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			d, err := civil.ParseDate(tt.in)
			if err != nil {
				t.Fatalf("ParseDate(%q) error = %v", tt.in, err)
			}
			if got := AddMonthsClamped(d, tt.n).String(); got != tt.want {
				t.Errorf("AddMonthsClamped(%s, %d) = %s, want %s", tt.in, tt.n, got, tt.want)
			}
		})
	}
}

func TestNewDateRange(t *testing.T) {
	start := civil.Date{Year: 2024, Month: 1, Day: 1}
	end := civil.Date{Year: 2024, Month: 1, Day: 10}

	r, err := NewDateRange(start, end)
	if err != nil {
		t.Fatalf("NewDateRange() error = %v", err)
	}
	if r.Days() != 10 {
		t.Errorf("Days() = %d, want 10", r.Days())
	}
	if !r.Contains(start) || !r.Contains(end) || r.Contains(end.AddDays(1)) {
		t.Error("Contains() should be inclusive of both ends only")
	}

	single, err := NewDateRange(start, start)
	if err != nil || single.Days() != 1 {
		t.Errorf("single day range: days=%d err=%v", single.Days(), err)
	}

	if _, err := NewDateRange(end, start); !errors.Is(err, ErrValidation) {
		t.Errorf("inverted range error = %v, want ErrValidation", err)
	}
}

func TestCheckAmount(t *testing.T) {
	if err := CheckAmount("value", decimal.RequireFromString("999999999999999.99")); !errors.Is(err, ErrComputation) {
		t.Errorf("amount at the bound: error = %v, want ErrComputation", err)
	}
	if err := CheckAmount("value", decimal.RequireFromString("-1000000000000000")); !errors.Is(err, ErrComputation) {
		t.Errorf("negative amount past the bound: error = %v, want ErrComputation", err)
	}
	if err := CheckAmount("value", decimal.RequireFromString("123456.78")); err != nil {
		t.Errorf("ordinary amount: error = %v", err)
	}
}

func TestParseAmount(t *testing.T) {
	for _, in := range []string{"NaN", "Inf", "abc", ""} {
		if _, err := ParseAmount("value", in); !errors.Is(err, ErrValidation) {
			t.Errorf("ParseAmount(%q) error = %v, want ErrValidation", in, err)
		}
	}
	v, err := ParseAmount("value", "10.005")
	if err != nil {
		t.Fatalf("ParseAmount() error = %v", err)
	}
	if got := RoundMoney(v).String(); got != "10.01" {
		t.Errorf("RoundMoney(10.005) = %s, want 10.01", got)
	}
	if got := RoundMoney(decimal.RequireFromString("-10.005")).String(); got != "-10.01" {
		t.Errorf("RoundMoney(-10.005) = %s, want -10.01", got)
	}
}

func TestValidationErrorMatchesSentinel(t *testing.T) {
	err := Invalid("start", "must not be after end")
	if !errors.Is(err, ErrValidation) {
		t.Error("ValidationError should match ErrValidation")
	}
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Field != "start" {
		t.Errorf("errors.As() = %v, field %q", ve, ve.Field)
	}
	if errors.Is(err, ErrNotFound) {
		t.Error("ValidationError should not match ErrNotFound")
	}
}

func TestRuleValidate(t *testing.T) {
	r := RecurringEventRule{
		BankAccountID: "a",
		Value:         decimal.NewFromInt(1),
		Direction:     DirectionIncoming,
		Certainty:     CertaintyCertain,
		Frequency:     FrequencyMonthly,
		StartDate:     civil.Date{Year: 2024, Month: 1, Day: 1},
		EndDate:       civil.Date{Year: 2024, Month: 1, Day: 1},
	}
	if err := r.Validate(); !errors.Is(err, ErrValidation) {
		t.Errorf("start == end: error = %v, want ErrValidation", err)
	}
	if err := r.ValidateChainMember(); err != nil {
		t.Errorf("single-day chain member: error = %v", err)
	}
	r.EndDate = r.EndDate.AddDays(1)
	if err := r.Validate(); err != nil {
		t.Errorf("valid rule: error = %v", err)
	}
	r.EndDate = r.StartDate.AddDays(-1)
	if err := r.ValidateChainMember(); !errors.Is(err, ErrValidation) {
		t.Errorf("chain member ending before it starts: error = %v, want ErrValidation", err)
	}
}
