package domain

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// Direction says whether a projected event takes money out of or puts money
// into the account.
type Direction string

const (
	DirectionExpense  Direction = "EXPENSE"
	DirectionIncoming Direction = "INCOMING"
)

// Valid reports whether d is a known direction.
func (d Direction) Valid() bool {
	return d == DirectionExpense || d == DirectionIncoming
}

// Certainty is the confidence label on a projected event.
type Certainty string

const (
	CertaintyUnlikely Certainty = "UNLIKELY"
	CertaintyPossible Certainty = "POSSIBLE"
	CertaintyLikely   Certainty = "LIKELY"
	CertaintyCertain  Certainty = "CERTAIN"
)

// Valid reports whether c is a known certainty.
func (c Certainty) Valid() bool {
	switch c {
	case CertaintyUnlikely, CertaintyPossible, CertaintyLikely, CertaintyCertain:
		return true
	}
	return false
}

// Frequency is the repeat interval of a recurring rule.
type Frequency string

const (
	FrequencyDaily     Frequency = "DAILY"
	FrequencyWeekly    Frequency = "WEEKLY"
	FrequencyMonthly   Frequency = "MONTHLY"
	FrequencyQuarterly Frequency = "QUARTERLY"
	FrequencyBiannual  Frequency = "BIANNUAL"
	FrequencyAnnual    Frequency = "ANNUAL"
)

// Valid reports whether f is a known frequency.
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyQuarterly, FrequencyBiannual, FrequencyAnnual:
		return true
	}
	return false
}

// BalanceType classifies an on-the-fly balance point.
type BalanceType string

const (
	// BalanceTypeTrue marks a date backed by imported transaction history.
	BalanceTypeTrue BalanceType = "true"
	// BalanceTypeProjected marks a date past the coverage boundary.
	BalanceTypeProjected BalanceType = "projected"
)

// BankAccount owns every event, rule and balance row.
type BankAccount struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// ProjectionEvent is a single anticipated cash movement on a date. Events
// with a RecurringRuleID were materialized from that rule and are owned by it.
type ProjectionEvent struct {
	ID              string          `json:"id"`
	BankAccountID   string          `json:"bank_account_id"`
	Date            civil.Date      `json:"date"`
	Value           decimal.Decimal `json:"value"`
	Direction       Direction       `json:"direction"`
	Certainty       Certainty       `json:"certainty"`
	Description     string          `json:"description,omitempty"`
	DecisionPathID  *string         `json:"decision_path_id,omitempty"`
	RecurringRuleID *string         `json:"recurring_rule_id,omitempty"`
}

// SignedValue returns the event value as a balance delta: negative for
// expenses, positive for incoming money.
func (e ProjectionEvent) SignedValue() decimal.Decimal {
	if e.Direction == DirectionExpense {
		return e.Value.Neg()
	}
	return e.Value
}

// RecurringEventRule generates one event per occurrence between StartDate
// and EndDate, both inclusive.
//
// Revisions share BaseRuleID with the lineage root; the root itself points
// at its own ID once it has been revised.
type RecurringEventRule struct {
	ID             string          `json:"id"`
	BankAccountID  string          `json:"bank_account_id"`
	Value          decimal.Decimal `json:"value"`
	Direction      Direction       `json:"direction"`
	Certainty      Certainty       `json:"certainty"`
	Description    string          `json:"description,omitempty"`
	DecisionPathID *string         `json:"decision_path_id,omitempty"`
	StartDate      civil.Date      `json:"start_date"`
	EndDate        civil.Date      `json:"end_date"`
	Frequency      Frequency       `json:"frequency"`
	IsBaseRule     bool            `json:"is_base_rule"`
	BaseRuleID     *string         `json:"base_rule_id,omitempty"`
}

// LineageID returns the id shared by every rule in this rule's chain.
func (r RecurringEventRule) LineageID() string {
	if r.BaseRuleID != nil && *r.BaseRuleID != "" {
		return *r.BaseRuleID
	}
	return r.ID
}

// Span returns the rule's active date range.
func (r RecurringEventRule) Span() DateRange {
	return DateRange{Start: r.StartDate, End: r.EndDate}
}

// DecisionPath is a named tag for an optional real-world choice.
type DecisionPath struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
}

// ScenarioSet is a saved combination of enabled and disabled decision paths.
// Paths absent from Paths count as enabled.
type ScenarioSet struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	IsDefault   bool            `json:"is_default"`
	Paths       map[string]bool `json:"paths"`
}

// DailyBalance is the persisted balance for one account on one date.
// ExpectedBalance belongs to the calculator, ActualBalance to the user.
type DailyBalance struct {
	Date            civil.Date       `json:"date"`
	BankAccountID   string           `json:"bank_account_id"`
	ExpectedBalance decimal.Decimal  `json:"expected_balance"`
	ActualBalance   *decimal.Decimal `json:"actual_balance,omitempty"`
}

// BalancePoint is one row of an on-the-fly projection.
type BalancePoint struct {
	Date            civil.Date      `json:"date"`
	ExpectedBalance decimal.Decimal `json:"expected_balance"`
	EventCount      int             `json:"event_count"`
	BalanceType     BalanceType     `json:"balance_type"`
}

// TransactionRecord is imported account activity. It is never modified and
// is only read through the coverage tracker.
type TransactionRecord struct {
	ID            string           `json:"id"`
	BankAccountID string           `json:"bank_account_id"`
	Date          civil.Date       `json:"date"`
	Amount        decimal.Decimal  `json:"amount"`
	BalanceAfter  *decimal.Decimal `json:"balance_after,omitempty"`
	Description   string           `json:"description,omitempty"`
}

// InitialBalance is the configured opening balance. A nil BankAccountID is
// the global default.
type InitialBalance struct {
	BankAccountID *string         `json:"bank_account_id,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	EffectiveDate civil.Date      `json:"effective_date"`
}
