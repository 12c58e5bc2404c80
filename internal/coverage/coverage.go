// Package coverage reports which dates of an account are backed by imported
// transaction history, and the last balance that history establishes.
package coverage

import (
	"context"
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/balance-projection/internal/domain"
)

// DefaultGapDays is the longest run of days without transactions that still
// counts as one continuous covered range.
const DefaultGapDays = 7

// Coverage describes the transaction-backed part of an account's timeline.
type Coverage struct {
	LatestCoveredDate *civil.Date        `json:"latest_covered_date,omitempty"`
	Ranges            []domain.DateRange `json:"ranges"`
}

// KnownBalance is a balance established by a transaction's running balance.
type KnownBalance struct {
	Balance decimal.Decimal `json:"balance"`
	Date    civil.Date      `json:"date"`
}

// Tracker supplies coverage information to the balance calculator.
type Tracker interface {
	GetCoverage(ctx context.Context, accountID string) (Coverage, error)
	GetLastKnownBalance(ctx context.Context, onOrBefore civil.Date, accountID string) (*KnownBalance, error)
}

// TransactionSource is the slice of the transaction store the SQL tracker reads.
type TransactionSource interface {
	ListTransactionDates(ctx context.Context, accountID string) ([]civil.Date, error)
	LatestTransactionWithBalance(ctx context.Context, accountID string, onOrBefore civil.Date) (*domain.TransactionRecord, error)
}

// SQLTracker derives coverage from the local transaction_records table.
type SQLTracker struct {
	src     TransactionSource
	gapDays int
}

// NewSQLTracker returns a tracker over src. A non-positive gapDays uses
// DefaultGapDays.
func NewSQLTracker(src TransactionSource, gapDays int) *SQLTracker {
	if gapDays <= 0 {
		gapDays = DefaultGapDays
	}
	return &SQLTracker{src: src, gapDays: gapDays}
}

// GetCoverage groups the account's transaction dates into covered ranges.
func (t *SQLTracker) GetCoverage(ctx context.Context, accountID string) (Coverage, error) {
	dates, err := t.src.ListTransactionDates(ctx, accountID)
	if err != nil {
		return Coverage{}, fmt.Errorf("GetCoverage: %w", err)
	}
	return FromDates(dates, t.gapDays), nil
}

// GetLastKnownBalance returns the running balance after the latest
// transaction on or before onOrBefore, or nil.
func (t *SQLTracker) GetLastKnownBalance(ctx context.Context, onOrBefore civil.Date, accountID string) (*KnownBalance, error) {
	tx, err := t.src.LatestTransactionWithBalance(ctx, accountID, onOrBefore)
	if err != nil {
		return nil, fmt.Errorf("GetLastKnownBalance: %w", err)
	}
	if tx == nil || tx.BalanceAfter == nil {
		return nil, nil
	}
	return &KnownBalance{Balance: *tx.BalanceAfter, Date: tx.Date}, nil
}

// FromDates builds coverage from ascending distinct transaction dates. Two
// consecutive dates belong to the same range when they are at most gapDays
// apart.
func FromDates(dates []civil.Date, gapDays int) Coverage {
	if len(dates) == 0 {
		return Coverage{Ranges: []domain.DateRange{}}
	}

	var ranges []domain.DateRange
	cur := domain.DateRange{Start: dates[0], End: dates[0]}
	for _, d := range dates[1:] {
		if d.DaysSince(cur.End) <= gapDays {
			cur.End = d
			continue
		}
		ranges = append(ranges, cur)
		cur = domain.DateRange{Start: d, End: d}
	}
	ranges = append(ranges, cur)

	latest := cur.End
	return Coverage{LatestCoveredDate: &latest, Ranges: ranges}
}

// Static reports fixed coverage. It serves callers that already know the
// boundary and tests.
type Static struct {
	Coverage Coverage
	Known    *KnownBalance
}

// GetCoverage returns the fixed coverage.
func (s Static) GetCoverage(context.Context, string) (Coverage, error) {
	return s.Coverage, nil
}

// GetLastKnownBalance returns Known when it is dated on or before onOrBefore.
func (s Static) GetLastKnownBalance(_ context.Context, onOrBefore civil.Date, _ string) (*KnownBalance, error) {
	if s.Known == nil || s.Known.Date.After(onOrBefore) {
		return nil, nil
	}
	kb := *s.Known
	return &kb, nil
}
