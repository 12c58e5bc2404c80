// Package bigquery reads transaction coverage from the BigQuery
// transactions table populated by statement ingestion.
package bigquery

import (
	"context"
	"fmt"
	"math/big"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/balance-projection/internal/coverage"
)

const (
	transactionsTable = "transactions"
	// numericScale is the fractional precision of BigQuery NUMERIC.
	numericScale = 9
)

var _ coverage.Tracker = (*Tracker)(nil)

// dateRow is one distinct transaction date.
type dateRow struct {
	TransactionDate civil.Date `bigquery:"transaction_date"`
}

// balanceRow is the latest statement balance on or before a date.
type balanceRow struct {
	TransactionDate civil.Date `bigquery:"transaction_date"`
	BalanceAfter    *big.Rat   `bigquery:"balance_after"` // NULLABLE NUMERIC
}

// Tracker is a coverage.Tracker over <project>.<dataset>.transactions. It
// holds a shared BigQuery client.
type Tracker struct {
	client  *bigquery.Client
	table   string
	gapDays int
}

// New creates a Tracker with its own BigQuery client.
func New(ctx context.Context, project, dataset string, gapDays int) (*Tracker, error) {
	client, err := bigquery.NewClient(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("New: creating client: %w", err)
	}
	return NewWithClient(client, project, dataset, gapDays), nil
}

// NewWithClient creates a Tracker using the provided BigQuery client.
func NewWithClient(client *bigquery.Client, project, dataset string, gapDays int) *Tracker {
	if gapDays <= 0 {
		gapDays = coverage.DefaultGapDays
	}
	return &Tracker{
		client:  client,
		table:   tableRef(project, dataset),
		gapDays: gapDays,
	}
}

// Close closes the BigQuery client connection.
func (t *Tracker) Close() error {
	if t.client != nil {
		return t.client.Close()
	}
	return nil
}

// GetCoverage groups the account's distinct transaction dates into ranges.
func (t *Tracker) GetCoverage(ctx context.Context, accountID string) (coverage.Coverage, error) {
	q := t.client.Query(fmt.Sprintf(`
		SELECT DISTINCT transaction_date
		FROM %s
		WHERE account_id = @account_id
		ORDER BY transaction_date
	`, t.table))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "account_id", Value: accountID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return coverage.Coverage{}, fmt.Errorf("GetCoverage: query read: %w", err)
	}

	var dates []civil.Date
	for {
		var r dateRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return coverage.Coverage{}, fmt.Errorf("GetCoverage: iter next: %w", err)
		}
		dates = append(dates, r.TransactionDate)
	}

	return coverage.FromDates(dates, t.gapDays), nil
}

// GetLastKnownBalance returns the balance after the latest transaction on or
// before onOrBefore that reports one, or nil.
func (t *Tracker) GetLastKnownBalance(ctx context.Context, onOrBefore civil.Date, accountID string) (*coverage.KnownBalance, error) {
	q := t.client.Query(fmt.Sprintf(`
		SELECT transaction_date, balance_after
		FROM %s
		WHERE account_id = @account_id
		  AND transaction_date <= @on_or_before
		  AND balance_after IS NOT NULL
		ORDER BY transaction_date DESC, created_ts DESC
		LIMIT 1
	`, t.table))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "account_id", Value: accountID},
		{Name: "on_or_before", Value: onOrBefore},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("GetLastKnownBalance: query read: %w", err)
	}

	var r balanceRow
	err = it.Next(&r)
	if err == iterator.Done {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetLastKnownBalance: iter next: %w", err)
	}
	return knownBalance(r)
}

func knownBalance(r balanceRow) (*coverage.KnownBalance, error) {
	if r.BalanceAfter == nil {
		return nil, nil
	}
	bal, err := ratToDecimal(r.BalanceAfter)
	if err != nil {
		return nil, fmt.Errorf("knownBalance: %w", err)
	}
	return &coverage.KnownBalance{Balance: bal, Date: r.TransactionDate}, nil
}

// ratToDecimal converts a NUMERIC value exactly; NUMERIC never has more than
// numericScale fractional digits.
func ratToDecimal(r *big.Rat) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(r.FloatString(numericScale))
	if err != nil {
		return decimal.Zero, fmt.Errorf("converting %s: %w", r.String(), err)
	}
	return d, nil
}

func tableRef(project, dataset string) string {
	return fmt.Sprintf("`%s.%s.%s`", project, dataset, transactionsTable)
}
