// Package balance walks a date range of an account and folds filtered
// projection events and actual-balance overrides into a daily timeline.
package balance

import (
	"context"
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dvloznov/balance-projection/internal/coverage"
	"github.com/dvloznov/balance-projection/internal/domain"
	"github.com/dvloznov/balance-projection/internal/scenario"
)

// DefaultMaxRangeDays bounds a single calculation to roughly ten years.
const DefaultMaxRangeDays = 3660

var tracer = otel.Tracer("github.com/dvloznov/balance-projection/internal/balance")

// Store is what the calculator reads and writes.
type Store interface {
	GetAccount(ctx context.Context, accountID string) (*domain.BankAccount, error)
	ListEventsInRange(ctx context.Context, accountID string, from, to civil.Date) ([]domain.ProjectionEvent, error)
	EventBounds(ctx context.Context, accountID string) (*domain.DateRange, error)
	ListActualBalances(ctx context.Context, accountID string, from, to civil.Date) (map[civil.Date]decimal.Decimal, error)
	LatestActualBalanceBefore(ctx context.Context, accountID string, date civil.Date) (*domain.DailyBalance, error)
	UpsertExpectedBalances(ctx context.Context, accountID string, rows []domain.DailyBalance) error
}

// Settings supplies the configured opening balance.
type Settings interface {
	GetInitialBalance(ctx context.Context, accountID *string) (*domain.InitialBalance, error)
}

// Config tunes the calculator.
type Config struct {
	// MaxRangeDays rejects longer ranges. Zero means DefaultMaxRangeDays.
	MaxRangeDays int
	// InitialBalance is used when Settings has no row for the account nor a
	// global one. It has no effective date, so it applies from the
	// account's first event.
	InitialBalance decimal.Decimal
}

// Calculator computes daily balances.
type Calculator struct {
	store    Store
	settings Settings
	tracker  coverage.Tracker
	cfg      Config
	log      zerolog.Logger
}

// NewCalculator wires a calculator. tracker may be nil, in which case
// on-the-fly requests must carry their own coverage boundary.
func NewCalculator(store Store, settings Settings, tracker coverage.Tracker, cfg Config, log zerolog.Logger) *Calculator {
	if cfg.MaxRangeDays <= 0 {
		cfg.MaxRangeDays = DefaultMaxRangeDays
	}
	return &Calculator{store: store, settings: settings, tracker: tracker, cfg: cfg, log: log}
}

// Result is the outcome of a persisted calculation.
type Result struct {
	AccountID string                `json:"bank_account_id"`
	Start     civil.Date            `json:"start"`
	End       civil.Date            `json:"end"`
	Rows      []domain.DailyBalance `json:"rows"`
}

// Calculate computes and persists one DailyBalance per date in r. Only
// expected balances are written; stored overrides are read, never changed.
func (c *Calculator) Calculate(ctx context.Context, accountID string, r domain.DateRange, enabled scenario.EnabledSet) (res *Result, err error) {
	ctx, span := tracer.Start(ctx, "balance.Calculate", trace.WithAttributes(
		attribute.String("account.id", accountID),
		attribute.String("range.start", r.Start.String()),
		attribute.String("range.end", r.End.String()),
	))
	defer func() { endSpan(span, err) }()

	if err := c.validate(ctx, accountID, r); err != nil {
		return nil, err
	}

	anchor, err := c.anchor(ctx, accountID, r.Start, nil)
	if err != nil {
		return nil, err
	}
	days, err := c.walk(ctx, accountID, r, anchor, enabled)
	if err != nil {
		return nil, err
	}

	rows := make([]domain.DailyBalance, len(days))
	for i, d := range days {
		rows[i] = domain.DailyBalance{Date: d.date, BankAccountID: accountID, ExpectedBalance: d.expected}
	}
	if err := c.store.UpsertExpectedBalances(ctx, accountID, rows); err != nil {
		return nil, fmt.Errorf("Calculate: persisting balances: %w", err)
	}

	c.log.Debug().
		Str("bank_account_id", accountID).
		Str("start", r.Start.String()).
		Str("end", r.End.String()).
		Str("anchor", anchor.source).
		Int("days", len(rows)).
		Msg("Daily balances calculated")

	return &Result{AccountID: accountID, Start: r.Start, End: r.End, Rows: rows}, nil
}

// OnTheFlyRequest describes a read-only projection.
type OnTheFlyRequest struct {
	AccountID string
	Range     domain.DateRange
	// AsOfTrueBalanceDate caps the transaction-backed balance used as a
	// starting point. Nil means the day before Range.Start.
	AsOfTrueBalanceDate *civil.Date
	Enabled             scenario.EnabledSet
	// LatestCoveredDate overrides the tracker's coverage boundary.
	LatestCoveredDate *civil.Date
}

// ComputeOnTheFly returns the timeline for req without writing anything.
// Balances are rounded to cents, half away from zero.
func (c *Calculator) ComputeOnTheFly(ctx context.Context, req OnTheFlyRequest) (points []domain.BalancePoint, err error) {
	ctx, span := tracer.Start(ctx, "balance.ComputeOnTheFly", trace.WithAttributes(
		attribute.String("account.id", req.AccountID),
		attribute.String("range.start", req.Range.Start.String()),
		attribute.String("range.end", req.Range.End.String()),
	))
	defer func() { endSpan(span, err) }()

	if err := c.validate(ctx, req.AccountID, req.Range); err != nil {
		return nil, err
	}

	latestCovered := req.LatestCoveredDate
	if latestCovered == nil && c.tracker != nil {
		cov, err := c.tracker.GetCoverage(ctx, req.AccountID)
		if err != nil {
			return nil, fmt.Errorf("ComputeOnTheFly: reading coverage: %w", err)
		}
		latestCovered = cov.LatestCoveredDate
	}

	known, err := c.knownBalance(ctx, req)
	if err != nil {
		return nil, err
	}
	anchor, err := c.anchor(ctx, req.AccountID, req.Range.Start, known)
	if err != nil {
		return nil, err
	}
	days, err := c.walk(ctx, req.AccountID, req.Range, anchor, req.Enabled)
	if err != nil {
		return nil, err
	}

	points = make([]domain.BalancePoint, len(days))
	for i, d := range days {
		bt := domain.BalanceTypeProjected
		if latestCovered != nil && !d.date.After(*latestCovered) {
			bt = domain.BalanceTypeTrue
		}
		points[i] = domain.BalancePoint{
			Date:            d.date,
			ExpectedBalance: domain.RoundMoney(d.expected),
			EventCount:      d.events,
			BalanceType:     bt,
		}
	}
	return points, nil
}

func (c *Calculator) validate(ctx context.Context, accountID string, r domain.DateRange) error {
	if _, err := domain.NewDateRange(r.Start, r.End); err != nil {
		return err
	}
	if r.Days() > c.cfg.MaxRangeDays {
		return domain.Invalid("end", fmt.Sprintf("range spans %d days, more than the %d allowed", r.Days(), c.cfg.MaxRangeDays))
	}
	if accountID == "" {
		return domain.Invalid("bank_account_id", "is required")
	}
	if _, err := c.store.GetAccount(ctx, accountID); err != nil {
		return err
	}
	return nil
}

func (c *Calculator) knownBalance(ctx context.Context, req OnTheFlyRequest) (*coverage.KnownBalance, error) {
	if c.tracker == nil {
		return nil, nil
	}
	cutoff := req.Range.Start.AddDays(-1)
	if req.AsOfTrueBalanceDate != nil {
		cutoff = domain.MinDate(cutoff, *req.AsOfTrueBalanceDate)
	}
	kb, err := c.tracker.GetLastKnownBalance(ctx, cutoff, req.AccountID)
	if err != nil {
		return nil, fmt.Errorf("ComputeOnTheFly: reading last known balance: %w", err)
	}
	return kb, nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
