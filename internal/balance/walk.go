package balance

import (
	"context"
	"fmt"
	"sort"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/balance-projection/internal/coverage"
	"github.com/dvloznov/balance-projection/internal/domain"
	"github.com/dvloznov/balance-projection/internal/scenario"
)

// anchor is a balance known to hold at the end of asOf.
type anchor struct {
	asOf    civil.Date
	balance decimal.Decimal
	source  string
	// opening is an initial balance that takes effect after the walk has
	// begun. The walk resets to it at the end of opening.asOf.
	opening *anchor
}

// day is one computed date of a walk.
type day struct {
	date     civil.Date
	expected decimal.Decimal
	events   int
}

// anchor picks the most recent known balance that ends before start: an
// actual-balance override, a transaction-backed balance, or the configured
// initial balance. Without any of them the configured fallback applies from
// the account's first event. An initial balance effective after start is
// carried as the anchor's opening so every window agrees on it.
func (c *Calculator) anchor(ctx context.Context, accountID string, start civil.Date, known *coverage.KnownBalance) (anchor, error) {
	before := start.AddDays(-1)
	var best *anchor
	consider := func(a anchor) {
		if best == nil || a.asOf.After(best.asOf) {
			best = &a
		}
	}

	override, err := c.store.LatestActualBalanceBefore(ctx, accountID, start)
	if err != nil {
		return anchor{}, fmt.Errorf("anchor: reading overrides: %w", err)
	}
	if override != nil && override.ActualBalance != nil {
		consider(anchor{asOf: override.Date, balance: *override.ActualBalance, source: "actual_balance"})
	}

	if known != nil && !known.Date.After(before) {
		consider(anchor{asOf: known.Date, balance: known.Balance, source: "transactions"})
	}

	var opening *anchor
	if c.settings != nil {
		ib, err := c.settings.GetInitialBalance(ctx, &accountID)
		if err != nil {
			return anchor{}, fmt.Errorf("anchor: reading initial balance: %w", err)
		}
		if ib != nil {
			a := anchor{asOf: ib.EffectiveDate.AddDays(-1), balance: ib.Amount, source: "initial_balance"}
			if ib.EffectiveDate.After(start) {
				opening = &a
			} else {
				consider(a)
			}
		}
	}

	if best != nil {
		best.opening = opening
		return *best, nil
	}

	asOf := before
	bounds, err := c.store.EventBounds(ctx, accountID)
	if err != nil {
		return anchor{}, fmt.Errorf("anchor: reading event bounds: %w", err)
	}
	if bounds != nil && bounds.Start.Before(start) {
		asOf = bounds.Start.AddDays(-1)
	}
	return anchor{asOf: asOf, balance: c.cfg.InitialBalance, source: "default", opening: opening}, nil
}

// walk folds events and overrides day by day from the anchor to r.End and
// returns the days inside r. Days between the anchor and r.Start are folded
// without being returned. At the end of a day the carried balance becomes
// the opening balance if it starts the next day, then the override if one
// exists, so an override wins over an opening balance on the same date.
func (c *Calculator) walk(ctx context.Context, accountID string, r domain.DateRange, a anchor, enabled scenario.EnabledSet) ([]day, error) {
	from := a.asOf.AddDays(1)

	events, err := c.store.ListEventsInRange(ctx, accountID, from, r.End)
	if err != nil {
		return nil, fmt.Errorf("walk: loading events: %w", err)
	}
	overrides, err := c.store.ListActualBalances(ctx, accountID, from, r.End)
	if err != nil {
		return nil, fmt.Errorf("walk: loading overrides: %w", err)
	}

	counted := scenario.Filter(events, enabled)
	sort.SliceStable(counted, func(i, j int) bool {
		return counted[i].Date.Before(counted[j].Date)
	})

	out := make([]day, 0, r.Days())
	running := a.balance
	next := 0
	for d := from; !d.After(r.End); d = d.AddDays(1) {
		delta := decimal.Zero
		n := 0
		for next < len(counted) && !counted[next].Date.After(d) {
			if counted[next].Date == d {
				delta = delta.Add(counted[next].SignedValue())
				n++
			}
			next++
		}

		expected := running.Add(delta)
		if err := domain.CheckAmount("expected_balance", expected); err != nil {
			return nil, fmt.Errorf("walk: %s: %w", d, err)
		}
		if !d.Before(r.Start) {
			out = append(out, day{date: d, expected: expected, events: n})
		}

		running = expected
		if a.opening != nil && d == a.opening.asOf {
			running = a.opening.balance
		}
		if v, ok := overrides[d]; ok {
			running = v
		}
	}
	return out, nil
}
