package balance

import (
	"context"
	"errors"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/balance-projection/internal/coverage"
	"github.com/dvloznov/balance-projection/internal/domain"
	"github.com/dvloznov/balance-projection/internal/scenario"
)

// fakeStore is an in-memory Store for calculator tests.
type fakeStore struct {
	accounts  map[string]bool
	events    []domain.ProjectionEvent
	actuals   map[civil.Date]decimal.Decimal
	persisted map[civil.Date]decimal.Decimal
	upserts   int
	reads     int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		accounts:  map[string]bool{"acct": true},
		actuals:   map[civil.Date]decimal.Decimal{},
		persisted: map[civil.Date]decimal.Decimal{},
	}
}

func (f *fakeStore) GetAccount(ctx context.Context, accountID string) (*domain.BankAccount, error) {
	f.reads++
	if !f.accounts[accountID] {
		return nil, domain.NotFound("bank account", accountID)
	}
	return &domain.BankAccount{ID: accountID}, nil
}

func (f *fakeStore) ListEventsInRange(ctx context.Context, accountID string, from, to civil.Date) ([]domain.ProjectionEvent, error) {
	f.reads++
	var out []domain.ProjectionEvent
	for _, e := range f.events {
		if e.BankAccountID == accountID && !e.Date.Before(from) && !e.Date.After(to) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeStore) EventBounds(ctx context.Context, accountID string) (*domain.DateRange, error) {
	var r *domain.DateRange
	for _, e := range f.events {
		if r == nil {
			r = &domain.DateRange{Start: e.Date, End: e.Date}
			continue
		}
		r.Start = domain.MinDate(r.Start, e.Date)
		r.End = domain.MaxDate(r.End, e.Date)
	}
	return r, nil
}

func (f *fakeStore) ListActualBalances(ctx context.Context, accountID string, from, to civil.Date) (map[civil.Date]decimal.Decimal, error) {
	out := map[civil.Date]decimal.Decimal{}
	for d, v := range f.actuals {
		if !d.Before(from) && !d.After(to) {
			out[d] = v
		}
	}
	return out, nil
}

func (f *fakeStore) LatestActualBalanceBefore(ctx context.Context, accountID string, date civil.Date) (*domain.DailyBalance, error) {
	var best *domain.DailyBalance
	for d, v := range f.actuals {
		if !d.Before(date) {
			continue
		}
		if best == nil || d.After(best.Date) {
			v := v
			best = &domain.DailyBalance{Date: d, BankAccountID: accountID, ActualBalance: &v}
		}
	}
	return best, nil
}

func (f *fakeStore) UpsertExpectedBalances(ctx context.Context, accountID string, rows []domain.DailyBalance) error {
	f.upserts++
	for _, r := range rows {
		f.persisted[r.Date] = r.ExpectedBalance
	}
	return nil
}

type fakeSettings struct {
	initial *domain.InitialBalance
}

func (f fakeSettings) GetInitialBalance(ctx context.Context, accountID *string) (*domain.InitialBalance, error) {
	return f.initial, nil
}

func jan(d int) civil.Date { return civil.Date{Year: 2024, Month: 1, Day: d} }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func strPtr(s string) *string { return &s }

func ev(id string, date civil.Date, value string, dir domain.Direction, certainty domain.Certainty) domain.ProjectionEvent {
	return domain.ProjectionEvent{
		ID: id, BankAccountID: "acct", Date: date, Value: dec(value), Direction: dir, Certainty: certainty,
	}
}

// scenarioA is 1000 on Jan 1, an expense of 200 on Jan 5 and income of 300
// on Jan 10.
func scenarioA() (*fakeStore, fakeSettings) {
	store := newFakeStore()
	store.events = []domain.ProjectionEvent{
		ev("rent", jan(5), "200", domain.DirectionExpense, domain.CertaintyCertain),
		ev("pay", jan(10), "300", domain.DirectionIncoming, domain.CertaintyCertain),
	}
	return store, fakeSettings{initial: &domain.InitialBalance{Amount: dec("1000"), EffectiveDate: jan(1)}}
}

func newTestCalculator(store *fakeStore, settings Settings, tracker coverage.Tracker) *Calculator {
	return NewCalculator(store, settings, tracker, Config{}, zerolog.Nop())
}

func expectedByDay(rows []domain.DailyBalance) map[int]string {
	out := make(map[int]string, len(rows))
	for _, r := range rows {
		out[r.Date.Day] = r.ExpectedBalance.String()
	}
	return out
}

func TestCalculate_ScenarioA(t *testing.T) {
	store, settings := scenarioA()
	calc := newTestCalculator(store, settings, nil)

	res, err := calc.Calculate(context.Background(), "acct", domain.DateRange{Start: jan(1), End: jan(10)}, nil)
	if err != nil {
		t.Fatalf("Calculate failed: %v", err)
	}

	want := map[int]string{
		1: "1000", 2: "1000", 3: "1000", 4: "1000",
		5: "800", 6: "800", 7: "800", 8: "800", 9: "800",
		10: "1100",
	}
	if diff := cmp.Diff(want, expectedByDay(res.Rows)); diff != "" {
		t.Errorf("balances mismatch (-want +got):\n%s", diff)
	}
	if store.upserts != 1 {
		t.Errorf("upserts = %d, want 1", store.upserts)
	}
	if len(store.persisted) != 10 {
		t.Errorf("persisted rows = %d, want 10", len(store.persisted))
	}
}

func TestCalculate_ScenarioB(t *testing.T) {
	store, settings := scenarioA()
	store.actuals[jan(6)] = dec("500")
	calc := newTestCalculator(store, settings, nil)

	res, err := calc.Calculate(context.Background(), "acct", domain.DateRange{Start: jan(1), End: jan(10)}, nil)
	if err != nil {
		t.Fatalf("Calculate failed: %v", err)
	}
	got := expectedByDay(res.Rows)

	if got[6] != "800" {
		t.Errorf("Jan 6 expected = %s, want 800 (expected is still recorded under an override)", got[6])
	}
	for _, d := range []int{7, 8, 9} {
		if got[d] != "500" {
			t.Errorf("Jan %d expected = %s, want 500", d, got[d])
		}
	}
	if got[10] != "800" {
		t.Errorf("Jan 10 expected = %s, want 800", got[10])
	}
}

func TestCalculate_MidTimelineWindowMatchesFullRecompute(t *testing.T) {
	store, settings := scenarioA()
	store.actuals[jan(6)] = dec("500")
	calc := newTestCalculator(store, settings, nil)
	ctx := context.Background()

	full, err := calc.Calculate(ctx, "acct", domain.DateRange{Start: jan(1), End: jan(10)}, nil)
	if err != nil {
		t.Fatalf("Calculate failed: %v", err)
	}
	for start := 2; start <= 10; start++ {
		part, err := calc.Calculate(ctx, "acct", domain.DateRange{Start: jan(start), End: jan(10)}, nil)
		if err != nil {
			t.Fatalf("Calculate from Jan %d failed: %v", start, err)
		}
		if diff := cmp.Diff(expectedByDay(full.Rows[start-1:]), expectedByDay(part.Rows)); diff != "" {
			t.Errorf("window from Jan %d differs from full recompute (-full +window):\n%s", start, diff)
		}
	}
}

func TestCalculate_InitialBalanceIndependentOfWindowStart(t *testing.T) {
	dec31 := civil.Date{Year: 2023, Month: 12, Day: 31}

	tests := []struct {
		name    string
		setup   func(*fakeStore)
		wantJan map[int]string
	}{
		{
			name:    "scenario A",
			setup:   func(*fakeStore) {},
			wantJan: map[int]string{1: "1000", 5: "800", 10: "1100"},
		},
		{
			name: "event before the effective date",
			setup: func(s *fakeStore) {
				s.events = append(s.events, ev("deposit", civil.Date{Year: 2023, Month: 12, Day: 20}, "75", domain.DirectionIncoming, domain.CertaintyCertain))
			},
			wantJan: map[int]string{1: "1000", 5: "800", 10: "1100"},
		},
		{
			name: "override on the day before wins",
			setup: func(s *fakeStore) {
				s.actuals[dec31] = dec("400")
			},
			wantJan: map[int]string{1: "400", 5: "200", 10: "500"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, settings := scenarioA()
			tt.setup(store)
			calc := newTestCalculator(store, settings, nil)
			ctx := context.Background()

			fromJan, err := calc.Calculate(ctx, "acct", domain.DateRange{Start: jan(1), End: jan(10)}, nil)
			if err != nil {
				t.Fatalf("Calculate from Jan 1 failed: %v", err)
			}
			for _, start := range []civil.Date{dec31, {Year: 2023, Month: 12, Day: 1}} {
				wider, err := calc.Calculate(ctx, "acct", domain.DateRange{Start: start, End: jan(10)}, nil)
				if err != nil {
					t.Fatalf("Calculate from %s failed: %v", start, err)
				}
				got := expectedByDay(wider.Rows[len(wider.Rows)-10:])
				if diff := cmp.Diff(expectedByDay(fromJan.Rows), got); diff != "" {
					t.Errorf("window from %s differs from window from Jan 1 (-jan1 +wider):\n%s", start, diff)
				}
			}

			got := expectedByDay(fromJan.Rows)
			for d, want := range tt.wantJan {
				if got[d] != want {
					t.Errorf("Jan %d expected = %s, want %s", d, got[d], want)
				}
			}
		})
	}
}

func TestComputeOnTheFly_InitialBalanceInsideRange(t *testing.T) {
	store, settings := scenarioA()
	calc := newTestCalculator(store, settings, nil)

	points, err := calc.ComputeOnTheFly(context.Background(), OnTheFlyRequest{
		AccountID: "acct",
		Range:     domain.DateRange{Start: civil.Date{Year: 2023, Month: 12, Day: 30}, End: jan(10)},
	})
	if err != nil {
		t.Fatalf("ComputeOnTheFly failed: %v", err)
	}
	if got := points[len(points)-1].ExpectedBalance.StringFixed(2); got != "1100.00" {
		t.Errorf("Jan 10 = %s, want 1100.00", got)
	}
}

func TestCalculate_Idempotent(t *testing.T) {
	store, settings := scenarioA()
	store.actuals[jan(6)] = dec("500")
	calc := newTestCalculator(store, settings, nil)
	r := domain.DateRange{Start: jan(1), End: jan(31)}

	first, err := calc.Calculate(context.Background(), "acct", r, nil)
	if err != nil {
		t.Fatalf("Calculate failed: %v", err)
	}
	second, err := calc.Calculate(context.Background(), "acct", r, nil)
	if err != nil {
		t.Fatalf("Calculate failed: %v", err)
	}
	if diff := cmp.Diff(expectedByDay(first.Rows), expectedByDay(second.Rows)); diff != "" {
		t.Errorf("second run differs (-first +second):\n%s", diff)
	}
}

func TestCalculate_OverridePrecedence(t *testing.T) {
	store, settings := scenarioA()
	store.actuals[jan(4)] = dec("42.50")
	store.events = append(store.events, ev("coffee", jan(5), "2.50", domain.DirectionExpense, domain.CertaintyLikely))
	calc := newTestCalculator(store, settings, nil)

	res, err := calc.Calculate(context.Background(), "acct", domain.DateRange{Start: jan(1), End: jan(6)}, nil)
	if err != nil {
		t.Fatalf("Calculate failed: %v", err)
	}
	// Jan 5 nets -202.50 on top of the Jan 4 override.
	if got := expectedByDay(res.Rows)[5]; got != "-160" {
		t.Errorf("Jan 5 expected = %s, want -160", got)
	}
}

func TestCalculate_UnlikelyEventsIgnored(t *testing.T) {
	base, settings := scenarioA()
	with, _ := scenarioA()
	with.events = append(with.events, ev("lottery", jan(3), "1000", domain.DirectionIncoming, domain.CertaintyUnlikely))
	r := domain.DateRange{Start: jan(1), End: jan(15)}

	want, err := newTestCalculator(base, settings, nil).Calculate(context.Background(), "acct", r, nil)
	if err != nil {
		t.Fatalf("Calculate failed: %v", err)
	}
	got, err := newTestCalculator(with, settings, nil).Calculate(context.Background(), "acct", r, nil)
	if err != nil {
		t.Fatalf("Calculate failed: %v", err)
	}
	if diff := cmp.Diff(expectedByDay(want.Rows), expectedByDay(got.Rows)); diff != "" {
		t.Errorf("UNLIKELY event changed balances (-without +with):\n%s", diff)
	}
}

func TestCalculate_DecisionPathFilter(t *testing.T) {
	tagged := ev("bonus", jan(3), "50", domain.DirectionIncoming, domain.CertaintyCertain)
	tagged.DecisionPathID = strPtr("X")

	tests := []struct {
		name    string
		enabled scenario.EnabledSet
		want    string
	}{
		{name: "path excluded", enabled: scenario.NewEnabledSet([]string{"Y"}), want: "1000"},
		{name: "path included", enabled: scenario.NewEnabledSet([]string{"X"}), want: "1050"},
		{name: "no restriction", enabled: nil, want: "1050"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, settings := scenarioA()
			store.events = append(store.events, tagged)
			res, err := newTestCalculator(store, settings, nil).
				Calculate(context.Background(), "acct", domain.DateRange{Start: jan(1), End: jan(4)}, tt.enabled)
			if err != nil {
				t.Fatalf("Calculate failed: %v", err)
			}
			if got := expectedByDay(res.Rows)[3]; got != tt.want {
				t.Errorf("Jan 3 expected = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestCalculate_Errors(t *testing.T) {
	store, settings := scenarioA()
	calc := newTestCalculator(store, settings, nil)
	ctx := context.Background()

	_, err := calc.Calculate(ctx, "acct", domain.DateRange{Start: jan(10), End: jan(1)}, nil)
	if !errors.Is(err, domain.ErrValidation) {
		t.Errorf("inverted range error = %v, want ErrValidation", err)
	}
	if store.reads != 0 {
		t.Errorf("inverted range read the store %d times, want 0", store.reads)
	}

	_, err = calc.Calculate(ctx, "nobody", domain.DateRange{Start: jan(1), End: jan(2)}, nil)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("unknown account error = %v, want ErrNotFound", err)
	}

	long := domain.DateRange{Start: jan(1), End: jan(1).AddDays(DefaultMaxRangeDays)}
	if _, err := calc.Calculate(ctx, "acct", long, nil); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("oversized range error = %v, want ErrValidation", err)
	}

	store.events = append(store.events, ev("huge", jan(2), "999999999999999", domain.DirectionIncoming, domain.CertaintyCertain))
	if _, err := calc.Calculate(ctx, "acct", domain.DateRange{Start: jan(1), End: jan(3)}, nil); !errors.Is(err, domain.ErrComputation) {
		t.Errorf("overflowing balance error = %v, want ErrComputation", err)
	}
	if store.upserts != 0 {
		t.Errorf("failed calculations persisted %d times, want 0", store.upserts)
	}
}

func TestCalculate_DefaultBalanceWithoutSettings(t *testing.T) {
	store := newFakeStore()
	store.events = []domain.ProjectionEvent{
		ev("early", jan(2), "40", domain.DirectionIncoming, domain.CertaintyCertain),
	}
	calc := NewCalculator(store, fakeSettings{}, nil, Config{InitialBalance: dec("10")}, zerolog.Nop())

	res, err := calc.Calculate(context.Background(), "acct", domain.DateRange{Start: jan(5), End: jan(5)}, nil)
	if err != nil {
		t.Fatalf("Calculate failed: %v", err)
	}
	if got := res.Rows[0].ExpectedBalance.String(); got != "50" {
		t.Errorf("Jan 5 expected = %s, want 50", got)
	}
}

func TestComputeOnTheFly(t *testing.T) {
	store, settings := scenarioA()
	store.events = append(store.events, ev("snack", jan(2), "0.006", domain.DirectionExpense, domain.CertaintyCertain))
	covered := jan(3)
	calc := newTestCalculator(store, settings, coverage.Static{Coverage: coverage.Coverage{LatestCoveredDate: &covered}})

	points, err := calc.ComputeOnTheFly(context.Background(), OnTheFlyRequest{
		AccountID: "acct",
		Range:     domain.DateRange{Start: jan(1), End: jan(5)},
	})
	if err != nil {
		t.Fatalf("ComputeOnTheFly failed: %v", err)
	}
	if store.upserts != 0 {
		t.Errorf("on-the-fly wrote %d times, want 0", store.upserts)
	}

	want := []struct {
		balance string
		count   int
		typ     domain.BalanceType
	}{
		{"1000", 0, domain.BalanceTypeTrue},
		{"999.99", 1, domain.BalanceTypeTrue},
		{"999.99", 0, domain.BalanceTypeTrue},
		{"999.99", 0, domain.BalanceTypeProjected},
		{"799.99", 1, domain.BalanceTypeProjected},
	}
	if len(points) != len(want) {
		t.Fatalf("points = %d, want %d", len(points), len(want))
	}
	for i, w := range want {
		p := points[i]
		if p.ExpectedBalance.String() != w.balance || p.EventCount != w.count || p.BalanceType != w.typ {
			t.Errorf("%s = {%s %d %s}, want {%s %d %s}", p.Date, p.ExpectedBalance, p.EventCount, p.BalanceType,
				w.balance, w.count, w.typ)
		}
	}
}

func TestComputeOnTheFly_KnownBalanceAnchor(t *testing.T) {
	store, settings := scenarioA()
	tracker := coverage.Static{Known: &coverage.KnownBalance{Balance: dec("700"), Date: jan(7)}}
	calc := newTestCalculator(store, settings, tracker)
	covered := jan(7)

	points, err := calc.ComputeOnTheFly(context.Background(), OnTheFlyRequest{
		AccountID:         "acct",
		Range:             domain.DateRange{Start: jan(8), End: jan(10)},
		LatestCoveredDate: &covered,
	})
	if err != nil {
		t.Fatalf("ComputeOnTheFly failed: %v", err)
	}
	if got := points[2].ExpectedBalance.String(); got != "1000" {
		t.Errorf("Jan 10 = %s, want 1000 (700 known on Jan 7 plus 300)", got)
	}

	asOf := jan(3)
	points, err = calc.ComputeOnTheFly(context.Background(), OnTheFlyRequest{
		AccountID:           "acct",
		Range:               domain.DateRange{Start: jan(8), End: jan(10)},
		AsOfTrueBalanceDate: &asOf,
		LatestCoveredDate:   &covered,
	})
	if err != nil {
		t.Fatalf("ComputeOnTheFly failed: %v", err)
	}
	if got := points[2].ExpectedBalance.String(); got != "1100" {
		t.Errorf("Jan 10 = %s, want 1100 when the known balance is past the cutoff", got)
	}
}
