package coverage

import (
	"context"
	"errors"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/balance-projection/internal/domain"
)

func jan(d int) civil.Date { return civil.Date{Year: 2024, Month: 1, Day: d} }

type fakeSource struct {
	dates  []civil.Date
	latest *domain.TransactionRecord
	err    error
	asked  civil.Date
}

func (f *fakeSource) ListTransactionDates(ctx context.Context, accountID string) ([]civil.Date, error) {
	return f.dates, f.err
}

func (f *fakeSource) LatestTransactionWithBalance(ctx context.Context, accountID string, onOrBefore civil.Date) (*domain.TransactionRecord, error) {
	f.asked = onOrBefore
	return f.latest, f.err
}

func TestFromDates(t *testing.T) {
	tests := []struct {
		name  string
		dates []civil.Date
		gap   int
		want  []domain.DateRange
	}{
		{
			name:  "no transactions",
			dates: nil,
			gap:   7,
			want:  []domain.DateRange{},
		},
		{
			name:  "single date",
			dates: []civil.Date{jan(3)},
			gap:   7,
			want:  []domain.DateRange{{Start: jan(3), End: jan(3)}},
		},
		{
			name:  "gap within limit joins ranges",
			dates: []civil.Date{jan(1), jan(8), jan(10)},
			gap:   7,
			want:  []domain.DateRange{{Start: jan(1), End: jan(10)}},
		},
		{
			name:  "gap over limit splits ranges",
			dates: []civil.Date{jan(1), jan(2), jan(20), jan(22)},
			gap:   7,
			want: []domain.DateRange{
				{Start: jan(1), End: jan(2)},
				{Start: jan(20), End: jan(22)},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromDates(tt.dates, tt.gap)
			if diff := cmp.Diff(tt.want, got.Ranges); diff != "" {
				t.Errorf("ranges mismatch (-want +got):\n%s", diff)
			}
			if len(tt.dates) == 0 {
				if got.LatestCoveredDate != nil {
					t.Errorf("LatestCoveredDate = %s, want nil", got.LatestCoveredDate)
				}
				return
			}
			if got.LatestCoveredDate == nil || *got.LatestCoveredDate != tt.dates[len(tt.dates)-1] {
				t.Errorf("LatestCoveredDate = %v, want %s", got.LatestCoveredDate, tt.dates[len(tt.dates)-1])
			}
		})
	}
}

func TestSQLTracker_GetLastKnownBalance(t *testing.T) {
	bal := decimal.NewFromInt(1234)
	src := &fakeSource{latest: &domain.TransactionRecord{ID: "t", Date: jan(4), BalanceAfter: &bal}}
	tr := NewSQLTracker(src, 0)

	got, err := tr.GetLastKnownBalance(context.Background(), jan(9), "acct")
	if err != nil {
		t.Fatalf("GetLastKnownBalance failed: %v", err)
	}
	if got == nil || got.Date != jan(4) || !got.Balance.Equal(bal) {
		t.Errorf("GetLastKnownBalance = %+v, want 1234 on %s", got, jan(4))
	}
	if src.asked != jan(9) {
		t.Errorf("source asked for %s, want %s", src.asked, jan(9))
	}
	if tr.gapDays != DefaultGapDays {
		t.Errorf("gapDays = %d, want default %d", tr.gapDays, DefaultGapDays)
	}
}

func TestSQLTracker_PropagatesErrors(t *testing.T) {
	boom := errors.New("boom")
	tr := NewSQLTracker(&fakeSource{err: boom}, 3)
	if _, err := tr.GetCoverage(context.Background(), "acct"); !errors.Is(err, boom) {
		t.Errorf("GetCoverage error = %v, want wrapped boom", err)
	}
	if _, err := tr.GetLastKnownBalance(context.Background(), jan(1), "acct"); !errors.Is(err, boom) {
		t.Errorf("GetLastKnownBalance error = %v, want wrapped boom", err)
	}
}

func TestStatic_GetLastKnownBalance(t *testing.T) {
	s := Static{Known: &KnownBalance{Balance: decimal.NewFromInt(10), Date: jan(5)}}
	if kb, _ := s.GetLastKnownBalance(context.Background(), jan(4), "acct"); kb != nil {
		t.Errorf("balance dated after the cutoff returned: %+v", kb)
	}
	if kb, _ := s.GetLastKnownBalance(context.Background(), jan(5), "acct"); kb == nil {
		t.Error("balance on the cutoff date not returned")
	}
}
