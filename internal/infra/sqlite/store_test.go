package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/balance-projection/internal/domain"
	"github.com/dvloznov/balance-projection/internal/recurring"
	"github.com/dvloznov/balance-projection/internal/repository"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "balance.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedAccount(t *testing.T, s *Store, id string) {
	t.Helper()
	if err := s.CreateAccount(context.Background(), &domain.BankAccount{ID: id, Name: "Current " + id}); err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}
}

func day(m, d int) civil.Date {
	return civil.Date{Year: 2024, Month: time.Month(m), Day: d}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func strPtr(s string) *string { return &s }

func TestOpen_MigratesTwice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "balance.db")
	for i := 0; i < 2; i++ {
		s, err := Open(context.Background(), path)
		if err != nil {
			t.Fatalf("Open #%d failed: %v", i+1, err)
		}
		_ = s.Close()
	}
}

func TestMigrationVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "balance.db")

	if v, _, err := MigrationVersion(path); err != nil || v != 0 {
		t.Fatalf("fresh MigrationVersion = %d, %v; want 0", v, err)
	}
	if err := Migrate(path); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	v, dirty, err := MigrationVersion(path)
	if err != nil || v != 1 || dirty {
		t.Fatalf("MigrationVersion = %d, %v, %v; want 1, clean", v, dirty, err)
	}
	if err := MigrateDown(path); err != nil {
		t.Fatalf("MigrateDown failed: %v", err)
	}
	if v, _, err := MigrationVersion(path); err != nil || v != 0 {
		t.Errorf("after MigrateDown = %d, %v; want 0", v, err)
	}
}

func TestAccounts(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	seedAccount(t, s, "acct-1")

	got, err := s.GetAccount(ctx, "acct-1")
	if err != nil {
		t.Fatalf("GetAccount failed: %v", err)
	}
	if got.Name != "Current acct-1" {
		t.Errorf("Name = %q, want %q", got.Name, "Current acct-1")
	}

	if _, err := s.GetAccount(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("GetAccount(missing) error = %v, want ErrNotFound", err)
	}
	err = s.CreateAccount(ctx, &domain.BankAccount{ID: "acct-1", Name: "dup"})
	if !errors.Is(err, domain.ErrConflict) {
		t.Errorf("duplicate CreateAccount error = %v, want ErrConflict", err)
	}
}

func TestEvents_CRUDAndRange(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	seedAccount(t, s, "acct")

	e := &domain.ProjectionEvent{
		ID: "e1", BankAccountID: "acct", Date: day(1, 5), Value: dec("200.50"),
		Direction: domain.DirectionExpense, Certainty: domain.CertaintyCertain, Description: "rent",
	}
	if err := s.InsertEvent(ctx, e); err != nil {
		t.Fatalf("InsertEvent failed: %v", err)
	}
	if err := s.InsertEvent(ctx, &domain.ProjectionEvent{
		ID: "e2", BankAccountID: "acct", Date: day(2, 1), Value: dec("10"),
		Direction: domain.DirectionIncoming, Certainty: domain.CertaintyLikely,
	}); err != nil {
		t.Fatalf("InsertEvent failed: %v", err)
	}

	got, err := s.GetEvent(ctx, "e1")
	if err != nil {
		t.Fatalf("GetEvent failed: %v", err)
	}
	if diff := cmp.Diff(e.Value.String(), got.Value.String()); diff != "" {
		t.Errorf("value mismatch (-want +got):\n%s", diff)
	}
	if got.Date != day(1, 5) {
		t.Errorf("Date = %s, want %s", got.Date, day(1, 5))
	}

	events, err := s.ListEventsInRange(ctx, "acct", day(1, 1), day(1, 31))
	if err != nil {
		t.Fatalf("ListEventsInRange failed: %v", err)
	}
	if len(events) != 1 || events[0].ID != "e1" {
		t.Errorf("ListEventsInRange = %+v, want only e1", events)
	}

	bounds, err := s.EventBounds(ctx, "acct")
	if err != nil {
		t.Fatalf("EventBounds failed: %v", err)
	}
	if bounds == nil || bounds.Start != day(1, 5) || bounds.End != day(2, 1) {
		t.Errorf("EventBounds = %+v, want %s..%s", bounds, day(1, 5), day(2, 1))
	}

	e.Value = dec("250")
	if err := s.UpdateEvent(ctx, e); err != nil {
		t.Fatalf("UpdateEvent failed: %v", err)
	}
	if err := s.DeleteEvent(ctx, "e1"); err != nil {
		t.Fatalf("DeleteEvent failed: %v", err)
	}
	if err := s.DeleteEvent(ctx, "e1"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("second DeleteEvent error = %v, want ErrNotFound", err)
	}
}

func TestRules_RevisionAndCascade(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	seedAccount(t, s, "acct")

	base := domain.RecurringEventRule{
		ID: "base", BankAccountID: "acct", Value: dec("100"),
		Direction: domain.DirectionExpense, Certainty: domain.CertaintyCertain,
		StartDate: day(1, 1), EndDate: day(6, 30), Frequency: domain.FrequencyMonthly, IsBaseRule: true,
	}
	events, err := recurring.Generate(base)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if err := s.InsertRuleWithEvents(ctx, &base, events); err != nil {
		t.Fatalf("InsertRuleWithEvents failed: %v", err)
	}

	chain, err := s.ListLineage(ctx, "base")
	if err != nil {
		t.Fatalf("ListLineage failed: %v", err)
	}
	plan, err := recurring.PlanRevision(chain, recurring.RevisionSpec{
		RevisionStartDate: day(4, 1), Value: dec("150"),
	}, "rev")
	if err != nil {
		t.Fatalf("PlanRevision failed: %v", err)
	}
	deleted, err := s.ApplyRevision(ctx, repository.RevisionWrite{
		Root: plan.Root, Target: plan.Target, Revision: plan.Revision,
		RevisionEvents: plan.RevisionEvents, DeleteFrom: plan.DeleteFrom,
	})
	if err != nil {
		t.Fatalf("ApplyRevision failed: %v", err)
	}
	if deleted != 3 {
		t.Errorf("deleted = %d, want 3", deleted)
	}

	chain, err = s.ListLineage(ctx, "base")
	if err != nil {
		t.Fatalf("ListLineage failed: %v", err)
	}
	if len(chain) != 2 {
		t.Fatalf("lineage length = %d, want 2", len(chain))
	}
	if !chain[0].IsBaseRule || chain[0].EndDate != day(3, 31) {
		t.Errorf("base = %+v, want base rule ending %s", chain[0], day(3, 31))
	}
	if chain[1].IsBaseRule || chain[1].LineageID() != "base" {
		t.Errorf("revision = %+v, want non-base rule in lineage base", chain[1])
	}

	all, err := s.ListEventsInRange(ctx, "acct", day(1, 1), day(12, 31))
	if err != nil {
		t.Fatalf("ListEventsInRange failed: %v", err)
	}
	seen := make(map[civil.Date]bool)
	for _, e := range all {
		if seen[e.Date] {
			t.Errorf("date %s has two events from the chain", e.Date)
		}
		seen[e.Date] = true
		want := "100"
		if !e.Date.Before(day(4, 1)) {
			want = "150"
		}
		if e.Value.String() != want {
			t.Errorf("event on %s value = %s, want %s", e.Date, e.Value, want)
		}
	}
	if len(all) != 6 {
		t.Errorf("event count = %d, want 6", len(all))
	}

	if err := s.DeleteRule(ctx, "rev"); err != nil {
		t.Fatalf("DeleteRule failed: %v", err)
	}
	left, err := s.ListEventsInRange(ctx, "acct", day(1, 1), day(12, 31))
	if err != nil {
		t.Fatalf("ListEventsInRange failed: %v", err)
	}
	if len(left) != 3 {
		t.Errorf("events after deleting revision = %d, want 3", len(left))
	}
}

func TestBalances_UpsertKeepsActual(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	seedAccount(t, s, "acct")

	if err := s.SetActualBalance(ctx, "acct", day(1, 6), dec("500")); err != nil {
		t.Fatalf("SetActualBalance failed: %v", err)
	}
	rows := []domain.DailyBalance{
		{Date: day(1, 5), ExpectedBalance: dec("800")},
		{Date: day(1, 6), ExpectedBalance: dec("800")},
		{Date: day(1, 7), ExpectedBalance: dec("500")},
	}
	for i := 0; i < 2; i++ {
		if err := s.UpsertExpectedBalances(ctx, "acct", rows); err != nil {
			t.Fatalf("UpsertExpectedBalances failed: %v", err)
		}
	}

	got, err := s.ListDailyBalances(ctx, "acct", day(1, 1), day(1, 31))
	if err != nil {
		t.Fatalf("ListDailyBalances failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("rows = %d, want 3", len(got))
	}
	if got[1].ActualBalance == nil || !got[1].ActualBalance.Equal(dec("500")) {
		t.Errorf("actual on %s = %v, want 500", got[1].Date, got[1].ActualBalance)
	}
	if !got[1].ExpectedBalance.Equal(dec("800")) {
		t.Errorf("expected on %s = %s, want 800", got[1].Date, got[1].ExpectedBalance)
	}

	latest, err := s.LatestActualBalanceBefore(ctx, "acct", day(1, 7))
	if err != nil {
		t.Fatalf("LatestActualBalanceBefore failed: %v", err)
	}
	if latest == nil || latest.Date != day(1, 6) {
		t.Errorf("LatestActualBalanceBefore = %+v, want Jan 6", latest)
	}
	if latest, _ := s.LatestActualBalanceBefore(ctx, "acct", day(1, 6)); latest != nil {
		t.Errorf("override on the date itself must not count, got %+v", latest)
	}

	if err := s.ClearActualBalance(ctx, "acct", day(1, 6)); err != nil {
		t.Fatalf("ClearActualBalance failed: %v", err)
	}
	actuals, err := s.ListActualBalances(ctx, "acct", day(1, 1), day(1, 31))
	if err != nil {
		t.Fatalf("ListActualBalances failed: %v", err)
	}
	if len(actuals) != 0 {
		t.Errorf("actuals after clear = %v, want none", actuals)
	}
	if err := s.ClearActualBalance(ctx, "acct", day(1, 6)); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("second clear error = %v, want ErrNotFound", err)
	}
}

func TestDecisionPaths_DeleteNullsReferences(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	seedAccount(t, s, "acct")

	if err := s.CreateDecisionPath(ctx, &domain.DecisionPath{ID: "x", Name: "New job"}); err != nil {
		t.Fatalf("CreateDecisionPath failed: %v", err)
	}
	if err := s.CreateDecisionPath(ctx, &domain.DecisionPath{ID: "y", Name: "New job"}); !errors.Is(err, domain.ErrConflict) {
		t.Errorf("duplicate name error = %v, want ErrConflict", err)
	}
	for i, d := range []civil.Date{day(1, 10), day(3, 2)} {
		if err := s.InsertEvent(ctx, &domain.ProjectionEvent{
			ID: []string{"a", "b"}[i], BankAccountID: "acct", Date: d, Value: dec("50"),
			Direction: domain.DirectionIncoming, Certainty: domain.CertaintyCertain, DecisionPathID: strPtr("x"),
		}); err != nil {
			t.Fatalf("InsertEvent failed: %v", err)
		}
	}

	affected, err := s.DeleteDecisionPath(ctx, "x")
	if err != nil {
		t.Fatalf("DeleteDecisionPath failed: %v", err)
	}
	want := map[string]domain.DateRange{"acct": {Start: day(1, 10), End: day(3, 2)}}
	if diff := cmp.Diff(want, affected); diff != "" {
		t.Errorf("affected mismatch (-want +got):\n%s", diff)
	}

	e, err := s.GetEvent(ctx, "a")
	if err != nil {
		t.Fatalf("GetEvent failed: %v", err)
	}
	if e.DecisionPathID != nil {
		t.Errorf("DecisionPathID = %q, want nil", *e.DecisionPathID)
	}
}

func TestScenarioSets(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	if err := s.CreateDecisionPath(ctx, &domain.DecisionPath{ID: "x", Name: "Move"}); err != nil {
		t.Fatalf("CreateDecisionPath failed: %v", err)
	}

	def, err := s.GetDefaultScenarioSet(ctx)
	if err != nil {
		t.Fatalf("GetDefaultScenarioSet failed: %v", err)
	}
	if !def.IsDefault || def.ID != DefaultScenarioSetID {
		t.Errorf("default set = %+v", def)
	}

	set := &domain.ScenarioSet{ID: "s1", Name: "No move", Paths: map[string]bool{"x": false}}
	if err := s.CreateScenarioSet(ctx, set); err != nil {
		t.Fatalf("CreateScenarioSet failed: %v", err)
	}
	got, err := s.GetScenarioSet(ctx, "s1")
	if err != nil {
		t.Fatalf("GetScenarioSet failed: %v", err)
	}
	if diff := cmp.Diff(map[string]bool{"x": false}, got.Paths); diff != "" {
		t.Errorf("paths mismatch (-want +got):\n%s", diff)
	}

	if err := s.DeleteScenarioSet(ctx, DefaultScenarioSetID); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("deleting default error = %v, want ErrValidation", err)
	}
	if err := s.MakeDefault(ctx, "s1"); err != nil {
		t.Fatalf("MakeDefault failed: %v", err)
	}
	sets, err := s.ListScenarioSets(ctx)
	if err != nil {
		t.Fatalf("ListScenarioSets failed: %v", err)
	}
	defaults := 0
	for _, st := range sets {
		if st.IsDefault {
			defaults++
			if st.ID != "s1" {
				t.Errorf("default = %s, want s1", st.ID)
			}
		}
	}
	if defaults != 1 {
		t.Errorf("default count = %d, want 1", defaults)
	}
	if err := s.DeleteScenarioSet(ctx, DefaultScenarioSetID); err != nil {
		t.Errorf("deleting former default failed: %v", err)
	}
}

func TestInitialBalance_Fallback(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	seedAccount(t, s, "acct")

	if ib, err := s.GetInitialBalance(ctx, strPtr("acct")); err != nil || ib != nil {
		t.Fatalf("GetInitialBalance on empty store = %+v, %v; want nil, nil", ib, err)
	}
	if err := s.SetInitialBalance(ctx, &domain.InitialBalance{Amount: dec("1000"), EffectiveDate: day(1, 1)}); err != nil {
		t.Fatalf("SetInitialBalance failed: %v", err)
	}
	ib, err := s.GetInitialBalance(ctx, strPtr("acct"))
	if err != nil || ib == nil || !ib.Amount.Equal(dec("1000")) {
		t.Fatalf("global fallback = %+v, %v; want 1000", ib, err)
	}

	if err := s.SetInitialBalance(ctx, &domain.InitialBalance{
		BankAccountID: strPtr("acct"), Amount: dec("250.25"), EffectiveDate: day(2, 1),
	}); err != nil {
		t.Fatalf("SetInitialBalance failed: %v", err)
	}
	ib, err = s.GetInitialBalance(ctx, strPtr("acct"))
	if err != nil || ib == nil || !ib.Amount.Equal(dec("250.25")) || ib.EffectiveDate != day(2, 1) {
		t.Errorf("account balance = %+v, %v; want 250.25 from Feb 1", ib, err)
	}
}

func TestTransactions(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	seedAccount(t, s, "acct")

	bal := dec("940.10")
	rows := []domain.TransactionRecord{
		{ID: "t1", BankAccountID: "acct", Date: day(1, 3), Amount: dec("-59.90"), BalanceAfter: &bal},
		{ID: "t2", BankAccountID: "acct", Date: day(1, 3), Amount: dec("-5")},
		{ID: "t3", BankAccountID: "acct", Date: day(1, 20), Amount: dec("12")},
	}
	for i := 0; i < 2; i++ {
		if err := s.InsertTransactions(ctx, rows); err != nil {
			t.Fatalf("InsertTransactions failed: %v", err)
		}
	}

	dates, err := s.ListTransactionDates(ctx, "acct")
	if err != nil {
		t.Fatalf("ListTransactionDates failed: %v", err)
	}
	if diff := cmp.Diff([]civil.Date{day(1, 3), day(1, 20)}, dates); diff != "" {
		t.Errorf("dates mismatch (-want +got):\n%s", diff)
	}

	latest, err := s.LatestTransactionWithBalance(ctx, "acct", day(1, 31))
	if err != nil {
		t.Fatalf("LatestTransactionWithBalance failed: %v", err)
	}
	if latest == nil || latest.ID != "t1" || !latest.BalanceAfter.Equal(bal) {
		t.Errorf("latest = %+v, want t1 with balance 940.10", latest)
	}
	if latest, _ := s.LatestTransactionWithBalance(ctx, "acct", day(1, 2)); latest != nil {
		t.Errorf("latest before any transaction = %+v, want nil", latest)
	}
}
