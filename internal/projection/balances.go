package projection

import (
	"context"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/balance-projection/internal/balance"
	"github.com/dvloznov/balance-projection/internal/coverage"
	"github.com/dvloznov/balance-projection/internal/domain"
	"github.com/dvloznov/balance-projection/internal/jobs"
	"github.com/dvloznov/balance-projection/internal/scenario"
)

// CalculateDailyBalances computes and persists the timeline of accountID
// over [start, end] under enabled. A nil enabled set counts every path.
func (s *Service) CalculateDailyBalances(ctx context.Context, start, end civil.Date, accountID string, enabled scenario.EnabledSet) (*balance.Result, error) {
	r, err := domain.NewDateRange(start, end)
	if err != nil {
		return nil, err
	}
	return s.calc.Calculate(ctx, accountID, r, enabled)
}

// RecalculateBalancesFrom recomputes the persisted timeline over
// [start, end] under the default scenario.
func (s *Service) RecalculateBalancesFrom(ctx context.Context, start, end civil.Date, accountID string) (*balance.Result, error) {
	return s.CalculateDailyBalances(ctx, start, end, accountID, nil)
}

// OnTheFlyQuery parameterizes ComputeBalancesOnTheFly.
type OnTheFlyQuery struct {
	Start, End        civil.Date
	AccountID         string
	TrueBalanceDate   *civil.Date
	Enabled           scenario.EnabledSet
	LatestCoveredDate *civil.Date
}

// ComputeBalancesOnTheFly returns a what-if timeline without persisting it.
func (s *Service) ComputeBalancesOnTheFly(ctx context.Context, q OnTheFlyQuery) ([]domain.BalancePoint, error) {
	r, err := domain.NewDateRange(q.Start, q.End)
	if err != nil {
		return nil, err
	}
	return s.calc.ComputeOnTheFly(ctx, balance.OnTheFlyRequest{
		AccountID:           q.AccountID,
		Range:               r,
		AsOfTrueBalanceDate: q.TrueBalanceDate,
		Enabled:             q.Enabled,
		LatestCoveredDate:   q.LatestCoveredDate,
	})
}

// ListDailyBalances returns the persisted timeline within [from, to].
func (s *Service) ListDailyBalances(ctx context.Context, accountID string, from, to civil.Date) ([]domain.DailyBalance, error) {
	r, err := domain.NewDateRange(from, to)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}
	rows, err := s.store.ListDailyBalances(ctx, accountID, r.Start, r.End)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []domain.DailyBalance{}
	}
	return rows, nil
}

// SetActualBalance records a user-observed balance for a date. It replaces
// the carried balance from that date on.
func (s *Service) SetActualBalance(ctx context.Context, accountID string, date civil.Date, amount decimal.Decimal) (*jobs.RecalculationJob, error) {
	if !date.IsValid() {
		return nil, domain.Invalid("date", "must be a valid date")
	}
	if err := domain.CheckAmount("actual_balance", amount); err != nil {
		return nil, err
	}
	if err := s.requireAccount(ctx, accountID); err != nil {
		return nil, err
	}
	if err := s.store.SetActualBalance(ctx, accountID, date, amount); err != nil {
		return nil, err
	}
	return s.trigger.Invalidate(ctx, accountID, date, date, "actual_balance.set"), nil
}

// ClearActualBalance removes the override on date.
func (s *Service) ClearActualBalance(ctx context.Context, accountID string, date civil.Date) (*jobs.RecalculationJob, error) {
	if err := s.store.ClearActualBalance(ctx, accountID, date); err != nil {
		return nil, err
	}
	return s.trigger.Invalidate(ctx, accountID, date, date, "actual_balance.clear"), nil
}

// GetInitialBalance returns the opening balance used for accountID, or the
// global one when accountID is nil.
func (s *Service) GetInitialBalance(ctx context.Context, accountID *string) (*domain.InitialBalance, error) {
	ib, err := s.store.GetInitialBalance(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if ib == nil {
		kind := "global"
		if accountID != nil {
			kind = *accountID
		}
		return nil, domain.NotFound("initial balance", kind)
	}
	return ib, nil
}

// SetInitialBalance stores an opening balance. Setting the global one
// recalculates every account without its own.
func (s *Service) SetInitialBalance(ctx context.Context, ib domain.InitialBalance) ([]*jobs.RecalculationJob, error) {
	if !ib.EffectiveDate.IsValid() {
		return nil, domain.Invalid("effective_date", "must be a valid date")
	}
	if err := domain.CheckAmount("amount", ib.Amount); err != nil {
		return nil, err
	}
	if ib.BankAccountID != nil {
		if err := s.requireAccount(ctx, *ib.BankAccountID); err != nil {
			return nil, err
		}
	}
	if err := s.store.SetInitialBalance(ctx, &ib); err != nil {
		return nil, err
	}

	if ib.BankAccountID != nil {
		job := s.trigger.Invalidate(ctx, *ib.BankAccountID, ib.EffectiveDate, ib.EffectiveDate, "initial_balance.set")
		return []*jobs.RecalculationJob{job}, nil
	}

	accounts, err := s.store.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}
	var out []*jobs.RecalculationJob
	for _, acct := range accounts {
		own, err := s.store.GetInitialBalance(ctx, &acct.ID)
		if err != nil {
			return out, err
		}
		if own != nil && own.BankAccountID != nil {
			continue
		}
		out = append(out, s.trigger.Invalidate(ctx, acct.ID, ib.EffectiveDate, ib.EffectiveDate, "initial_balance.set"))
	}
	return out, nil
}

// GetCoverage reports the transaction-backed part of an account's timeline.
func (s *Service) GetCoverage(ctx context.Context, accountID string) (coverage.Coverage, error) {
	if _, err := s.store.GetAccount(ctx, accountID); err != nil {
		return coverage.Coverage{}, err
	}
	return s.tracker.GetCoverage(ctx, accountID)
}

// RecordTransactions stores already-parsed transaction history for an
// account. The rows only feed coverage; persisted balances are untouched.
func (s *Service) RecordTransactions(ctx context.Context, accountID string, rows []domain.TransactionRecord) (int, error) {
	if err := s.requireAccount(ctx, accountID); err != nil {
		return 0, err
	}
	for i := range rows {
		r := &rows[i]
		if !r.Date.IsValid() {
			return 0, domain.Invalid("date", "must be a valid date")
		}
		if err := domain.CheckAmount("amount", r.Amount); err != nil {
			return 0, err
		}
		if r.ID == "" {
			r.ID = s.newID()
		}
		r.BankAccountID = accountID
	}
	if err := s.store.InsertTransactions(ctx, rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}
