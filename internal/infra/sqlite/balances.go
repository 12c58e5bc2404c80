package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/balance-projection/internal/domain"
)

// UpsertExpectedBalances writes expected balances without touching actuals.
func (s *Store) UpsertExpectedBalances(ctx context.Context, accountID string, rows []domain.DailyBalance) error {
	if len(rows) == 0 {
		return nil
	}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO daily_balances (bank_account_id, date, expected_balance)
			VALUES (?, ?, ?)
			ON CONFLICT (bank_account_id, date) DO UPDATE SET expected_balance = excluded.expected_balance`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, r := range rows {
			if _, err := stmt.ExecContext(ctx, accountID, r.Date.String(), r.ExpectedBalance.String()); err != nil {
				return fmt.Errorf("upserting %s: %w", r.Date, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("UpsertExpectedBalances: %w", err)
	}
	return nil
}

// ListDailyBalances returns persisted balance rows within [from, to].
func (s *Store) ListDailyBalances(ctx context.Context, accountID string, from, to civil.Date) ([]domain.DailyBalance, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT date, expected_balance, actual_balance FROM daily_balances
		WHERE bank_account_id = ? AND date >= ? AND date <= ?
		ORDER BY date`, accountID, from.String(), to.String())
	if err != nil {
		return nil, fmt.Errorf("ListDailyBalances: %w", err)
	}
	defer rows.Close()

	var out []domain.DailyBalance
	for rows.Next() {
		b, err := scanBalance(rows)
		if err != nil {
			return nil, fmt.Errorf("ListDailyBalances: scanning: %w", err)
		}
		b.BankAccountID = accountID
		out = append(out, b)
	}
	return out, rows.Err()
}

// ListActualBalances returns the overrides within [from, to] keyed by date.
func (s *Store) ListActualBalances(ctx context.Context, accountID string, from, to civil.Date) (map[civil.Date]decimal.Decimal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT date, actual_balance FROM daily_balances
		WHERE bank_account_id = ? AND date >= ? AND date <= ? AND actual_balance IS NOT NULL`,
		accountID, from.String(), to.String())
	if err != nil {
		return nil, fmt.Errorf("ListActualBalances: %w", err)
	}
	defer rows.Close()

	out := make(map[civil.Date]decimal.Decimal)
	for rows.Next() {
		var date, actual string
		if err := rows.Scan(&date, &actual); err != nil {
			return nil, fmt.Errorf("ListActualBalances: scanning: %w", err)
		}
		d, err := parseDate(date)
		if err != nil {
			return nil, fmt.Errorf("ListActualBalances: %w", err)
		}
		v, err := parseDecimal(actual)
		if err != nil {
			return nil, fmt.Errorf("ListActualBalances: %w", err)
		}
		out[d] = v
	}
	return out, rows.Err()
}

// LatestActualBalanceBefore returns the newest override strictly before date.
func (s *Store) LatestActualBalanceBefore(ctx context.Context, accountID string, date civil.Date) (*domain.DailyBalance, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT date, expected_balance, actual_balance FROM daily_balances
		WHERE bank_account_id = ? AND date < ? AND actual_balance IS NOT NULL
		ORDER BY date DESC LIMIT 1`, accountID, date.String())
	b, err := scanBalance(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("LatestActualBalanceBefore: %w", err)
	}
	b.BankAccountID = accountID
	return &b, nil
}

// SetActualBalance stores an override, creating the row when needed.
func (s *Store) SetActualBalance(ctx context.Context, accountID string, date civil.Date, amount decimal.Decimal) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO daily_balances (bank_account_id, date, expected_balance, actual_balance)
		VALUES (?, ?, '0', ?)
		ON CONFLICT (bank_account_id, date) DO UPDATE SET actual_balance = excluded.actual_balance`,
		accountID, date.String(), amount.String())
	if err != nil {
		return fmt.Errorf("SetActualBalance: %w", err)
	}
	return nil
}

// ClearActualBalance removes the override on date, if any.
func (s *Store) ClearActualBalance(ctx context.Context, accountID string, date civil.Date) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE daily_balances SET actual_balance = NULL
		WHERE bank_account_id = ? AND date = ? AND actual_balance IS NOT NULL`,
		accountID, date.String())
	if err != nil {
		return fmt.Errorf("ClearActualBalance: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFound("actual balance", accountID+"@"+date.String())
	}
	return nil
}

// ActualBalanceBounds returns the first and last override dates.
func (s *Store) ActualBalanceBounds(ctx context.Context, accountID string) (*domain.DateRange, error) {
	return s.bounds(ctx, "ActualBalanceBounds", `
		SELECT MIN(date), MAX(date) FROM daily_balances
		WHERE bank_account_id = ? AND actual_balance IS NOT NULL`, accountID)
}

func scanBalance(rs rowScanner) (domain.DailyBalance, error) {
	var (
		b              domain.DailyBalance
		date, expected string
		actual         sql.NullString
	)
	if err := rs.Scan(&date, &expected, &actual); err != nil {
		return b, err
	}
	var err error
	if b.Date, err = parseDate(date); err != nil {
		return b, err
	}
	if b.ExpectedBalance, err = parseDecimal(expected); err != nil {
		return b, err
	}
	if b.ActualBalance, err = parseNullDecimal(actual); err != nil {
		return b, err
	}
	return b, nil
}
