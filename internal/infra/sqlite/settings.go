package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dvloznov/balance-projection/internal/domain"
)

const globalScope = ""

// GetInitialBalance returns the account's initial balance, else the global
// one, else nil.
func (s *Store) GetInitialBalance(ctx context.Context, accountID *string) (*domain.InitialBalance, error) {
	if accountID != nil {
		ib, err := s.initialBalance(ctx, *accountID)
		if err != nil || ib != nil {
			return ib, err
		}
	}
	return s.initialBalance(ctx, globalScope)
}

func (s *Store) initialBalance(ctx context.Context, scope string) (*domain.InitialBalance, error) {
	var (
		acct           sql.NullString
		amount, effDay string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT bank_account_id, amount, effective_date FROM initial_balances WHERE scope = ?`, scope).
		Scan(&acct, &amount, &effDay)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetInitialBalance: %w", err)
	}

	ib := &domain.InitialBalance{BankAccountID: nullString(acct)}
	if ib.Amount, err = parseDecimal(amount); err != nil {
		return nil, fmt.Errorf("GetInitialBalance: %w", err)
	}
	if ib.EffectiveDate, err = parseDate(effDay); err != nil {
		return nil, fmt.Errorf("GetInitialBalance: %w", err)
	}
	return ib, nil
}

// SetInitialBalance stores an initial balance for its scope.
func (s *Store) SetInitialBalance(ctx context.Context, balance *domain.InitialBalance) error {
	scope := globalScope
	if balance.BankAccountID != nil {
		scope = *balance.BankAccountID
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO initial_balances (scope, bank_account_id, amount, effective_date)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (scope) DO UPDATE SET amount = excluded.amount, effective_date = excluded.effective_date`,
		scope, toNullString(balance.BankAccountID), balance.Amount.String(), balance.EffectiveDate.String())
	if err != nil {
		return fmt.Errorf("SetInitialBalance: %w", err)
	}
	return nil
}
