package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/civil"

	"github.com/dvloznov/balance-projection/internal/domain"
)

// InsertTransactions stores imported transactions. Rows already present are
// skipped, so re-importing a statement is harmless.
func (s *Store) InsertTransactions(ctx context.Context, rows []domain.TransactionRecord) error {
	importedAt := time.Now().UTC().Format(time.RFC3339)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO transaction_records (id, bank_account_id, date, amount, balance_after, description, imported_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (id) DO NOTHING`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, r := range rows {
			if _, err := stmt.ExecContext(ctx, r.ID, r.BankAccountID, r.Date.String(), r.Amount.String(),
				toNullDecimal(r.BalanceAfter), r.Description, importedAt); err != nil {
				return fmt.Errorf("inserting transaction %s: %w", r.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("InsertTransactions: %w", err)
	}
	return nil
}

// ListTransactionDates returns the distinct transaction dates of an account.
func (s *Store) ListTransactionDates(ctx context.Context, accountID string) ([]civil.Date, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT date FROM transaction_records WHERE bank_account_id = ? ORDER BY date`, accountID)
	if err != nil {
		return nil, fmt.Errorf("ListTransactionDates: %w", err)
	}
	defer rows.Close()

	var out []civil.Date
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("ListTransactionDates: scanning: %w", err)
		}
		d, err := parseDate(raw)
		if err != nil {
			return nil, fmt.Errorf("ListTransactionDates: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// LatestTransactionWithBalance returns the newest transaction on or before
// onOrBefore that carries a running balance.
func (s *Store) LatestTransactionWithBalance(ctx context.Context, accountID string, onOrBefore civil.Date) (*domain.TransactionRecord, error) {
	var (
		r            domain.TransactionRecord
		date, amount string
		balance      sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, bank_account_id, date, amount, balance_after, description FROM transaction_records
		WHERE bank_account_id = ? AND date <= ? AND balance_after IS NOT NULL
		ORDER BY date DESC, imported_at DESC, rowid DESC LIMIT 1`, accountID, onOrBefore.String()).
		Scan(&r.ID, &r.BankAccountID, &date, &amount, &balance, &r.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("LatestTransactionWithBalance: %w", err)
	}
	if r.Date, err = parseDate(date); err != nil {
		return nil, fmt.Errorf("LatestTransactionWithBalance: %w", err)
	}
	if r.Amount, err = parseDecimal(amount); err != nil {
		return nil, fmt.Errorf("LatestTransactionWithBalance: %w", err)
	}
	if r.BalanceAfter, err = parseNullDecimal(balance); err != nil {
		return nil, fmt.Errorf("LatestTransactionWithBalance: %w", err)
	}
	return &r, nil
}
