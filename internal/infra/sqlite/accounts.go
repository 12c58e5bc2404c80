package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dvloznov/balance-projection/internal/domain"
)

// CreateAccount inserts a bank account.
func (s *Store) CreateAccount(ctx context.Context, account *domain.BankAccount) error {
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO bank_accounts (id, name, created_at) VALUES (?, ?, ?)`,
		account.ID, account.Name, account.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("CreateAccount: account %q: %w", account.ID, domain.ErrConflict)
		}
		return fmt.Errorf("CreateAccount: %w", err)
	}
	return nil
}

// GetAccount returns one bank account.
func (s *Store) GetAccount(ctx context.Context, accountID string) (*domain.BankAccount, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM bank_accounts WHERE id = ?`, accountID)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound("bank account", accountID)
	}
	if err != nil {
		return nil, fmt.Errorf("GetAccount: %w", err)
	}
	return a, nil
}

// ListAccounts returns every bank account.
func (s *Store) ListAccounts(ctx context.Context) ([]*domain.BankAccount, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, created_at FROM bank_accounts ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("ListAccounts: %w", err)
	}
	defer rows.Close()

	var out []*domain.BankAccount
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("ListAccounts: scanning: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanAccount(rs rowScanner) (*domain.BankAccount, error) {
	var (
		a       domain.BankAccount
		created string
	)
	if err := rs.Scan(&a.ID, &a.Name, &created); err != nil {
		return nil, err
	}
	t, err := time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at %q: %w", created, err)
	}
	a.CreatedAt = t
	return &a, nil
}
