package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dvloznov/balance-projection/internal/domain"
)

// CreateDecisionPath inserts a decision path. Names are unique.
func (s *Store) CreateDecisionPath(ctx context.Context, path *domain.DecisionPath) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO decision_paths (id, name, description) VALUES (?, ?, ?)`,
		path.ID, path.Name, toNullString(path.Description))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("CreateDecisionPath: name %q: %w", path.Name, domain.ErrConflict)
		}
		return fmt.Errorf("CreateDecisionPath: %w", err)
	}
	return nil
}

// GetDecisionPath returns one decision path.
func (s *Store) GetDecisionPath(ctx context.Context, pathID string) (*domain.DecisionPath, error) {
	var (
		p    domain.DecisionPath
		desc sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, description FROM decision_paths WHERE id = ?`, pathID).Scan(&p.ID, &p.Name, &desc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound("decision path", pathID)
	}
	if err != nil {
		return nil, fmt.Errorf("GetDecisionPath: %w", err)
	}
	p.Description = nullString(desc)
	return &p, nil
}

// ListDecisionPaths returns every decision path by name.
func (s *Store) ListDecisionPaths(ctx context.Context) ([]domain.DecisionPath, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, description FROM decision_paths ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("ListDecisionPaths: %w", err)
	}
	defer rows.Close()

	var out []domain.DecisionPath
	for rows.Next() {
		var (
			p    domain.DecisionPath
			desc sql.NullString
		)
		if err := rows.Scan(&p.ID, &p.Name, &desc); err != nil {
			return nil, fmt.Errorf("ListDecisionPaths: scanning: %w", err)
		}
		p.Description = nullString(desc)
		out = append(out, p)
	}
	return out, rows.Err()
}

// DeleteDecisionPath removes a path. References on events and rules are
// nulled; scenario pairs for the path are dropped. The returned map holds,
// per account, the date span of the events whose reference was nulled.
func (s *Store) DeleteDecisionPath(ctx context.Context, pathID string) (map[string]domain.DateRange, error) {
	affected := make(map[string]domain.DateRange)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			SELECT bank_account_id, MIN(date), MAX(date) FROM projection_events
			WHERE decision_path_id = ? GROUP BY bank_account_id`, pathID)
		if err != nil {
			return fmt.Errorf("collecting affected spans: %w", err)
		}
		for rows.Next() {
			var acct, lo, hi string
			if err := rows.Scan(&acct, &lo, &hi); err != nil {
				rows.Close()
				return fmt.Errorf("scanning affected span: %w", err)
			}
			start, err := parseDate(lo)
			if err != nil {
				rows.Close()
				return err
			}
			end, err := parseDate(hi)
			if err != nil {
				rows.Close()
				return err
			}
			affected[acct] = domain.DateRange{Start: start, End: end}
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return err
		}
		rows.Close()

		if _, err := tx.ExecContext(ctx,
			`UPDATE projection_events SET decision_path_id = NULL WHERE decision_path_id = ?`, pathID); err != nil {
			return fmt.Errorf("clearing event references: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE recurring_event_rules SET decision_path_id = NULL WHERE decision_path_id = ?`, pathID); err != nil {
			return fmt.Errorf("clearing rule references: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM decision_paths WHERE id = ?`, pathID)
		if err != nil {
			return fmt.Errorf("deleting path: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return domain.NotFound("decision path", pathID)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("DeleteDecisionPath: %w", err)
	}
	return affected, nil
}
