package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dvloznov/balance-projection/internal/domain"
	"github.com/dvloznov/balance-projection/internal/repository"
)

// InsertRuleWithEvents inserts a rule and its generated events atomically.
func (s *Store) InsertRuleWithEvents(ctx context.Context, rule *domain.RecurringEventRule, events []domain.ProjectionEvent) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := insertRule(ctx, tx, rule); err != nil {
			return err
		}
		return insertEvents(ctx, tx, events)
	})
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("InsertRuleWithEvents: rule %q: %w", rule.ID, domain.ErrConflict)
		}
		return fmt.Errorf("InsertRuleWithEvents: %w", err)
	}
	return nil
}

// ReplaceRuleWithEvents updates a rule and swaps its generated events.
func (s *Store) ReplaceRuleWithEvents(ctx context.Context, rule *domain.RecurringEventRule, events []domain.ProjectionEvent) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		n, err := updateRule(ctx, tx, rule)
		if err != nil {
			return err
		}
		if n == 0 {
			return domain.NotFound("recurring rule", rule.ID)
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM projection_events WHERE recurring_rule_id = ?`, rule.ID); err != nil {
			return fmt.Errorf("deleting generated events: %w", err)
		}
		return insertEvents(ctx, tx, events)
	})
	if err != nil {
		return fmt.Errorf("ReplaceRuleWithEvents: %w", err)
	}
	return nil
}

// GetRule returns one rule.
func (s *Store) GetRule(ctx context.Context, ruleID string) (*domain.RecurringEventRule, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+ruleColumns+` FROM recurring_event_rules WHERE id = ?`, ruleID)
	r, err := scanRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound("recurring rule", ruleID)
	}
	if err != nil {
		return nil, fmt.Errorf("GetRule: %w", err)
	}
	return &r, nil
}

// DeleteRule deletes a rule; its generated events go with it via cascade.
func (s *Store) DeleteRule(ctx context.Context, ruleID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM recurring_event_rules WHERE id = ?`, ruleID)
	if err != nil {
		return fmt.Errorf("DeleteRule: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFound("recurring rule", ruleID)
	}
	return nil
}

// ListRules returns an account's rules by start date.
func (s *Store) ListRules(ctx context.Context, accountID string) ([]domain.RecurringEventRule, error) {
	return s.queryRules(ctx, "ListRules", `
		SELECT `+ruleColumns+` FROM recurring_event_rules
		WHERE bank_account_id = ? ORDER BY start_date, id`, accountID)
}

// ListLineage returns the root rule and every revision pointing at it.
func (s *Store) ListLineage(ctx context.Context, rootID string) ([]domain.RecurringEventRule, error) {
	return s.queryRules(ctx, "ListLineage", `
		SELECT `+ruleColumns+` FROM recurring_event_rules
		WHERE id = ? OR base_rule_id = ? ORDER BY start_date, id`, rootID, rootID)
}

// ApplyRevision writes a planned revision in one transaction.
func (s *Store) ApplyRevision(ctx context.Context, plan repository.RevisionWrite) (int, error) {
	var deleted int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if plan.Root.ID != plan.Target.ID {
			if _, err := tx.ExecContext(ctx,
				`UPDATE recurring_event_rules SET is_base_rule = ?, base_rule_id = ? WHERE id = ?`,
				boolToInt(plan.Root.IsBaseRule), toNullString(plan.Root.BaseRuleID), plan.Root.ID); err != nil {
				return fmt.Errorf("marking root rule: %w", err)
			}
		}
		n, err := updateRule(ctx, tx, &plan.Target)
		if err != nil {
			return err
		}
		if n == 0 {
			return domain.NotFound("recurring rule", plan.Target.ID)
		}

		res, err := tx.ExecContext(ctx,
			`DELETE FROM projection_events WHERE recurring_rule_id = ? AND date >= ?`,
			plan.Target.ID, plan.DeleteFrom.String())
		if err != nil {
			return fmt.Errorf("deleting superseded events: %w", err)
		}
		deleted, _ = res.RowsAffected()

		if err := insertRule(ctx, tx, &plan.Revision); err != nil {
			return err
		}
		return insertEvents(ctx, tx, plan.RevisionEvents)
	})
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("ApplyRevision: rule %q: %w", plan.Revision.ID, domain.ErrConflict)
		}
		return 0, fmt.Errorf("ApplyRevision: %w", err)
	}
	return int(deleted), nil
}

func (s *Store) queryRules(ctx context.Context, op, query string, args ...any) ([]domain.RecurringEventRule, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var out []domain.RecurringEventRule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scanning: %w", op, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func insertRule(ctx context.Context, tx *sql.Tx, r *domain.RecurringEventRule) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO recurring_event_rules (`+ruleColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.BankAccountID, r.Value.String(), string(r.Direction), string(r.Certainty), r.Description,
		toNullString(r.DecisionPathID), r.StartDate.String(), r.EndDate.String(), string(r.Frequency),
		boolToInt(r.IsBaseRule), toNullString(r.BaseRuleID))
	if err != nil {
		return fmt.Errorf("inserting rule %s: %w", r.ID, err)
	}
	return nil
}

func updateRule(ctx context.Context, tx *sql.Tx, r *domain.RecurringEventRule) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE recurring_event_rules
		SET value = ?, direction = ?, certainty = ?, description = ?, decision_path_id = ?,
			start_date = ?, end_date = ?, frequency = ?, is_base_rule = ?, base_rule_id = ?
		WHERE id = ?`,
		r.Value.String(), string(r.Direction), string(r.Certainty), r.Description, toNullString(r.DecisionPathID),
		r.StartDate.String(), r.EndDate.String(), string(r.Frequency), boolToInt(r.IsBaseRule),
		toNullString(r.BaseRuleID), r.ID)
	if err != nil {
		return 0, fmt.Errorf("updating rule %s: %w", r.ID, err)
	}
	return res.RowsAffected()
}
