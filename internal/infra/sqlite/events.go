package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"cloud.google.com/go/civil"

	"github.com/dvloznov/balance-projection/internal/domain"
)

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertEvent(ctx context.Context, ex execer, e *domain.ProjectionEvent) error {
	_, err := ex.ExecContext(ctx,
		`INSERT INTO projection_events (`+eventColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.BankAccountID, e.Date.String(), e.Value.String(), string(e.Direction), string(e.Certainty),
		e.Description, toNullString(e.DecisionPathID), toNullString(e.RecurringRuleID))
	return err
}

func insertEvents(ctx context.Context, tx *sql.Tx, events []domain.ProjectionEvent) error {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO projection_events (`+eventColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing event insert: %w", err)
	}
	defer stmt.Close()

	for i := range events {
		e := &events[i]
		if _, err := stmt.ExecContext(ctx,
			e.ID, e.BankAccountID, e.Date.String(), e.Value.String(), string(e.Direction), string(e.Certainty),
			e.Description, toNullString(e.DecisionPathID), toNullString(e.RecurringRuleID)); err != nil {
			return fmt.Errorf("inserting event %s: %w", e.ID, err)
		}
	}
	return nil
}

// InsertEvent inserts a single event.
func (s *Store) InsertEvent(ctx context.Context, event *domain.ProjectionEvent) error {
	if err := insertEvent(ctx, s.db, event); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("InsertEvent: event %q: %w", event.ID, domain.ErrConflict)
		}
		return fmt.Errorf("InsertEvent: %w", err)
	}
	return nil
}

// UpdateEvent overwrites the mutable fields of an event.
func (s *Store) UpdateEvent(ctx context.Context, event *domain.ProjectionEvent) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE projection_events
		SET date = ?, value = ?, direction = ?, certainty = ?, description = ?, decision_path_id = ?
		WHERE id = ?`,
		event.Date.String(), event.Value.String(), string(event.Direction), string(event.Certainty),
		event.Description, toNullString(event.DecisionPathID), event.ID)
	if err != nil {
		return fmt.Errorf("UpdateEvent: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFound("event", event.ID)
	}
	return nil
}

// GetEvent returns one event.
func (s *Store) GetEvent(ctx context.Context, eventID string) (*domain.ProjectionEvent, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM projection_events WHERE id = ?`, eventID)
	e, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound("event", eventID)
	}
	if err != nil {
		return nil, fmt.Errorf("GetEvent: %w", err)
	}
	return &e, nil
}

// DeleteEvent deletes one event.
func (s *Store) DeleteEvent(ctx context.Context, eventID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM projection_events WHERE id = ?`, eventID)
	if err != nil {
		return fmt.Errorf("DeleteEvent: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFound("event", eventID)
	}
	return nil
}

// ListEventsInRange returns the account's events dated within [from, to].
func (s *Store) ListEventsInRange(ctx context.Context, accountID string, from, to civil.Date) ([]domain.ProjectionEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+eventColumns+` FROM projection_events
		WHERE bank_account_id = ? AND date >= ? AND date <= ?
		ORDER BY date, id`,
		accountID, from.String(), to.String())
	if err != nil {
		return nil, fmt.Errorf("ListEventsInRange: %w", err)
	}
	defer rows.Close()

	var out []domain.ProjectionEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("ListEventsInRange: scanning: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// EventBounds returns the first and last event dates of an account.
func (s *Store) EventBounds(ctx context.Context, accountID string) (*domain.DateRange, error) {
	return s.bounds(ctx, "EventBounds",
		`SELECT MIN(date), MAX(date) FROM projection_events WHERE bank_account_id = ?`, accountID)
}

func (s *Store) bounds(ctx context.Context, op, query string, args ...any) (*domain.DateRange, error) {
	var lo, hi sql.NullString
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&lo, &hi); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !lo.Valid || !hi.Valid {
		return nil, nil
	}
	start, err := parseDate(lo.String)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	end, err := parseDate(hi.String)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &domain.DateRange{Start: start, End: end}, nil
}
