package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dvloznov/balance-projection/internal/domain"
)

// DefaultScenarioSetID is the id of the scenario set created on first use.
const DefaultScenarioSetID = "default"

// CreateScenarioSet inserts a set and its path pairs. A set created as the
// default takes that role from the previous default.
func (s *Store) CreateScenarioSet(ctx context.Context, set *domain.ScenarioSet) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if set.IsDefault {
			if _, err := tx.ExecContext(ctx,
				`UPDATE scenario_sets SET is_default = 0 WHERE is_default = 1`); err != nil {
				return err
			}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO scenario_sets (id, name, description, is_default) VALUES (?, ?, ?, ?)`,
			set.ID, set.Name, set.Description, boolToInt(set.IsDefault)); err != nil {
			return err
		}
		return writePaths(ctx, tx, set.ID, set.Paths)
	})
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("CreateScenarioSet: name %q: %w", set.Name, domain.ErrConflict)
		}
		return fmt.Errorf("CreateScenarioSet: %w", err)
	}
	return nil
}

// GetScenarioSet returns a set with its stored path pairs.
func (s *Store) GetScenarioSet(ctx context.Context, setID string) (*domain.ScenarioSet, error) {
	set, err := s.getScenarioSet(ctx, `SELECT id, name, description, is_default FROM scenario_sets WHERE id = ?`, setID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound("scenario set", setID)
	}
	if err != nil {
		return nil, fmt.Errorf("GetScenarioSet: %w", err)
	}
	return set, nil
}

// GetDefaultScenarioSet returns the default set, creating an empty one when
// the database has none.
func (s *Store) GetDefaultScenarioSet(ctx context.Context) (*domain.ScenarioSet, error) {
	set, err := s.getScenarioSet(ctx, `SELECT id, name, description, is_default FROM scenario_sets WHERE is_default = 1`)
	if err == nil {
		return set, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("GetDefaultScenarioSet: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO scenario_sets (id, name, description, is_default)
		VALUES (?, 'Default', 'All decision paths enabled', 1)
		ON CONFLICT (id) DO UPDATE SET is_default = 1`, DefaultScenarioSetID); err != nil {
		return nil, fmt.Errorf("GetDefaultScenarioSet: creating default: %w", err)
	}
	return s.GetScenarioSet(ctx, DefaultScenarioSetID)
}

// ListScenarioSets returns every set by name.
func (s *Store) ListScenarioSets(ctx context.Context) ([]domain.ScenarioSet, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, description, is_default FROM scenario_sets ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("ListScenarioSets: %w", err)
	}
	var sets []domain.ScenarioSet
	for rows.Next() {
		set, err := scanScenarioSet(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("ListScenarioSets: scanning: %w", err)
		}
		sets = append(sets, *set)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("ListScenarioSets: %w", err)
	}
	rows.Close()

	for i := range sets {
		if sets[i].Paths, err = s.loadPaths(ctx, sets[i].ID); err != nil {
			return nil, fmt.Errorf("ListScenarioSets: %w", err)
		}
	}
	return sets, nil
}

// SetScenarioPaths replaces a set's stored pairs.
func (s *Store) SetScenarioPaths(ctx context.Context, setID string, paths map[string]bool) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM scenario_sets WHERE id = ?`, setID).Scan(&exists); err != nil {
			return err
		}
		if exists == 0 {
			return domain.NotFound("scenario set", setID)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM scenario_set_paths WHERE scenario_set_id = ?`, setID); err != nil {
			return err
		}
		return writePaths(ctx, tx, setID, paths)
	})
	if err != nil {
		return fmt.Errorf("SetScenarioPaths: %w", err)
	}
	return nil
}

// MakeDefault moves the default flag to setID.
func (s *Store) MakeDefault(ctx context.Context, setID string) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `UPDATE scenario_sets SET is_default = 0 WHERE is_default = 1`); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `UPDATE scenario_sets SET is_default = 1 WHERE id = ?`, setID)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return domain.NotFound("scenario set", setID)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("MakeDefault: %w", err)
	}
	return nil
}

// DeleteScenarioSet deletes a non-default set.
func (s *Store) DeleteScenarioSet(ctx context.Context, setID string) error {
	set, err := s.GetScenarioSet(ctx, setID)
	if err != nil {
		return fmt.Errorf("DeleteScenarioSet: %w", err)
	}
	if set.IsDefault {
		return domain.Invalid("scenario_set_id", "the default scenario set cannot be deleted")
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM scenario_sets WHERE id = ?`, setID); err != nil {
		return fmt.Errorf("DeleteScenarioSet: %w", err)
	}
	return nil
}

func (s *Store) getScenarioSet(ctx context.Context, query string, args ...any) (*domain.ScenarioSet, error) {
	set, err := scanScenarioSet(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, err
	}
	if set.Paths, err = s.loadPaths(ctx, set.ID); err != nil {
		return nil, err
	}
	return set, nil
}

func (s *Store) loadPaths(ctx context.Context, setID string) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT decision_path_id, enabled FROM scenario_set_paths WHERE scenario_set_id = ?`, setID)
	if err != nil {
		return nil, fmt.Errorf("loading paths of %s: %w", setID, err)
	}
	defer rows.Close()

	paths := make(map[string]bool)
	for rows.Next() {
		var (
			id      string
			enabled int
		)
		if err := rows.Scan(&id, &enabled); err != nil {
			return nil, err
		}
		paths[id] = enabled != 0
	}
	return paths, rows.Err()
}

func writePaths(ctx context.Context, tx *sql.Tx, setID string, paths map[string]bool) error {
	for pathID, enabled := range paths {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO scenario_set_paths (scenario_set_id, decision_path_id, enabled) VALUES (?, ?, ?)`,
			setID, pathID, boolToInt(enabled)); err != nil {
			return fmt.Errorf("storing path %s: %w", pathID, err)
		}
	}
	return nil
}

func scanScenarioSet(rs rowScanner) (*domain.ScenarioSet, error) {
	var (
		set       domain.ScenarioSet
		isDefault int
	)
	if err := rs.Scan(&set.ID, &set.Name, &set.Description, &isDefault); err != nil {
		return nil, err
	}
	set.IsDefault = isDefault != 0
	return &set, nil
}
