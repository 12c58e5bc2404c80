package projection

import (
	"context"
	"sort"

	"github.com/dvloznov/balance-projection/internal/domain"
	"github.com/dvloznov/balance-projection/internal/jobs"
	"github.com/dvloznov/balance-projection/internal/scenario"
)

// CreateDecisionPath creates a named decision path.
func (s *Service) CreateDecisionPath(ctx context.Context, name string, description *string) (*domain.DecisionPath, error) {
	if name == "" {
		return nil, domain.Invalid("name", "is required")
	}
	p := &domain.DecisionPath{ID: s.newID(), Name: name, Description: description}
	if err := s.store.CreateDecisionPath(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// GetDecisionPath returns one decision path.
func (s *Service) GetDecisionPath(ctx context.Context, pathID string) (*domain.DecisionPath, error) {
	return s.store.GetDecisionPath(ctx, pathID)
}

// ListDecisionPaths returns every decision path.
func (s *Service) ListDecisionPaths(ctx context.Context) ([]domain.DecisionPath, error) {
	paths, err := s.store.ListDecisionPaths(ctx)
	if err != nil {
		return nil, err
	}
	if paths == nil {
		paths = []domain.DecisionPath{}
	}
	return paths, nil
}

// DeleteDecisionPath deletes a path. Events and rules that referenced it
// keep existing without a path, and every account that had such events is
// recalculated over their span.
func (s *Service) DeleteDecisionPath(ctx context.Context, pathID string) ([]*jobs.RecalculationJob, error) {
	affected, err := s.store.DeleteDecisionPath(ctx, pathID)
	if err != nil {
		return nil, err
	}

	accounts := make([]string, 0, len(affected))
	for acct := range affected {
		accounts = append(accounts, acct)
	}
	sort.Strings(accounts)

	out := make([]*jobs.RecalculationJob, 0, len(accounts))
	for _, acct := range accounts {
		span := affected[acct]
		out = append(out, s.trigger.Invalidate(ctx, acct, span.Start, span.End, "decision_path.delete"))
	}
	return out, nil
}

// ScenarioSetInput is the writable part of a scenario set.
type ScenarioSetInput struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Paths       map[string]bool `json:"paths"`
	IsDefault   bool            `json:"is_default"`
}

// CreateScenarioSet saves a combination of enabled and disabled paths.
func (s *Service) CreateScenarioSet(ctx context.Context, in ScenarioSetInput) (*domain.ScenarioSet, error) {
	if in.Name == "" {
		return nil, domain.Invalid("name", "is required")
	}
	if err := s.requirePaths(ctx, in.Paths); err != nil {
		return nil, err
	}
	set := &domain.ScenarioSet{
		ID:          s.newID(),
		Name:        in.Name,
		Description: in.Description,
		IsDefault:   in.IsDefault,
		Paths:       in.Paths,
	}
	if set.Paths == nil {
		set.Paths = map[string]bool{}
	}
	if err := s.store.CreateScenarioSet(ctx, set); err != nil {
		return nil, err
	}
	return set, nil
}

// GetScenarioSet returns one set with its stored pairs.
func (s *Service) GetScenarioSet(ctx context.Context, setID string) (*domain.ScenarioSet, error) {
	return s.store.GetScenarioSet(ctx, setID)
}

// ListScenarioSets returns every set, creating the default one on first use.
func (s *Service) ListScenarioSets(ctx context.Context) ([]domain.ScenarioSet, error) {
	if _, err := s.store.GetDefaultScenarioSet(ctx); err != nil {
		return nil, err
	}
	return s.store.ListScenarioSets(ctx)
}

// UpdateScenarioPaths replaces the stored pairs of a set.
func (s *Service) UpdateScenarioPaths(ctx context.Context, setID string, paths map[string]bool) (*domain.ScenarioSet, error) {
	if err := s.requirePaths(ctx, paths); err != nil {
		return nil, err
	}
	if err := s.store.SetScenarioPaths(ctx, setID, paths); err != nil {
		return nil, err
	}
	return s.store.GetScenarioSet(ctx, setID)
}

// MakeDefaultScenarioSet moves the default flag to setID.
func (s *Service) MakeDefaultScenarioSet(ctx context.Context, setID string) error {
	return s.store.MakeDefault(ctx, setID)
}

// DeleteScenarioSet deletes a set other than the default one.
func (s *Service) DeleteScenarioSet(ctx context.Context, setID string) error {
	return s.store.DeleteScenarioSet(ctx, setID)
}

// ResolveEnabled turns request input into an enabled set. A scenario set id
// takes precedence over an explicit list; with neither, every path counts.
func (s *Service) ResolveEnabled(ctx context.Context, pathIDs []string, scenarioSetID string) (scenario.EnabledSet, error) {
	if scenarioSetID == "" {
		return scenario.NewEnabledSet(pathIDs), nil
	}
	set, err := s.store.GetScenarioSet(ctx, scenarioSetID)
	if err != nil {
		if isNotFound(err) {
			return nil, domain.Invalid("scenario_set_id", "unknown scenario set "+scenarioSetID)
		}
		return nil, err
	}
	paths, err := s.store.ListDecisionPaths(ctx)
	if err != nil {
		return nil, err
	}
	return scenario.Resolve(*set, paths), nil
}

func (s *Service) requirePaths(ctx context.Context, paths map[string]bool) error {
	for id := range paths {
		if err := s.requireDecisionPath(ctx, &id); err != nil {
			return err
		}
	}
	return nil
}
