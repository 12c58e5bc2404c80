package projection

import (
	"context"

	"github.com/dvloznov/balance-projection/internal/domain"
	"github.com/dvloznov/balance-projection/internal/jobs"
	"github.com/dvloznov/balance-projection/internal/recurring"
	"github.com/dvloznov/balance-projection/internal/repository"
)

// RuleResult is a mutated rule with the size of its regenerated event set.
type RuleResult struct {
	Rule          *domain.RecurringEventRule `json:"rule"`
	EventsCreated int                        `json:"events_created"`
	Job           *jobs.RecalculationJob     `json:"recalculation"`
}

// RevisionResult reports a point-in-time rule revision.
type RevisionResult struct {
	BaseRule      domain.RecurringEventRule `json:"base_rule"`
	Revision      domain.RecurringEventRule `json:"revision"`
	EventsDeleted int                       `json:"events_deleted"`
	EventsCreated int                       `json:"events_created"`
	Job           *jobs.RecalculationJob    `json:"recalculation"`
}

// CreateRule stores a new base rule with all of its occurrences.
func (s *Service) CreateRule(ctx context.Context, in domain.RecurringEventRule) (*RuleResult, error) {
	in.ID = s.newID()
	in.IsBaseRule = true
	in.BaseRuleID = nil
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if err := s.requireAccount(ctx, in.BankAccountID); err != nil {
		return nil, err
	}
	if err := s.requireDecisionPath(ctx, in.DecisionPathID); err != nil {
		return nil, err
	}

	events, err := recurring.Generate(in)
	if err != nil {
		return nil, err
	}
	if err := s.store.InsertRuleWithEvents(ctx, &in, events); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("rule_id", in.ID).
		Str("bank_account_id", in.BankAccountID).
		Str("frequency", string(in.Frequency)).
		Int("events_created", len(events)).
		Msg("Recurring rule created")

	job := s.trigger.Invalidate(ctx, in.BankAccountID, in.StartDate, in.EndDate, "rule.create")
	return &RuleResult{Rule: &in, EventsCreated: len(events), Job: job}, nil
}

// UpdateRule replaces a rule's definition and regenerates all of its events.
// The new span must not overlap other members of its revision chain. Chain
// members may span a single day; standalone rules may not.
func (s *Service) UpdateRule(ctx context.Context, ruleID string, in domain.RecurringEventRule) (*RuleResult, error) {
	old, err := s.store.GetRule(ctx, ruleID)
	if err != nil {
		return nil, err
	}

	in.ID = old.ID
	in.BankAccountID = old.BankAccountID
	in.IsBaseRule = old.IsBaseRule
	in.BaseRuleID = old.BaseRuleID

	chain, err := s.store.ListLineage(ctx, old.LineageID())
	if err != nil {
		return nil, err
	}
	validate := in.Validate
	if len(chain) > 1 {
		validate = in.ValidateChainMember
	}
	if err := validate(); err != nil {
		return nil, err
	}
	if err := s.requireDecisionPath(ctx, in.DecisionPathID); err != nil {
		return nil, err
	}
	if err := recurring.CheckNoOverlap(chain, in); err != nil {
		return nil, err
	}

	events, err := recurring.Generate(in)
	if err != nil {
		return nil, err
	}
	if err := s.store.ReplaceRuleWithEvents(ctx, &in, events); err != nil {
		return nil, err
	}

	job := s.trigger.Invalidate(ctx, in.BankAccountID,
		domain.MinDate(old.StartDate, in.StartDate), domain.MaxDate(old.EndDate, in.EndDate), "rule.update")
	return &RuleResult{Rule: &in, EventsCreated: len(events), Job: job}, nil
}

// DeleteRule deletes a rule together with its generated events. Other
// members of its revision chain are kept.
func (s *Service) DeleteRule(ctx context.Context, ruleID string) (*jobs.RecalculationJob, error) {
	old, err := s.store.GetRule(ctx, ruleID)
	if err != nil {
		return nil, err
	}
	if err := s.store.DeleteRule(ctx, ruleID); err != nil {
		return nil, err
	}
	return s.trigger.Invalidate(ctx, old.BankAccountID, old.StartDate, old.EndDate, "rule.delete"), nil
}

// GetRule returns one rule.
func (s *Service) GetRule(ctx context.Context, ruleID string) (*domain.RecurringEventRule, error) {
	return s.store.GetRule(ctx, ruleID)
}

// ListRules returns an account's rules.
func (s *Service) ListRules(ctx context.Context, accountID string) ([]domain.RecurringEventRule, error) {
	if _, err := s.store.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}
	rules, err := s.store.ListRules(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if rules == nil {
		rules = []domain.RecurringEventRule{}
	}
	return rules, nil
}

// ListLineage returns the revision chain ruleID belongs to, by start date.
func (s *Service) ListLineage(ctx context.Context, ruleID string) ([]domain.RecurringEventRule, error) {
	rule, err := s.store.GetRule(ctx, ruleID)
	if err != nil {
		return nil, err
	}
	return s.store.ListLineage(ctx, rule.LineageID())
}

// CreateRevisionForRecurringRule splits the chain of baseRuleID at
// spec.RevisionStartDate. baseRuleID may name any member of the chain; the
// member whose span strictly contains the date is the one truncated.
func (s *Service) CreateRevisionForRecurringRule(ctx context.Context, baseRuleID string, spec recurring.RevisionSpec) (*RevisionResult, error) {
	rule, err := s.store.GetRule(ctx, baseRuleID)
	if err != nil {
		return nil, err
	}
	if err := s.requireDecisionPath(ctx, spec.DecisionPathID); err != nil {
		return nil, err
	}

	chain, err := s.store.ListLineage(ctx, rule.LineageID())
	if err != nil {
		return nil, err
	}
	if len(chain) == 0 {
		chain = []domain.RecurringEventRule{*rule}
	}
	recurring.SortChain(chain)

	plan, err := recurring.PlanRevision(chain, spec, s.newID())
	if err != nil {
		return nil, err
	}
	deleted, err := s.store.ApplyRevision(ctx, repository.RevisionWrite{
		Root:           plan.Root,
		Target:         plan.Target,
		Revision:       plan.Revision,
		RevisionEvents: plan.RevisionEvents,
		DeleteFrom:     plan.DeleteFrom,
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("rule_id", plan.Target.ID).
		Str("revision_id", plan.Revision.ID).
		Str("revision_start_date", spec.RevisionStartDate.String()).
		Int("events_deleted", deleted).
		Int("events_created", len(plan.RevisionEvents)).
		Msg("Recurring rule revised")

	job := s.trigger.Invalidate(ctx, plan.Revision.BankAccountID, plan.Revision.StartDate, plan.Revision.EndDate, "rule.revise")
	return &RevisionResult{
		BaseRule:      plan.Target,
		Revision:      plan.Revision,
		EventsDeleted: deleted,
		EventsCreated: len(plan.RevisionEvents),
		Job:           job,
	}, nil
}
