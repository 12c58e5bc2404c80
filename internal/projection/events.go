package projection

import (
	"context"

	"cloud.google.com/go/civil"

	"github.com/dvloznov/balance-projection/internal/domain"
	"github.com/dvloznov/balance-projection/internal/jobs"
)

// EventResult is a mutated event with the recalculation it triggered.
type EventResult struct {
	Event *domain.ProjectionEvent `json:"event"`
	Job   *jobs.RecalculationJob  `json:"recalculation"`
}

// CreateEvent stores a user-created one-off event.
func (s *Service) CreateEvent(ctx context.Context, in domain.ProjectionEvent) (*EventResult, error) {
	in.ID = s.newID()
	in.RecurringRuleID = nil
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if err := s.requireAccount(ctx, in.BankAccountID); err != nil {
		return nil, err
	}
	if err := s.requireDecisionPath(ctx, in.DecisionPathID); err != nil {
		return nil, err
	}

	if err := s.store.InsertEvent(ctx, &in); err != nil {
		return nil, err
	}
	job := s.trigger.Invalidate(ctx, in.BankAccountID, in.Date, in.Date, "event.create")
	return &EventResult{Event: &in, Job: job}, nil
}

// UpdateEvent replaces the fields of a user-created event. Events generated
// by a rule change only through their rule.
func (s *Service) UpdateEvent(ctx context.Context, eventID string, in domain.ProjectionEvent) (*EventResult, error) {
	old, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if old.RecurringRuleID != nil {
		return nil, domain.Invalid("recurring_rule_id", "generated events change through their recurring rule")
	}

	in.ID = old.ID
	in.BankAccountID = old.BankAccountID
	in.RecurringRuleID = nil
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if err := s.requireDecisionPath(ctx, in.DecisionPathID); err != nil {
		return nil, err
	}

	if err := s.store.UpdateEvent(ctx, &in); err != nil {
		return nil, err
	}
	job := s.trigger.Invalidate(ctx, in.BankAccountID,
		domain.MinDate(old.Date, in.Date), domain.MaxDate(old.Date, in.Date), "event.update")
	return &EventResult{Event: &in, Job: job}, nil
}

// DeleteEvent deletes one event, user-created or generated.
func (s *Service) DeleteEvent(ctx context.Context, eventID string) (*jobs.RecalculationJob, error) {
	old, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if err := s.store.DeleteEvent(ctx, eventID); err != nil {
		return nil, err
	}
	return s.trigger.Invalidate(ctx, old.BankAccountID, old.Date, old.Date, "event.delete"), nil
}

// GetEvent returns one event.
func (s *Service) GetEvent(ctx context.Context, eventID string) (*domain.ProjectionEvent, error) {
	return s.store.GetEvent(ctx, eventID)
}

// ListEvents returns an account's events within [from, to].
func (s *Service) ListEvents(ctx context.Context, accountID string, from, to civil.Date) ([]domain.ProjectionEvent, error) {
	r, err := domain.NewDateRange(from, to)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}
	events, err := s.store.ListEventsInRange(ctx, accountID, r.Start, r.End)
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []domain.ProjectionEvent{}
	}
	return events, nil
}
