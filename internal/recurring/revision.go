package recurring

import (
	"fmt"
	"sort"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/balance-projection/internal/domain"
)

// RevisionSpec is the caller's amendment to a rule chain from
// RevisionStartDate onwards. Empty Description, Frequency and Certainty
// inherit from the revised rule; DecisionPathID is taken as given.
type RevisionSpec struct {
	RevisionStartDate civil.Date       `json:"revision_start_date"`
	Value             decimal.Decimal  `json:"value"`
	Description       string           `json:"description,omitempty"`
	Frequency         domain.Frequency `json:"frequency,omitempty"`
	Certainty         domain.Certainty `json:"certainty,omitempty"`
	DecisionPathID    *string          `json:"decision_path_id,omitempty"`
}

// RevisionPlan is everything the store must apply atomically to split a
// chain member at RevisionStartDate.
type RevisionPlan struct {
	// Target is the revised rule with its end truncated to the day before
	// the revision starts.
	Target domain.RecurringEventRule
	// Revision is the new rule taking over the tail of Target's old span.
	Revision domain.RecurringEventRule
	// RevisionEvents are the generated events of Revision.
	RevisionEvents []domain.ProjectionEvent
	// DeleteFrom is the first date whose Target events must be removed.
	DeleteFrom civil.Date
	// Root is the lineage root, marked as the base rule.
	Root domain.RecurringEventRule
}

// PlanRevision validates spec against the chain and plans the split. chain
// holds every rule sharing a lineage; newID is the id for the revision.
//
// The revised rule is the chain member whose span has RevisionStartDate
// strictly inside it. Its new end is RevisionStartDate - 1 day, inclusive,
// so no date carries events from two members of the chain.
func PlanRevision(chain []domain.RecurringEventRule, spec RevisionSpec, newID string) (RevisionPlan, error) {
	if len(chain) == 0 {
		return RevisionPlan{}, domain.Invalid("base_rule_id", "rule chain is empty")
	}
	if !spec.RevisionStartDate.IsValid() {
		return RevisionPlan{}, domain.Invalid("revision_start_date", "must be a valid date")
	}

	// The root may have been deleted; its revisions keep the lineage id.
	rootID := chain[0].LineageID()
	root, hasRoot := findRoot(chain)

	d := spec.RevisionStartDate
	var target *domain.RecurringEventRule
	for i := range chain {
		r := chain[i]
		if r.StartDate.Before(d) && d.Before(r.EndDate) {
			target = &chain[i]
			break
		}
	}
	if target == nil {
		return RevisionPlan{}, domain.Invalid("revision_start_date",
			fmt.Sprintf("%s must fall strictly inside the span of a rule in the chain", d))
	}

	revision := domain.RecurringEventRule{
		ID:             newID,
		BankAccountID:  target.BankAccountID,
		Value:          spec.Value,
		Direction:      target.Direction,
		Certainty:      target.Certainty,
		Description:    target.Description,
		DecisionPathID: copyID(spec.DecisionPathID),
		StartDate:      d,
		EndDate:        target.EndDate,
		Frequency:      target.Frequency,
		IsBaseRule:     false,
		BaseRuleID:     &rootID,
	}
	if spec.Description != "" {
		revision.Description = spec.Description
	}
	if spec.Frequency != "" {
		revision.Frequency = spec.Frequency
	}
	if spec.Certainty != "" {
		revision.Certainty = spec.Certainty
	}
	if err := revision.Validate(); err != nil {
		return RevisionPlan{}, err
	}

	truncated := *target
	truncated.EndDate = d.AddDays(-1)
	switch {
	case !hasRoot:
		root = truncated
	case truncated.ID == root.ID:
		truncated.IsBaseRule = true
		truncated.BaseRuleID = &rootID
		root = truncated
	default:
		root.IsBaseRule = true
		root.BaseRuleID = &rootID
	}

	events, err := Generate(revision)
	if err != nil {
		return RevisionPlan{}, err
	}

	return RevisionPlan{
		Target:         truncated,
		Revision:       revision,
		RevisionEvents: events,
		DeleteFrom:     d,
		Root:           root,
	}, nil
}

// CheckNoOverlap verifies that updated, a member of chain, does not share
// any date with another member after an edit.
func CheckNoOverlap(chain []domain.RecurringEventRule, updated domain.RecurringEventRule) error {
	for _, r := range chain {
		if r.ID == updated.ID {
			continue
		}
		if !updated.EndDate.Before(r.StartDate) && !r.EndDate.Before(updated.StartDate) {
			return domain.Invalid("start_date",
				fmt.Sprintf("span %s..%s overlaps rule %s in the same chain", updated.StartDate, updated.EndDate, r.ID))
		}
	}
	return nil
}

// SortChain orders a chain by start date.
func SortChain(chain []domain.RecurringEventRule) {
	sort.Slice(chain, func(i, j int) bool {
		return chain[i].StartDate.Before(chain[j].StartDate)
	})
}

func findRoot(chain []domain.RecurringEventRule) (domain.RecurringEventRule, bool) {
	lineage := chain[0].LineageID()
	for _, r := range chain {
		if r.ID == lineage {
			return r, true
		}
	}
	return domain.RecurringEventRule{}, false
}
