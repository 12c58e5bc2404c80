// Package scenario decides which projected events count toward a balance
// under a given set of enabled decision paths.
package scenario

import (
	"sort"

	"github.com/dvloznov/balance-projection/internal/domain"
)

// EnabledSet is the set of enabled decision path ids. A nil set means no
// restriction: every event passes the decision path check.
type EnabledSet map[string]struct{}

// NewEnabledSet builds a set from ids. A nil slice yields the unrestricted
// nil set; an empty slice yields a set that enables nothing.
func NewEnabledSet(ids []string) EnabledSet {
	if ids == nil {
		return nil
	}
	set := make(EnabledSet, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// Contains reports whether id is enabled.
func (s EnabledSet) Contains(id string) bool {
	if s == nil {
		return true
	}
	_, ok := s[id]
	return ok
}

// IDs returns the enabled ids in sorted order, or nil for the unrestricted set.
func (s EnabledSet) IDs() []string {
	if s == nil {
		return nil
	}
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Include reports whether an event passes the decision path filter. Events
// without a decision path always pass.
func Include(e domain.ProjectionEvent, enabled EnabledSet) bool {
	return e.DecisionPathID == nil || enabled.Contains(*e.DecisionPathID)
}

// Counts reports whether an event contributes to balance math: it must not
// be UNLIKELY and must pass the decision path filter.
func Counts(e domain.ProjectionEvent, enabled EnabledSet) bool {
	if e.Certainty == domain.CertaintyUnlikely {
		return false
	}
	return Include(e, enabled)
}

// Filter returns the events that count under enabled, preserving order.
func Filter(events []domain.ProjectionEvent, enabled EnabledSet) []domain.ProjectionEvent {
	out := make([]domain.ProjectionEvent, 0, len(events))
	for _, e := range events {
		if Counts(e, enabled) {
			out = append(out, e)
		}
	}
	return out
}
