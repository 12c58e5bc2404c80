package scenario

import "github.com/dvloznov/balance-projection/internal/domain"

// Resolve materializes the enabled set of a scenario against the current
// list of decision paths. Paths the set has no stored pair for default to
// enabled, so saved scenarios stay valid as new paths appear. The default
// scenario enables every path.
func Resolve(set domain.ScenarioSet, paths []domain.DecisionPath) EnabledSet {
	enabled := make(EnabledSet, len(paths))
	for _, p := range paths {
		if set.IsDefault {
			enabled[p.ID] = struct{}{}
			continue
		}
		on, stored := set.Paths[p.ID]
		if !stored || on {
			enabled[p.ID] = struct{}{}
		}
	}
	return enabled
}
