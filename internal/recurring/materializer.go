// Package recurring expands recurring event rules into dated occurrences and
// plans point-in-time revisions of a rule chain.
package recurring

import (
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"

	"github.com/dvloznov/balance-projection/internal/domain"
)

// MaxOccurrences caps how many events a single rule may generate.
const MaxOccurrences = 20000

// Occurrences returns every date from start to end inclusive at freq.
// Month-based frequencies are computed from the start date rather than from
// the previous occurrence, so short months never shift later dates.
func Occurrences(start, end civil.Date, freq domain.Frequency) ([]civil.Date, error) {
	if !freq.Valid() {
		return nil, domain.Invalid("frequency", fmt.Sprintf("unknown frequency %q", freq))
	}
	if end.Before(start) {
		return nil, domain.Invalid("end_date", "must not be before start_date")
	}

	var dates []civil.Date
	for n := 0; ; n++ {
		d := nth(start, freq, n)
		if d.After(end) {
			break
		}
		if len(dates) == MaxOccurrences {
			return nil, domain.Invalid("end_date", fmt.Sprintf("rule would generate more than %d events", MaxOccurrences))
		}
		dates = append(dates, d)
	}
	return dates, nil
}

func nth(start civil.Date, freq domain.Frequency, n int) civil.Date {
	switch freq {
	case domain.FrequencyDaily:
		return start.AddDays(n)
	case domain.FrequencyWeekly:
		return start.AddDays(7 * n)
	case domain.FrequencyMonthly:
		return domain.AddMonthsClamped(start, n)
	case domain.FrequencyQuarterly:
		return domain.AddMonthsClamped(start, 3*n)
	case domain.FrequencyBiannual:
		return domain.AddMonthsClamped(start, 6*n)
	default: // annual
		return domain.AddMonthsClamped(start, 12*n)
	}
}

// Generate materializes the events of a rule over its whole span. Event ids
// are derived from the rule id and date, so regenerating a rule yields the
// same ids.
func Generate(rule domain.RecurringEventRule) ([]domain.ProjectionEvent, error) {
	if rule.ID == "" {
		return nil, domain.Invalid("id", "rule must have an id before generating events")
	}
	dates, err := Occurrences(rule.StartDate, rule.EndDate, rule.Frequency)
	if err != nil {
		return nil, err
	}

	events := make([]domain.ProjectionEvent, 0, len(dates))
	for _, d := range dates {
		ruleID := rule.ID
		events = append(events, domain.ProjectionEvent{
			ID:              OccurrenceID(rule.ID, d),
			BankAccountID:   rule.BankAccountID,
			Date:            d,
			Value:           rule.Value,
			Direction:       rule.Direction,
			Certainty:       rule.Certainty,
			Description:     rule.Description,
			DecisionPathID:  copyID(rule.DecisionPathID),
			RecurringRuleID: &ruleID,
		})
	}
	return events, nil
}

// OccurrenceID is the deterministic id of a rule's occurrence on d.
func OccurrenceID(ruleID string, d civil.Date) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("occurrence:"+ruleID+":"+d.String())).String()
}

func copyID(id *string) *string {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
