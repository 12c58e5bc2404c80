package sqlite

import (
	"database/sql"
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/balance-projection/internal/domain"
)

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func parseDate(s string) (civil.Date, error) {
	d, err := civil.ParseDate(s)
	if err != nil {
		return civil.Date{}, fmt.Errorf("parsing date %q: %w", s, err)
	}
	return d, nil
}

func parseDecimal(s string) (decimal.Decimal, error) {
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing decimal %q: %w", s, err)
	}
	return v, nil
}

func parseNullDecimal(ns sql.NullString) (*decimal.Decimal, error) {
	if !ns.Valid {
		return nil, nil
	}
	v, err := parseDecimal(ns.String)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func toNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func toNullDecimal(v *decimal.Decimal) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: v.String(), Valid: true}
}

const eventColumns = `id, bank_account_id, date, value, direction, certainty, description, decision_path_id, recurring_rule_id`

func scanEvent(rs rowScanner) (domain.ProjectionEvent, error) {
	var (
		e                    domain.ProjectionEvent
		date, value          string
		direction, certainty string
		pathID, ruleID       sql.NullString
	)
	if err := rs.Scan(&e.ID, &e.BankAccountID, &date, &value, &direction, &certainty, &e.Description, &pathID, &ruleID); err != nil {
		return e, err
	}
	var err error
	if e.Date, err = parseDate(date); err != nil {
		return e, err
	}
	if e.Value, err = parseDecimal(value); err != nil {
		return e, err
	}
	e.Direction = domain.Direction(direction)
	e.Certainty = domain.Certainty(certainty)
	e.DecisionPathID = nullString(pathID)
	e.RecurringRuleID = nullString(ruleID)
	return e, nil
}

const ruleColumns = `id, bank_account_id, value, direction, certainty, description, decision_path_id,
	start_date, end_date, frequency, is_base_rule, base_rule_id`

func scanRule(rs rowScanner) (domain.RecurringEventRule, error) {
	var (
		r                         domain.RecurringEventRule
		value, start, end         string
		direction, certainty, frq string
		pathID, baseID            sql.NullString
		isBase                    int
	)
	if err := rs.Scan(&r.ID, &r.BankAccountID, &value, &direction, &certainty, &r.Description, &pathID,
		&start, &end, &frq, &isBase, &baseID); err != nil {
		return r, err
	}
	var err error
	if r.Value, err = parseDecimal(value); err != nil {
		return r, err
	}
	if r.StartDate, err = parseDate(start); err != nil {
		return r, err
	}
	if r.EndDate, err = parseDate(end); err != nil {
		return r, err
	}
	r.Direction = domain.Direction(direction)
	r.Certainty = domain.Certainty(certainty)
	r.Frequency = domain.Frequency(frq)
	r.IsBaseRule = isBase != 0
	r.DecisionPathID = nullString(pathID)
	r.BaseRuleID = nullString(baseID)
	return r, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
