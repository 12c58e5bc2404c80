package domain

import "github.com/shopspring/decimal"

// Validate checks the invariants of a projection event.
func (e ProjectionEvent) Validate() error {
	if e.BankAccountID == "" {
		return Invalid("bank_account_id", "is required")
	}
	if !e.Date.IsValid() {
		return Invalid("date", "must be a valid date")
	}
	if err := validateValue(e.Value); err != nil {
		return err
	}
	if !e.Direction.Valid() {
		return Invalid("direction", "must be EXPENSE or INCOMING")
	}
	if !e.Certainty.Valid() {
		return Invalid("certainty", "must be UNLIKELY, POSSIBLE, LIKELY or CERTAIN")
	}
	return nil
}

// Validate checks the invariants of a recurring rule as created or updated
// by a user. Truncated revision targets are checked by the materializer.
func (r RecurringEventRule) Validate() error {
	if err := r.validateFields(); err != nil {
		return err
	}
	if !r.StartDate.Before(r.EndDate) {
		return Invalid("start_date", "must be before end_date")
	}
	return nil
}

// ValidateChainMember checks a member of a revision chain being edited. A
// revision dated the day after a member's start leaves that member a single
// day long, so start may equal end.
func (r RecurringEventRule) ValidateChainMember() error {
	if err := r.validateFields(); err != nil {
		return err
	}
	if r.EndDate.Before(r.StartDate) {
		return Invalid("start_date", "must not be after end_date")
	}
	return nil
}

func (r RecurringEventRule) validateFields() error {
	if r.BankAccountID == "" {
		return Invalid("bank_account_id", "is required")
	}
	if err := validateValue(r.Value); err != nil {
		return err
	}
	if !r.Direction.Valid() {
		return Invalid("direction", "must be EXPENSE or INCOMING")
	}
	if !r.Certainty.Valid() {
		return Invalid("certainty", "must be UNLIKELY, POSSIBLE, LIKELY or CERTAIN")
	}
	if !r.Frequency.Valid() {
		return Invalid("frequency", "must be DAILY, WEEKLY, MONTHLY, QUARTERLY, BIANNUAL or ANNUAL")
	}
	if !r.StartDate.IsValid() || !r.EndDate.IsValid() {
		return Invalid("start_date", "start_date and end_date must be valid dates")
	}
	return nil
}

func validateValue(v decimal.Decimal) error {
	if !v.IsPositive() {
		return Invalid("value", "must be greater than zero")
	}
	return CheckAmount("value", v)
}
