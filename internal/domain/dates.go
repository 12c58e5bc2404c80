package domain

import (
	"time"

	"cloud.google.com/go/civil"
)

// DateRange is an inclusive range of calendar dates.
type DateRange struct {
	Start civil.Date `json:"start"`
	End   civil.Date `json:"end"`
}

// NewDateRange validates and returns the range [start, end].
func NewDateRange(start, end civil.Date) (DateRange, error) {
	if !start.IsValid() {
		return DateRange{}, Invalid("start", "must be a valid date")
	}
	if !end.IsValid() {
		return DateRange{}, Invalid("end", "must be a valid date")
	}
	if start.After(end) {
		return DateRange{}, Invalid("start", "must not be after end")
	}
	return DateRange{Start: start, End: end}, nil
}

// Days returns the number of dates in the range.
func (r DateRange) Days() int {
	return r.End.DaysSince(r.Start) + 1
}

// Contains reports whether d falls inside the range.
func (r DateRange) Contains(d civil.Date) bool {
	return !d.Before(r.Start) && !d.After(r.End)
}

// Each calls fn for every date in the range in order.
func (r DateRange) Each(fn func(civil.Date)) {
	for d := r.Start; !d.After(r.End); d = d.AddDays(1) {
		fn(d)
	}
}

// AddMonthsClamped adds n months to d, clamping the day to the length of the
// target month, so Jan 31 + 1 month is Feb 28 (or 29) rather than early March.
func AddMonthsClamped(d civil.Date, n int) civil.Date {
	total := int(d.Month) - 1 + n
	year := d.Year + total/12
	month := total % 12
	if month < 0 {
		month += 12
		year--
	}
	out := civil.Date{Year: year, Month: time.Month(month + 1), Day: d.Day}
	if last := DaysInMonth(out.Year, out.Month); out.Day > last {
		out.Day = last
	}
	return out
}

// DaysInMonth returns the number of days in the given month.
func DaysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// MinDate returns the earlier of a and b.
func MinDate(a, b civil.Date) civil.Date {
	if a.Before(b) {
		return a
	}
	return b
}

// MaxDate returns the later of a and b.
func MaxDate(a, b civil.Date) civil.Date {
	if a.After(b) {
		return a
	}
	return b
}

// Today returns the current date in UTC.
func Today() civil.Date {
	return civil.DateOf(time.Now().UTC())
}
