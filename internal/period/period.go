// Package period computes budget cycle boundaries from an anchor date and a
// cycle length in days. Cycles are contiguous, non-overlapping, and aligned to
// the anchor regardless of where the reference date falls — including before
// the anchor itself.
package period

import (
	"time"

	apperrors "cycleledger/internal/errors"
)

// Period is one budget cycle. Start and End are inclusive UTC-midnight dates;
// End is always Start + LengthDays - 1 day.
type Period struct {
	Start      time.Time `json:"period_start"`
	End        time.Time `json:"period_end"`
	LengthDays int       `json:"period_length_days"`
}

// Day normalizes t to UTC midnight, the canonical representation for all
// period boundaries and comparisons.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Compute returns the cycle containing reference, shifted by offset whole
// cycles. A negative offset walks into the past, a positive one into the
// future. The reference may be earlier than the anchor; floor division keeps
// the result aligned to the anchor in that case too.
func Compute(anchor time.Time, cycleLengthDays int, reference time.Time, offset int) (Period, error) {
	if cycleLengthDays <= 0 {
		return Period{}, apperrors.ErrInvalidConfiguration
	}

	anchor = Day(anchor)
	reference = Day(reference)

	days := int(reference.Sub(anchor).Hours() / 24)
	k := floorDiv(days, cycleLengthDays)

	start := anchor.AddDate(0, 0, (k+offset)*cycleLengthDays)
	return Period{
		Start:      start,
		End:        start.AddDate(0, 0, cycleLengthDays-1),
		LengthDays: cycleLengthDays,
	}, nil
}

// Contains reports whether t falls within the period, inclusive of both ends.
func (p Period) Contains(t time.Time) bool {
	t = Day(t)
	return !t.Before(p.Start) && !t.After(p.End)
}

// Next returns the immediately following period of the same length.
func (p Period) Next() Period {
	start := p.Start.AddDate(0, 0, p.LengthDays)
	return Period{Start: start, End: start.AddDate(0, 0, p.LengthDays-1), LengthDays: p.LengthDays}
}

// EndExclusive returns the first instant after the period, for half-open
// range queries over timestamped records.
func (p Period) EndExclusive() time.Time {
	return p.Start.AddDate(0, 0, p.LengthDays)
}

// floorDiv divides rounding toward negative infinity, unlike Go's truncating
// integer division.
func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}
