package domain

import "time"

// DefaultFinePerDay is the fine charged per late day when no rate is
// configured, in currency units.
const DefaultFinePerDay int64 = 5000

// LateDays returns how many days past due the loan is at the given instant.
// Any partial day counts as a full late day; an on-time or early return is 0.
//
// Pure function of its inputs - callers pass "now" explicitly so results are
// reproducible.
func LateDays(dueDate, now time.Time) int {
	diff := now.Sub(dueDate)
	if diff <= 0 {
		return 0
	}

	const day = 24 * time.Hour
	days := int(diff / day)
	if diff%day > 0 {
		days++
	}
	return days
}

// Fine returns the monetary fine owed at the given instant: late days times
// the per-day rate. Zero when now is on or before the due date.
func Fine(dueDate, now time.Time, ratePerDay int64) int64 {
	return int64(LateDays(dueDate, now)) * ratePerDay
}
