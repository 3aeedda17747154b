package billing

import "time"

// DetermineStatus derives the invoice status from the stored total, the sum
// of completed payments, and the due date. Priority order is fixed:
// fully paid beats overdue beats partially paid beats pending.
//
// today is captured once per operation so a batch reconciliation cannot
// straddle midnight; comparisons are at date precision in UTC.
func DetermineStatus(totalCents, paidCents int64, dueDate *time.Time, today time.Time) string {
	if paidCents >= totalCents {
		return StatusPaid
	}
	if dueDate != nil && truncateDay(*dueDate).Before(truncateDay(today)) {
		return StatusOverdue
	}
	if paidCents > 0 {
		return StatusPartiallyPaid
	}
	return StatusPending
}

// RemainingBalance is the derived amount owed, floored at zero so an
// overpaid invoice never reports a negative balance.
func RemainingBalance(totalCents, paidCents int64) int64 {
	if paidCents >= totalCents {
		return 0
	}
	return totalCents - paidCents
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
