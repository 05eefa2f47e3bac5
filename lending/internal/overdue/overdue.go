// Package overdue holds the pure date arithmetic shared by the lending engines and read views.
package overdue

import (
	"time"

	"github.com/Astemirdum/lending-service/lending/internal/model"
)

const (
	Day = 24 * time.Hour

	// DefaultLoanPeriod is used when a borrow is created without an explicit due date.
	DefaultLoanPeriod = 14 * Day
)

// DueDate returns borrowDate + period, falling back to DefaultLoanPeriod for a non-positive period.
func DueDate(borrowDate time.Time, period time.Duration) time.Time {
	if period <= 0 {
		period = DefaultLoanPeriod
	}
	return borrowDate.Add(period)
}

// IsOverdue is false for returned borrows; otherwise now must be strictly after the due date.
func IsOverdue(b model.Borrow, now time.Time) bool {
	if b.ReturnDate != nil {
		return false
	}
	return now.After(b.DueDate)
}

// DaysOverdue counts whole days elapsed since the due date, measured against now.
func DaysOverdue(b model.Borrow, now time.Time) int {
	if !IsOverdue(b, now) {
		return 0
	}
	return wholeDays(now.Sub(b.DueDate))
}

// Penalty is one point per whole day the return instant lies past the due date.
// Unlike DaysOverdue it is measured against the actual return instant.
func Penalty(dueDate, returnDate time.Time) int {
	if !returnDate.After(dueDate) {
		return 0
	}
	return wholeDays(returnDate.Sub(dueDate))
}

func wholeDays(d time.Duration) int {
	return int(d / Day)
}
