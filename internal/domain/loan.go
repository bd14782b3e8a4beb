package domain

import "time"

// Loan records one copy borrowed by one student for a bounded period.
//
// Lifecycle: created at allocation time with a nil ReturnDate, mutated exactly
// once by the return flow to set ReturnDate, never deleted. A loan with a
// ReturnDate is closed; closed is terminal.
type Loan struct {
	ID         string     `json:"id"`
	StudentID  string     `json:"student_id"`
	CopyID     string     `json:"copy_id"`
	BorrowDate time.Time  `json:"borrow_date"`
	DueDate    time.Time  `json:"due_date"`
	ReturnDate *time.Time `json:"return_date"`
}

// NewLoan creates an active loan. The borrow date is normalized to a UTC
// calendar day and the due date is borrow + days calendar days, so due dates
// do not drift with the time of day the borrow happened.
func NewLoan(id, studentID, copyID string, borrowedAt time.Time, days int) *Loan {
	borrowDate := DateOf(borrowedAt)
	return &Loan{
		ID:         id,
		StudentID:  studentID,
		CopyID:     copyID,
		BorrowDate: borrowDate,
		DueDate:    borrowDate.AddDate(0, 0, days),
	}
}

// Active reports whether the loan is still open.
func (l *Loan) Active() bool {
	return l.ReturnDate == nil
}

// Overdue reports whether the loan is past due at the given instant.
func (l *Loan) Overdue(now time.Time) bool {
	return LateDays(l.DueDate, now) > 0
}

// Close records the return date. The caller must have checked Active first;
// Close on a closed loan is a programming error and is ignored.
func (l *Loan) Close(returnedAt time.Time) {
	if l.ReturnDate != nil {
		return
	}
	d := DateOf(returnedAt)
	l.ReturnDate = &d
}

// DateOf truncates an instant to its UTC calendar day.
func DateOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
