package domain

import "time"

// FeeStatus is the payment status recorded on a fee.
type FeeStatus string

// Fee statuses. None means no fine was owed.
const (
	FeeStatusNone   FeeStatus = "none"
	FeeStatusPaid   FeeStatus = "paid"
	FeeStatusUnpaid FeeStatus = "unpaid"
)

// FeeReason explains why the fee record exists.
type FeeReason string

// Fee reasons.
const (
	FeeReasonOverdue FeeReason = "overdue"
	FeeReasonOnTime  FeeReason = "on time"
)

// Fee is the persisted record of a fine's amount and payment status at return
// time. Exactly one fee is created per return event; it is immutable after
// creation.
//
// On partial payment the full fine stays recorded as Amount with status
// unpaid - the debt of record is the fine, not the remaining balance. The
// payment received is kept separately in PaidAmount for audit.
type Fee struct {
	ID         string    `json:"id"`
	LoanID     string    `json:"loan_id"`
	StudentID  string    `json:"student_id"`
	Amount     int64     `json:"amount"`
	PaidAmount int64     `json:"paid_amount"`
	Status     FeeStatus `json:"status"`
	Reason     FeeReason `json:"reason"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewFee builds the fee record for a return event. fine is the computed fine
// at return time and payment the amount tendered; the caller has already
// rejected payments above the fine.
func NewFee(id string, loan *Loan, fine, payment int64, now time.Time) *Fee {
	status := FeeStatusNone
	if fine > 0 {
		if payment >= fine {
			status = FeeStatusPaid
		} else {
			status = FeeStatusUnpaid
		}
	}

	reason := FeeReasonOnTime
	if fine > 0 {
		reason = FeeReasonOverdue
	}

	return &Fee{
		ID:         id,
		LoanID:     loan.ID,
		StudentID:  loan.StudentID,
		Amount:     fine,
		PaidAmount: payment,
		Status:     status,
		Reason:     reason,
		CreatedAt:  now.UTC(),
	}
}

// Outstanding reports whether the fee still represents recorded debt.
func (f *Fee) Outstanding() bool {
	return f.Status == FeeStatusUnpaid
}
