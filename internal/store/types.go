package store

import "github.com/openshelf/openshelf-server/internal/domain"

// LoanStatus filters loans by lifecycle state.
type LoanStatus string

// Loan status filters.
const (
	LoanStatusAll    LoanStatus = "all"
	LoanStatusActive LoanStatus = "active"
	LoanStatusClosed LoanStatus = "closed"
)

// CopyFilter narrows copy listings. Zero values mean "no constraint".
type CopyFilter struct {
	BookID    string
	Condition domain.Condition
	Borrowed  *bool
}

// Matches reports whether a copy passes the filter.
func (f CopyFilter) Matches(c *domain.Copy) bool {
	if f.BookID != "" && c.BookID != f.BookID {
		return false
	}
	if f.Condition != "" && c.Condition != f.Condition {
		return false
	}
	if f.Borrowed != nil && c.Borrowed != *f.Borrowed {
		return false
	}
	return true
}

// LoanFilter narrows loan listings. Zero values mean "no constraint";
// an empty Status is treated as LoanStatusAll.
type LoanFilter struct {
	StudentID string
	CopyID    string
	Status    LoanStatus
}

// Matches reports whether a loan passes the filter.
func (f LoanFilter) Matches(l *domain.Loan) bool {
	if f.StudentID != "" && l.StudentID != f.StudentID {
		return false
	}
	if f.CopyID != "" && l.CopyID != f.CopyID {
		return false
	}
	switch f.Status {
	case LoanStatusActive:
		return l.Active()
	case LoanStatusClosed:
		return !l.Active()
	}
	return true
}

// FeeFilter narrows fee listings. Zero values mean "no constraint".
type FeeFilter struct {
	StudentID       string
	OutstandingOnly bool
}

// Matches reports whether a fee passes the filter.
func (f FeeFilter) Matches(fee *domain.Fee) bool {
	if f.StudentID != "" && fee.StudentID != f.StudentID {
		return false
	}
	if f.OutstandingOnly && !fee.Outstanding() {
		return false
	}
	return true
}
