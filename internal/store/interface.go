// Package store defines the persistence interface for the circulation server.
package store

import (
	"context"
	"time"

	"github.com/openshelf/openshelf-server/internal/domain"
)

// LoanBuilder constructs the loan for one selected copy during allocation.
// It runs inside the allocation transaction; returning an error aborts the
// whole allocation.
type LoanBuilder func(copy *domain.Copy) (*domain.Loan, error)

// FeeBuilder constructs the fee record for a loan being returned. It runs
// inside the return transaction after the loan has been loaded but before any
// state is written; returning an error (e.g. overpayment) aborts the return.
type FeeBuilder func(loan *domain.Loan) (*domain.Fee, error)

// Store defines the interface for all persistence operations.
//
// Both engines guarantee the same semantics:
//
//   - AllocateLoans evaluates availability and claims copies in one atomic
//     unit; concurrent allocations never hand out the same copy, and a caller
//     that loses the race gets ErrInsufficientInventory rather than a short
//     allocation. Copies are claimed oldest-first (creation time, then ID).
//   - CloseLoan sets the return date, frees the copy, and persists the fee in
//     one atomic unit; a second close on the same loan fails with
//     ErrLoanClosed and writes nothing.
type Store interface {
	// Lifecycle
	Close() error

	// Books
	CreateBook(ctx context.Context, book *domain.Book) error
	GetBook(ctx context.Context, id string) (*domain.Book, error)
	UpdateBook(ctx context.Context, book *domain.Book) error
	ListBooks(ctx context.Context) ([]*domain.Book, error)

	// Copies
	CreateCopies(ctx context.Context, copies []*domain.Copy) error
	GetCopy(ctx context.Context, id string) (*domain.Copy, error)
	ListCopies(ctx context.Context, filter CopyFilter, params PaginationParams) (*PaginatedResult[*domain.Copy], error)
	CountAvailableCopies(ctx context.Context, bookID string) (int, error)
	SelectAvailableCopies(ctx context.Context, bookID string, n int) ([]*domain.Copy, error)
	MarkCopyBorrowed(ctx context.Context, copyID string) error
	MarkCopyReturned(ctx context.Context, copyID string) error
	SetCopyCondition(ctx context.Context, copyID string, condition domain.Condition) (*domain.Copy, error)
	DeleteCopy(ctx context.Context, copyID string) error

	// Loans
	GetLoan(ctx context.Context, id string) (*domain.Loan, error)
	ListLoans(ctx context.Context, filter LoanFilter) ([]*domain.Loan, error)
	AllocateLoans(ctx context.Context, bookID string, quantity int, build LoanBuilder) ([]*domain.Loan, error)
	CloseLoan(ctx context.Context, loanID string, returnedAt time.Time, buildFee FeeBuilder) (*domain.Fee, error)

	// Fees
	GetFee(ctx context.Context, id string) (*domain.Fee, error)
	ListFees(ctx context.Context, filter FeeFilter) ([]*domain.Fee, error)
}
