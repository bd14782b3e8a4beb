package store

import "errors"

// Sentinel errors shared by all storage engines. The service layer maps these
// onto the API error taxonomy; engines must return exactly these values (or
// wrap them) so errors.Is works across the boundary.
var (
	ErrBookNotFound = errors.New("book not found")
	ErrCopyNotFound = errors.New("copy not found")
	ErrLoanNotFound = errors.New("loan not found")
	ErrFeeNotFound  = errors.New("fee not found")

	ErrAlreadyExists = errors.New("resource already exists")

	// ErrCopyBorrowed is returned when marking an already-borrowed copy as
	// borrowed, or deleting a copy that is out on loan.
	ErrCopyBorrowed = errors.New("copy is already borrowed")

	// ErrCopyNotBorrowed is returned when marking an available copy as returned.
	ErrCopyNotBorrowed = errors.New("copy is not borrowed")

	// ErrLoanClosed is returned when closing a loan that already has a return date.
	ErrLoanClosed = errors.New("loan is already closed")

	// ErrInsufficientInventory is returned by AllocateLoans when fewer
	// eligible copies exist than requested at the time the allocation
	// transaction runs.
	ErrInsufficientInventory = errors.New("not enough available copies")
)
