package badgerdb

import (
	"context"
	"encoding/json/v2"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/openshelf/openshelf-server/internal/domain"
	"github.com/openshelf/openshelf-server/internal/store"
)

// GetLoan retrieves a loan by ID.
func (s *Store) GetLoan(ctx context.Context, id string) (*domain.Loan, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var loan domain.Loan
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, loanPrefix+id, &loan, store.ErrLoanNotFound)
	})
	if err != nil {
		return nil, err
	}
	return &loan, nil
}

// ListLoans returns loans matching the filter, most recent first.
func (s *Store) ListLoans(ctx context.Context, filter store.LoanFilter) ([]*domain.Loan, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var loans []*domain.Loan
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(loanPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var loan domain.Loan
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &loan)
			})
			if err != nil {
				return fmt.Errorf("unmarshal loan: %w", err)
			}
			if filter.Matches(&loan) {
				loans = append(loans, &loan)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(loans, func(a, b *domain.Loan) int {
		if c := b.BorrowDate.Compare(a.BorrowDate); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})
	return loans, nil
}

// AllocateLoans claims quantity available copies of a book and records one
// loan per copy, all inside a single transaction. If fewer than quantity
// copies are available the whole allocation fails with
// ErrInsufficientInventory and nothing is claimed.
//
// The copy reads and writes live in one Badger transaction, so two
// allocations racing for the same copies conflict at commit and the loser
// re-runs against the updated availability.
func (s *Store) AllocateLoans(ctx context.Context, bookID string, quantity int, build store.LoanBuilder) ([]*domain.Loan, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var loans []*domain.Loan
	err := s.update(func(txn *badger.Txn) error {
		loans = loans[:0]

		ok, err := exists(txn, bookPrefix+bookID)
		if err != nil {
			return err
		}
		if !ok {
			return store.ErrBookNotFound
		}

		copies, err := selectAvailable(txn, bookID, quantity)
		if err != nil {
			return err
		}
		if len(copies) < quantity {
			return store.ErrInsufficientInventory
		}

		for _, c := range copies {
			loan, err := build(c)
			if err != nil {
				return err
			}
			if err := markBorrowed(txn, c.ID); err != nil {
				return err
			}
			if err := setJSON(txn, loanPrefix+loan.ID, loan); err != nil {
				return err
			}
			loans = append(loans, loan)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return loans, nil
}

// CloseLoan records the return of a loan: it sets the return date, frees the
// copy, and persists the fee built by buildFee, all inside a single
// transaction. A loan that is already closed fails with ErrLoanClosed and
// nothing is written.
func (s *Store) CloseLoan(ctx context.Context, loanID string, returnedAt time.Time, buildFee store.FeeBuilder) (*domain.Fee, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var fee *domain.Fee
	err := s.update(func(txn *badger.Txn) error {
		var loan domain.Loan
		if err := getJSON(txn, loanPrefix+loanID, &loan, store.ErrLoanNotFound); err != nil {
			return err
		}
		if !loan.Active() {
			return store.ErrLoanClosed
		}

		var err error
		fee, err = buildFee(&loan)
		if err != nil {
			return err
		}

		loan.Close(returnedAt)
		if err := setJSON(txn, loanPrefix+loan.ID, &loan); err != nil {
			return err
		}
		if err := markReturned(txn, loan.CopyID); err != nil {
			return err
		}
		return setJSON(txn, feePrefix+fee.ID, fee)
	})
	if err != nil {
		return nil, err
	}
	return fee, nil
}
