package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openshelf/openshelf-server/internal/domain"
	"github.com/openshelf/openshelf-server/internal/store"
)

const loanColumns = `id, student_id, copy_id, borrow_date, due_date, return_date`

// scanLoan scans a loan row from either *sql.Row or *sql.Rows.
func scanLoan(scanner interface{ Scan(dest ...any) error }) (*domain.Loan, error) {
	var l domain.Loan
	var borrowDate, dueDate string
	var returnDate sql.NullString

	err := scanner.Scan(&l.ID, &l.StudentID, &l.CopyID, &borrowDate, &dueDate, &returnDate)
	if err != nil {
		return nil, err
	}

	if l.BorrowDate, err = parseTime(borrowDate); err != nil {
		return nil, fmt.Errorf("parse borrow_date: %w", err)
	}
	if l.DueDate, err = parseTime(dueDate); err != nil {
		return nil, fmt.Errorf("parse due_date: %w", err)
	}
	if l.ReturnDate, err = parseNullableTime(returnDate); err != nil {
		return nil, fmt.Errorf("parse return_date: %w", err)
	}

	return &l, nil
}

// GetLoan retrieves a loan by ID.
func (s *Store) GetLoan(ctx context.Context, id string) (*domain.Loan, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+loanColumns+` FROM loans WHERE id = ?
	`, id)

	loan, err := scanLoan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrLoanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query loan: %w", err)
	}
	return loan, nil
}

// ListLoans returns loans matching the filter, most recent first.
func (s *Store) ListLoans(ctx context.Context, filter store.LoanFilter) ([]*domain.Loan, error) {
	var conds []string
	var args []any

	if filter.StudentID != "" {
		conds = append(conds, "student_id = ?")
		args = append(args, filter.StudentID)
	}
	if filter.CopyID != "" {
		conds = append(conds, "copy_id = ?")
		args = append(args, filter.CopyID)
	}
	switch filter.Status {
	case store.LoanStatusActive:
		conds = append(conds, "return_date IS NULL")
	case store.LoanStatusClosed:
		conds = append(conds, "return_date IS NOT NULL")
	}

	query := `SELECT ` + loanColumns + ` FROM loans`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY borrow_date DESC, id DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query loans: %w", err)
	}
	defer rows.Close()

	var loans []*domain.Loan
	for rows.Next() {
		loan, err := scanLoan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan loan: %w", err)
		}
		loans = append(loans, loan)
	}
	return loans, rows.Err()
}

// AllocateLoans claims quantity available copies of a book and records one
// loan per copy, all inside a single transaction. If fewer than quantity
// copies are available the whole allocation fails with
// ErrInsufficientInventory and nothing is claimed.
//
// Copies are claimed oldest-first so concurrent allocators contend on the
// same rows and the claim-guard below serializes them.
func (s *Store) AllocateLoans(ctx context.Context, bookID string, quantity int, build store.LoanBuilder) ([]*domain.Loan, error) {
	var loans []*domain.Loan

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM books WHERE id = ?`, bookID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrBookNotFound
		}
		if err != nil {
			return fmt.Errorf("query book: %w", err)
		}

		rows, err := tx.QueryContext(ctx, `
			SELECT `+copyColumns+` FROM copies
			WHERE book_id = ? AND condition = ? AND is_borrowed = 0
			ORDER BY created_at, id
			LIMIT ?
		`, bookID, string(domain.ConditionGood), quantity)
		if err != nil {
			return fmt.Errorf("query available copies: %w", err)
		}

		var copies []*domain.Copy
		for rows.Next() {
			c, err := scanCopy(rows)
			if err != nil {
				rows.Close()
				return fmt.Errorf("scan copy: %w", err)
			}
			copies = append(copies, c)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
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

			// The immediate transaction serializes writers, so the
			// selected copies are still free here. A claimed copy
			// still just counts as unavailable.
			if err := markBorrowed(ctx, tx, c.ID); err != nil {
				if errors.Is(err, store.ErrCopyBorrowed) {
					return store.ErrInsufficientInventory
				}
				return err
			}

			_, err = tx.ExecContext(ctx, `
				INSERT INTO loans (`+loanColumns+`)
				VALUES (?, ?, ?, ?, ?, NULL)
			`, loan.ID, loan.StudentID, loan.CopyID,
				formatTime(loan.BorrowDate), formatTime(loan.DueDate))
			if err != nil {
				return fmt.Errorf("insert loan: %w", err)
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
	var fee *domain.Fee

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			SELECT `+loanColumns+` FROM loans WHERE id = ?
		`, loanID)

		loan, err := scanLoan(row)
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrLoanNotFound
		}
		if err != nil {
			return fmt.Errorf("query loan: %w", err)
		}

		if !loan.Active() {
			return store.ErrLoanClosed
		}

		fee, err = buildFee(loan)
		if err != nil {
			return err
		}

		loan.Close(returnedAt)
		_, err = tx.ExecContext(ctx, `
			UPDATE loans SET return_date = ? WHERE id = ?
		`, nullTimeString(loan.ReturnDate), loan.ID)
		if err != nil {
			return fmt.Errorf("update loan: %w", err)
		}

		if err := markReturned(ctx, tx, loan.CopyID); err != nil {
			return err
		}

		return insertFee(ctx, tx, fee)
	})
	if err != nil {
		return nil, err
	}
	return fee, nil
}
