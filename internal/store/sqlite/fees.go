package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/openshelf/openshelf-server/internal/domain"
	"github.com/openshelf/openshelf-server/internal/store"
)

const feeColumns = `id, loan_id, student_id, amount, paid_amount, status, reason, created_at`

// scanFee scans a fee row from either *sql.Row or *sql.Rows.
func scanFee(scanner interface{ Scan(dest ...any) error }) (*domain.Fee, error) {
	var f domain.Fee
	var status, reason, createdAt string

	err := scanner.Scan(&f.ID, &f.LoanID, &f.StudentID, &f.Amount, &f.PaidAmount,
		&status, &reason, &createdAt)
	if err != nil {
		return nil, err
	}

	f.Status = domain.FeeStatus(status)
	f.Reason = domain.FeeReason(reason)
	if f.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}

	return &f, nil
}

// insertFee persists a fee inside an existing transaction.
func insertFee(ctx context.Context, tx *sql.Tx, fee *domain.Fee) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO fees (`+feeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, fee.ID, fee.LoanID, fee.StudentID, fee.Amount, fee.PaidAmount,
		string(fee.Status), string(fee.Reason), formatTime(fee.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert fee: %w", err)
	}
	return nil
}

// GetFee retrieves a fee by ID.
func (s *Store) GetFee(ctx context.Context, id string) (*domain.Fee, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+feeColumns+` FROM fees WHERE id = ?
	`, id)

	fee, err := scanFee(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrFeeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query fee: %w", err)
	}
	return fee, nil
}

// ListFees returns fees matching the filter, most recent first.
func (s *Store) ListFees(ctx context.Context, filter store.FeeFilter) ([]*domain.Fee, error) {
	var conds []string
	var args []any

	if filter.StudentID != "" {
		conds = append(conds, "student_id = ?")
		args = append(args, filter.StudentID)
	}
	if filter.OutstandingOnly {
		conds = append(conds, "status = ?")
		args = append(args, string(domain.FeeStatusUnpaid))
	}

	query := `SELECT ` + feeColumns + ` FROM fees`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query fees: %w", err)
	}
	defer rows.Close()

	var fees []*domain.Fee
	for rows.Next() {
		fee, err := scanFee(rows)
		if err != nil {
			return nil, fmt.Errorf("scan fee: %w", err)
		}
		fees = append(fees, fee)
	}
	return fees, rows.Err()
}
