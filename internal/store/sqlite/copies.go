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

const copyColumns = `id, book_id, condition, is_borrowed, created_at`

// scanCopy scans a copy row from either *sql.Row or *sql.Rows.
func scanCopy(scanner interface{ Scan(dest ...any) error }) (*domain.Copy, error) {
	var c domain.Copy
	var condition, createdAt string
	var borrowed int

	err := scanner.Scan(&c.ID, &c.BookID, &condition, &borrowed, &createdAt)
	if err != nil {
		return nil, err
	}

	c.Condition = domain.Condition(condition)
	c.Borrowed = borrowed != 0
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}

	return &c, nil
}

// CreateCopies inserts a batch of copies in one transaction.
func (s *Store) CreateCopies(ctx context.Context, copies []*domain.Copy) error {
	if len(copies) == 0 {
		return nil
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO copies (`+copyColumns+`)
			VALUES (?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("prepare insert copy: %w", err)
		}
		defer stmt.Close()

		for _, c := range copies {
			_, err := stmt.ExecContext(ctx, c.ID, c.BookID, string(c.Condition),
				boolToInt(c.Borrowed), formatTime(c.CreatedAt))
			if err != nil {
				if isUniqueViolation(err) {
					return store.ErrAlreadyExists
				}
				return fmt.Errorf("insert copy %s: %w", c.ID, err)
			}
		}
		return nil
	})
}

// GetCopy retrieves a copy by ID.
func (s *Store) GetCopy(ctx context.Context, id string) (*domain.Copy, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+copyColumns+` FROM copies WHERE id = ?
	`, id)

	c, err := scanCopy(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrCopyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query copy: %w", err)
	}
	return c, nil
}

// ListCopies returns copies matching the filter, newest first, with cursor
// pagination. The cursor encodes the created_at and id of the last row seen.
func (s *Store) ListCopies(ctx context.Context, filter store.CopyFilter, params store.PaginationParams) (*store.PaginatedResult[*domain.Copy], error) {
	params.Validate()

	var conds []string
	var args []any

	if filter.BookID != "" {
		conds = append(conds, "book_id = ?")
		args = append(args, filter.BookID)
	}
	if filter.Condition != "" {
		conds = append(conds, "condition = ?")
		args = append(args, string(filter.Condition))
	}
	if filter.Borrowed != nil {
		conds = append(conds, "is_borrowed = ?")
		args = append(args, boolToInt(*filter.Borrowed))
	}

	if params.Cursor != "" {
		key, err := store.DecodeCursor(params.Cursor)
		if err != nil {
			return nil, err
		}
		createdAt, id, ok := strings.Cut(key, "|")
		if !ok {
			return nil, fmt.Errorf("invalid cursor: %q", key)
		}
		conds = append(conds, "(created_at < ? OR (created_at = ? AND id < ?))")
		args = append(args, createdAt, createdAt, id)
	}

	query := `SELECT ` + copyColumns + ` FROM copies`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, params.Limit+1)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query copies: %w", err)
	}
	defer rows.Close()

	var copies []*domain.Copy
	for rows.Next() {
		c, err := scanCopy(rows)
		if err != nil {
			return nil, fmt.Errorf("scan copy: %w", err)
		}
		copies = append(copies, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	result := &store.PaginatedResult[*domain.Copy]{Items: copies}
	if len(copies) > params.Limit {
		result.Items = copies[:params.Limit]
		last := result.Items[len(result.Items)-1]
		result.NextCursor = store.EncodeCursor(formatTime(last.CreatedAt) + "|" + last.ID)
		result.HasMore = true
	}
	return result, nil
}

// CountAvailableCopies counts copies of a book eligible for allocation.
func (s *Store) CountAvailableCopies(ctx context.Context, bookID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM copies
		WHERE book_id = ? AND condition = ? AND is_borrowed = 0
	`, bookID, string(domain.ConditionGood)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count available copies: %w", err)
	}
	return n, nil
}

// SelectAvailableCopies returns up to n allocatable copies, oldest first.
func (s *Store) SelectAvailableCopies(ctx context.Context, bookID string, n int) ([]*domain.Copy, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+copyColumns+` FROM copies
		WHERE book_id = ? AND condition = ? AND is_borrowed = 0
		ORDER BY created_at, id
		LIMIT ?
	`, bookID, string(domain.ConditionGood), n)
	if err != nil {
		return nil, fmt.Errorf("query available copies: %w", err)
	}
	defer rows.Close()

	var copies []*domain.Copy
	for rows.Next() {
		c, err := scanCopy(rows)
		if err != nil {
			return nil, fmt.Errorf("scan copy: %w", err)
		}
		copies = append(copies, c)
	}
	return copies, rows.Err()
}

// MarkCopyBorrowed flips a copy to borrowed. Fails with ErrCopyBorrowed if it
// already is.
func (s *Store) MarkCopyBorrowed(ctx context.Context, copyID string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return markBorrowed(ctx, tx, copyID)
	})
}

// MarkCopyReturned flips a copy back to available. Fails with
// ErrCopyNotBorrowed if it was not out.
func (s *Store) MarkCopyReturned(ctx context.Context, copyID string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return markReturned(ctx, tx, copyID)
	})
}

// markBorrowed claims a copy inside an existing transaction.
func markBorrowed(ctx context.Context, tx *sql.Tx, copyID string) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE copies SET is_borrowed = 1 WHERE id = ? AND is_borrowed = 0
	`, copyID)
	if err != nil {
		return fmt.Errorf("mark copy borrowed: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return copyStateError(ctx, tx, copyID, store.ErrCopyBorrowed)
	}
	return nil
}

// markReturned frees a copy inside an existing transaction.
func markReturned(ctx context.Context, tx *sql.Tx, copyID string) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE copies SET is_borrowed = 0 WHERE id = ? AND is_borrowed = 1
	`, copyID)
	if err != nil {
		return fmt.Errorf("mark copy returned: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return copyStateError(ctx, tx, copyID, store.ErrCopyNotBorrowed)
	}
	return nil
}

// copyStateError distinguishes a missing copy from one in the wrong state
// after a guarded update matched no rows.
func copyStateError(ctx context.Context, tx *sql.Tx, copyID string, stateErr error) error {
	var exists int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM copies WHERE id = ?`, copyID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrCopyNotFound
	}
	if err != nil {
		return fmt.Errorf("query copy: %w", err)
	}
	return stateErr
}

// SetCopyCondition updates a copy's condition. A borrowed copy can only be
// marked Lost; other transitions must wait for the return.
func (s *Store) SetCopyCondition(ctx context.Context, copyID string, condition domain.Condition) (*domain.Copy, error) {
	var updated *domain.Copy
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			SELECT `+copyColumns+` FROM copies WHERE id = ?
		`, copyID)

		c, err := scanCopy(row)
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrCopyNotFound
		}
		if err != nil {
			return fmt.Errorf("query copy: %w", err)
		}

		if c.Borrowed && condition != domain.ConditionLost {
			return store.ErrCopyBorrowed
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE copies SET condition = ? WHERE id = ?
		`, string(condition), copyID)
		if err != nil {
			return fmt.Errorf("update copy condition: %w", err)
		}

		c.Condition = condition
		updated = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteCopy removes a copy from the registry. Borrowed copies cannot be
// deleted.
func (s *Store) DeleteCopy(ctx context.Context, copyID string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			DELETE FROM copies WHERE id = ? AND is_borrowed = 0
		`, copyID)
		if err != nil {
			return fmt.Errorf("delete copy: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			return copyStateError(ctx, tx, copyID, store.ErrCopyBorrowed)
		}
		return nil
	})
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
