package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/openshelf/openshelf-server/internal/domain"
	"github.com/openshelf/openshelf-server/internal/store"
)

const bookColumns = `id, title, author, isbn, olid, created_at, updated_at`

// scanBook scans a book row from either *sql.Row or *sql.Rows.
func scanBook(scanner interface{ Scan(dest ...any) error }) (*domain.Book, error) {
	var b domain.Book
	var createdAt, updatedAt string

	err := scanner.Scan(&b.ID, &b.Title, &b.Author, &b.ISBN, &b.OLID, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if b.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if b.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}

	return &b, nil
}

// CreateBook inserts a new catalog title.
func (s *Store) CreateBook(ctx context.Context, book *domain.Book) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO books (`+bookColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, book.ID, book.Title, book.Author, book.ISBN, book.OLID,
		formatTime(book.CreatedAt), formatTime(book.UpdatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrAlreadyExists
		}
		return fmt.Errorf("insert book: %w", err)
	}
	return nil
}

// GetBook retrieves a book by ID.
func (s *Store) GetBook(ctx context.Context, id string) (*domain.Book, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+bookColumns+` FROM books WHERE id = ?
	`, id)

	book, err := scanBook(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrBookNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query book: %w", err)
	}
	return book, nil
}

// UpdateBook updates a book's catalog fields.
func (s *Store) UpdateBook(ctx context.Context, book *domain.Book) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE books
		SET title = ?, author = ?, isbn = ?, olid = ?, updated_at = ?
		WHERE id = ?
	`, book.Title, book.Author, book.ISBN, book.OLID,
		formatTime(book.UpdatedAt), book.ID)
	if err != nil {
		return fmt.Errorf("update book: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return store.ErrBookNotFound
	}
	return nil
}

// ListBooks returns all catalog titles ordered by title.
func (s *Store) ListBooks(ctx context.Context) ([]*domain.Book, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+bookColumns+` FROM books ORDER BY title, id
	`)
	if err != nil {
		return nil, fmt.Errorf("query books: %w", err)
	}
	defer rows.Close()

	var books []*domain.Book
	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("scan book: %w", err)
		}
		books = append(books, book)
	}
	return books, rows.Err()
}
