package badgerdb

import (
	"context"
	"encoding/json/v2"
	"fmt"
	"slices"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/openshelf/openshelf-server/internal/domain"
	"github.com/openshelf/openshelf-server/internal/store"
)

// CreateBook inserts a new catalog title.
func (s *Store) CreateBook(ctx context.Context, book *domain.Book) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	key := bookPrefix + book.ID
	return s.update(func(txn *badger.Txn) error {
		ok, err := exists(txn, key)
		if err != nil {
			return err
		}
		if ok {
			return store.ErrAlreadyExists
		}
		return setJSON(txn, key, book)
	})
}

// GetBook retrieves a book by ID.
func (s *Store) GetBook(ctx context.Context, id string) (*domain.Book, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var book domain.Book
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, bookPrefix+id, &book, store.ErrBookNotFound)
	})
	if err != nil {
		return nil, err
	}
	return &book, nil
}

// UpdateBook updates a book's catalog fields.
func (s *Store) UpdateBook(ctx context.Context, book *domain.Book) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	key := bookPrefix + book.ID
	return s.update(func(txn *badger.Txn) error {
		ok, err := exists(txn, key)
		if err != nil {
			return err
		}
		if !ok {
			return store.ErrBookNotFound
		}
		return setJSON(txn, key, book)
	})
}

// ListBooks returns all catalog titles ordered by title.
func (s *Store) ListBooks(ctx context.Context) ([]*domain.Book, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var books []*domain.Book
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(bookPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var book domain.Book
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &book)
			})
			if err != nil {
				return fmt.Errorf("unmarshal book: %w", err)
			}
			books = append(books, &book)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(books, func(a, b *domain.Book) int {
		if c := strings.Compare(a.Title, b.Title); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return books, nil
}
