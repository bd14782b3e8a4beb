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

// CreateCopies inserts a batch of copies in one transaction.
func (s *Store) CreateCopies(ctx context.Context, copies []*domain.Copy) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(copies) == 0 {
		return nil
	}

	return s.update(func(txn *badger.Txn) error {
		for _, c := range copies {
			key := copyPrefix + c.ID
			ok, err := exists(txn, key)
			if err != nil {
				return err
			}
			if ok {
				return store.ErrAlreadyExists
			}
			if err := setJSON(txn, key, c); err != nil {
				return err
			}
			if err := txn.Set([]byte(copyBookIndexKey(c.BookID, c.ID)), []byte(c.ID)); err != nil {
				return fmt.Errorf("set copy index: %w", err)
			}
		}
		return nil
	})
}

// GetCopy retrieves a copy by ID.
func (s *Store) GetCopy(ctx context.Context, id string) (*domain.Copy, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var c domain.Copy
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, copyPrefix+id, &c, store.ErrCopyNotFound)
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// copiesForBook loads all copies of a book via the secondary index, inside
// an existing transaction.
func copiesForBook(txn *badger.Txn, bookID string) ([]*domain.Copy, error) {
	prefix := copyBookPrefix + bookID + ":"
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefix)
	it := txn.NewIterator(opts)
	defer it.Close()

	var copies []*domain.Copy
	for it.Rewind(); it.Valid(); it.Next() {
		var copyID string
		err := it.Item().Value(func(val []byte) error {
			copyID = string(val)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("read copy index: %w", err)
		}

		var c domain.Copy
		if err := getJSON(txn, copyPrefix+copyID, &c, store.ErrCopyNotFound); err != nil {
			return nil, err
		}
		copies = append(copies, &c)
	}
	return copies, nil
}

// allCopies loads every copy, inside an existing transaction.
func allCopies(txn *badger.Txn) ([]*domain.Copy, error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(copyPrefix)
	it := txn.NewIterator(opts)
	defer it.Close()

	var copies []*domain.Copy
	for it.Rewind(); it.Valid(); it.Next() {
		var c domain.Copy
		err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &c)
		})
		if err != nil {
			return nil, fmt.Errorf("unmarshal copy: %w", err)
		}
		copies = append(copies, &c)
	}
	return copies, nil
}

// sortCopiesOldestFirst orders copies by creation time, then ID.
func sortCopiesOldestFirst(copies []*domain.Copy) {
	slices.SortFunc(copies, func(a, b *domain.Copy) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}

// ListCopies returns copies matching the filter, newest first, with cursor
// pagination. The cursor encodes the created_at and id of the last row seen.
func (s *Store) ListCopies(ctx context.Context, filter store.CopyFilter, params store.PaginationParams) (*store.PaginatedResult[*domain.Copy], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	params.Validate()

	var copies []*domain.Copy
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		if filter.BookID != "" {
			copies, err = copiesForBook(txn, filter.BookID)
		} else {
			copies, err = allCopies(txn)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	matched := copies[:0]
	for _, c := range copies {
		if filter.Matches(c) {
			matched = append(matched, c)
		}
	}

	// Newest first.
	slices.SortFunc(matched, func(a, b *domain.Copy) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})

	if params.Cursor != "" {
		key, err := store.DecodeCursor(params.Cursor)
		if err != nil {
			return nil, err
		}
		createdAt, id, ok := strings.Cut(key, "|")
		if !ok {
			return nil, fmt.Errorf("invalid cursor: %q", key)
		}
		for len(matched) > 0 {
			c := matched[0]
			ts := c.CreatedAt.UTC().Format(timeKeyFormat)
			if ts < createdAt || (ts == createdAt && c.ID < id) {
				break
			}
			matched = matched[1:]
		}
	}

	result := &store.PaginatedResult[*domain.Copy]{Items: matched}
	if len(matched) > params.Limit {
		result.Items = matched[:params.Limit]
		last := result.Items[len(result.Items)-1]
		result.NextCursor = store.EncodeCursor(last.CreatedAt.UTC().Format(timeKeyFormat) + "|" + last.ID)
		result.HasMore = true
	}
	return result, nil
}

// CountAvailableCopies counts copies of a book eligible for allocation.
func (s *Store) CountAvailableCopies(ctx context.Context, bookID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	n := 0
	err := s.db.View(func(txn *badger.Txn) error {
		copies, err := copiesForBook(txn, bookID)
		if err != nil {
			return err
		}
		for _, c := range copies {
			if c.Eligible() {
				n++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// SelectAvailableCopies returns up to n allocatable copies, oldest first.
func (s *Store) SelectAvailableCopies(ctx context.Context, bookID string, n int) ([]*domain.Copy, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var selected []*domain.Copy
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		selected, err = selectAvailable(txn, bookID, n)
		return err
	})
	if err != nil {
		return nil, err
	}
	return selected, nil
}

// selectAvailable picks up to n eligible copies, oldest first, inside an
// existing transaction.
func selectAvailable(txn *badger.Txn, bookID string, n int) ([]*domain.Copy, error) {
	copies, err := copiesForBook(txn, bookID)
	if err != nil {
		return nil, err
	}

	available := copies[:0]
	for _, c := range copies {
		if c.Eligible() {
			available = append(available, c)
		}
	}
	sortCopiesOldestFirst(available)

	if len(available) > n {
		available = available[:n]
	}
	return available, nil
}

// MarkCopyBorrowed flips a copy to borrowed. Fails with ErrCopyBorrowed if it
// already is.
func (s *Store) MarkCopyBorrowed(ctx context.Context, copyID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.update(func(txn *badger.Txn) error {
		return markBorrowed(txn, copyID)
	})
}

// MarkCopyReturned flips a copy back to available. Fails with
// ErrCopyNotBorrowed if it was not out.
func (s *Store) MarkCopyReturned(ctx context.Context, copyID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.update(func(txn *badger.Txn) error {
		return markReturned(txn, copyID)
	})
}

// markBorrowed claims a copy inside an existing transaction.
func markBorrowed(txn *badger.Txn, copyID string) error {
	var c domain.Copy
	if err := getJSON(txn, copyPrefix+copyID, &c, store.ErrCopyNotFound); err != nil {
		return err
	}
	if c.Borrowed {
		return store.ErrCopyBorrowed
	}
	c.Borrowed = true
	return setJSON(txn, copyPrefix+copyID, &c)
}

// markReturned frees a copy inside an existing transaction.
func markReturned(txn *badger.Txn, copyID string) error {
	var c domain.Copy
	if err := getJSON(txn, copyPrefix+copyID, &c, store.ErrCopyNotFound); err != nil {
		return err
	}
	if !c.Borrowed {
		return store.ErrCopyNotBorrowed
	}
	c.Borrowed = false
	return setJSON(txn, copyPrefix+copyID, &c)
}

// SetCopyCondition updates a copy's condition. A borrowed copy can only be
// marked Lost; other transitions must wait for the return.
func (s *Store) SetCopyCondition(ctx context.Context, copyID string, condition domain.Condition) (*domain.Copy, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var updated domain.Copy
	err := s.update(func(txn *badger.Txn) error {
		if err := getJSON(txn, copyPrefix+copyID, &updated, store.ErrCopyNotFound); err != nil {
			return err
		}
		if updated.Borrowed && condition != domain.ConditionLost {
			return store.ErrCopyBorrowed
		}
		updated.Condition = condition
		return setJSON(txn, copyPrefix+copyID, &updated)
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteCopy removes a copy from the registry. Borrowed copies cannot be
// deleted.
func (s *Store) DeleteCopy(ctx context.Context, copyID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.update(func(txn *badger.Txn) error {
		var c domain.Copy
		if err := getJSON(txn, copyPrefix+copyID, &c, store.ErrCopyNotFound); err != nil {
			return err
		}
		if c.Borrowed {
			return store.ErrCopyBorrowed
		}
		if err := txn.Delete([]byte(copyPrefix + copyID)); err != nil {
			return fmt.Errorf("delete copy: %w", err)
		}
		if err := txn.Delete([]byte(copyBookIndexKey(c.BookID, c.ID))); err != nil {
			return fmt.Errorf("delete copy index: %w", err)
		}
		return nil
	})
}
