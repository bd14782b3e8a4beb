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

// GetFee retrieves a fee by ID.
func (s *Store) GetFee(ctx context.Context, id string) (*domain.Fee, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var fee domain.Fee
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, feePrefix+id, &fee, store.ErrFeeNotFound)
	})
	if err != nil {
		return nil, err
	}
	return &fee, nil
}

// ListFees returns fees matching the filter, most recent first.
func (s *Store) ListFees(ctx context.Context, filter store.FeeFilter) ([]*domain.Fee, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var fees []*domain.Fee
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(feePrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var fee domain.Fee
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &fee)
			})
			if err != nil {
				return fmt.Errorf("unmarshal fee: %w", err)
			}
			if filter.Matches(&fee) {
				fees = append(fees, &fee)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(fees, func(a, b *domain.Fee) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})
	return fees, nil
}
