// Package badgerdb provides the Badger-backed storage engine for the
// circulation server. Values are stored as JSON under typed key prefixes;
// copies carry a secondary index by book so availability scans stay cheap.
package badgerdb

import (
	"encoding/json/v2"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Key prefixes. Primary records live under "<type>:<id>"; the copy-by-book
// index under "idx:copy:book:<bookID>:<copyID>" with the copy ID as value.
const (
	bookPrefix     = "book:"
	copyPrefix     = "copy:"
	loanPrefix     = "loan:"
	feePrefix      = "fee:"
	copyBookPrefix = "idx:copy:book:"
)

// timeKeyFormat renders timestamps for cursor keys.
const timeKeyFormat = time.RFC3339Nano

// maxTxnRetries bounds retries when Badger's conflict detection aborts a
// read-modify-write transaction.
const maxTxnRetries = 3

// Store wraps a Badger database instance.
type Store struct {
	db     *badger.DB
	logger *slog.Logger
}

// Open creates a new Badger store at the given path.
func Open(path string, logger *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil            // Disable Badger's internal logging
	opts.SyncWrites = true       // Ensure writes are synced to disk to prevent corruption on crashes
	opts.CompactL0OnClose = true // Compact L0 tables on close for faster startup

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db: %w", err)
	}

	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger.Info("Badger database opened", "path", path)

	return &Store{db: db, logger: logger}, nil
}

// Close gracefully closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// update runs fn inside a read-write transaction, retrying on conflicts.
// Badger detects read-write conflicts at commit time; circulation operations
// that raced a concurrent writer re-run against the new state.
func (s *Store) update(fn func(txn *badger.Txn) error) error {
	var err error
	for range maxTxnRetries {
		err = s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}

// getJSON loads and unmarshals the value at key inside txn. Returns notFound
// when the key does not exist.
func getJSON(txn *badger.Txn, key string, dest any, notFound error) error {
	item, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return notFound
	}
	if err != nil {
		return fmt.Errorf("get %s: %w", key, err)
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, dest)
	})
}

// setJSON marshals value and writes it at key inside txn.
func setJSON(txn *badger.Txn, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	if err := txn.Set([]byte(key), data); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// exists reports whether key is present inside txn.
func exists(txn *badger.Txn, key string) (bool, error) {
	_, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get %s: %w", key, err)
	}
	return true, nil
}

func copyBookIndexKey(bookID, copyID string) string {
	return copyBookPrefix + bookID + ":" + copyID
}
