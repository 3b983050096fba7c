// Package cache provides the local, best-effort key/value cache that keeps a
// copy of the synchronized state on disk between runs.
package cache

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
)

// Cache is a string-keyed byte store. It is best-effort: a failed Get is a
// miss and callers are expected to log and ignore Set errors.
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte) error
}

// Badger is a Cache backed by a badger database.
type Badger struct {
	db     *badger.DB
	logger *slog.Logger
}

// Option configures a Badger cache.
type Option func(*Badger)

// WithLogger sets the logger read failures are reported to.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Badger) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// OpenBadger opens (or creates) a badger cache in dir.
func OpenBadger(dir string, opts ...Option) (*Badger, error) {
	badgerOpts := badger.DefaultOptions(dir).
		WithLogger(nil)
	return open(badgerOpts, opts)
}

// OpenInMemory opens a badger cache that lives only in memory.
func OpenInMemory(opts ...Option) (*Badger, error) {
	badgerOpts := badger.DefaultOptions("").
		WithInMemory(true).
		WithLogger(nil)
	return open(badgerOpts, opts)
}

func open(badgerOpts badger.Options, opts []Option) (*Badger, error) {
	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}
	b := &Badger{
		db:     db,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Get returns the value stored under key. A read failure is logged and
// reported as a miss.
func (b *Badger) Get(key string) ([]byte, bool) {
	value, ok, err := b.Lookup(key)
	if err != nil {
		b.logger.Warn("Cache read failed, treating as miss", "key", key, "error", err)
		return nil, false
	}
	return value, ok
}

// Lookup is Get with read failures kept apart from misses: a missing key
// returns false and a nil error.
func (b *Badger) Lookup(key string) ([]byte, bool, error) {
	var value []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
		return nil, false, nil
	case err != nil:
		return nil, false, fmt.Errorf("failed to read cache key %q: %w", key, err)
	}
	return value, true, nil
}

// Set stores value under key, replacing any previous value.
func (b *Badger) Set(key string, value []byte) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
	if err != nil {
		return fmt.Errorf("failed to write cache key %q: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (b *Badger) Delete(key string) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to delete cache key %q: %w", key, err)
	}
	return nil
}

// Close releases the database.
func (b *Badger) Close() error {
	return b.db.Close()
}
