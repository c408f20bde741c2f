// Package kvindex wraps an embedded ordered key/value store satisfying the
// contract spec.md §6 requires: atomic single-key put/delete, ordered
// iteration, and an atomic monotonic per-store counter. It is backed by
// go.etcd.io/bbolt, whose single-writer Update transactions give the
// single-key atomicity and whose Bucket.NextSequence gives the counter.
package kvindex

import (
	"errors"
	"fmt"

	bolt "go.etcd.io/bbolt"
)

var streamsBucket = []byte("streams")

// Index is an opened embedded KV index.
type Index struct {
	db *bolt.DB
}

// Open opens (creating if absent) the bbolt database at path and ensures
// the streams bucket exists.
func Open(path string) (*Index, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("kvindex: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(streamsBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("kvindex: creating bucket: %w", err)
	}
	return &Index{db: db}, nil
}

// Close closes the underlying database file.
func (idx *Index) Close() error {
	return idx.db.Close()
}

// Get returns a copy of the value stored under key, or (nil, false) if the
// key is absent. The returned slice is a copy: bbolt's own value bytes are
// only valid for the lifetime of the transaction that produced them.
func (idx *Index) Get(key []byte) ([]byte, bool, error) {
	var value []byte
	err := idx.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(streamsBucket).Get(key)
		if v == nil {
			return nil
		}
		value = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("kvindex: get: %w", err)
	}
	return value, value != nil, nil
}

// Put writes key/value atomically.
func (idx *Index) Put(key, value []byte) error {
	err := idx.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(streamsBucket).Put(key, value)
	})
	if err != nil {
		return fmt.Errorf("kvindex: put: %w", err)
	}
	return nil
}

// Delete atomically removes key. Deleting an absent key is not an error.
func (idx *Index) Delete(key []byte) error {
	err := idx.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(streamsBucket).Delete(key)
	})
	if err != nil {
		return fmt.Errorf("kvindex: delete: %w", err)
	}
	return nil
}

// NextSequence atomically allocates and returns the next value of the
// store's monotonic counter, starting at 1 on a fresh store. Never repeats
// within the lifetime of the underlying file, including across crashes.
func (idx *Index) NextSequence() (uint64, error) {
	var seq uint64
	err := idx.db.Update(func(tx *bolt.Tx) error {
		var err error
		seq, err = tx.Bucket(streamsBucket).NextSequence()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("kvindex: next sequence: %w", err)
	}
	return seq, nil
}

// ErrStopIteration is a sentinel fn callers can return from the Each
// callback to stop iteration early without it being reported as an error.
var ErrStopIteration = errors.New("kvindex: stop iteration")

// Each calls fn with a copy of every key/value pair in ascending key order.
// Returning ErrStopIteration from fn stops iteration without propagating an
// error from Each; any other error from fn aborts iteration and is
// returned.
func (idx *Index) Each(fn func(key, value []byte) error) error {
	err := idx.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(streamsBucket).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if err := fn(append([]byte(nil), k...), append([]byte(nil), v...)); err != nil {
				if errors.Is(err, ErrStopIteration) {
					return nil
				}
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("kvindex: iterate: %w", err)
	}
	return nil
}
