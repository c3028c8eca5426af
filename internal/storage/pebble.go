package storage

import (
	"errors"
	"fmt"
	"os"

	"github.com/cockroachdb/pebble"
)

// Bucket namespaces keys inside the single pebble keyspace.
type Bucket string

const (
	BucketRawTxs     Bucket = "rtx:"
	BucketBroadcasts Bucket = "bct:"
)

func (b Bucket) key(k []byte) []byte {
	out := make([]byte, 0, len(b)+len(k))
	return append(append(out, b...), k...)
}

// PebbleDB wraps the Pebble database
type PebbleDB struct {
	db *pebble.DB
}

// NewPebbleDB opens (creating if needed) the database under path
func NewPebbleDB(path string) (*PebbleDB, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	cache := pebble.NewCache(8 << 20)
	defer cache.Unref()

	db, err := pebble.Open(path, &pebble.Options{Cache: cache, MaxOpenFiles: 32})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &PebbleDB{db: db}, nil
}

// Close closes the database
func (p *PebbleDB) Close() error {
	return p.db.Close()
}

// Put writes value under key in bucket b, synced to disk.
func (p *PebbleDB) Put(b Bucket, key, value []byte) error {
	return p.db.Set(b.key(key), value, pebble.Sync)
}

// Get reads key from bucket b. A missing key yields nil, nil.
func (p *PebbleDB) Get(b Bucket, key []byte) ([]byte, error) {
	value, closer, err := p.db.Get(b.key(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	return append([]byte(nil), value...), nil
}

// Delete removes key from bucket b
func (p *PebbleDB) Delete(b Bucket, key []byte) error {
	return p.db.Delete(b.key(key), pebble.Sync)
}

// Scan calls fn for every value in bucket b whose key starts with prefix,
// in key order. The value slice is only valid during the call.
func (p *PebbleDB) Scan(b Bucket, prefix []byte, fn func(value []byte) error) error {
	lower := b.key(prefix)
	iter, err := p.db.NewIter(&pebble.IterOptions{
		LowerBound: lower,
		UpperBound: prefixUpperBound(lower),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		if err := fn(iter.Value()); err != nil {
			return err
		}
	}
	return iter.Error()
}

// prefixUpperBound returns the smallest key greater than every key with
// the given prefix, or nil when no such key exists.
func prefixUpperBound(prefix []byte) []byte {
	for i := len(prefix) - 1; i >= 0; i-- {
		if prefix[i] != 0xff {
			upper := append([]byte(nil), prefix[:i+1]...)
			upper[i]++
			return upper
		}
	}
	return nil
}
