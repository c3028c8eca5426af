package storage

import (
	"fmt"
)

// RawTxStore caches serialized transactions by txid
type RawTxStore struct {
	db      *PebbleDB
	network string
}

// NewRawTxStore creates a new RawTxStore
func NewRawTxStore(db *PebbleDB, network string) *RawTxStore {
	return &RawTxStore{db: db, network: network}
}

// rawTxKey scopes txid to the network
func rawTxKey(network, txid string) []byte {
	return []byte(fmt.Sprintf("%s:%s", network, txid))
}

// Save stores a raw transaction
func (s *RawTxStore) Save(txid string, raw []byte) error {
	return s.db.Put(BucketRawTxs, rawTxKey(s.network, txid), raw)
}

// Get retrieves a raw transaction, or nil if it is not cached
func (s *RawTxStore) Get(txid string) ([]byte, error) {
	return s.db.Get(BucketRawTxs, rawTxKey(s.network, txid))
}

// Delete evicts a raw transaction
func (s *RawTxStore) Delete(txid string) error {
	return s.db.Delete(BucketRawTxs, rawTxKey(s.network, txid))
}
