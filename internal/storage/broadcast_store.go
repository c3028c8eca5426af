package storage

import (
	"encoding/json"
	"fmt"

	"github.com/thanhnp/chain-funder/internal/models"
)

// BroadcastStore journals transactions the network has accepted
type BroadcastStore struct {
	db      *PebbleDB
	network string
}

// NewBroadcastStore creates a new BroadcastStore
func NewBroadcastStore(db *PebbleDB, network string) *BroadcastStore {
	return &BroadcastStore{db: db, network: network}
}

// broadcastKey scopes txid to the network
func broadcastKey(network, txid string) []byte {
	return []byte(fmt.Sprintf("%s:%s", network, txid))
}

// Record stores a broadcast record
func (s *BroadcastStore) Record(rec *models.BroadcastRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal broadcast record: %w", err)
	}

	return s.db.Put(BucketBroadcasts, broadcastKey(s.network, rec.TxID), data)
}

// Get retrieves the record for txid, or nil if it was never broadcast
func (s *BroadcastStore) Get(txid string) (*models.BroadcastRecord, error) {
	data, err := s.db.Get(BucketBroadcasts, broadcastKey(s.network, txid))
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}

	var rec models.BroadcastRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal broadcast record: %w", err)
	}
	return &rec, nil
}

// List returns every record for the store's network
func (s *BroadcastStore) List() ([]*models.BroadcastRecord, error) {
	var recs []*models.BroadcastRecord
	err := s.db.Scan(BucketBroadcasts, []byte(s.network+":"), func(value []byte) error {
		var rec models.BroadcastRecord
		if err := json.Unmarshal(value, &rec); err != nil {
			return fmt.Errorf("failed to unmarshal broadcast record: %w", err)
		}
		recs = append(recs, &rec)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return recs, nil
}
