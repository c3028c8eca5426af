package storage

// Stores holds every store backed by one database
type Stores struct {
	DB         *PebbleDB
	RawTxs     *RawTxStore
	Broadcasts *BroadcastStore
}

// Open opens the database at path and creates the stores for network
func Open(path, network string) (*Stores, error) {
	db, err := NewPebbleDB(path)
	if err != nil {
		return nil, err
	}

	return &Stores{
		DB:         db,
		RawTxs:     NewRawTxStore(db, network),
		Broadcasts: NewBroadcastStore(db, network),
	}, nil
}

// Close closes the database
func (s *Stores) Close() error {
	return s.DB.Close()
}
