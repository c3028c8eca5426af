package models

import (
	"time"
)

// BroadcastRecord is a journal entry for a transaction accepted by the network
type BroadcastRecord struct {
	TxID        string    `json:"txid"`
	FromAddress string    `json:"from_address"`
	ToAddress   string    `json:"to_address"`
	Amount      int64     `json:"amount"` // in satoshis
	Fee         int64     `json:"fee"`
	Attempts    int       `json:"attempts"`
	Timestamp   time.Time `json:"timestamp"`
}

// FundingResult describes the UTXO that satisfied a funding request
type FundingResult struct {
	UTXO UTXO `json:"utxo"`
	// SpendTxID is set when an opportunistic spend was broadcast.
	SpendTxID string `json:"spend_txid,omitempty"`
}
