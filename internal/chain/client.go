// Package chain defines the chain-query capability used by the funding
// pipeline and its backends.
package chain

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"

	"github.com/thanhnp/chain-funder/internal/models"
)

var (
	// ErrTxNotFound is returned when a transaction cannot be found.
	ErrTxNotFound = errors.New("transaction not found")

	// ErrNoFeeEstimate is returned when the backend has no usable estimate.
	ErrNoFeeEstimate = errors.New("no fee estimate available")
)

// Client is the chain-query capability.
type Client interface {
	// GetRawTransaction returns the serialized transaction txid.
	GetRawTransaction(ctx context.Context, txid string) ([]byte, error)

	// ListUnspent returns the unspent outputs paying to address in the
	// order the backend lists them.
	ListUnspent(ctx context.Context, address string) ([]models.UTXO, error)

	// EstimateFee returns a fee rate in satoshis per 1000 virtual bytes
	// for confirmation within targetBlocks.
	EstimateFee(ctx context.Context, targetBlocks int) (btcutil.Amount, error)

	// Broadcast submits a serialized transaction and returns its txid.
	Broadcast(ctx context.Context, rawTx []byte) (string, error)
}

// DecodeTx deserializes a raw transaction.
func DecodeTx(raw []byte) (*wire.MsgTx, error) {
	tx := wire.NewMsgTx(wire.TxVersion)
	if err := tx.Deserialize(bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("failed to deserialize tx: %w", err)
	}
	return tx, nil
}

// EncodeTx serializes a transaction.
func EncodeTx(tx *wire.MsgTx) ([]byte, error) {
	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return nil, fmt.Errorf("failed to serialize tx: %w", err)
	}
	return buf.Bytes(), nil
}
