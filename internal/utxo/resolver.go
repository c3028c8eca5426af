// Package utxo selects funding outputs and checks them against the chain.
package utxo

import (
	"context"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"

	"github.com/thanhnp/chain-funder/internal/chain"
	"github.com/thanhnp/chain-funder/internal/log"
	"github.com/thanhnp/chain-funder/internal/models"
)

// TxidMismatchError is returned when a fetched transaction does not hash
// to the id it was requested by.
type TxidMismatchError struct {
	Requested string
	Computed  string
	Err       error // set when the raw bytes did not decode at all
}

func (e *TxidMismatchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("txid mismatch: %s does not decode: %v", e.Requested, e.Err)
	}
	return fmt.Sprintf("txid mismatch: requested %s, got %s", e.Requested, e.Computed)
}

func (e *TxidMismatchError) Unwrap() error {
	return e.Err
}

// NoFundingUTXOError is returned when no output at an address is large enough
type NoFundingUTXOError struct {
	Address  string
	MinValue btcutil.Amount
}

func (e *NoFundingUTXOError) Error() string {
	return fmt.Sprintf("no UTXO of at least %v at %s", e.MinValue, e.Address)
}

// Source is the part of chain.Client the resolver needs
type Source interface {
	GetRawTransaction(ctx context.Context, txid string) ([]byte, error)
	ListUnspent(ctx context.Context, address string) ([]models.UTXO, error)
}

// Resolver selects and validates funding UTXOs
type Resolver struct {
	source Source
}

// NewResolver creates a new Resolver
func NewResolver(source Source) *Resolver {
	return &Resolver{source: source}
}

// SelectFundingUTXO returns the first unspent output at address, in listing
// order, whose value is at least minValue.
func (r *Resolver) SelectFundingUTXO(ctx context.Context, address string, minValue btcutil.Amount) (models.UTXO, error) {
	utxos, err := r.source.ListUnspent(ctx, address)
	if err != nil {
		return models.UTXO{}, fmt.Errorf("failed to list unspent outputs: %w", err)
	}

	u, ok := FirstAtLeast(utxos, minValue)
	if !ok {
		return models.UTXO{}, &NoFundingUTXOError{Address: address, MinValue: minValue}
	}
	return u, nil
}

// SelectValidated selects like SelectFundingUTXO and validates the result.
func (r *Resolver) SelectValidated(ctx context.Context, address string, minValue btcutil.Amount) (models.UTXO, error) {
	u, err := r.SelectFundingUTXO(ctx, address, minValue)
	if err != nil {
		return models.UTXO{}, err
	}
	return r.ValidateUTXO(ctx, u)
}

// ValidateUTXO fetches the parent transaction of u, checks that it hashes
// to u.TxID and attaches it.
func (r *Resolver) ValidateUTXO(ctx context.Context, u models.UTXO) (models.UTXO, error) {
	raw, err := r.source.GetRawTransaction(ctx, u.TxID)
	if err != nil {
		return models.UTXO{}, fmt.Errorf("failed to fetch parent transaction %s: %w", u.TxID, err)
	}

	validated, err := AttachParent(u, raw)
	if err != nil {
		log.Chain.Warn().Err(err).Str("txid", u.TxID).Msg("Rejected parent transaction")
		return models.UTXO{}, err
	}
	return validated, nil
}

// FetchTransaction fetches txid and checks its hash.
func (r *Resolver) FetchTransaction(ctx context.Context, txid string) (*wire.MsgTx, error) {
	raw, err := r.source.GetRawTransaction(ctx, txid)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch transaction %s: %w", txid, err)
	}
	return decodeMatching(txid, raw)
}

// AttachParent checks that raw is the transaction u.TxID and returns u
// with the parent attached.
func AttachParent(u models.UTXO, raw []byte) (models.UTXO, error) {
	tx, err := decodeMatching(u.TxID, raw)
	if err != nil {
		return models.UTXO{}, err
	}
	if int(u.OutputIndex) >= len(tx.TxOut) {
		return models.UTXO{}, fmt.Errorf("transaction %s has no output %d", u.TxID, u.OutputIndex)
	}

	u.RawTx = raw
	u.ParentTx = tx
	return u, nil
}

// FirstAtLeast returns the first entry of utxos worth at least minValue.
func FirstAtLeast(utxos []models.UTXO, minValue btcutil.Amount) (models.UTXO, bool) {
	for _, u := range utxos {
		if u.Value >= minValue {
			return u, true
		}
	}
	return models.UTXO{}, false
}

func decodeMatching(txid string, raw []byte) (*wire.MsgTx, error) {
	tx, err := chain.DecodeTx(raw)
	if err != nil {
		return nil, &TxidMismatchError{Requested: txid, Err: err}
	}

	computed := tx.TxHash().String()
	if computed != txid {
		return nil, &TxidMismatchError{Requested: txid, Computed: computed}
	}
	return tx, nil
}
