package models

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
)

// UTXO represents an unspent transaction output
type UTXO struct {
	TxID        string         `json:"txid"`
	OutputIndex uint32         `json:"vout"`
	Value       btcutil.Amount `json:"value"` // in satoshis
	Address     string         `json:"address,omitempty"`

	// RawTx is the serialized parent transaction. It is only set once the
	// UTXO has been validated against the chain.
	RawTx []byte `json:"-"`
	// ParentTx is RawTx decoded.
	ParentTx *wire.MsgTx `json:"-"`
}

// Validated reports whether the parent transaction has been attached
func (u *UTXO) Validated() bool {
	return u.ParentTx != nil
}

// PrevOut returns the parent output this UTXO refers to, or nil when the
// UTXO is not validated or the index is out of range.
func (u *UTXO) PrevOut() *wire.TxOut {
	if u.ParentTx == nil || int(u.OutputIndex) >= len(u.ParentTx.TxOut) {
		return nil
	}
	return u.ParentTx.TxOut[u.OutputIndex]
}
