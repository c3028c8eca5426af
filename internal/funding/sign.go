package funding

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/thanhnp/chain-funder/internal/keys"
)

// ErrNotOwned is returned when the funding key cannot spend an input.
var ErrNotOwned = errors.New("funding key does not control the input script")

// attachPrevOut records the parent transaction on input idx. Witness
// programs also get the spent output as witness UTXO.
func attachPrevOut(p *psbt.Packet, idx int, parent *wire.MsgTx) error {
	u, err := psbt.NewUpdater(p)
	if err != nil {
		return err
	}

	if err := u.AddInNonWitnessUtxo(parent, idx); err != nil {
		return fmt.Errorf("failed to attach parent transaction: %w", err)
	}

	prevOut := parent.TxOut[p.UnsignedTx.TxIn[idx].PreviousOutPoint.Index]
	if txscript.IsWitnessProgram(prevOut.PkScript) {
		if err := u.AddInWitnessUtxo(prevOut, idx); err != nil {
			return fmt.Errorf("failed to attach witness output: %w", err)
		}
	}
	return nil
}

// ownerType returns the address type of key that pays to pkScript.
func ownerType(key *btcec.PrivateKey, pkScript []byte, params *chaincfg.Params) (keys.AddressType, error) {
	scripts, err := keys.OwnedScripts(key.PubKey(), params)
	if err != nil {
		return "", err
	}
	for t, script := range scripts {
		if bytes.Equal(script, pkScript) {
			return t, nil
		}
	}
	return "", ErrNotOwned
}

// signInput signs input idx with key. The parent transaction must already
// be attached.
func signInput(p *psbt.Packet, idx int, key *btcec.PrivateKey, params *chaincfg.Params) error {
	in := &p.Inputs[idx]
	if in.NonWitnessUtxo == nil {
		return fmt.Errorf("input %d has no parent transaction", idx)
	}

	outIndex := p.UnsignedTx.TxIn[idx].PreviousOutPoint.Index
	prevOut := in.NonWitnessUtxo.TxOut[outIndex]

	addrType, err := ownerType(key, prevOut.PkScript, params)
	if err != nil {
		return err
	}

	fetcher := txscript.NewCannedPrevOutputFetcher(prevOut.PkScript, prevOut.Value)
	sigHashes := txscript.NewTxSigHashes(p.UnsignedTx, fetcher)
	pub := key.PubKey().SerializeCompressed()

	u, err := psbt.NewUpdater(p)
	if err != nil {
		return err
	}

	switch addrType {
	case keys.P2PKH:
		sig, err := txscript.RawTxInSignature(
			p.UnsignedTx, idx, prevOut.PkScript, txscript.SigHashAll, key,
		)
		if err != nil {
			return err
		}
		_, err = u.Sign(idx, sig, pub, nil, nil)
		return err

	case keys.P2WPKH:
		sig, err := txscript.RawTxInWitnessSignature(
			p.UnsignedTx, sigHashes, idx, prevOut.Value, prevOut.PkScript,
			txscript.SigHashAll, key,
		)
		if err != nil {
			return err
		}
		_, err = u.Sign(idx, sig, pub, nil, nil)
		return err

	case keys.P2SHP2WPKH:
		redeem, err := keys.WitnessRedeemScript(key.PubKey(), params)
		if err != nil {
			return err
		}
		sig, err := txscript.RawTxInWitnessSignature(
			p.UnsignedTx, sigHashes, idx, prevOut.Value, redeem,
			txscript.SigHashAll, key,
		)
		if err != nil {
			return err
		}
		_, err = u.Sign(idx, sig, pub, redeem, nil)
		return err

	case keys.P2TR:
		// Key path only; the output key commits to no script tree.
		sig, err := txscript.RawTxInTaprootSignature(
			p.UnsignedTx, sigHashes, idx, prevOut.Value, prevOut.PkScript,
			[]byte{}, txscript.SigHashDefault, key,
		)
		if err != nil {
			return err
		}
		in.TaprootKeySpendSig = sig
		return nil

	default:
		return fmt.Errorf("unsupported input type %q", addrType)
	}
}

// finalize turns a fully signed packet into a network transaction.
func finalize(p *psbt.Packet) (*wire.MsgTx, error) {
	if err := psbt.MaybeFinalizeAll(p); err != nil {
		return nil, fmt.Errorf("failed to finalize inputs: %w", err)
	}

	tx, err := psbt.Extract(p)
	if err != nil {
		return nil, fmt.Errorf("failed to extract transaction: %w", err)
	}
	return tx, nil
}
