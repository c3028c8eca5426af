package keys

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
)

// AddressType names a standard single-key address encoding
type AddressType string

const (
	P2PKH      AddressType = "p2pkh"
	P2WPKH     AddressType = "p2wpkh"
	P2SHP2WPKH AddressType = "p2sh-p2wpkh"
	P2TR       AddressType = "p2tr"
)

// TaprootAddress returns the key-path-only P2TR address for pub. The output
// key is pub tweaked with an empty script tree.
func TaprootAddress(pub *btcec.PublicKey, params *chaincfg.Params) (*btcutil.AddressTaproot, error) {
	outputKey := txscript.ComputeTaprootKeyNoScript(pub)
	return btcutil.NewAddressTaproot(schnorr.SerializePubKey(outputKey), params)
}

// LegacyAddress returns the P2PKH address of the compressed public key
func LegacyAddress(pub *btcec.PublicKey, params *chaincfg.Params) (*btcutil.AddressPubKeyHash, error) {
	return btcutil.NewAddressPubKeyHash(btcutil.Hash160(pub.SerializeCompressed()), params)
}

// SegwitAddress returns the native P2WPKH address
func SegwitAddress(pub *btcec.PublicKey, params *chaincfg.Params) (*btcutil.AddressWitnessPubKeyHash, error) {
	return btcutil.NewAddressWitnessPubKeyHash(btcutil.Hash160(pub.SerializeCompressed()), params)
}

// SegwitWrappedAddress returns the P2SH address whose redeem script is the
// P2WPKH program of pub.
func SegwitWrappedAddress(pub *btcec.PublicKey, params *chaincfg.Params) (*btcutil.AddressScriptHash, error) {
	redeemScript, err := WitnessRedeemScript(pub, params)
	if err != nil {
		return nil, err
	}
	return btcutil.NewAddressScriptHash(redeemScript, params)
}

// WitnessRedeemScript returns the P2WPKH program used as the redeem script
// of a wrapped segwit output.
func WitnessRedeemScript(pub *btcec.PublicKey, params *chaincfg.Params) ([]byte, error) {
	segwit, err := SegwitAddress(pub, params)
	if err != nil {
		return nil, err
	}
	return txscript.PayToAddrScript(segwit)
}

// AddressOf derives the address of the given type for pub
func AddressOf(pub *btcec.PublicKey, addrType AddressType, params *chaincfg.Params) (btcutil.Address, error) {
	switch addrType {
	case P2PKH:
		return LegacyAddress(pub, params)
	case P2WPKH:
		return SegwitAddress(pub, params)
	case P2SHP2WPKH:
		return SegwitWrappedAddress(pub, params)
	case P2TR:
		return TaprootAddress(pub, params)
	default:
		return nil, fmt.Errorf("unsupported address type %q", addrType)
	}
}

// OwnedScripts returns the output script of every address type for pub,
// keyed by type.
func OwnedScripts(pub *btcec.PublicKey, params *chaincfg.Params) (map[AddressType][]byte, error) {
	scripts := make(map[AddressType][]byte, 4)
	for _, t := range []AddressType{P2PKH, P2WPKH, P2SHP2WPKH, P2TR} {
		addr, err := AddressOf(pub, t, params)
		if err != nil {
			return nil, err
		}
		script, err := txscript.PayToAddrScript(addr)
		if err != nil {
			return nil, err
		}
		scripts[t] = script
	}
	return scripts, nil
}
