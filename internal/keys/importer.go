package keys

import (
	"encoding/hex"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/btcsuite/btcd/chaincfg"
)

// privKeyHexLen is the length of a hex encoded 32 byte private key.
const privKeyHexLen = 64

// WIFImport is the result of importing a WIF secret
type WIFImport struct {
	PrivKey *btcec.PrivateKey
	Address string // P2TR
}

// KeyImport is the result of importing a raw private key
type KeyImport struct {
	PrivKey              *btcec.PrivateKey
	LegacyAddress        string
	SegwitAddress        string
	SegwitWrappedAddress string
	WIF                  string
}

// Importer derives keypairs and addresses for one network
type Importer struct {
	params *chaincfg.Params
}

// NewImporter creates a new Importer
func NewImporter(params *chaincfg.Params) *Importer {
	return &Importer{params: params}
}

// Params returns the network parameters addresses are encoded for
func (i *Importer) Params() *chaincfg.Params {
	return i.params
}

// ImportFromWIF decodes a WIF secret and derives its taproot address.
func (i *Importer) ImportFromWIF(secret string) (*WIFImport, error) {
	wif, err := DecodeWIF(secret, i.params)
	if err != nil {
		return nil, err
	}

	addr, err := TaprootAddress(wif.PrivKey.PubKey(), i.params)
	if err != nil {
		return nil, err
	}

	return &WIFImport{
		PrivKey: wif.PrivKey,
		Address: addr.EncodeAddress(),
	}, nil
}

// ImportFromPrivateKey accepts a 64 character hex key or a base58 encoded
// key and derives the legacy, native segwit and wrapped segwit addresses
// along with the canonical compressed WIF.
func (i *Importer) ImportFromPrivateKey(secret string) (*KeyImport, error) {
	raw, err := decodePrivateKey(secret)
	if err != nil {
		return nil, err
	}

	priv, err := privKeyFromBytes(raw)
	if err != nil {
		return nil, err
	}
	pub := priv.PubKey()

	legacy, err := LegacyAddress(pub, i.params)
	if err != nil {
		return nil, err
	}
	segwit, err := SegwitAddress(pub, i.params)
	if err != nil {
		return nil, err
	}
	wrapped, err := SegwitWrappedAddress(pub, i.params)
	if err != nil {
		return nil, err
	}
	wif, err := btcutil.NewWIF(priv, i.params, true)
	if err != nil {
		return nil, err
	}

	return &KeyImport{
		PrivKey:              priv,
		LegacyAddress:        legacy.EncodeAddress(),
		SegwitAddress:        segwit.EncodeAddress(),
		SegwitWrappedAddress: wrapped.EncodeAddress(),
		WIF:                  wif.String(),
	}, nil
}

// DecodeWIF decodes secret and checks it belongs to params.
func DecodeWIF(secret string, params *chaincfg.Params) (*btcutil.WIF, error) {
	wif, err := btcutil.DecodeWIF(strings.TrimSpace(secret))
	if err != nil {
		return nil, &InvalidSecretError{Reason: "malformed WIF", Err: err}
	}
	if !wif.IsForNet(params) {
		return nil, &InvalidSecretError{Reason: "WIF is not for network " + params.Name}
	}
	return wif, nil
}

// decodePrivateKey returns the 32 raw key bytes. Base58 input that decodes
// to 64 hex characters is hex decoded a second time, matching wallets
// created by earlier tooling that stored keys that way.
func decodePrivateKey(secret string) ([]byte, error) {
	secret = strings.TrimSpace(secret)

	if len(secret) == privKeyHexLen {
		raw, err := hex.DecodeString(secret)
		if err != nil {
			return nil, &InvalidSecretError{Reason: "malformed hex private key", Err: err}
		}
		return raw, nil
	}

	decoded := base58.Decode(secret)
	switch {
	case len(decoded) == 0:
		return nil, &InvalidSecretError{Reason: "malformed base58 private key"}

	case len(decoded) == btcec.PrivKeyBytesLen:
		return decoded, nil

	case len(decoded) == privKeyHexLen:
		raw, err := hex.DecodeString(string(decoded))
		if err != nil {
			return nil, &InvalidSecretError{Reason: "base58 payload is not a key", Err: err}
		}
		return raw, nil

	default:
		return nil, &InvalidSecretError{Reason: "private key must be 32 bytes"}
	}
}

func privKeyFromBytes(raw []byte) (*btcec.PrivateKey, error) {
	if len(raw) != btcec.PrivKeyBytesLen {
		return nil, &InvalidSecretError{Reason: "private key must be 32 bytes"}
	}

	var scalar btcec.ModNScalar
	if overflow := scalar.SetByteSlice(raw); overflow || scalar.IsZero() {
		return nil, &InvalidSecretError{Reason: "private key out of range"}
	}

	priv, _ := btcec.PrivKeyFromBytes(raw)
	return priv, nil
}
