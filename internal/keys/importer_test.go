package keys

import (
	"bytes"
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/require"
)

// keyOne is the private key with scalar value 1.
var keyOne = strings.Repeat("0", 63) + "1"

func TestImportFromPrivateKeyKnownVector(t *testing.T) {
	imp := NewImporter(&chaincfg.MainNetParams)

	res, err := imp.ImportFromPrivateKey(keyOne)
	require.NoError(t, err)

	require.Equal(t, "1BgGZ9tcN4rm9KBzDn7KprQz87SZ26SAMH", res.LegacyAddress)
	require.Equal(t, "bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4", res.SegwitAddress)
	require.Equal(t, "KwDiBf89QgGbjEhKnhXJuH7LrciVrZi3qYjgd9M7rFU73sVHnoWn", res.WIF)
	require.True(t, strings.HasPrefix(res.SegwitWrappedAddress, "3"))
}

func TestImportFromPrivateKeyRoundTrip(t *testing.T) {
	imp := NewImporter(&chaincfg.TestNet3Params)

	for i := 0; i < 8; i++ {
		priv, err := btcec.NewPrivateKey()
		require.NoError(t, err)

		res, err := imp.ImportFromPrivateKey(hex.EncodeToString(priv.Serialize()))
		require.NoError(t, err)
		require.True(t, res.PrivKey.PubKey().IsEqual(priv.PubKey()))

		// Re-deriving from the stored WIF yields the same key and addresses.
		wif, err := DecodeWIF(res.WIF, imp.Params())
		require.NoError(t, err)
		require.True(t, wif.CompressPubKey)
		require.True(t, wif.PrivKey.PubKey().IsEqual(priv.PubKey()))

		again, err := imp.ImportFromPrivateKey(hex.EncodeToString(wif.PrivKey.Serialize()))
		require.NoError(t, err)
		require.Equal(t, res.LegacyAddress, again.LegacyAddress)
		require.Equal(t, res.SegwitAddress, again.SegwitAddress)
		require.Equal(t, res.SegwitWrappedAddress, again.SegwitWrappedAddress)
		require.Equal(t, res.WIF, again.WIF)
	}
}

func TestImportFromPrivateKeyAddressesShareKey(t *testing.T) {
	params := &chaincfg.RegressionNetParams
	imp := NewImporter(params)

	res, err := imp.ImportFromPrivateKey(keyOne)
	require.NoError(t, err)

	hash := btcutil.Hash160(res.PrivKey.PubKey().SerializeCompressed())

	legacy, err := btcutil.DecodeAddress(res.LegacyAddress, params)
	require.NoError(t, err)
	require.Equal(t, hash, legacy.ScriptAddress())

	segwit, err := btcutil.DecodeAddress(res.SegwitAddress, params)
	require.NoError(t, err)
	require.Equal(t, hash, segwit.ScriptAddress())

	redeem, err := WitnessRedeemScript(res.PrivKey.PubKey(), params)
	require.NoError(t, err)
	wrapped, err := btcutil.DecodeAddress(res.SegwitWrappedAddress, params)
	require.NoError(t, err)
	require.Equal(t, btcutil.Hash160(redeem), wrapped.ScriptAddress())
}

func TestImportFromPrivateKeyBase58(t *testing.T) {
	imp := NewImporter(&chaincfg.MainNetParams)

	raw, err := hex.DecodeString(keyOne)
	require.NoError(t, err)

	want, err := imp.ImportFromPrivateKey(keyOne)
	require.NoError(t, err)

	// Raw bytes encoded as base58.
	got, err := imp.ImportFromPrivateKey(base58.Encode(raw))
	require.NoError(t, err)
	require.Equal(t, want.WIF, got.WIF)

	// Hex text encoded as base58 is decoded twice.
	got, err = imp.ImportFromPrivateKey(base58.Encode([]byte(keyOne)))
	require.NoError(t, err)
	require.Equal(t, want.WIF, got.WIF)
}

func TestImportFromPrivateKeyInvalid(t *testing.T) {
	imp := NewImporter(&chaincfg.MainNetParams)

	order := "fffffffffffffffffffffffffffffffebaaedce6af48a03bbfd25e8cd0364141"
	cases := map[string]string{
		"empty":          "",
		"bad hex":        strings.Repeat("zz", 32),
		"zero key":       strings.Repeat("0", 64),
		"curve order":    order,
		"short base58":   base58.Encode([]byte{1, 2, 3}),
		"bad base58":     "0OIl",
		"base58 non hex": base58.Encode(bytes.Repeat([]byte{'x'}, 64)),
	}

	for name, secret := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := imp.ImportFromPrivateKey(secret)
			var invalid *InvalidSecretError
			require.True(t, errors.As(err, &invalid), "got %v", err)
		})
	}
}

func TestImportFromWIF(t *testing.T) {
	params := &chaincfg.TestNet3Params
	imp := NewImporter(params)

	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	wif, err := btcutil.NewWIF(priv, params, true)
	require.NoError(t, err)

	res, err := imp.ImportFromWIF(wif.String())
	require.NoError(t, err)
	require.True(t, res.PrivKey.PubKey().IsEqual(priv.PubKey()))

	addr, err := btcutil.DecodeAddress(res.Address, params)
	require.NoError(t, err)
	_, ok := addr.(*btcutil.AddressTaproot)
	require.True(t, ok)

	// Deterministic for the same key.
	again, err := imp.ImportFromWIF(wif.String())
	require.NoError(t, err)
	require.Equal(t, res.Address, again.Address)
}

func TestImportFromWIFInvalid(t *testing.T) {
	imp := NewImporter(&chaincfg.TestNet3Params)

	_, err := imp.ImportFromWIF("not-a-wif")
	var invalid *InvalidSecretError
	require.True(t, errors.As(err, &invalid))

	// A mainnet WIF is rejected on testnet.
	_, err = imp.ImportFromWIF("KwDiBf89QgGbjEhKnhXJuH7LrciVrZi3qYjgd9M7rFU73sVHnoWn")
	require.True(t, errors.As(err, &invalid))
}

func TestOwnedScriptsCoverEveryType(t *testing.T) {
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	scripts, err := OwnedScripts(priv.PubKey(), &chaincfg.MainNetParams)
	require.NoError(t, err)
	require.Len(t, scripts, 4)

	addr, err := AddressOf(priv.PubKey(), P2TR, &chaincfg.MainNetParams)
	require.NoError(t, err)
	require.Len(t, scripts[P2TR], 34)
	require.True(t, strings.HasPrefix(addr.EncodeAddress(), "bc1p"))

	_, err = AddressOf(priv.PubKey(), "p2wsh", &chaincfg.MainNetParams)
	require.Error(t, err)
}
