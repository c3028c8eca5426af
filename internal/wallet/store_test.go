package wallet

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/stretchr/testify/require"

	"github.com/thanhnp/chain-funder/internal/keys"
	"github.com/thanhnp/chain-funder/internal/models"
)

var testTime = time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)

const initialWallet = `{
  "phrase": "abandon abandon abandon",
  "primary": {"address": "bc1pprimary", "path": "m/86'/0'/0'/0/0"},
  "funding": {"address": "1Funding", "WIF": "placeholder"}
}`

func newTestStore(t *testing.T, contents string) (*Store, *clock.TestClock) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "wallet.json")
	if contents != "" {
		require.NoError(t, os.WriteFile(path, []byte(contents), 0600))
	}

	clk := clock.NewTestClock(testTime)
	return NewStore(path, clk), clk
}

func backups(t *testing.T, s *Store) []string {
	t.Helper()

	matches, err := filepath.Glob(s.Path() + ".*" + backupSuffix)
	require.NoError(t, err)
	return matches
}

func TestLoadMissingWallet(t *testing.T) {
	s, _ := newTestStore(t, "")

	_, err := s.Load()
	require.ErrorIs(t, err, ErrWalletNotInitialized)

	err = s.ImportEntry("main", models.ImportedEntry{Address: "a", WIF: "w"})
	require.ErrorIs(t, err, ErrWalletNotInitialized)
	require.Empty(t, backups(t, s))
}

func TestImportEntryWritesBackupOfPreviousState(t *testing.T) {
	s, _ := newTestStore(t, initialWallet)

	before, err := os.ReadFile(s.Path())
	require.NoError(t, err)

	entry := models.ImportedEntry{Address: "tb1pxyz", WIF: "cWIF"}
	require.NoError(t, s.ImportEntry("main", entry))

	backup := s.BackupPath(testTime)
	require.Equal(t, []string{backup}, backups(t, s))
	require.True(t, strings.HasSuffix(backup, ".1709294400000.walletbackup"))

	saved, err := os.ReadFile(backup)
	require.NoError(t, err)
	require.Equal(t, before, saved)

	rec, err := s.Load()
	require.NoError(t, err)
	require.Equal(t, entry, rec.Imported["main"])
}

func TestImportEntryPreservesUnknownKeys(t *testing.T) {
	s, _ := newTestStore(t, initialWallet)
	require.NoError(t, s.ImportEntry("main", models.ImportedEntry{Address: "a", WIF: "w"}))

	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)

	var top map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &top))
	require.Contains(t, top, "phrase")
	require.Contains(t, top, "primary")
	require.Contains(t, top, "funding")
	require.Contains(t, top, "imported")

	rec, err := s.Load()
	require.NoError(t, err)

	var primary struct {
		Path string `json:"path"`
	}
	ok, err := rec.Section("primary", &primary)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "m/86'/0'/0'/0/0", primary.Path)
}

func TestImportEntryAliasCollisionLeavesFileUntouched(t *testing.T) {
	s, clk := newTestStore(t, "{}")
	require.NoError(t, s.ImportEntry("main", models.ImportedEntry{Address: "a", WIF: "w"}))

	before, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	backupsBefore := backups(t, s)

	clk.SetTime(testTime.Add(time.Second))
	err = s.ImportEntry("main", models.ImportedEntry{Address: "b", WIF: "x"})

	var exists *AliasExistsError
	require.True(t, errors.As(err, &exists))
	require.Equal(t, "main", exists.Alias)

	after, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	require.Equal(t, before, after)
	require.Equal(t, backupsBefore, backups(t, s))
}

func TestSaveAbortsWhenBackupFails(t *testing.T) {
	s, _ := newTestStore(t, initialWallet)

	// A backup file for the same millisecond already exists.
	require.NoError(t, os.WriteFile(s.BackupPath(testTime), []byte("taken"), 0600))

	before, err := os.ReadFile(s.Path())
	require.NoError(t, err)

	err = s.ImportEntry("main", models.ImportedEntry{Address: "a", WIF: "w"})
	require.Error(t, err)

	after, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	require.Equal(t, before, after)
}

func TestImporterScenarios(t *testing.T) {
	params := &chaincfg.TestNet3Params
	s, clk := newTestStore(t, "{}")
	imp := NewImporter(s, keys.NewImporter(params))

	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	wif, err := btcutil.NewWIF(priv, params, true)
	require.NoError(t, err)

	// Import a WIF under "main".
	entry, err := imp.ImportWIF(wif.String(), "main")
	require.NoError(t, err)

	taproot, err := keys.TaprootAddress(priv.PubKey(), params)
	require.NoError(t, err)

	rec, err := s.Load()
	require.NoError(t, err)
	require.Equal(t, taproot.EncodeAddress(), rec.Imported["main"].Address)
	require.Equal(t, wif.String(), rec.Imported["main"].WIF)
	require.Equal(t, *entry, rec.Imported["main"])

	// Import a raw hex key under "cold".
	clk.SetTime(testTime.Add(time.Second))
	cold, err := imp.ImportPrivateKey(strings.Repeat("0", 63)+"7", "cold")
	require.NoError(t, err)

	rec, err = s.Load()
	require.NoError(t, err)
	got := rec.Imported["cold"]
	require.Equal(t, *cold, got)
	require.Equal(t, got.LegacyAddress, got.Address)
	require.NotEmpty(t, got.SegwitAddress)
	require.NotEmpty(t, got.SegwitWrappedAddress)

	// Importing "main" again fails and changes nothing.
	before, err := os.ReadFile(s.Path())
	require.NoError(t, err)

	clk.SetTime(testTime.Add(2 * time.Second))
	_, err = imp.ImportPrivateKey(strings.Repeat("0", 63)+"9", "main")
	var exists *AliasExistsError
	require.True(t, errors.As(err, &exists))

	after, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	require.Equal(t, before, after)
	require.Len(t, backups(t, s), 2)

	// Stored keys can be used for signing.
	signing, err := imp.SigningKey("cold")
	require.NoError(t, err)
	legacy, err := keys.LegacyAddress(signing.PrivKey.PubKey(), params)
	require.NoError(t, err)
	require.Equal(t, got.LegacyAddress, legacy.EncodeAddress())
}

func TestImporterRejectsBadSecretWithoutWriting(t *testing.T) {
	s, _ := newTestStore(t, "{}")
	imp := NewImporter(s, keys.NewImporter(&chaincfg.MainNetParams))

	_, err := imp.ImportPrivateKey("nope", "main")
	var invalid *keys.InvalidSecretError
	require.True(t, errors.As(err, &invalid))
	require.Empty(t, backups(t, s))

	_, err = imp.ImportWIF("nope", "main")
	require.True(t, errors.As(err, &invalid))
	require.Empty(t, backups(t, s))
}

func TestSigningKeyFromFundingSection(t *testing.T) {
	params := &chaincfg.MainNetParams
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	wif, err := btcutil.NewWIF(priv, params, true)
	require.NoError(t, err)

	s, _ := newTestStore(t, `{"funding": {"address": "x", "WIF": "`+wif.String()+`"}}`)
	imp := NewImporter(s, keys.NewImporter(params))

	got, err := imp.SigningKey("")
	require.NoError(t, err)
	require.True(t, got.PrivKey.PubKey().IsEqual(priv.PubKey()))

	_, err = imp.SigningKey("missing")
	require.Error(t, err)
}

func TestImportEntryPreservesUnknownEntryKeys(t *testing.T) {
	s, _ := newTestStore(t, `{
  "imported": {
    "old": {"address": "1Old", "WIF": "w", "label": "cold storage", "createdAt": 1700000000}
  }
}`)
	require.NoError(t, s.ImportEntry("main", models.ImportedEntry{Address: "a", WIF: "w"}))

	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)

	var top struct {
		Imported map[string]map[string]json.RawMessage `json:"imported"`
	}
	require.NoError(t, json.Unmarshal(data, &top))
	require.JSONEq(t, `"cold storage"`, string(top.Imported["old"]["label"]))
	require.JSONEq(t, `1700000000`, string(top.Imported["old"]["createdAt"]))
	require.JSONEq(t, `"1Old"`, string(top.Imported["old"]["address"]))
	require.NotContains(t, top.Imported["main"], "label")

	rec, err := s.Load()
	require.NoError(t, err)
	old := rec.Imported["old"]
	require.Equal(t, "1Old", old.Address)
	label, ok := old.Extra("label")
	require.True(t, ok)
	require.JSONEq(t, `"cold storage"`, string(label))

	_, ok = rec.Imported["main"].Extra("label")
	require.False(t, ok)
}
