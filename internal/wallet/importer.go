package wallet

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"

	"github.com/thanhnp/chain-funder/internal/keys"
	"github.com/thanhnp/chain-funder/internal/models"
)

// Importer implements the wallet-import commands on top of a Store
type Importer struct {
	store *Store
	keys  *keys.Importer
}

// NewImporter creates a new Importer
func NewImporter(store *Store, keyImporter *keys.Importer) *Importer {
	return &Importer{
		store: store,
		keys:  keyImporter,
	}
}

// ImportWIF imports a WIF secret under alias as a taproot entry
func (i *Importer) ImportWIF(secret, alias string) (*models.ImportedEntry, error) {
	if err := i.checkAlias(alias); err != nil {
		return nil, err
	}

	res, err := i.keys.ImportFromWIF(secret)
	if err != nil {
		return nil, err
	}

	entry := models.ImportedEntry{
		Address: res.Address,
		WIF:     secret,
	}
	if err := i.store.ImportEntry(alias, entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// ImportPrivateKey imports a raw private key under alias with every
// address encoding. The primary address is the legacy one.
func (i *Importer) ImportPrivateKey(secret, alias string) (*models.ImportedEntry, error) {
	if err := i.checkAlias(alias); err != nil {
		return nil, err
	}

	res, err := i.keys.ImportFromPrivateKey(secret)
	if err != nil {
		return nil, err
	}

	entry := models.ImportedEntry{
		Address:              res.LegacyAddress,
		LegacyAddress:        res.LegacyAddress,
		SegwitAddress:        res.SegwitAddress,
		SegwitWrappedAddress: res.SegwitWrappedAddress,
		WIF:                  res.WIF,
	}
	if err := i.store.ImportEntry(alias, entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// SigningKey returns the key stored under alias, or the wallet's own
// funding key when alias is empty.
func (i *Importer) SigningKey(alias string) (*btcutil.WIF, error) {
	rec, err := i.store.Load()
	if err != nil {
		return nil, err
	}

	var secret string
	if alias == "" {
		var funding models.ImportedEntry
		ok, err := rec.Section(FundingSection, &funding)
		if err != nil {
			return nil, err
		}
		if !ok || funding.WIF == "" {
			return nil, fmt.Errorf("wallet has no %s key", FundingSection)
		}
		secret = funding.WIF
	} else {
		entry, ok := rec.Imported[alias]
		if !ok {
			return nil, fmt.Errorf("wallet alias %s not found", alias)
		}
		secret = entry.WIF
	}

	return keys.DecodeWIF(secret, i.keys.Params())
}

func (i *Importer) checkAlias(alias string) error {
	if alias == "" {
		return fmt.Errorf("alias must not be empty")
	}

	rec, err := i.store.Load()
	if err != nil {
		return err
	}
	if rec.HasAlias(alias) {
		return &AliasExistsError{Alias: alias}
	}
	return nil
}
