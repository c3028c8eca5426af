package wallet

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/lightningnetwork/lnd/clock"

	"github.com/thanhnp/chain-funder/internal/log"
	"github.com/thanhnp/chain-funder/internal/models"
)

// backupSuffix is appended to backup copies of the wallet file.
const backupSuffix = ".walletbackup"

// ErrWalletNotInitialized is returned when the wallet file does not exist
var ErrWalletNotInitialized = errors.New("wallet file does NOT exist, please create one first with wallet-init")

// AliasExistsError is returned when importing under an alias already in use
type AliasExistsError struct {
	Alias string
}

func (e *AliasExistsError) Error() string {
	return fmt.Sprintf("wallet alias %s already exists", e.Alias)
}

// Store persists the wallet record as a JSON file. It is meant for a single
// process; there is no file locking.
type Store struct {
	path  string
	clock clock.Clock
}

// NewStore creates a new Store for the wallet file at path
func NewStore(path string, clk clock.Clock) *Store {
	return &Store{
		path:  path,
		clock: clk,
	}
}

// Path returns the wallet file path
func (s *Store) Path() string {
	return s.path
}

// BackupPath returns the sibling path a backup taken at t is written to
func (s *Store) BackupPath(t time.Time) string {
	return fmt.Sprintf("%s.%d%s", s.path, t.UnixMilli(), backupSuffix)
}

// Load reads the wallet record
func (s *Store) Load() (*Record, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrWalletNotInitialized
		}
		return nil, fmt.Errorf("failed to read wallet file: %w", err)
	}

	rec := NewRecord()
	if err := json.Unmarshal(data, rec); err != nil {
		return nil, fmt.Errorf("failed to parse wallet file: %w", err)
	}

	return rec, nil
}

// Save writes a backup of the current file, then atomically replaces the
// file with rec. If the backup cannot be written the wallet is untouched.
func (s *Store) Save(rec *Record) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode wallet: %w", err)
	}

	if err := s.backup(); err != nil {
		return err
	}

	return writeFileAtomic(s.path, data, 0600)
}

// ImportEntry adds entry under alias and saves the record.
func (s *Store) ImportEntry(alias string, entry models.ImportedEntry) error {
	rec, err := s.Load()
	if err != nil {
		return err
	}
	if rec.HasAlias(alias) {
		return &AliasExistsError{Alias: alias}
	}

	rec.Imported[alias] = entry
	if err := s.Save(rec); err != nil {
		return err
	}

	log.Wallet.Info().Str("alias", alias).Str("address", entry.Address).Msg("Imported wallet entry")
	return nil
}

func (s *Store) backup() error {
	current, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read wallet for backup: %w", err)
	}

	path := s.BackupPath(s.clock.Now())
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to create wallet backup: %w", err)
	}
	if _, err := f.Write(current); err != nil {
		f.Close()
		return fmt.Errorf("failed to write wallet backup: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write wallet backup: %w", err)
	}

	log.Wallet.Debug().Str("path", path).Msg("Wallet backup written")
	return nil
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp wallet file: %w", err)
	}
	tmpName := tmp.Name()

	cleanup := func(err error) error {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}

	if _, err := tmp.Write(data); err != nil {
		return cleanup(fmt.Errorf("failed to write wallet file: %w", err))
	}
	if err := tmp.Sync(); err != nil {
		return cleanup(fmt.Errorf("failed to sync wallet file: %w", err))
	}
	if err := tmp.Chmod(perm); err != nil {
		return cleanup(fmt.Errorf("failed to set wallet file mode: %w", err))
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write wallet file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace wallet file: %w", err)
	}
	return nil
}
