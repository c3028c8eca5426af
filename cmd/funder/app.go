package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/lightningnetwork/lnd/clock"
	"golang.org/x/term"

	"github.com/thanhnp/chain-funder/internal/chain"
	"github.com/thanhnp/chain-funder/internal/config"
	"github.com/thanhnp/chain-funder/internal/explorer"
	"github.com/thanhnp/chain-funder/internal/keys"
	"github.com/thanhnp/chain-funder/internal/log"
	"github.com/thanhnp/chain-funder/internal/rpc"
	"github.com/thanhnp/chain-funder/internal/storage"
	"github.com/thanhnp/chain-funder/internal/wallet"
)

// app holds the components shared by the commands
type app struct {
	cfg      *config.Config
	params   *chaincfg.Params
	clock    clock.Clock
	store    *wallet.Store
	importer *wallet.Importer

	stores *storage.Stores
	chain  chain.Client
	closer func()
}

// newApp builds the wallet components. Chain access is set up by
// connectChain, since the import commands work offline.
func newApp(cfg *config.Config) (*app, error) {
	params, err := cfg.ChainParams()
	if err != nil {
		return nil, err
	}

	clk := clock.NewDefaultClock()
	store := wallet.NewStore(cfg.Wallet.Path, clk)

	return &app{
		cfg:      cfg,
		params:   params,
		clock:    clk,
		store:    store,
		importer: wallet.NewImporter(store, keys.NewImporter(params)),
		closer:   func() {},
	}, nil
}

// connectChain opens the pebble stores and the configured chain backend.
func (a *app) connectChain() error {
	if a.cfg.Pebble.Path != "" {
		log.Storage.Info().Str("path", a.cfg.Pebble.Path).Msg("Opening Pebble database")
		stores, err := storage.Open(a.cfg.Pebble.Path, a.params.Name)
		if err != nil {
			return fmt.Errorf("failed to open pebble database: %w", err)
		}
		a.stores = stores
	}

	var client chain.Client
	switch a.cfg.Chain.Backend {
	case config.BackendRPC:
		rpcClient, err := rpc.NewBTCClient(&a.cfg.Chain.RPC)
		if err != nil {
			a.Close()
			return err
		}
		client = rpcClient
		a.closer = rpcClient.Close

	default:
		log.Chain.Info().Str("url", a.cfg.Chain.Esplora.URL).Msg("Using Esplora backend")
		client = chain.NewEsploraClient(&chain.EsploraConfig{
			URL:            a.cfg.Chain.Esplora.URL,
			RequestTimeout: a.cfg.Chain.Esplora.RequestTimeout,
			MaxRetries:     a.cfg.Chain.Esplora.MaxRetries,
			Clock:          a.clock,
		})
	}

	if a.stores != nil {
		client = chain.NewCachedClient(client, a.stores.RawTxs)
	}
	a.chain = client
	return nil
}

func (a *app) explorer() *explorer.Client {
	return explorer.NewClient(&explorer.Config{
		URL:            a.cfg.Explorer.URL,
		AccessKey:      a.cfg.Explorer.AccessKey,
		ChainShortName: a.cfg.Explorer.ChainShortName,
		RequestTimeout: a.cfg.Explorer.RequestTimeout,
	})
}

// Close releases the chain backend and the database
func (a *app) Close() {
	a.closer()
	if a.stores != nil {
		if err := a.stores.Close(); err != nil {
			log.Storage.Error().Err(err).Msg("Error closing database")
		}
	}
}

// readSecret prompts for a secret without echoing it.
func readSecret(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("no secret given and stdin is not a terminal")
	}

	fmt.Fprint(os.Stderr, prompt)
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read secret: %w", err)
	}
	return strings.TrimSpace(string(raw)), nil
}
