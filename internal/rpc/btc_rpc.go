package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/rpcclient"

	"github.com/thanhnp/chain-funder/internal/chain"
	"github.com/thanhnp/chain-funder/internal/config"
	"github.com/thanhnp/chain-funder/internal/log"
	"github.com/thanhnp/chain-funder/internal/models"
	"github.com/thanhnp/chain-funder/pkg/semver"
)

// Compatible btcd JSON-RPC API versions
var compatibleChainServerAPIs = []semver.Semver{
	semver.NewSemver(1, 0, 0),
	semver.NewSemver(2, 0, 0),
	semver.NewSemver(3, 0, 0),
	semver.NewSemver(4, 0, 0),
	semver.NewSemver(5, 0, 0),
	semver.NewSemver(6, 0, 0),
	semver.NewSemver(7, 0, 0),
	semver.NewSemver(8, 0, 0),
}

// minBitcoindVersion is the first bitcoind release with scantxoutset, in
// the node's own numbering (170000 -> 17.0.0).
var minBitcoindVersion = &semver.Version{Major: 17}

// BTCClient is a chain.Client backed by a btcd or bitcoind node
type BTCClient struct {
	client *rpcclient.Client
	config *config.RPCConfig
}

var _ chain.Client = (*BTCClient)(nil)

// NewBTCClient connects to the node described by cfg and checks that it
// speaks a compatible API.
func NewBTCClient(cfg *config.RPCConfig) (*BTCClient, error) {
	var certs []byte
	var err error

	if !cfg.DisableTLS && cfg.Cert != "" {
		certs, err = os.ReadFile(cfg.Cert)
		if err != nil {
			return nil, fmt.Errorf("failed to read certificate: %w", err)
		}
	}

	var connCfg *rpcclient.ConnConfig
	if cfg.HTTPMode {
		// HTTP POST mode for bitcoind
		connCfg = &rpcclient.ConnConfig{
			Host:         cfg.Host,
			User:         cfg.User,
			Pass:         cfg.Pass,
			HTTPPostMode: true,
			DisableTLS:   cfg.DisableTLS,
			Certificates: certs,
		}
	} else {
		// WebSocket mode for btcd
		connCfg = &rpcclient.ConnConfig{
			Host:         cfg.Host,
			Endpoint:     "ws",
			User:         cfg.User,
			Pass:         cfg.Pass,
			Certificates: certs,
			DisableTLS:   cfg.DisableTLS,
		}
	}

	log.Chain.Info().Str("host", cfg.Host).Str("user", cfg.User).
		Bool("http_mode", cfg.HTTPMode).Msg("Connecting to node RPC")

	client, err := rpcclient.New(connCfg, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create RPC client: %w", err)
	}

	c := &BTCClient{
		client: client,
		config: cfg,
	}

	ver, err := c.checkVersion()
	if err != nil {
		client.Shutdown()
		return nil, err
	}
	log.Chain.Info().Str("version", ver).Msg("Connected to node RPC")

	return c, nil
}

// checkVersion ensures the RPC server has a compatible API version.
func (c *BTCClient) checkVersion() (string, error) {
	if c.config.HTTPMode {
		info, err := c.client.GetNetworkInfo()
		if err != nil {
			return "", fmt.Errorf("unable to get node network info: %w", err)
		}

		nodeVer := semver.FromNodeVersion(info.Version)
		if !nodeVer.GreaterThanOrEqual(minBitcoindVersion) {
			return "", fmt.Errorf("bitcoind %s is too old, requires %s or newer",
				nodeVer, minBitcoindVersion)
		}
		return nodeVer.String(), nil
	}

	ver, err := c.client.Version()
	if err != nil {
		return "", fmt.Errorf("unable to get node RPC version: %w", err)
	}

	btcdVer := ver["btcdjsonrpcapi"]
	nodeVer := semver.NewSemver(btcdVer.Major, btcdVer.Minor, btcdVer.Patch)
	if !semver.AnyCompatible(compatibleChainServerAPIs, nodeVer) {
		return "", fmt.Errorf("node JSON-RPC server does not have "+
			"a compatible API version. Advertises %v but requires one of: %v",
			nodeVer, compatibleChainServerAPIs)
	}
	return nodeVer.String(), nil
}

// Close closes the RPC client connection
func (c *BTCClient) Close() {
	c.client.Shutdown()
}

// GetRawTransaction implements chain.Client
func (c *BTCClient) GetRawTransaction(_ context.Context, txid string) ([]byte, error) {
	hash, err := chainhash.NewHashFromStr(txid)
	if err != nil {
		return nil, fmt.Errorf("invalid txid %q: %w", txid, err)
	}

	tx, err := c.client.GetRawTransaction(hash)
	if err != nil {
		if isNoTxInfo(err) {
			return nil, fmt.Errorf("%w: %s", chain.ErrTxNotFound, txid)
		}
		return nil, err
	}

	return chain.EncodeTx(tx.MsgTx())
}

// ListUnspent implements chain.Client using scantxoutset, which bitcoind
// answers from the UTXO set without a wallet or address index.
func (c *BTCClient) ListUnspent(_ context.Context, address string) ([]models.UTXO, error) {
	action, err := json.Marshal("start")
	if err != nil {
		return nil, err
	}
	descs, err := json.Marshal([]string{"addr(" + address + ")"})
	if err != nil {
		return nil, err
	}

	res, err := c.client.RawRequest("scantxoutset", []json.RawMessage{action, descs})
	if err != nil {
		return nil, fmt.Errorf("scantxoutset failed: %w", err)
	}

	return parseScanResult(res, address)
}

// EstimateFee implements chain.Client. estimatesmartfee is tried first;
// btcd only answers the older estimatefee.
func (c *BTCClient) EstimateFee(_ context.Context, targetBlocks int) (btcutil.Amount, error) {
	mode := btcjson.EstimateModeConservative
	res, err := c.client.EstimateSmartFee(int64(targetBlocks), &mode)
	if err == nil && res.FeeRate != nil && *res.FeeRate > 0 {
		return btcutil.NewAmount(*res.FeeRate)
	}
	if err != nil {
		log.Chain.Debug().Err(err).Msg("estimatesmartfee unavailable, falling back to estimatefee")
	}

	rate, err := c.client.EstimateFee(int64(targetBlocks))
	if err != nil {
		return 0, fmt.Errorf("estimatefee failed: %w", err)
	}
	if rate <= 0 {
		return 0, chain.ErrNoFeeEstimate
	}
	return btcutil.NewAmount(rate)
}

// Broadcast implements chain.Client
func (c *BTCClient) Broadcast(_ context.Context, rawTx []byte) (string, error) {
	tx, err := chain.DecodeTx(rawTx)
	if err != nil {
		return "", err
	}

	hash, err := c.client.SendRawTransaction(tx, false)
	if err != nil {
		return "", err
	}
	return hash.String(), nil
}

// scanResult is the subset of the scantxoutset reply used here
type scanResult struct {
	Success  bool `json:"success"`
	Unspents []struct {
		TxID   string  `json:"txid"`
		Vout   uint32  `json:"vout"`
		Amount float64 `json:"amount"`
		Height int64   `json:"height"`
	} `json:"unspents"`
}

func parseScanResult(raw json.RawMessage, address string) ([]models.UTXO, error) {
	var res scanResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("failed to decode scantxoutset result: %w", err)
	}
	if !res.Success {
		return nil, errors.New("scantxoutset did not complete")
	}

	utxos := make([]models.UTXO, 0, len(res.Unspents))
	for _, u := range res.Unspents {
		value, err := btcutil.NewAmount(u.Amount)
		if err != nil {
			return nil, fmt.Errorf("invalid amount for %s:%d: %w", u.TxID, u.Vout, err)
		}
		utxos = append(utxos, models.UTXO{
			TxID:        u.TxID,
			OutputIndex: u.Vout,
			Value:       value,
			Address:     address,
		})
	}
	return utxos, nil
}

func isNoTxInfo(err error) bool {
	var rpcErr *btcjson.RPCError
	return errors.As(err, &rpcErr) && rpcErr.Code == btcjson.ErrRPCNoTxInfo
}
