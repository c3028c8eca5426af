// Package explorer probes a block explorer for existing funding activity.
package explorer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/thanhnp/chain-funder/internal/models"
	"github.com/thanhnp/chain-funder/pkg/amount"
)

const (
	transactionListPath = "/api/v5/explorer/address/transaction-list"
	utxoPath            = "/api/v5/explorer/address/utxo"

	accessKeyHeader = "Ok-Access-Key"
)

// Config holds the OKLink client configuration
type Config struct {
	URL            string
	AccessKey      string
	ChainShortName string
	RequestTimeout time.Duration
}

// Client is an OKLink v5 explorer client
type Client struct {
	cfg        *Config
	httpClient *http.Client
}

// NewClient creates a new explorer client
func NewClient(cfg *Config) *Client {
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
	}
}

// envelope is the common OKLink response wrapper
type envelope struct {
	Code string          `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type transactionListPage struct {
	TransactionLists []struct {
		TxID string `json:"txId"`
	} `json:"transactionLists"`
}

type utxoPage struct {
	UTXOList []struct {
		TxID          string `json:"txid"`
		Index         string `json:"index"`
		UnspentAmount string `json:"unspentAmount"`
		Address       string `json:"address"`
	} `json:"utxoList"`
}

// LatestTransaction returns the id of the most recent transaction touching
// address, or "" when the address has no history.
func (c *Client) LatestTransaction(ctx context.Context, address string) (string, error) {
	var pages []transactionListPage
	if err := c.get(ctx, transactionListPath, address, 1, &pages); err != nil {
		return "", err
	}

	if len(pages) == 0 || len(pages[0].TransactionLists) == 0 {
		return "", nil
	}
	return pages[0].TransactionLists[0].TxID, nil
}

// UTXOs returns up to limit unspent outputs of address in explorer order.
// Values are converted from the explorer's decimal BTC strings.
func (c *Client) UTXOs(ctx context.Context, address string, limit int) ([]models.UTXO, error) {
	var pages []utxoPage
	if err := c.get(ctx, utxoPath, address, limit, &pages); err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return nil, nil
	}

	utxos := make([]models.UTXO, 0, len(pages[0].UTXOList))
	for _, u := range pages[0].UTXOList {
		index, err := strconv.ParseUint(u.Index, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid output index %q for %s: %w", u.Index, u.TxID, err)
		}
		value, err := amount.ParseBTC(u.UnspentAmount)
		if err != nil {
			return nil, err
		}

		addr := u.Address
		if addr == "" {
			addr = address
		}
		utxos = append(utxos, models.UTXO{
			TxID:        u.TxID,
			OutputIndex: uint32(index),
			Value:       value,
			Address:     addr,
		})
	}
	return utxos, nil
}

func (c *Client) get(ctx context.Context, path, address string, limit int, out any) error {
	q := url.Values{}
	q.Set("chainShortName", c.cfg.ChainShortName)
	q.Set("address", address)
	q.Set("limit", strconv.Itoa(limit))
	endpoint := strings.TrimRight(c.cfg.URL, "/") + path + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set(accessKeyHeader, c.cfg.AccessKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("explorer request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("explorer returned status %d: %s", resp.StatusCode, string(body))
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if env.Code != "0" {
		return fmt.Errorf("explorer error %s: %s", env.Code, env.Msg)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}

	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("failed to decode response data: %w", err)
	}
	return nil
}
