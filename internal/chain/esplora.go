package chain

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/lightningnetwork/lnd/clock"

	"github.com/thanhnp/chain-funder/internal/models"
)

var errNotFound = errors.New("not found")

// EsploraConfig holds the configuration for the Esplora client.
type EsploraConfig struct {
	// URL is the base URL of the Esplora API (e.g., https://blockstream.info/api).
	URL string

	// RequestTimeout is the timeout for individual HTTP requests.
	RequestTimeout time.Duration

	// MaxRetries is the maximum number of retries for failed requests.
	MaxRetries int

	// Clock paces the backoff between retries. Defaults to the wall clock.
	Clock clock.Clock
}

// esploraUTXO is an unspent output as listed by /address/{a}/utxo.
type esploraUTXO struct {
	TxID   string `json:"txid"`
	Vout   uint32 `json:"vout"`
	Value  int64  `json:"value"`
	Status struct {
		Confirmed   bool  `json:"confirmed"`
		BlockHeight int64 `json:"block_height,omitempty"`
	} `json:"status"`
}

// EsploraClient is a Client backed by the Esplora REST API.
type EsploraClient struct {
	cfg        *EsploraConfig
	httpClient *http.Client
	clock      clock.Clock
}

// NewEsploraClient creates a new Esplora client with the given configuration.
func NewEsploraClient(cfg *EsploraConfig) *EsploraClient {
	clk := cfg.Clock
	if clk == nil {
		clk = clock.NewDefaultClock()
	}

	return &EsploraClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		clock: clk,
	}
}

// retryDelay is the linear backoff before retry number attempt+1.
func retryDelay(attempt int) time.Duration {
	return time.Duration(attempt+1) * 100 * time.Millisecond
}

// doRequest performs an HTTP request, retrying transport failures.
func (c *EsploraClient) doRequest(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	url := strings.TrimRight(c.cfg.URL, "/") + path

	var lastErr error
	for i := 0; i <= c.cfg.MaxRetries; i++ {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}

		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		if body != nil {
			req.Header.Set("Content-Type", "text/plain")
		}

		resp, err := c.httpClient.Do(req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if i < c.cfg.MaxRetries {
			if err := Sleep(ctx, c.clock, retryDelay(i)); err != nil {
				return nil, err
			}
		}
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", c.cfg.MaxRetries+1, lastErr)
}

// doGet performs a GET request and returns the response body.
func (c *EsploraClient) doGet(ctx context.Context, path string) ([]byte, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return body, nil
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", errNotFound, string(body))
	default:
		return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
	}
}

// GetRawTransaction fetches /tx/{txid}/hex.
func (c *EsploraClient) GetRawTransaction(ctx context.Context, txid string) ([]byte, error) {
	body, err := c.doGet(ctx, "/tx/"+txid+"/hex")
	if err != nil {
		if errors.Is(err, errNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrTxNotFound, txid)
		}
		return nil, err
	}

	raw, err := hex.DecodeString(strings.TrimSpace(string(body)))
	if err != nil {
		return nil, fmt.Errorf("failed to decode tx hex: %w", err)
	}
	return raw, nil
}

// ListUnspent fetches /address/{address}/utxo.
func (c *EsploraClient) ListUnspent(ctx context.Context, address string) ([]models.UTXO, error) {
	body, err := c.doGet(ctx, "/address/"+address+"/utxo")
	if err != nil {
		return nil, err
	}

	var listed []esploraUTXO
	if err := json.Unmarshal(body, &listed); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	utxos := make([]models.UTXO, 0, len(listed))
	for _, u := range listed {
		utxos = append(utxos, models.UTXO{
			TxID:        u.TxID,
			OutputIndex: u.Vout,
			Value:       btcutil.Amount(u.Value),
			Address:     address,
		})
	}
	return utxos, nil
}

// EstimateFee reads /fee-estimates, a map of confirmation target to sat/vB.
// The smallest target at or above targetBlocks is used; when the backend
// has none that large, its largest target is used.
func (c *EsploraClient) EstimateFee(ctx context.Context, targetBlocks int) (btcutil.Amount, error) {
	body, err := c.doGet(ctx, "/fee-estimates")
	if err != nil {
		return 0, err
	}

	var estimates map[string]float64
	if err := json.Unmarshal(body, &estimates); err != nil {
		return 0, fmt.Errorf("failed to decode response: %w", err)
	}

	targets := make([]int, 0, len(estimates))
	for k := range estimates {
		n, err := strconv.Atoi(k)
		if err != nil {
			continue
		}
		targets = append(targets, n)
	}
	if len(targets) == 0 {
		return 0, ErrNoFeeEstimate
	}
	sort.Ints(targets)

	chosen := targets[len(targets)-1]
	for _, n := range targets {
		if n >= targetBlocks {
			chosen = n
			break
		}
	}

	satPerVByte := estimates[strconv.Itoa(chosen)]
	if satPerVByte <= 0 {
		return 0, ErrNoFeeEstimate
	}
	return btcutil.Amount(math.Round(satPerVByte * 1000)), nil
}

// Broadcast posts the transaction hex to /tx and returns the txid.
func (c *EsploraClient) Broadcast(ctx context.Context, rawTx []byte) (string, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/tx", []byte(hex.EncodeToString(rawTx)))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("broadcast failed with status %d: %s", resp.StatusCode, string(body))
	}

	return strings.TrimSpace(string(body)), nil
}
