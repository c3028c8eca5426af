package chain

import (
	"context"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"

	"github.com/thanhnp/chain-funder/internal/models"
)

// instantClock ticks immediately and records every requested delay.
type instantClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func (c *instantClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *instantClock) TickAfter(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)

	ch := make(chan time.Time, 1)
	ch <- c.now
	return ch
}

// mockClient serves canned responses.
type mockClient struct {
	mu        sync.Mutex
	txs       map[string][]byte
	txCalls   int
	listings  [][]models.UTXO
	listErrs  []error
	listCalls int
}

func (m *mockClient) GetRawTransaction(_ context.Context, txid string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txCalls++
	raw, ok := m.txs[txid]
	if !ok {
		return nil, ErrTxNotFound
	}
	return raw, nil
}

func (m *mockClient) ListUnspent(_ context.Context, _ string) ([]models.UTXO, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.listCalls
	m.listCalls++
	if i < len(m.listErrs) && m.listErrs[i] != nil {
		return nil, m.listErrs[i]
	}
	if i < len(m.listings) {
		return m.listings[i], nil
	}
	return m.listings[len(m.listings)-1], nil
}

func (m *mockClient) EstimateFee(context.Context, int) (btcutil.Amount, error) {
	return 1000, nil
}

func (m *mockClient) Broadcast(context.Context, []byte) (string, error) {
	return "", errors.New("not implemented")
}

// memCache is an in-memory TxCache.
type memCache struct {
	data map[string][]byte
}

func (c *memCache) Get(txid string) ([]byte, error)    { return c.data[txid], nil }
func (c *memCache) Save(txid string, raw []byte) error { c.data[txid] = raw; return nil }
func (c *memCache) Delete(txid string) error           { delete(c.data, txid); return nil }

func sampleTx(t *testing.T, value int64) ([]byte, string) {
	t.Helper()

	tx := wire.NewMsgTx(2)
	tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&chainhash.Hash{1}, 0), nil, nil))
	tx.AddTxOut(wire.NewTxOut(value, []byte{0x51}))

	raw, err := EncodeTx(tx)
	require.NoError(t, err)
	return raw, tx.TxHash().String()
}

func TestEsploraClient(t *testing.T) {
	raw, txid := sampleTx(t, 5000)

	mux := http.NewServeMux()
	mux.HandleFunc("/tx/"+txid+"/hex", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, hex.EncodeToString(raw))
	})
	mux.HandleFunc("/address/tb1qaddr/utxo", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `[{"txid":"aa","vout":1,"value":500,"status":{"confirmed":true}},
			{"txid":"bb","vout":0,"value":2000,"status":{"confirmed":false}}]`)
	})
	mux.HandleFunc("/fee-estimates", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"1": 25.5, "6": 12.0, "10": 8.25, "144": 1.0}`)
	})
	mux.HandleFunc("/tx", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "text/plain", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		require.Equal(t, hex.EncodeToString(raw), string(body))
		io.WriteString(w, txid)
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewEsploraClient(&EsploraConfig{URL: srv.URL + "/", RequestTimeout: time.Second})
	ctx := context.Background()

	got, err := c.GetRawTransaction(ctx, txid)
	require.NoError(t, err)
	require.Equal(t, raw, got)

	_, err = c.GetRawTransaction(ctx, "missing")
	require.ErrorIs(t, err, ErrTxNotFound)

	utxos, err := c.ListUnspent(ctx, "tb1qaddr")
	require.NoError(t, err)
	require.Equal(t, []models.UTXO{
		{TxID: "aa", OutputIndex: 1, Value: 500, Address: "tb1qaddr"},
		{TxID: "bb", OutputIndex: 0, Value: 2000, Address: "tb1qaddr"},
	}, utxos)

	rate, err := c.EstimateFee(ctx, 8)
	require.NoError(t, err)
	require.Equal(t, btcutil.Amount(8250), rate)

	rate, err = c.EstimateFee(ctx, 1000)
	require.NoError(t, err)
	require.Equal(t, btcutil.Amount(1000), rate)

	sent, err := c.Broadcast(ctx, raw)
	require.NoError(t, err)
	require.Equal(t, txid, sent)
}

func TestEsploraBroadcastRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad-txns-inputs-missingorspent", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewEsploraClient(&EsploraConfig{URL: srv.URL, RequestTimeout: time.Second})
	_, err := c.Broadcast(context.Background(), []byte{0x01})
	require.ErrorContains(t, err, "missingorspent")
}

func TestEsploraRetriesTransportErrorsOnClock(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	clk := &instantClock{now: time.Unix(1700000000, 0)}
	c := NewEsploraClient(&EsploraConfig{
		URL:            url,
		RequestTimeout: time.Second,
		MaxRetries:     2,
		Clock:          clk,
	})

	_, err := c.GetRawTransaction(context.Background(), "aa")
	require.ErrorContains(t, err, "request failed after 3 attempts")
	require.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, clk.sleeps)
}

func TestEsploraRetryHonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	c := NewEsploraClient(&EsploraConfig{
		URL:            url,
		RequestTimeout: time.Second,
		MaxRetries:     5,
		Clock:          cancelClock{cancel},
	})

	_, err := c.GetRawTransaction(ctx, "aa")
	require.ErrorIs(t, err, context.Canceled)
}

// cancelClock cancels the context instead of ticking.
type cancelClock struct {
	cancel context.CancelFunc
}

func (cancelClock) Now() time.Time { return time.Time{} }

func (c cancelClock) TickAfter(time.Duration) <-chan time.Time {
	c.cancel()
	return nil
}

func TestCachedClientOnlyCachesMatchingIDs(t *testing.T) {
	raw, txid := sampleTx(t, 5000)
	other, _ := sampleTx(t, 6000)

	inner := &mockClient{txs: map[string][]byte{txid: raw, "poisoned": other}}
	cache := &memCache{data: map[string][]byte{}}
	c := NewCachedClient(inner, cache)
	ctx := context.Background()

	got, err := c.GetRawTransaction(ctx, txid)
	require.NoError(t, err)
	require.Equal(t, raw, got)
	require.Equal(t, raw, cache.data[txid])

	// Second read is served from cache.
	_, err = c.GetRawTransaction(ctx, txid)
	require.NoError(t, err)
	require.Equal(t, 1, inner.txCalls)

	// A response whose id does not match is returned but never cached.
	got, err = c.GetRawTransaction(ctx, "poisoned")
	require.NoError(t, err)
	require.Equal(t, other, got)
	require.NotContains(t, cache.data, "poisoned")
}

func TestCachedClientEvictsCorruptEntry(t *testing.T) {
	raw, txid := sampleTx(t, 5000)
	other, _ := sampleTx(t, 6000)

	inner := &mockClient{txs: map[string][]byte{txid: raw}}
	cache := &memCache{data: map[string][]byte{txid: other}}
	c := NewCachedClient(inner, cache)

	got, err := c.GetRawTransaction(context.Background(), txid)
	require.NoError(t, err)
	require.Equal(t, raw, got)
	require.Equal(t, raw, cache.data[txid])
	require.Equal(t, 1, inner.txCalls)
}

func TestWaitForUTXOPollsUntilFunded(t *testing.T) {
	client := &mockClient{
		listings: [][]models.UTXO{
			nil,
			{{TxID: "small", Value: 100}},
			nil,
			{{TxID: "small", Value: 100}, {TxID: "big", OutputIndex: 2, Value: 5000}, {TxID: "bigger", Value: 9000}},
		},
		listErrs: []error{nil, nil, errors.New("connection reset")},
	}
	clk := &instantClock{}

	got, err := WaitForUTXO(context.Background(), client, "addr", 1000, 5*time.Second, clk)
	require.NoError(t, err)
	require.Equal(t, "big", got.TxID)
	require.Equal(t, uint32(2), got.OutputIndex)
	require.Equal(t, 4, client.listCalls)
	require.Equal(t, []time.Duration{5 * time.Second, 5 * time.Second, 5 * time.Second}, clk.sleeps)
}

func TestWaitForUTXOHonorsContext(t *testing.T) {
	client := &mockClient{listings: [][]models.UTXO{nil}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// A real clock would never fire in time; cancellation ends the wait.
	_, err := WaitForUTXO(ctx, client, "addr", 1000, time.Hour, &neverClock{})
	require.ErrorIs(t, err, context.Canceled)
}

type neverClock struct{}

func (neverClock) Now() time.Time                           { return time.Time{} }
func (neverClock) TickAfter(time.Duration) <-chan time.Time { return nil }
