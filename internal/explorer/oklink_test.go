package explorer

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/stretchr/testify/require"

	"github.com/thanhnp/chain-funder/internal/models"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(&Config{
		URL:            srv.URL,
		AccessKey:      "test-key",
		ChainShortName: "btc",
		RequestTimeout: time.Second,
	})
}

func TestLatestTransaction(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, transactionListPath, r.URL.Path)
		require.Equal(t, "test-key", r.Header.Get("Ok-Access-Key"))
		require.Equal(t, "btc", r.URL.Query().Get("chainShortName"))
		require.Equal(t, "1Funding", r.URL.Query().Get("address"))
		require.Equal(t, "1", r.URL.Query().Get("limit"))

		io.WriteString(w, `{"code":"0","msg":"","data":[{"page":"1","transactionLists":[
			{"txId":"newest","height":"800001"},{"txId":"older","height":"800000"}]}]}`)
	})

	txid, err := c.LatestTransaction(context.Background(), "1Funding")
	require.NoError(t, err)
	require.Equal(t, "newest", txid)
}

func TestLatestTransactionEmptyHistory(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"code":"0","msg":"","data":[{"page":"1","transactionLists":[]}]}`)
	})

	txid, err := c.LatestTransaction(context.Background(), "1Funding")
	require.NoError(t, err)
	require.Empty(t, txid)
}

func TestUTXOs(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, utxoPath, r.URL.Path)
		require.Equal(t, "50", r.URL.Query().Get("limit"))

		io.WriteString(w, `{"code":"0","msg":"","data":[{"page":"1","utxoList":[
			{"txid":"aa","height":"1","blockTime":"1","address":"1Funding","unspentAmount":"0.00000500","index":"0"},
			{"txid":"bb","height":"1","blockTime":"1","address":"","unspentAmount":"0.00002","index":"3"}]}]}`)
	})

	utxos, err := c.UTXOs(context.Background(), "1Funding", 50)
	require.NoError(t, err)
	require.Equal(t, []models.UTXO{
		{TxID: "aa", OutputIndex: 0, Value: btcutil.Amount(500), Address: "1Funding"},
		{TxID: "bb", OutputIndex: 3, Value: btcutil.Amount(2000), Address: "1Funding"},
	}, utxos)
}

func TestExplorerErrors(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"code":"50011","msg":"Too Many Requests","data":[]}`)
	})
	_, err := c.LatestTransaction(context.Background(), "1Funding")
	require.ErrorContains(t, err, "Too Many Requests")

	c = newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	_, err = c.UTXOs(context.Background(), "1Funding", 1)
	require.ErrorContains(t, err, "401")

	c = newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"code":"0","data":[{"utxoList":[{"txid":"aa","index":"x","unspentAmount":"1"}]}]}`)
	})
	_, err = c.UTXOs(context.Background(), "1Funding", 1)
	require.Error(t, err)
}
