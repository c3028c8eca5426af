package chain

import (
	"context"

	"github.com/thanhnp/chain-funder/internal/log"
)

// TxCache stores raw transactions by txid.
type TxCache interface {
	Get(txid string) ([]byte, error)
	Save(txid string, raw []byte) error
	Delete(txid string) error
}

// CachedClient serves raw transactions from a TxCache and delegates
// everything else. Only transactions whose recomputed txid equals the
// requested one are ever cached or served from cache.
type CachedClient struct {
	Client
	cache TxCache
}

// NewCachedClient wraps client with cache
func NewCachedClient(client Client, cache TxCache) *CachedClient {
	return &CachedClient{
		Client: client,
		cache:  cache,
	}
}

// GetRawTransaction implements Client
func (c *CachedClient) GetRawTransaction(ctx context.Context, txid string) ([]byte, error) {
	cached, err := c.cache.Get(txid)
	if err != nil {
		log.Chain.Warn().Err(err).Str("txid", txid).Msg("Transaction cache read failed")
	}
	if cached != nil {
		if matchesTxID(cached, txid) {
			return cached, nil
		}
		log.Chain.Warn().Str("txid", txid).Msg("Evicting cached transaction with mismatching id")
		if err := c.cache.Delete(txid); err != nil {
			log.Chain.Warn().Err(err).Str("txid", txid).Msg("Transaction cache eviction failed")
		}
	}

	raw, err := c.Client.GetRawTransaction(ctx, txid)
	if err != nil {
		return nil, err
	}

	if matchesTxID(raw, txid) {
		if err := c.cache.Save(txid, raw); err != nil {
			log.Chain.Warn().Err(err).Str("txid", txid).Msg("Transaction cache write failed")
		}
	}
	return raw, nil
}

func matchesTxID(raw []byte, txid string) bool {
	tx, err := DecodeTx(raw)
	if err != nil {
		return false
	}
	return tx.TxHash().String() == txid
}
