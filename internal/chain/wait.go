package chain

import (
	"context"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/lightningnetwork/lnd/clock"

	"github.com/thanhnp/chain-funder/internal/log"
	"github.com/thanhnp/chain-funder/internal/models"
)

// Sleep blocks for d on clk or until ctx is done.
func Sleep(ctx context.Context, clk clock.Clock, d time.Duration) error {
	select {
	case <-clk.TickAfter(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WaitForUTXO polls client every interval until an unspent output of at
// least minValue pays to address, and returns the first such output in
// listing order. Listing errors are logged and polling continues; only
// ctx ends the wait early.
func WaitForUTXO(ctx context.Context, client Client, address string,
	minValue btcutil.Amount, interval time.Duration, clk clock.Clock) (models.UTXO, error) {

	for {
		utxos, err := client.ListUnspent(ctx, address)
		if err != nil {
			if ctx.Err() != nil {
				return models.UTXO{}, ctx.Err()
			}
			log.Chain.Warn().Err(err).Str("address", address).Msg("Listing unspent outputs failed, will retry")
		}

		for _, u := range utxos {
			if u.Value >= minValue {
				return u, nil
			}
		}

		if err := Sleep(ctx, clk, interval); err != nil {
			return models.UTXO{}, err
		}
	}
}
