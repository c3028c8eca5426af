package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/thanhnp/chain-funder/internal/chain"
	"github.com/thanhnp/chain-funder/internal/keys"
	"github.com/thanhnp/chain-funder/internal/utxo"
	"github.com/thanhnp/chain-funder/internal/wallet"
)

// statusFor maps domain errors to HTTP status codes
func statusFor(err error) int {
	var (
		invalidSecret *keys.InvalidSecretError
		aliasExists   *wallet.AliasExistsError
		noFunding     *utxo.NoFundingUTXOError
		mismatch      *utxo.TxidMismatchError
	)

	switch {
	case errors.As(err, &invalidSecret):
		return http.StatusBadRequest
	case errors.As(err, &aliasExists):
		return http.StatusConflict
	case errors.Is(err, wallet.ErrWalletNotInitialized):
		return http.StatusPreconditionFailed
	case errors.As(err, &noFunding), errors.Is(err, chain.ErrTxNotFound):
		return http.StatusNotFound
	case errors.As(err, &mismatch):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}
