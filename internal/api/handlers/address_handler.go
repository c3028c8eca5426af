package handlers

import (
	"encoding/hex"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/thanhnp/chain-funder/internal/utxo"
	"github.com/thanhnp/chain-funder/pkg/amount"
)

// AddressHandler handles address-related API requests
type AddressHandler struct {
	resolver *utxo.Resolver
}

// NewAddressHandler creates a new AddressHandler
func NewAddressHandler(resolver *utxo.Resolver) *AddressHandler {
	return &AddressHandler{
		resolver: resolver,
	}
}

// GetFundingUTXO returns the first UTXO at the address worth at least min,
// validated against its parent transaction
// GET /api/v1/addresses/:address/funding-utxo?min=
func (h *AddressHandler) GetFundingUTXO(c *gin.Context) {
	address := c.Param("address")

	minValue, err := amount.Parse(c.DefaultQuery("min", "0 sat"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid min amount"})
		return
	}

	u, err := h.resolver.SelectValidated(c.Request.Context(), address, minValue)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"txid":    u.TxID,
		"vout":    u.OutputIndex,
		"value":   int64(u.Value),
		"btc":     amount.FormatBTC(u.Value),
		"address": address,
		"raw_tx":  hex.EncodeToString(u.RawTx),
	})
}
