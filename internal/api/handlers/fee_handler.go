package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/thanhnp/chain-funder/internal/chain"
	"github.com/thanhnp/chain-funder/internal/fee"
)

// FeeHandler handles fee estimation requests
type FeeHandler struct {
	client chain.Client
}

// NewFeeHandler creates a new FeeHandler
func NewFeeHandler(client chain.Client) *FeeHandler {
	return &FeeHandler{
		client: client,
	}
}

// Estimate returns the fee for a transaction shape at the live rate
// GET /api/v1/fee?blocks=&inputs=&outputs=&extra=
func (h *FeeHandler) Estimate(c *gin.Context) {
	blocks, err1 := strconv.Atoi(c.DefaultQuery("blocks", "8"))
	inputs, err2 := strconv.Atoi(c.DefaultQuery("inputs", "1"))
	outputs, err3 := strconv.Atoi(c.DefaultQuery("outputs", "1"))
	extra, err4 := strconv.Atoi(c.DefaultQuery("extra", strconv.Itoa(fee.FundingExtraBytes)))
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil ||
		blocks < 1 || inputs < 0 || outputs < 0 || extra < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid fee parameters"})
		return
	}

	rate, err := h.client.EstimateFee(c.Request.Context(), blocks)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"blocks":       blocks,
		"rate_per_kvb": int64(rate),
		"per_byte":     int64(fee.PerByte(rate)),
		"size":         fee.Size(inputs, outputs, extra),
		"fee":          int64(fee.Estimate(rate, inputs, outputs, extra)),
	})
}
