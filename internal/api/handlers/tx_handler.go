package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/thanhnp/chain-funder/internal/models"
)

// BroadcastJournal lists recorded broadcasts
type BroadcastJournal interface {
	Get(txid string) (*models.BroadcastRecord, error)
	List() ([]*models.BroadcastRecord, error)
}

// TxHandler serves the broadcast journal
type TxHandler struct {
	journal BroadcastJournal
}

// NewTxHandler creates a new TxHandler
func NewTxHandler(journal BroadcastJournal) *TxHandler {
	return &TxHandler{
		journal: journal,
	}
}

// List returns every broadcast auto-send transaction
// GET /api/v1/transactions
func (h *TxHandler) List(c *gin.Context) {
	recs, err := h.journal.List()
	if err != nil {
		writeError(c, err)
		return
	}
	if recs == nil {
		recs = []*models.BroadcastRecord{}
	}

	c.JSON(http.StatusOK, gin.H{
		"count":        len(recs),
		"transactions": recs,
	})
}

// Get returns a broadcast record by txid
// GET /api/v1/transactions/:txid
func (h *TxHandler) Get(c *gin.Context) {
	txid := c.Param("txid")

	rec, err := h.journal.Get(txid)
	if err != nil {
		writeError(c, err)
		return
	}

	if rec == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Transaction not found"})
		return
	}

	c.JSON(http.StatusOK, rec)
}
