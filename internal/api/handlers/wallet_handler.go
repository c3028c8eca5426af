package handlers

import (
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"github.com/thanhnp/chain-funder/internal/models"
	"github.com/thanhnp/chain-funder/internal/wallet"
)

// WalletHandler handles wallet import requests
type WalletHandler struct {
	store    *wallet.Store
	importer *wallet.Importer
}

// NewWalletHandler creates a new WalletHandler
func NewWalletHandler(store *wallet.Store, importer *wallet.Importer) *WalletHandler {
	return &WalletHandler{
		store:    store,
		importer: importer,
	}
}

// importedAddress is an imported entry without its secret
type importedAddress struct {
	Alias                string `json:"alias"`
	Address              string `json:"address"`
	LegacyAddress        string `json:"legacy_address,omitempty"`
	SegwitAddress        string `json:"segwit_address,omitempty"`
	SegwitWrappedAddress string `json:"segwit_wrapped_address,omitempty"`
}

func newImportedAddress(alias string, e models.ImportedEntry) importedAddress {
	return importedAddress{
		Alias:                alias,
		Address:              e.Address,
		LegacyAddress:        e.LegacyAddress,
		SegwitAddress:        e.SegwitAddress,
		SegwitWrappedAddress: e.SegwitWrappedAddress,
	}
}

type importRequest struct {
	Secret string `json:"secret" binding:"required"`
	Alias  string `json:"alias" binding:"required"`
}

// List returns every imported alias
// GET /api/v1/wallet/imported
func (h *WalletHandler) List(c *gin.Context) {
	rec, err := h.store.Load()
	if err != nil {
		writeError(c, err)
		return
	}

	aliases := make([]string, 0, len(rec.Imported))
	for alias := range rec.Imported {
		aliases = append(aliases, alias)
	}
	sort.Strings(aliases)

	entries := make([]importedAddress, 0, len(aliases))
	for _, alias := range aliases {
		entries = append(entries, newImportedAddress(alias, rec.Imported[alias]))
	}

	c.JSON(http.StatusOK, gin.H{
		"count":    len(entries),
		"imported": entries,
	})
}

// Get returns one imported alias
// GET /api/v1/wallet/imported/:alias
func (h *WalletHandler) Get(c *gin.Context) {
	alias := c.Param("alias")

	rec, err := h.store.Load()
	if err != nil {
		writeError(c, err)
		return
	}

	entry, ok := rec.Imported[alias]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Alias not found"})
		return
	}

	c.JSON(http.StatusOK, newImportedAddress(alias, entry))
}

// ImportWIF imports a WIF secret
// POST /api/v1/wallet/import/wif
func (h *WalletHandler) ImportWIF(c *gin.Context) {
	h.doImport(c, h.importer.ImportWIF)
}

// ImportKey imports a raw private key
// POST /api/v1/wallet/import/key
func (h *WalletHandler) ImportKey(c *gin.Context) {
	h.doImport(c, h.importer.ImportPrivateKey)
}

func (h *WalletHandler) doImport(c *gin.Context, importFn func(secret, alias string) (*models.ImportedEntry, error)) {
	var req importRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "secret and alias are required"})
		return
	}

	entry, err := importFn(req.Secret, req.Alias)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, newImportedAddress(req.Alias, *entry))
}
