package api

import (
	"net/http"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/gin-gonic/gin"

	"github.com/thanhnp/chain-funder/internal/api/handlers"
	"github.com/thanhnp/chain-funder/internal/api/middleware"
	"github.com/thanhnp/chain-funder/internal/chain"
	"github.com/thanhnp/chain-funder/internal/utxo"
	"github.com/thanhnp/chain-funder/internal/wallet"
)

// Deps holds what the handlers are built from. Journal may be nil, in
// which case the transaction routes are not registered.
type Deps struct {
	Params   *chaincfg.Params
	Store    *wallet.Store
	Importer *wallet.Importer
	Chain    chain.Client
	Journal  handlers.BroadcastJournal
}

// Router wraps the Gin router with handlers
type Router struct {
	engine         *gin.Engine
	params         *chaincfg.Params
	walletHandler  *handlers.WalletHandler
	addressHandler *handlers.AddressHandler
	feeHandler     *handlers.FeeHandler
	txHandler      *handlers.TxHandler
}

// NewRouter creates a new Router with all handlers
func NewRouter(deps *Deps) *Router {
	gin.SetMode(gin.ReleaseMode)

	r := &Router{
		engine:         gin.New(),
		params:         deps.Params,
		walletHandler:  handlers.NewWalletHandler(deps.Store, deps.Importer),
		addressHandler: handlers.NewAddressHandler(utxo.NewResolver(deps.Chain)),
		feeHandler:     handlers.NewFeeHandler(deps.Chain),
	}
	if deps.Journal != nil {
		r.txHandler = handlers.NewTxHandler(deps.Journal)
	}

	r.setupMiddleware()
	r.setupRoutes()

	return r
}

// setupMiddleware configures middleware
func (r *Router) setupMiddleware() {
	r.engine.Use(middleware.Recovery())
	r.engine.Use(middleware.Logger())
	r.engine.Use(middleware.CORS())
}

// setupRoutes configures API routes
func (r *Router) setupRoutes() {
	// Health check
	r.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "network": r.params.Name})
	})

	v1 := r.engine.Group("/api/v1")
	{
		w := v1.Group("/wallet")
		{
			w.GET("/imported", r.walletHandler.List)
			w.GET("/imported/:alias", r.walletHandler.Get)
			w.POST("/import/wif", r.walletHandler.ImportWIF)
			w.POST("/import/key", r.walletHandler.ImportKey)
		}

		addresses := v1.Group("/addresses/:address")
		addresses.Use(middleware.ValidateAddress(r.params))
		{
			addresses.GET("/funding-utxo", r.addressHandler.GetFundingUTXO)
		}

		v1.GET("/fee", r.feeHandler.Estimate)

		if r.txHandler != nil {
			txs := v1.Group("/transactions")
			{
				txs.GET("", r.txHandler.List)
				txs.GET("/:txid", r.txHandler.Get)
			}
		}
	}
}

// Engine returns the underlying Gin engine
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

// Run starts the HTTP server
func (r *Router) Run(addr string) error {
	return r.engine.Run(addr)
}
