package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/thanhnp/chain-funder/internal/api"
	"github.com/thanhnp/chain-funder/internal/config"
	"github.com/thanhnp/chain-funder/internal/log"
)

func newServeCmd(getCfg func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the wallet and funding HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(getCfg())
			if err != nil {
				return err
			}
			if err := a.connectChain(); err != nil {
				return err
			}
			defer a.Close()

			log.Logger.Info().Str("network", a.params.Name).Msg("Starting chain-funder server...")

			deps := &api.Deps{
				Params:   a.params,
				Store:    a.store,
				Importer: a.importer,
				Chain:    a.chain,
			}
			if a.stores != nil {
				deps.Journal = a.stores.Broadcasts
			}
			router := api.NewRouter(deps)

			// Create HTTP server
			addr := fmt.Sprintf("%s:%d", a.cfg.Server.Host, a.cfg.Server.Port)
			server := &http.Server{
				Addr:         addr,
				Handler:      router.Engine(),
				ReadTimeout:  30 * time.Second,
				WriteTimeout: 30 * time.Second,
				IdleTimeout:  120 * time.Second,
			}

			serveErr := make(chan error, 1)
			go func() {
				log.API.Info().Str("addr", addr).Msg("HTTP server listening")
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serveErr <- err
				}
				close(serveErr)
			}()

			// Wait for shutdown signal
			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

			select {
			case <-quit:
			case err := <-serveErr:
				if err != nil {
					return fmt.Errorf("HTTP server error: %w", err)
				}
			}

			log.Logger.Info().Msg("Shutting down...")

			// Shutdown HTTP server with timeout
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			if err := server.Shutdown(shutdownCtx); err != nil {
				log.API.Error().Err(err).Msg("HTTP server shutdown error")
			}

			log.Logger.Info().Msg("Server stopped")
			return nil
		},
	}
}
