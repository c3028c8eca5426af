package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/thanhnp/chain-funder/internal/config"
	"github.com/thanhnp/chain-funder/internal/log"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Logger.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		cfg        *config.Config
	)

	root := &cobra.Command{
		Use:           "funder",
		Short:         "Import wallet keys and fund addresses from earlier funding outputs",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if err := log.Init(loaded.Log.Level, loaded.Log.JSON, loaded.Log.File); err != nil {
				return err
			}
			cfg = loaded
			return nil
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "Path to configuration file")

	getCfg := func() *config.Config { return cfg }

	root.AddCommand(
		newWalletImportCmd(getCfg),
		newWalletImportKeyCmd(getCfg),
		newWalletListCmd(getCfg),
		newFeeCmd(getCfg),
		newSelectUTXOCmd(getCfg),
		newFundCmd(getCfg),
		newServeCmd(getCfg),
	)
	return root
}
