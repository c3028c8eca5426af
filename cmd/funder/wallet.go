package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/thanhnp/chain-funder/internal/config"
	"github.com/thanhnp/chain-funder/internal/models"
)

type importFunc func(a *app, secret, alias string) (*models.ImportedEntry, error)

func newWalletImportCmd(getCfg func() *config.Config) *cobra.Command {
	return newImportCmd(getCfg, "wallet-import [wif] <alias>",
		"Import a WIF key under alias as a taproot address", "WIF: ",
		func(a *app, secret, alias string) (*models.ImportedEntry, error) {
			return a.importer.ImportWIF(secret, alias)
		})
}

func newWalletImportKeyCmd(getCfg func() *config.Config) *cobra.Command {
	return newImportCmd(getCfg, "wallet-import-key [key] <alias>",
		"Import a hex or base58 private key under alias", "Private key: ",
		func(a *app, secret, alias string) (*models.ImportedEntry, error) {
			return a.importer.ImportPrivateKey(secret, alias)
		})
}

// newImportCmd builds an import command. When only the alias is given the
// secret is read from the terminal.
func newImportCmd(getCfg func() *config.Config, use, short, prompt string, fn importFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(getCfg())
			if err != nil {
				return err
			}

			alias := args[len(args)-1]
			var secret string
			if len(args) == 2 {
				secret = args[0]
			} else if secret, err = readSecret(prompt); err != nil {
				return err
			}

			entry, err := fn(a, secret, alias)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Imported %s\n", alias)
			fmt.Fprintf(out, "  address:                %s\n", entry.Address)
			if entry.SegwitAddress != "" {
				fmt.Fprintf(out, "  legacy address:         %s\n", entry.LegacyAddress)
				fmt.Fprintf(out, "  segwit address:         %s\n", entry.SegwitAddress)
				fmt.Fprintf(out, "  segwit wrapped address: %s\n", entry.SegwitWrappedAddress)
			}
			return nil
		},
	}
}

func newWalletListCmd(getCfg func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "wallet-list",
		Short: "List imported aliases and their addresses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(getCfg())
			if err != nil {
				return err
			}

			rec, err := a.store.Load()
			if err != nil {
				return err
			}

			aliases := make([]string, 0, len(rec.Imported))
			for alias := range rec.Imported {
				aliases = append(aliases, alias)
			}
			sort.Strings(aliases)

			out := cmd.OutOrStdout()
			for _, alias := range aliases {
				fmt.Fprintf(out, "%-16s %s\n", alias, rec.Imported[alias].Address)
			}
			return nil
		},
	}
}
