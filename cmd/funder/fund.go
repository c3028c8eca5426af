package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/thanhnp/chain-funder/internal/config"
	"github.com/thanhnp/chain-funder/internal/fee"
	"github.com/thanhnp/chain-funder/internal/funding"
	"github.com/thanhnp/chain-funder/internal/utxo"
	"github.com/thanhnp/chain-funder/pkg/amount"
)

func newFeeCmd(getCfg func() *config.Config) *cobra.Command {
	var blocks, inputs, outputs, extra int

	cmd := &cobra.Command{
		Use:   "fee",
		Short: "Estimate the fee of a funding transaction at the live rate",
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

			rate, err := a.chain.EstimateFee(cmd.Context(), blocks)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "rate:     %d sat/kvB (%d sat/byte)\n", int64(rate), int64(fee.PerByte(rate)))
			fmt.Fprintf(out, "size:     %d bytes\n", fee.Size(inputs, outputs, extra))
			fmt.Fprintf(out, "fee:      %d sat\n", int64(fee.Estimate(rate, inputs, outputs, extra)))
			return nil
		},
	}

	cmd.Flags().IntVar(&blocks, "blocks", 8, "Confirmation target in blocks")
	cmd.Flags().IntVar(&inputs, "inputs", 1, "Number of inputs")
	cmd.Flags().IntVar(&outputs, "outputs", 1, "Number of outputs besides the spend output")
	cmd.Flags().IntVar(&extra, "extra", fee.FundingExtraBytes, "Extra payload bytes")
	return cmd
}

func newSelectUTXOCmd(getCfg func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "select-utxo <address> <min>",
		Short: "Select and validate the first UTXO at address worth at least min (e.g. 0.0001btc, 10000sat)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			minValue, err := amount.Parse(args[1])
			if err != nil {
				return err
			}

			a, err := newApp(getCfg())
			if err != nil {
				return err
			}
			if err := a.connectChain(); err != nil {
				return err
			}
			defer a.Close()

			u, err := utxo.NewResolver(a.chain).SelectValidated(cmd.Context(), args[0], minValue)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s:%d %s BTC\n", u.TxID, u.OutputIndex, amount.FormatBTC(u.Value))
			return nil
		},
	}
}

func newFundCmd(getCfg func() *config.Config) *cobra.Command {
	var (
		alias       string
		spendAmount string
		target      string
		suppress    bool
		noAutoSend  bool
	)

	cmd := &cobra.Command{
		Use:   "fund <address> <amount>",
		Short: "Wait until address holds amount, paying it from the funding key when possible",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := amount.Parse(args[1])
			if err != nil {
				return err
			}

			req := &funding.Request{
				Address:             args[0],
				Amount:              value,
				TargetAddress:       target,
				SuppressDepositInfo: suppress,
			}
			if spendAmount != "" {
				if req.SpendAmount, err = amount.Parse(spendAmount); err != nil {
					return err
				}
			}

			a, err := newApp(getCfg())
			if err != nil {
				return err
			}

			if !noAutoSend {
				wif, err := a.importer.SigningKey(alias)
				if err != nil {
					return fmt.Errorf("failed to load funding key: %w", err)
				}
				req.FundingKey = wif.PrivKey
			}

			if err := a.connectChain(); err != nil {
				return err
			}
			defer a.Close()

			fcfg, err := funding.ConfigFrom(a.cfg)
			if err != nil {
				return err
			}

			var journal funding.Journal
			if a.stores != nil {
				journal = a.stores.Broadcasts
			}
			orch := funding.New(fcfg, a.chain, a.explorer(), journal, a.clock, cmd.OutOrStdout())

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			res, err := orch.GetFundingUTXO(ctx, req)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if res.SpendTxID != "" {
				fmt.Fprintf(out, "auto send: %s\n", res.SpendTxID)
			}
			fmt.Fprintf(out, "funding utxo: %s:%d %s BTC\n",
				res.UTXO.TxID, res.UTXO.OutputIndex, amount.FormatBTC(res.UTXO.Value))
			return nil
		},
	}

	cmd.Flags().StringVar(&alias, "alias", "", "Imported alias holding the funding key (default: the wallet's funding key)")
	cmd.Flags().StringVar(&spendAmount, "spend-amount", "", "Amount to auto send (default: amount)")
	cmd.Flags().StringVar(&target, "target", "", "Address to auto send to (default: address)")
	cmd.Flags().BoolVar(&suppress, "suppress-deposit-info", false, "Do not print the deposit QR code and banner")
	cmd.Flags().BoolVar(&noAutoSend, "no-auto-send", false, "Only wait for a deposit")
	return cmd
}
