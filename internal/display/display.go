// Package display renders operator-facing deposit prompts on a terminal.
package display

import (
	"fmt"
	"io"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/skip2/go-qrcode"

	"github.com/thanhnp/chain-funder/pkg/amount"
)

// DepositRequest asks the operator to send value to address and renders
// the address as a QR code.
func DepositRequest(w io.Writer, address string, value btcutil.Amount) error {
	qr, err := qrcode.New(address, qrcode.Medium)
	if err != nil {
		return fmt.Errorf("failed to create QR code: %w", err)
	}

	if _, err := fmt.Fprintf(w, "\n\nPlease send %s BTC to %s\n", amount.FormatBTC(value), address); err != nil {
		return err
	}
	_, err = io.WriteString(w, qr.ToSmallString(false))
	return err
}

// WaitingBanner prints the status block shown while a deposit is awaited.
// The banner line itself is omitted when suppressed is set.
func WaitingBanner(w io.Writer, address string, value btcutil.Amount, suppressed bool) error {
	var err error
	write := func(format string, args ...any) {
		if err == nil {
			_, err = fmt.Fprintf(w, format, args...)
		}
	}

	write("...\n...\n")
	if !suppressed {
		write("WAITING UNTIL %s BTC RECEIVED AT %s\n", amount.FormatBTC(value), address)
	}
	write("...\n...\n")
	return err
}
