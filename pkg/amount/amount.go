// Package amount converts between decimal BTC strings and satoshis without
// going through floating point.
package amount

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
)

// BTCDecimals is the number of decimal places in one bitcoin
const BTCDecimals = 8

// ParseBTC converts a decimal BTC string such as "0.00012" to satoshis.
// Digits beyond the eighth decimal place are truncated.
func ParseBTC(s string) (btcutil.Amount, error) {
	n, err := parseWithDecimals(s, BTCDecimals)
	if err != nil {
		return 0, fmt.Errorf("invalid BTC amount %q: %w", s, err)
	}
	return btcutil.Amount(n), nil
}

// FormatBTC renders satoshis as a decimal BTC string, e.g. 12000 -> "0.00012000"
func FormatBTC(a btcutil.Amount) string {
	if a < 0 {
		return "-" + formatWithDecimals(uint64(-a), BTCDecimals)
	}
	return formatWithDecimals(uint64(a), BTCDecimals)
}

// Parse accepts either a satoshi count with a "sat"/"sats" suffix or a
// decimal BTC value with an optional "btc" suffix.
func Parse(s string) (btcutil.Amount, error) {
	v := strings.ToLower(strings.TrimSpace(s))

	for _, suffix := range []string{"sats", "sat"} {
		if strings.HasSuffix(v, suffix) {
			n, err := strconv.ParseUint(strings.TrimSpace(strings.TrimSuffix(v, suffix)), 10, 63)
			if err != nil {
				return 0, fmt.Errorf("invalid satoshi amount %q: %w", s, err)
			}
			return btcutil.Amount(n), nil
		}
	}

	return ParseBTC(strings.TrimSpace(strings.TrimSuffix(v, "btc")))
}

// formatWithDecimals converts integer to decimal string by inserting decimal point
// Example: formatWithDecimals(24981836, 8) = "0.24981836"
func formatWithDecimals(value uint64, decimals int) string {
	s := strconv.FormatUint(value, 10)

	// Pad with leading zeros if needed
	for len(s) <= decimals {
		s = "0" + s
	}

	pos := len(s) - decimals
	return s[:pos] + "." + s[pos:]
}

// parseWithDecimals converts decimal string to integer by removing decimal point
// Example: parseWithDecimals("0.24981836", 8) = 24981836
func parseWithDecimals(s string, decimals int) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty string")
	}

	parts := strings.Split(s, ".")

	if len(parts) == 1 {
		n, err := strconv.ParseUint(parts[0], 10, 63)
		if err != nil {
			return 0, err
		}
		for i := 0; i < decimals; i++ {
			n *= 10
		}
		return n, nil
	}

	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid decimal format")
	}

	whole := parts[0]
	if whole == "" {
		whole = "0"
	}
	frac := parts[1]
	if frac == "" && parts[0] == "" {
		return 0, fmt.Errorf("invalid decimal format")
	}

	// Pad or truncate fractional part to exact decimals
	if len(frac) < decimals {
		frac += strings.Repeat("0", decimals-len(frac))
	} else if len(frac) > decimals {
		frac = frac[:decimals]
	}

	return strconv.ParseUint(whole+frac, 10, 63)
}
