// Package fee sizes funding transactions from a network fee rate.
package fee

import (
	"github.com/btcsuite/btcd/btcutil"
)

// Byte costs used to size a transaction before it is signed.
const (
	BaseBytes         = 10
	InputBytes        = 148
	OutputBytes       = 34
	SafetyBufferBytes = 10

	// ArgsBytes and BitworkBytes cover the protocol payload that travels
	// with a funding spend.
	ArgsBytes    = 20
	BitworkBytes = 54

	// FundingExtraBytes is the payload overhead of a funding spend.
	FundingExtraBytes = ArgsBytes + BitworkBytes
)

// DustThreshold is the smallest change output worth creating.
const DustThreshold btcutil.Amount = 546

// kvBytes is the size unit fee rates are quoted in.
const kvBytes = 1024

// PerByte converts a rate in satoshis per 1024 bytes to whole satoshis per
// byte, rounding down.
func PerByte(ratePerKvB btcutil.Amount) btcutil.Amount {
	if ratePerKvB <= 0 {
		return 0
	}
	return ratePerKvB / kvBytes
}

// Size returns the estimated size in bytes. The primary spend output is
// always counted on top of outputCount.
func Size(inputCount, outputCount, extraBytes int) int {
	return BaseBytes +
		inputCount*InputBytes +
		(1+outputCount)*OutputBytes +
		extraBytes +
		SafetyBufferBytes
}

// Estimate returns the fee for a transaction of the given shape.
func Estimate(ratePerKvB btcutil.Amount, inputCount, outputCount, extraBytes int) btcutil.Amount {
	return PerByte(ratePerKvB) * btcutil.Amount(Size(inputCount, outputCount, extraBytes))
}

// Change returns the value left for a change output and whether it clears
// the dust threshold.
func Change(sourceValue, spend, fee btcutil.Amount) (btcutil.Amount, bool) {
	change := sourceValue - spend - fee
	return change, change >= DustThreshold
}
