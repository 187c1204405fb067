package dex

import (
	"math"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

var (
	feeNumerator   = uint256.NewInt(997)
	feeDenominator = uint256.NewInt(1000)
)

// AmountOut is the constant-product output with a 0.3% fee. Products are
// computed in 256 bits and the result is truncated. Zero reserves yield zero.
func AmountOut(amountIn, reserveIn, reserveOut uint64) uint64 {
	if reserveIn == 0 || reserveOut == 0 {
		return 0
	}

	inWithFee := new(uint256.Int).Mul(uint256.NewInt(amountIn), feeNumerator)
	numerator := new(uint256.Int).Mul(inWithFee, uint256.NewInt(reserveOut))
	denominator := new(uint256.Int).Mul(uint256.NewInt(reserveIn), feeDenominator)
	denominator.Add(denominator, inWithFee)
	if denominator.IsZero() {
		return 0
	}
	return clampUint64(new(uint256.Int).Div(numerator, denominator))
}

// AmountOutNoFee is the constant-product output without a fee
func AmountOutNoFee(amountIn, reserveIn, reserveOut uint64) uint64 {
	numerator := new(uint256.Int).Mul(uint256.NewInt(amountIn), uint256.NewInt(reserveOut))
	denominator := new(uint256.Int).Add(uint256.NewInt(reserveIn), uint256.NewInt(amountIn))
	if denominator.IsZero() {
		return 0
	}
	return clampUint64(new(uint256.Int).Div(numerator, denominator))
}

// AmountOutPath applies AmountOut once per hop. hops holds (reserveIn, reserveOut) pairs.
func AmountOutPath(amountIn uint64, hops []Reserves) uint64 {
	out := amountIn
	for _, hop := range hops {
		out = AmountOut(out, hop.In, hop.Out)
	}
	return out
}

func clampUint64(v *uint256.Int) uint64 {
	if !v.IsUint64() {
		return math.MaxUint64
	}
	return v.Uint64()
}

// MinOut is floor(amount * (1 - slippage))
func MinOut(amount uint64, slippage float64) uint64 {
	if slippage <= 0 {
		return amount
	}
	if slippage >= 1 {
		return 0
	}
	keep := decimal.NewFromInt(1).Sub(decimal.NewFromFloat(slippage))
	v := decimal.NewFromBigInt(new(big.Int).SetUint64(amount), 0).Mul(keep).Floor()
	return v.BigInt().Uint64()
}

// PriceImpact is the percentage by which the pool output falls short of the
// spot-price output
func PriceImpact(amountIn, reserveIn, reserveOut uint64) float64 {
	if reserveIn == 0 || reserveOut == 0 {
		return 0
	}
	spot := float64(reserveOut) / float64(reserveIn) * float64(amountIn)
	if spot == 0 {
		return 0
	}
	actual := float64(AmountOut(amountIn, reserveIn, reserveOut))
	return math.Abs(spot-actual) / spot * 100
}

// OptimalSlippage suggests a slippage percentage for a price impact percentage
func OptimalSlippage(impact float64) float64 {
	switch {
	case impact < 0.1:
		return 0.5
	case impact < 1.0:
		return 1.0
	default:
		return 2.0
	}
}

// FormatTokenAmount renders amount with decimals fractional digits. A zero
// fraction is omitted.
func FormatTokenAmount(amount uint64, decimals uint8) string {
	d := decimal.NewFromBigInt(new(big.Int).SetUint64(amount), -int32(decimals))
	if d.Equal(d.Truncate(0)) {
		return d.Truncate(0).String()
	}
	return d.StringFixed(int32(decimals))
}
