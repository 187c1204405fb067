package txn

import (
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/opendlt/aptos-toolkit/types"
)

// DefaultPriceMultiplier is the headroom applied over the node's gas estimate
const DefaultPriceMultiplier = 1.1

// EffectiveGasPrice scales a gas estimate by multiplier, truncating to whole octas
func EffectiveGasPrice(estimate uint64, multiplier float64) uint64 {
	if multiplier <= 0 {
		multiplier = DefaultPriceMultiplier
	}
	return octas(estimate).
		Mul(decimal.NewFromFloat(multiplier)).
		Truncate(0).
		BigInt().
		Uint64()
}

// OptimalGasPrice returns the node estimate with the default headroom applied
func OptimalGasPrice(est *types.GasEstimation) uint64 {
	if est == nil {
		return 0
	}
	return EffectiveGasPrice(est.GasEstimate, DefaultPriceMultiplier)
}

// EstimateTransactionCost returns units*price expressed in APT
func EstimateTransactionCost(units, price uint64) decimal.Decimal {
	return octas(units).
		Mul(octas(price)).
		Div(decimal.NewFromInt(types.OctasPerAPT))
}

func octas(v uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0)
}
