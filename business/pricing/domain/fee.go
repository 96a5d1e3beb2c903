package domain

import (
	"math/big"

	"github.com/shopspring/decimal"

	marketDomain "github.com/fd1az/dex-trader/business/market/domain"
)

// feeDisplayFloor is the smallest fee shown as a number.
var feeDisplayFloor = decimal.RequireFromString("0.000001")

// TradeFee is amountIn * (FeeDenominator - Fee) / FeeDenominator in display
// units. Composite fees above the denominator make it negative.
func TradeFee(amountIn *big.Int, m marketDomain.Market, decimals uint8) decimal.Decimal {
	if amountIn == nil {
		return decimal.Zero
	}
	factor := new(big.Int).Sub(big.NewInt(marketDomain.FeeDenominator), new(big.Int).SetUint64(m.Fee))
	taken := new(big.Int).Mul(amountIn, factor)
	taken.Quo(taken, big.NewInt(marketDomain.FeeDenominator))
	return ToUnits(taken, decimals)
}

// FormatFee renders fee for display. Dust and negative values show as "0".
func FormatFee(fee decimal.Decimal) string {
	if fee.LessThan(feeDisplayFloor) {
		return "0"
	}
	return fee.Round(6).String()
}
