// Package domain contains the price, fee and ladder arithmetic of the pricing context.
package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	marketDomain "github.com/fd1az/dex-trader/business/market/domain"
)

// impactFloor is the smallest price impact, in percent, that is reported.
var impactFloor = decimal.RequireFromString("0.001")

var (
	two     = decimal.NewFromInt(2)
	hundred = decimal.NewFromInt(100)
)

// ToUnits converts a raw token amount to display units.
func ToUnits(raw *big.Int, decimals uint8) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(raw, -int32(decimals))
}

// AveragePrice is the quote-per-base price of a direct trade of amountIn
// tokenIn for amountOut. It is zero when the base amount is zero.
func AveragePrice(m marketDomain.Market, tokenIn common.Address, amountIn, amountOut *big.Int) decimal.Decimal {
	var quote, base decimal.Decimal
	if m.BuysBase(tokenIn) {
		quote = ToUnits(amountIn, m.QuoteDecimals)
		base = ToUnits(amountOut, m.BaseDecimals)
	} else {
		base = ToUnits(amountIn, m.BaseDecimals)
		quote = ToUnits(amountOut, m.QuoteDecimals)
	}
	if base.IsZero() {
		return decimal.Zero
	}
	return quote.Div(base)
}

// AveragePriceMultihop is the input-per-output price of a trade along path.
// With both amounts known it is their normalised ratio; otherwise it is the
// chained mid price of the hops.
func AveragePriceMultihop(path []common.Address, hops []marketDomain.Market, amountIn, amountOut *big.Int, decIn, decOut uint8, mids []decimal.Decimal) decimal.Decimal {
	if amountIn != nil && amountOut != nil && amountIn.Sign() != 0 && amountOut.Sign() != 0 {
		return ToUnits(amountIn, decIn).Div(ToUnits(amountOut, decOut))
	}
	return ChainedMid(path, hops, mids)
}

// ChainedMid multiplies by each hop's normalised mid when the hop spends the
// quote asset and divides by it otherwise. A hop with no usable mid yields zero.
func ChainedMid(path []common.Address, hops []marketDomain.Market, mids []decimal.Decimal) decimal.Decimal {
	if len(hops) == 0 || len(mids) < len(hops) || len(path) < len(hops)+1 {
		return decimal.Zero
	}
	price := decimal.NewFromInt(1)
	for i, hop := range hops {
		mid := NormalizePrice(mids[i], hop.PriceFactor)
		if mid.IsZero() {
			return decimal.Zero
		}
		if hop.BuysBase(path[i]) {
			price = price.Mul(mid)
		} else {
			price = price.Div(mid)
		}
	}
	return price
}

// NormalizePrice divides a raw price level by the market price factor.
func NormalizePrice(raw decimal.Decimal, priceFactor *big.Int) decimal.Decimal {
	if priceFactor == nil || priceFactor.Sign() <= 0 {
		return decimal.Zero
	}
	return raw.Div(decimal.NewFromBigInt(priceFactor, 0))
}

func MidPrice(bid, ask decimal.Decimal) decimal.Decimal {
	return bid.Add(ask).Div(two)
}

// ReferencePrice is the book price a direct trade is measured against: the
// best ask when buying base, the best bid when selling.
func ReferencePrice(m marketDomain.Market, tokenIn common.Address, bid, ask decimal.Decimal) decimal.Decimal {
	if m.BuysBase(tokenIn) {
		return NormalizePrice(ask, m.PriceFactor)
	}
	return NormalizePrice(bid, m.PriceFactor)
}

// PriceImpact is |avg-ref|/ref in percent. Values under 0.001 and a zero
// reference report zero.
func PriceImpact(avg, ref decimal.Decimal) decimal.Decimal {
	if ref.IsZero() {
		return decimal.Zero
	}
	impact := avg.Sub(ref).Abs().Div(ref).Mul(hundred)
	if impact.LessThan(impactFloor) {
		return decimal.Zero
	}
	return impact
}
