package domain

import (
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/fd1az/dex-trader/internal/apperror"
)

// Denomination names the asset a ladder's AmountIn is expressed in.
type Denomination int

const (
	DenomQuote Denomination = iota
	DenomBase
)

func (d Denomination) String() string {
	if d == DenomBase {
		return "base"
	}
	return "quote"
}

// LadderParams describes a scale order. Prices are raw price levels.
type LadderParams struct {
	AmountIn     *big.Int
	StartPrice   *big.Int
	EndPrice     *big.Int
	NumOrders    int
	Skew         decimal.Decimal // weight of the last order relative to the first
	ScaleFactor  *big.Int
	Denomination Denomination
}

// LadderOrder is one resting order of a ladder. Value is the quote notional.
type LadderOrder struct {
	Price *big.Int
	Size  *big.Int
	Value *big.Int
}

// BuildLadder spreads AmountIn over NumOrders prices interpolated between
// StartPrice and EndPrice, weighted linearly from 1 to Skew. Rounding
// remainders are left in place, so totals can differ slightly from AmountIn.
func BuildLadder(p LadderParams) ([]LadderOrder, error) {
	switch {
	case p.NumOrders < 1:
		return nil, invalidLadder("at least one order is required")
	case p.ScaleFactor == nil || p.ScaleFactor.Sign() <= 0:
		return nil, invalidLadder("scale factor must be positive")
	case p.AmountIn == nil || p.AmountIn.Sign() <= 0:
		return nil, invalidLadder("amount must be positive")
	case p.StartPrice == nil || p.EndPrice == nil:
		return nil, invalidLadder("start and end price are required")
	}

	n := p.NumOrders
	start := decimal.NewFromBigInt(p.StartPrice, 0)
	end := decimal.NewFromBigInt(p.EndPrice, 0)
	one := decimal.NewFromInt(1)

	prices := make([]decimal.Decimal, n)
	weights := make([]decimal.Decimal, n)
	for i := 0; i < n; i++ {
		if n == 1 {
			prices[i] = start.Round(0)
			weights[i] = one
			continue
		}
		frac := decimal.NewFromInt(int64(i)).Div(decimal.NewFromInt(int64(n - 1)))
		prices[i] = start.Add(end.Sub(start).Mul(frac)).Round(0)
		weights[i] = one.Add(p.Skew.Sub(one).Mul(frac))
	}

	amount := decimal.NewFromBigInt(p.AmountIn, 0)
	scale := decimal.NewFromBigInt(p.ScaleFactor, 0)

	var x decimal.Decimal
	switch p.Denomination {
	case DenomBase:
		sum := decimal.Zero
		for _, w := range weights {
			sum = sum.Add(w)
		}
		if sum.IsZero() {
			return nil, invalidLadder("weights sum to zero")
		}
		x = amount.Div(sum)
	default:
		sum := decimal.Zero
		for i, w := range weights {
			sum = sum.Add(prices[i].Mul(w))
		}
		if sum.IsZero() {
			return nil, invalidLadder("weighted prices sum to zero")
		}
		x = amount.Mul(scale).Div(sum)
	}

	orders := make([]LadderOrder, n)
	for i := range orders {
		size := x.Mul(weights[i]).Round(0)
		orders[i] = LadderOrder{
			Price: prices[i].BigInt(),
			Size:  size.BigInt(),
			Value: prices[i].Mul(size).Div(scale).Round(0).BigInt(),
		}
	}
	return orders, nil
}

func invalidLadder(msg string) error {
	return apperror.New(apperror.CodeInvalidLadder, apperror.WithContext(msg))
}
