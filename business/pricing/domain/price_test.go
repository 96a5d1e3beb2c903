package domain

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	marketDomain "github.com/fd1az/dex-trader/business/market/domain"
)

var (
	eth  = common.HexToAddress("0xe7")
	usdc = common.HexToAddress("0xa0")
	foo  = common.HexToAddress("0xf0")
)

func exp10(n int64) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(n), nil)
}

func mul(a int64, b *big.Int) *big.Int {
	return new(big.Int).Mul(big.NewInt(a), b)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

var ethUSDC = marketDomain.Market{
	Key:           marketDomain.NewKey("ETH", "USDC"),
	BaseAddress:   eth,
	QuoteAddress:  usdc,
	BaseDecimals:  18,
	QuoteDecimals: 6,
	PriceFactor:   big.NewInt(100),
	ScaleFactor:   exp10(18),
	Fee:           99900,
}

var fooUSDC = marketDomain.Market{
	Key:           marketDomain.NewKey("FOO", "USDC"),
	BaseAddress:   foo,
	QuoteAddress:  usdc,
	BaseDecimals:  18,
	QuoteDecimals: 6,
	PriceFactor:   big.NewInt(100),
	ScaleFactor:   exp10(18),
	Fee:           99800,
}

func TestAveragePrice(t *testing.T) {
	tests := []struct {
		name      string
		tokenIn   common.Address
		amountIn  *big.Int
		amountOut *big.Int
		want      string
	}{
		{"buy base", usdc, mul(2500, exp10(6)), exp10(18), "2500"},
		{"sell base", eth, mul(2, exp10(18)), mul(5000, exp10(6)), "2500"},
		{"zero base", usdc, mul(2500, exp10(6)), big.NewInt(0), "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AveragePrice(ethUSDC, tt.tokenIn, tt.amountIn, tt.amountOut)
			assert.True(t, got.Equal(dec(tt.want)), "got %s", got)
		})
	}
}

func TestAveragePriceMultihop(t *testing.T) {
	path := []common.Address{eth, usdc, foo}
	hops := []marketDomain.Market{ethUSDC, fooUSDC}
	mids := []decimal.Decimal{dec("250000"), dec("200")}

	t.Run("actual amounts", func(t *testing.T) {
		got := AveragePriceMultihop(path, hops, exp10(18), mul(1250, exp10(18)), 18, 18, mids)
		assert.True(t, got.Equal(dec("0.0008")), "got %s", got)
	})

	t.Run("chained mids without a trade", func(t *testing.T) {
		// 1 / 2500 ETH per USDC, then 2 USDC per FOO
		got := AveragePriceMultihop(path, hops, exp10(18), nil, 18, 18, mids)
		assert.True(t, got.Equal(dec("0.0008")), "got %s", got)
	})

	t.Run("missing mid", func(t *testing.T) {
		got := ChainedMid(path, hops, []decimal.Decimal{dec("250000"), decimal.Zero})
		assert.True(t, got.IsZero())
	})
}

func TestMidPrice(t *testing.T) {
	assert.True(t, MidPrice(dec("249900"), dec("250100")).Equal(dec("250000")))
}

func TestReferencePrice(t *testing.T) {
	bid, ask := dec("249900"), dec("250100")
	assert.True(t, ReferencePrice(ethUSDC, usdc, bid, ask).Equal(dec("2501")))
	assert.True(t, ReferencePrice(ethUSDC, eth, bid, ask).Equal(dec("2499")))
}

func TestPriceImpact(t *testing.T) {
	tests := []struct {
		name     string
		avg, ref string
		want     string
	}{
		{"above reference", "101", "100", "1"},
		{"below reference", "98", "100", "2"},
		{"noise floor", "100.0005", "100", "0"},
		{"zero reference", "100", "0", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PriceImpact(dec(tt.avg), dec(tt.ref))
			assert.True(t, got.Equal(dec(tt.want)), "got %s", got)
		})
	}
}

func TestTradeFee(t *testing.T) {
	fee := TradeFee(mul(1000, exp10(6)), ethUSDC, 6)
	assert.True(t, fee.Equal(dec("1")), "got %s", fee)

	free := ethUSDC
	free.Fee = marketDomain.FeeDenominator
	assert.True(t, TradeFee(mul(1000, exp10(6)), free, 6).IsZero())
}

func TestTradeFee_ThreeHopComposite(t *testing.T) {
	hop := ethUSDC
	hop.Fee = 99900
	m := marketDomain.Composite(nil, []marketDomain.Market{hop, hop, hop})
	require.Equal(t, uint64(9970029990), m.Fee)

	fee := TradeFee(mul(1000, exp10(6)), m, 6)
	assert.True(t, fee.Equal(dec("-99699299.9")), "got %s", fee)
	assert.Equal(t, "0", FormatFee(fee))
}

func TestFormatFee(t *testing.T) {
	assert.Equal(t, "1", FormatFee(dec("1")))
	assert.Equal(t, "0.123457", FormatFee(dec("0.1234567")))
	assert.Equal(t, "0", FormatFee(dec("0.0000009")))
	assert.Equal(t, "0.000001", FormatFee(dec("0.000001")))
}
