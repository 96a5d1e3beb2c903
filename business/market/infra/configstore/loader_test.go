package configstore

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/dex-trader/business/market/domain"
	"github.com/fd1az/dex-trader/internal/apperror"
	"github.com/fd1az/dex-trader/internal/asset"
	"github.com/fd1az/dex-trader/internal/config"
)

func row(base, quote string) config.MarketConfig {
	return config.MarketConfig{
		Base:        base,
		Quote:       quote,
		Contract:    "0x00000000000000000000000000000000000000d1",
		ScaleFactor: "1000000000000000000",
		PriceFactor: "1000000",
		Fee:         99950,
		MinSize:     "1000",
		TickSize:    "10",
	}
}

func TestLoadMarkets(t *testing.T) {
	markets, err := LoadMarkets([]config.MarketConfig{row("eth", "usdc"), row("WBTC", "USDC")}, asset.DefaultRegistry())
	require.NoError(t, err)
	require.Len(t, markets, 2)

	m := markets[0]
	assert.Equal(t, domain.Key("ETH/USDC"), m.Key)
	assert.Equal(t, "ETH", m.BaseAsset)
	assert.Equal(t, common.Address{}, m.BaseAddress)
	assert.Equal(t, asset.AddrUSDCEthereum, m.QuoteAddress)
	assert.Equal(t, uint8(18), m.BaseDecimals)
	assert.Equal(t, uint8(6), m.QuoteDecimals)
	assert.Equal(t, "1000000000000000000", m.ScaleFactor.String())
	assert.Equal(t, int64(1000), m.MinSize.Int64())
	assert.Zero(t, m.MaxPrice.Sign())
	assert.Equal(t, []common.Address{m.BaseAddress, m.QuoteAddress}, m.Path)

	assert.Equal(t, domain.Key("WBTC/USDC"), markets[1].Key)
}

func TestLoadMarkets_Errors(t *testing.T) {
	reg := asset.DefaultRegistry()

	tests := []struct {
		name string
		rows []config.MarketConfig
		code apperror.Code
	}{
		{"unknown token", []config.MarketConfig{row("ETH", "DAI")}, apperror.CodeTokenNotFound},
		{"duplicate", []config.MarketConfig{row("ETH", "USDC"), row("ETH", "USDC")}, apperror.CodeInvalidMarketConfig},
		{"fee too large", []config.MarketConfig{func() config.MarketConfig { r := row("ETH", "USDC"); r.Fee = 100001; return r }()}, apperror.CodeInvalidMarketConfig},
		{"bad integer", []config.MarketConfig{func() config.MarketConfig { r := row("ETH", "USDC"); r.PriceFactor = "1e6"; return r }()}, apperror.CodeInvalidMarketConfig},
		{"same token", []config.MarketConfig{row("USDC", "USDC")}, apperror.CodeInvalidMarketConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadMarkets(tt.rows, reg)
			require.Error(t, err)
			assert.Equal(t, tt.code, apperror.GetCode(err))
		})
	}
}
