// Package configstore builds the market table from configuration.
package configstore

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/dex-trader/business/market/domain"
	"github.com/fd1az/dex-trader/internal/apperror"
	"github.com/fd1az/dex-trader/internal/asset"
	"github.com/fd1az/dex-trader/internal/config"
)

// LoadMarkets converts the configured rows into markets, resolving token
// addresses and decimals through the registry. Order is preserved.
func LoadMarkets(rows []config.MarketConfig, registry *asset.Registry) ([]domain.Market, error) {
	markets := make([]domain.Market, 0, len(rows))
	seen := make(map[domain.Key]bool, len(rows))

	for _, row := range rows {
		m, err := toMarket(row, registry)
		if err != nil {
			return nil, err
		}
		if seen[m.Key] {
			return nil, apperror.New(apperror.CodeInvalidMarketConfig, apperror.WithContextf("%s: duplicate market", m.Key))
		}
		seen[m.Key] = true
		markets = append(markets, m)
	}
	return markets, nil
}

func toMarket(row config.MarketConfig, registry *asset.Registry) (domain.Market, error) {
	key := domain.NewKey(row.Base, row.Quote)

	base, ok := registry.BySymbol(row.Base)
	if !ok {
		return domain.Market{}, apperror.New(apperror.CodeTokenNotFound, apperror.WithContextf("%s: base %s", key, row.Base))
	}
	quote, ok := registry.BySymbol(row.Quote)
	if !ok {
		return domain.Market{}, apperror.New(apperror.CodeTokenNotFound, apperror.WithContextf("%s: quote %s", key, row.Quote))
	}
	if !common.IsHexAddress(row.Contract) {
		return domain.Market{}, apperror.New(apperror.CodeInvalidMarketConfig, apperror.WithContextf("%s: contract %q", key, row.Contract))
	}

	ints := make([]*big.Int, 5)
	for i, s := range []string{row.ScaleFactor, row.PriceFactor, row.MinSize, row.MaxPrice, row.TickSize} {
		n, ok := config.ParseBig(s)
		if !ok {
			return domain.Market{}, apperror.New(apperror.CodeInvalidMarketConfig, apperror.WithContextf("%s: bad integer %q", key, s))
		}
		ints[i] = n
	}

	m := domain.Market{
		Key:             key,
		BaseAsset:       base.Symbol(),
		QuoteAsset:      quote.Symbol(),
		BaseAddress:     base.Address(),
		QuoteAddress:    quote.Address(),
		ContractAddress: common.HexToAddress(row.Contract),
		ScaleFactor:     ints[0],
		PriceFactor:     ints[1],
		BaseDecimals:    base.Decimals(),
		QuoteDecimals:   quote.Decimals(),
		Fee:             row.Fee,
		MinSize:         ints[2],
		MaxPrice:        ints[3],
		TickSize:        ints[4],
		Path:            []common.Address{base.Address(), quote.Address()},
	}
	if err := m.Validate(); err != nil {
		return domain.Market{}, err
	}
	return m, nil
}
