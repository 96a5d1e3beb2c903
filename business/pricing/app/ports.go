// Package app contains the pricing service and its ports.
package app

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	marketApp "github.com/fd1az/dex-trader/business/market/app"
	marketDomain "github.com/fd1az/dex-trader/business/market/domain"
	"github.com/fd1az/dex-trader/internal/asset"
)

// BookReader reads the best resting prices of a market's order book.
type BookReader interface {
	// BestBidAsk returns raw price levels. Either may be zero on an empty side.
	BestBidAsk(ctx context.Context, m marketDomain.Market) (bid, ask *big.Int, err error)
}

// LastPriceSource returns the price of the most recent trade in a market.
type LastPriceSource interface {
	LastPrice(market marketDomain.Key) (*big.Int, bool)
}

// MarketFinder resolves markets and tokens.
type MarketFinder interface {
	FindMarket(a, b common.Address, mode marketApp.Mode) (marketDomain.Market, bool)
	Market(key marketDomain.Key) (marketDomain.Market, bool)
	Hops(path []common.Address) ([]marketDomain.Market, bool)
	TokenByAddress(addr common.Address) (*asset.Asset, bool)
}
