// Package di contains dependency injection tokens for the market context.
package di

import (
	"github.com/fd1az/dex-trader/business/market/app"
	"github.com/fd1az/dex-trader/internal/di"
)

// Public service tokens - exposed to other modules
var (
	MarketService = di.NewToken[*app.MarketService]("market.MarketService")
)

func GetMarketService(c di.ServiceRegistry) *app.MarketService {
	return di.GetToken(c, MarketService)
}
