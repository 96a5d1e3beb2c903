// Package di contains dependency injection tokens for the pricing context.
package di

import (
	"github.com/fd1az/dex-trader/business/pricing/app"
	"github.com/fd1az/dex-trader/internal/di"
)

// Public service tokens - exposed to other modules
var (
	PricingService = di.NewToken[*app.PricingService]("pricing.PricingService")
)

// Private dependency tokens - internal to pricing module
var (
	BookReader = di.NewToken[app.BookReader]("pricing:bookReader")
)

func GetPricingService(c di.ServiceRegistry) *app.PricingService {
	return di.GetToken(c, PricingService)
}

func GetBookReader(c di.ServiceRegistry) app.BookReader {
	return di.GetToken(c, BookReader)
}
