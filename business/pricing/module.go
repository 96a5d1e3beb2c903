// Package pricing implements the pricing bounded context: route quotes,
// price impact, fees and scale-order ladders.
package pricing

import (
	"context"

	"github.com/ethereum/go-ethereum/ethclient"

	ledgerDI "github.com/fd1az/dex-trader/business/ledger/di"
	marketDI "github.com/fd1az/dex-trader/business/market/di"
	"github.com/fd1az/dex-trader/business/pricing/app"
	pricingDI "github.com/fd1az/dex-trader/business/pricing/di"
	"github.com/fd1az/dex-trader/business/pricing/infra/ethereum"
	"github.com/fd1az/dex-trader/internal/config"
	"github.com/fd1az/dex-trader/internal/di"
	"github.com/fd1az/dex-trader/internal/logger"
	"github.com/fd1az/dex-trader/internal/monolith"
	"github.com/fd1az/dex-trader/internal/ratelimit"
)

// Module implements the pricing bounded context.
type Module struct{}

// RegisterServices registers all pricing services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, pricingDI.BookReader, func(sr di.ServiceRegistry) app.BookReader {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		client := sr.Get("ethClient").(*ethclient.Client)

		reader, err := ethereum.NewBookReader(client, ratelimit.New(cfg.Ethereum.RequestsPerMinute), log)
		if err != nil {
			panic("failed to create book reader: " + err.Error())
		}
		return reader
	})

	di.RegisterToken(c, pricingDI.PricingService, func(sr di.ServiceRegistry) *app.PricingService {
		log := sr.Get("logger").(logger.LoggerInterface)
		return app.NewPricingService(
			marketDI.GetMarketService(sr),
			pricingDI.GetBookReader(sr),
			ledgerDI.GetLedgerService(sr),
			log,
		)
	})

	return nil
}

// Startup initializes the pricing module.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	pricingDI.GetPricingService(mono.Services())
	mono.Logger().Info(ctx, "pricing module started")
	return nil
}
