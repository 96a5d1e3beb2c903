// Package market implements the market bounded context: the configured
// market table, the token graph and multihop routing.
package market

import (
	"context"

	"github.com/fd1az/dex-trader/business/market/app"
	marketDI "github.com/fd1az/dex-trader/business/market/di"
	"github.com/fd1az/dex-trader/business/market/infra/configstore"
	"github.com/fd1az/dex-trader/internal/asset"
	"github.com/fd1az/dex-trader/internal/config"
	"github.com/fd1az/dex-trader/internal/di"
	"github.com/fd1az/dex-trader/internal/monolith"
)

// Module implements the market bounded context.
type Module struct{}

func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, marketDI.MarketService, func(sr di.ServiceRegistry) *app.MarketService {
		cfg := sr.Get("config").(*config.Config)
		registry := sr.Get("assetRegistry").(*asset.Registry)

		markets, err := configstore.LoadMarkets(cfg.Markets, registry)
		if err != nil {
			panic("failed to load markets: " + err.Error())
		}
		return app.NewMarketService(markets, registry, app.RouterConfig{
			NativeTicker:  cfg.Router.NativeTicker,
			WrappedTicker: cfg.Router.WrappedTicker,
			StableTicker:  cfg.Router.StableTicker,
		})
	})
	return nil
}

// Startup resolves the market table eagerly so config errors surface at boot.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	svc := marketDI.GetMarketService(mono.Services())
	mono.Logger().Info(ctx, "market module started", "markets", len(svc.Markets()))
	return nil
}
