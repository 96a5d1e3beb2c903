// Package ledger implements the ledger bounded context: decoding exchange
// logs, reconciling the account's orders and delivering notifications.
package ledger

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	blockchainDI "github.com/fd1az/dex-trader/business/blockchain/di"
	"github.com/fd1az/dex-trader/business/ledger/app"
	ledgerDI "github.com/fd1az/dex-trader/business/ledger/di"
	"github.com/fd1az/dex-trader/business/ledger/domain"
	"github.com/fd1az/dex-trader/business/ledger/infra"
	"github.com/fd1az/dex-trader/business/ledger/infra/ethereum"
	"github.com/fd1az/dex-trader/business/ledger/infra/feed"
	"github.com/fd1az/dex-trader/business/ledger/infra/store"
	"github.com/fd1az/dex-trader/business/ledger/infra/subgraph"
	marketDI "github.com/fd1az/dex-trader/business/market/di"
	"github.com/fd1az/dex-trader/internal/config"
	"github.com/fd1az/dex-trader/internal/di"
	"github.com/fd1az/dex-trader/internal/logger"
	"github.com/fd1az/dex-trader/internal/monolith"
	"github.com/fd1az/dex-trader/internal/ratelimit"
)

// Module implements the ledger bounded context.
type Module struct{}

func topics(cfg *config.Config) domain.Topics {
	return domain.Topics{
		OrderChange: common.HexToHash(cfg.Exchange.OrderTopic),
		TradeFill:   common.HexToHash(cfg.Exchange.TradeTopic),
	}
}

// RegisterServices registers all ledger services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, ledgerDI.LedgerService, func(sr di.ServiceRegistry) *app.LedgerService {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		markets := marketDI.GetMarketService(sr)

		var ledgerStore app.LedgerStore
		if cfg.Store.Enabled {
			s, err := store.Open(cfg.Store.Driver, cfg.Store.DSN, log)
			if err != nil {
				panic("failed to open ledger store: " + err.Error())
			}
			ledgerStore = s
		}

		var history app.TradeHistorySource
		if cfg.Subgraph.Enabled {
			client, err := subgraph.NewClient(subgraph.Config{
				URL:               cfg.Subgraph.URL,
				PageSize:          cfg.Subgraph.PageSize,
				Timeout:           cfg.Subgraph.Timeout,
				RequestsPerMinute: cfg.Subgraph.RequestsPerMinute,
			}, log)
			if err != nil {
				panic("failed to create subgraph client: " + err.Error())
			}
			history = client
		}

		svc, err := app.NewLedgerService(app.ServiceConfig{
			Account:     cfg.Account.Address,
			Topics:      topics(cfg),
			DedupWindow: cfg.Exchange.DedupWindow,
		}, markets, ledgerStore, history, log)
		if err != nil {
			panic("failed to create ledger service: " + err.Error())
		}
		return svc
	})

	di.RegisterToken(c, ledgerDI.LogSource, func(sr di.ServiceRegistry) app.LogSource {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		client := sr.Get("ethClient").(*ethclient.Client)

		contracts := make([]common.Address, 0)
		for _, addr := range marketDI.GetMarketService(sr).Contracts() {
			if addr != (common.Address{}) {
				contracts = append(contracts, addr)
			}
		}

		src, err := ethereum.NewLogSource(client, contracts, topics(cfg), ratelimit.New(cfg.Ethereum.RequestsPerMinute), log)
		if err != nil {
			panic("failed to create log source: " + err.Error())
		}
		return src
	})

	di.RegisterToken(c, ledgerDI.Syncer, func(sr di.ServiceRegistry) *app.Syncer {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		return app.NewSyncer(
			ledgerDI.GetLogSource(sr),
			blockchainDI.GetBlockchainService(sr),
			ledgerDI.GetLedgerService(sr),
			app.SyncerConfig{
				StartBlock:    cfg.Ethereum.StartBlock,
				MaxBlockRange: cfg.Ethereum.MaxBlockRange,
			},
			log,
		)
	})

	di.RegisterToken(c, ledgerDI.FeedServer, func(sr di.ServiceRegistry) *feed.Server {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		return feed.NewServer(cfg.Feed.Port, log)
	})

	return nil
}

// Startup restores the ledger, attaches notifiers and starts following the chain.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()
	cfg := mono.Config()
	services := mono.Services()

	svc := ledgerDI.GetLedgerService(services)
	if err := svc.Restore(ctx); err != nil {
		log.Warn(ctx, "ledger restore failed, starting empty", "error", err)
	}
	if err := svc.SeedTrades(ctx, cfg.Subgraph.PageSize); err != nil {
		log.Warn(ctx, "trade history seeding failed", "error", err)
	}

	if cfg.UI.TUIMode {
		svc.AddNotifier(infra.NewTUINotifier())
	} else {
		svc.AddNotifier(infra.NewConsoleNotifier())
	}
	if cfg.Feed.Enabled {
		svc.AddNotifier(ledgerDI.GetFeedServer(services))
	}
	if err := svc.StartNotifiers(ctx); err != nil {
		return err
	}

	if err := ledgerDI.GetSyncer(services).Start(ctx); err != nil {
		return err
	}

	log.Info(ctx, "ledger module started", "account", svc.Account())
	return nil
}
