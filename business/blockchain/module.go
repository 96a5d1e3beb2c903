// Package blockchain implements the blockchain bounded context: following
// the chain head for the ledger syncer.
package blockchain

import (
	"context"

	"github.com/fd1az/dex-trader/business/blockchain/app"
	blockchainDI "github.com/fd1az/dex-trader/business/blockchain/di"
	"github.com/fd1az/dex-trader/business/blockchain/infra/ethereum"
	"github.com/fd1az/dex-trader/internal/config"
	"github.com/fd1az/dex-trader/internal/di"
	"github.com/fd1az/dex-trader/internal/logger"
	"github.com/fd1az/dex-trader/internal/monolith"
)

// Module implements the blockchain bounded context.
type Module struct{}

// RegisterServices registers all blockchain services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, blockchainDI.BlockSubscriber, func(sr di.ServiceRegistry) app.BlockSubscriber {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		subCfg := ethereum.DefaultSubscriberConfig(cfg.Ethereum.WebSocketURL, cfg.Ethereum.HTTPURL)
		if cfg.Ethereum.PollInterval > 0 {
			subCfg.PollInterval = cfg.Ethereum.PollInterval
		}
		if cfg.Ethereum.ReconnectDelay > 0 {
			subCfg.ReconnectDelay = cfg.Ethereum.ReconnectDelay
		}
		sub, err := ethereum.NewSubscriber(subCfg, log)
		if err != nil {
			panic("failed to create subscriber: " + err.Error())
		}
		return sub
	})

	di.RegisterToken(c, blockchainDI.BlockchainService, func(sr di.ServiceRegistry) *app.BlockchainService {
		return app.NewBlockchainService(blockchainDI.GetBlockSubscriber(sr))
	})

	return nil
}

// Startup checks the node serves the configured chain.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()
	cfg := mono.Config()

	sub := blockchainDI.GetBlockSubscriber(mono.Services())
	if verifier, ok := sub.(interface {
		VerifyChain(context.Context, uint64) error
	}); ok && cfg.Ethereum.ChainID != 0 {
		if err := verifier.VerifyChain(ctx, cfg.Ethereum.ChainID); err != nil {
			return err
		}
	}

	log.Info(ctx, "blockchain module started", "chain_id", cfg.Ethereum.ChainID)
	return nil
}
