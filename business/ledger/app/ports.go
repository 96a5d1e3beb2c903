package app

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	blockchainDomain "github.com/fd1az/dex-trader/business/blockchain/domain"
	"github.com/fd1az/dex-trader/business/ledger/domain"
	marketDomain "github.com/fd1az/dex-trader/business/market/domain"
)

// Notifier receives ledger output for display or delivery.
type Notifier interface {
	// Start initializes the notifier.
	Start(ctx context.Context) error

	// Notify delivers one notification.
	Notify(n domain.Notification)

	// UpdateLedger publishes the latest ledger snapshot.
	UpdateLedger(snap *domain.Snapshot)

	// UpdateSyncStatus publishes syncer progress.
	UpdateSyncStatus(status SyncStatus)

	// Stop gracefully shuts down the notifier.
	Stop() error
}

// SyncStatus describes how far the syncer has read the chain.
type SyncStatus struct {
	LastBlock uint64
	HeadBlock uint64
	LastSync  time.Time
	Connected bool
}

// Lag is the number of blocks not yet read.
func (s SyncStatus) Lag() uint64 {
	if s.HeadBlock <= s.LastBlock {
		return 0
	}
	return s.HeadBlock - s.LastBlock
}

// LogSource fetches raw exchange logs.
type LogSource interface {
	// LatestBlock returns the chain head number.
	LatestBlock(ctx context.Context) (uint64, error)

	// FetchLogs returns logs of the watched contracts in [from, to], in chain order.
	FetchLogs(ctx context.Context, from, to uint64) ([]types.Log, error)
}

// TradeHistorySource returns recent trades of a market from an indexer.
type TradeHistorySource interface {
	RecentTrades(ctx context.Context, market marketDomain.Market, limit int) ([]domain.Trade, error)
}

// LedgerStore persists ledger entries and trades between sessions.
type LedgerStore interface {
	// Load returns every persisted ledger entry and trade in insertion order.
	Load(ctx context.Context) ([]domain.Order, []domain.Trade, error)

	// SaveBatch upserts orders by identity and appends trades.
	SaveBatch(ctx context.Context, orders []domain.Order, trades []domain.Trade) error
}

// MarketLookup resolves the market a log was emitted by.
type MarketLookup interface {
	ByContract(addr common.Address) (marketDomain.Market, bool)
	Markets() []marketDomain.Market
}

// BlockSource announces new chain heads.
type BlockSource interface {
	SubscribeBlocks(ctx context.Context) (<-chan *blockchainDomain.Block, error)
}
