package app

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/core/types"

	"github.com/fd1az/dex-trader/business/ledger/domain"
	marketDomain "github.com/fd1az/dex-trader/business/market/domain"
	"github.com/fd1az/dex-trader/internal/apperror"
	"github.com/fd1az/dex-trader/internal/dedup"
	"github.com/fd1az/dex-trader/internal/logger"
)

// ServiceConfig configures a LedgerService.
type ServiceConfig struct {
	Account     string
	Topics      domain.Topics
	DedupWindow int
}

// LedgerService is the single writer of the session ledger. Ingest calls are
// serialised; readers get immutable snapshots.
type LedgerService struct {
	writeMu  sync.Mutex
	state    *domain.State
	ingestor *Ingestor
	markets  MarketLookup
	account  string

	snapMu    sync.RWMutex
	snap      *domain.Snapshot
	lastBlock uint64

	notifyMu  sync.RWMutex
	notifiers []Notifier

	store   LedgerStore
	history TradeHistorySource
	log     logger.LoggerInterface
}

// NewLedgerService creates the service. store and history may be nil.
func NewLedgerService(cfg ServiceConfig, markets MarketLookup, store LedgerStore, history TradeHistorySource, log logger.LoggerInterface) (*LedgerService, error) {
	if log == nil {
		log = logger.NewNop()
	}
	size := cfg.DedupWindow
	if size <= 0 {
		size = dedup.DefaultSize
	}

	reconciler := NewReconciler(cfg.Account, log)
	ingestor, err := NewIngestor(cfg.Topics, dedup.NewWindow(size), markets, reconciler, log)
	if err != nil {
		return nil, err
	}

	s := &LedgerService{
		state:    domain.NewState(),
		ingestor: ingestor,
		markets:  markets,
		account:  reconciler.Account(),
		store:    store,
		history:  history,
		log:      log,
	}
	s.publish()
	return s, nil
}

// Account returns the normalised active account, or "".
func (s *LedgerService) Account() string {
	return s.account
}

// AddNotifier registers n for notifications and snapshot updates.
func (s *LedgerService) AddNotifier(n Notifier) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	s.notifiers = append(s.notifiers, n)
}

// StartNotifiers starts every registered notifier.
func (s *LedgerService) StartNotifiers(ctx context.Context) error {
	s.notifyMu.RLock()
	defer s.notifyMu.RUnlock()
	for _, n := range s.notifiers {
		if err := n.Start(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Stop stops every registered notifier and returns the first error.
func (s *LedgerService) Stop() error {
	s.notifyMu.RLock()
	defer s.notifyMu.RUnlock()
	var first error
	for _, n := range s.notifiers {
		if err := n.Stop(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Restore loads the persisted ledger into an empty state.
func (s *LedgerService) Restore(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	orders, trades, err := s.store.Load(ctx)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	s.state.Restore(orders, trades)
	s.writeMu.Unlock()

	s.publish()
	s.log.Info(ctx, "ledger restored", "orders", len(orders), "trades", len(trades))
	return nil
}

// SeedTrades fills each market's trade log from the history source. Seeded
// trades are not notified or persisted.
func (s *LedgerService) SeedTrades(ctx context.Context, limit int) error {
	if s.history == nil {
		return nil
	}

	seeded := 0
	for _, m := range s.markets.Markets() {
		trades, err := s.history.RecentTrades(ctx, m, limit)
		if err != nil {
			s.log.Warn(ctx, "trade history unavailable", "market", m.Key, "error", err)
			continue
		}

		s.writeMu.Lock()
		// sources return newest first
		for i := len(trades) - 1; i >= 0; i-- {
			s.state.AppendTrade(trades[i])
		}
		s.writeMu.Unlock()
		seeded += len(trades)
	}

	s.publish()
	s.log.Info(ctx, "trade history seeded", "trades", seeded)
	return nil
}

// Ingest applies one raw log batch read up to block.
func (s *LedgerService) Ingest(ctx context.Context, logs []types.Log, block uint64) Result {
	s.writeMu.Lock()
	res := s.ingestor.Ingest(ctx, s.state, logs)

	changed := s.state.TakeDirty()
	s.writeMu.Unlock()

	s.snapMu.Lock()
	if block > s.lastBlock {
		s.lastBlock = block
	}
	s.snapMu.Unlock()

	if s.store != nil && (len(changed) > 0 || len(res.NewTrades) > 0) {
		if err := s.store.SaveBatch(ctx, changed, res.NewTrades); err != nil {
			s.log.Error(ctx, "persist ledger batch", "error",
				apperror.Wrap(err, apperror.CodeStoreWriteFailed, "save batch"))
		}
	}

	snap := s.publish()
	s.fanOut(res.Notifications, snap)
	return res
}

// Snapshot returns the latest published snapshot. Callers must not modify it.
func (s *LedgerService) Snapshot() *domain.Snapshot {
	s.snapMu.RLock()
	defer s.snapMu.RUnlock()
	return s.snap
}

// LastPrice returns the price of the newest trade in market.
func (s *LedgerService) LastPrice(market marketDomain.Key) (*big.Int, bool) {
	return s.Snapshot().LastPrice(market)
}

// UpdateSyncStatus forwards syncer progress to the notifiers.
func (s *LedgerService) UpdateSyncStatus(status SyncStatus) {
	s.notifyMu.RLock()
	defer s.notifyMu.RUnlock()
	for _, n := range s.notifiers {
		n.UpdateSyncStatus(status)
	}
}

func (s *LedgerService) publish() *domain.Snapshot {
	s.writeMu.Lock()
	snap := s.state.Snapshot()
	s.writeMu.Unlock()

	s.snapMu.Lock()
	snap.LastBlock = s.lastBlock
	s.snap = &snap
	s.snapMu.Unlock()
	return &snap
}

func (s *LedgerService) fanOut(ns []domain.Notification, snap *domain.Snapshot) {
	s.notifyMu.RLock()
	defer s.notifyMu.RUnlock()
	for _, n := range s.notifiers {
		for _, note := range ns {
			n.Notify(note)
		}
		n.UpdateLedger(snap)
	}
}
