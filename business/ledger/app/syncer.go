package app

import (
	"context"
	"sync"
	"time"

	blockchainDomain "github.com/fd1az/dex-trader/business/blockchain/domain"
	"github.com/fd1az/dex-trader/internal/logger"
)

// SyncerConfig holds configuration for the log syncer.
type SyncerConfig struct {
	// StartBlock is the first block read. Zero starts at the current head.
	StartBlock    uint64
	MaxBlockRange uint64
}

// Syncer reads exchange logs block by block and feeds them to the ledger.
type Syncer struct {
	source LogSource
	blocks BlockSource
	ledger *LedgerService
	config SyncerConfig
	logger logger.LoggerInterface

	mu     sync.RWMutex
	next   uint64
	status SyncStatus
}

// NewSyncer creates a new Syncer.
func NewSyncer(source LogSource, blocks BlockSource, ledger *LedgerService, config SyncerConfig, log logger.LoggerInterface) *Syncer {
	if config.MaxBlockRange == 0 {
		config.MaxBlockRange = 2000
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Syncer{
		source: source,
		blocks: blocks,
		ledger: ledger,
		config: config,
		logger: log,
		next:   config.StartBlock,
	}
}

// Start catches up to the current head and then follows new blocks.
func (s *Syncer) Start(ctx context.Context) error {
	s.logger.Info(ctx, "starting ledger syncer", "start_block", s.config.StartBlock)

	head, err := s.source.LatestBlock(ctx)
	if err != nil {
		return err
	}
	if err := s.SyncTo(ctx, head); err != nil {
		s.logger.Warn(ctx, "initial sync incomplete", "error", err)
	}

	blocks, err := s.blocks.SubscribeBlocks(ctx)
	if err != nil {
		return err
	}

	go s.run(ctx, blocks)
	return nil
}

func (s *Syncer) run(ctx context.Context, blocks <-chan *blockchainDomain.Block) {
	for {
		select {
		case <-ctx.Done():
			s.logger.Info(ctx, "syncer stopping", "reason", ctx.Err())
			return
		case block, ok := <-blocks:
			if !ok {
				s.logger.Info(ctx, "block stream closed")
				s.setConnected(false)
				return
			}
			if block != nil {
				s.onNewBlock(ctx, block)
			}
		}
	}
}

func (s *Syncer) onNewBlock(ctx context.Context, block *blockchainDomain.Block) {
	s.logger.Debug(ctx, "processing block", "number", block.Number, "hash", block.Hash.Hex())
	if err := s.SyncTo(ctx, block.Number); err != nil {
		s.logger.Error(ctx, "sync failed", "block", block.Number, "error", err)
	}
}

// SyncTo reads every block up to head in windows of MaxBlockRange. On error
// the remaining range is retried on the next call.
func (s *Syncer) SyncTo(ctx context.Context, head uint64) error {
	s.mu.Lock()
	if s.next == 0 {
		s.next = head
	}
	from := s.next
	s.status.HeadBlock = head
	s.mu.Unlock()

	for from <= head {
		to := from + s.config.MaxBlockRange - 1
		if to > head {
			to = head
		}

		logs, err := s.source.FetchLogs(ctx, from, to)
		if err != nil {
			s.setConnected(false)
			return err
		}

		res := s.ledger.Ingest(ctx, logs, to)
		if len(res.Errors) > 0 || res.Applied > 0 {
			s.logger.Info(ctx, "ledger batch applied",
				"from", from, "to", to,
				"applied", res.Applied, "skipped", res.Skipped,
				"errors", len(res.Errors), "notifications", len(res.Notifications))
		}

		s.mu.Lock()
		s.next = to + 1
		s.status.LastBlock = to
		s.status.LastSync = time.Now()
		s.status.Connected = true
		status := s.status
		s.mu.Unlock()

		s.ledger.UpdateSyncStatus(status)
		from = to + 1
	}
	return nil
}

// Status returns the current sync progress.
func (s *Syncer) Status() SyncStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// LastSync is the time of the last successful window, for health checks.
func (s *Syncer) LastSync() time.Time {
	return s.Status().LastSync
}

func (s *Syncer) setConnected(connected bool) {
	s.mu.Lock()
	s.status.Connected = connected
	status := s.status
	s.mu.Unlock()
	s.ledger.UpdateSyncStatus(status)
}
