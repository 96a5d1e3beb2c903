package app

import (
	"context"

	"github.com/fd1az/dex-trader/business/blockchain/domain"
)

// BlockchainService exposes chain heads to other modules. It implements the
// ledger's BlockSource.
type BlockchainService struct {
	subscriber BlockSubscriber
}

func NewBlockchainService(subscriber BlockSubscriber) *BlockchainService {
	return &BlockchainService{subscriber: subscriber}
}

// SubscribeBlocks starts the block subscription and returns the channel.
func (s *BlockchainService) SubscribeBlocks(ctx context.Context) (<-chan *domain.Block, error) {
	return s.subscriber.Subscribe(ctx)
}

func (s *BlockchainService) LatestBlock(ctx context.Context) (*domain.Block, error) {
	return s.subscriber.LatestBlock(ctx)
}

func (s *BlockchainService) ConnectionState() domain.ConnectionState {
	return s.subscriber.State()
}

func (s *BlockchainService) Status() domain.ConnectionStatus {
	return s.subscriber.Status()
}

// Connected reports whether heads are currently being received.
func (s *BlockchainService) Connected() bool {
	return s.subscriber.State() == domain.StateConnected
}
