// Package app contains the chain head service and its ports.
package app

import (
	"context"

	"github.com/fd1az/dex-trader/business/blockchain/domain"
)

// BlockSubscriber announces new chain heads.
type BlockSubscriber interface {
	// Subscribe starts following the chain and returns the head channel.
	// When the consumer lags, older heads are replaced by newer ones.
	Subscribe(ctx context.Context) (<-chan *domain.Block, error)

	// LatestBlock fetches the current head.
	LatestBlock(ctx context.Context) (*domain.Block, error)

	State() domain.ConnectionState
	Status() domain.ConnectionStatus
}
