package ethereum

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/dex-trader/business/blockchain/domain"
	"github.com/fd1az/dex-trader/internal/apperror"
)

type fakeClient struct {
	mu      sync.Mutex
	head    *types.Header
	chainID int64
	heads   chan *types.Header
	closed  bool
}

func newFakeClient(number uint64) *fakeClient {
	return &fakeClient{
		head:    header(number, common.Hash{}),
		chainID: 1,
		heads:   make(chan *types.Header, 8),
	}
}

func header(number uint64, parent common.Hash) *types.Header {
	return &types.Header{
		Number:     new(big.Int).SetUint64(number),
		ParentHash: parent,
		Time:       uint64(time.Now().Unix()),
		Difficulty: big.NewInt(0),
	}
}

func (f *fakeClient) setHead(h *types.Header) {
	f.mu.Lock()
	f.head = h
	f.mu.Unlock()
}

func (f *fakeClient) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.head, nil
}

func (f *fakeClient) SubscribeNewHead(ctx context.Context, ch chan<- *types.Header) (ethereum.Subscription, error) {
	return event.NewSubscription(func(quit <-chan struct{}) error {
		for {
			select {
			case h := <-f.heads:
				select {
				case ch <- h:
				case <-quit:
					return nil
				}
			case <-quit:
				return nil
			}
		}
	}), nil
}

func (f *fakeClient) ChainID(context.Context) (*big.Int, error) {
	return big.NewInt(f.chainID), nil
}

func (f *fakeClient) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

func dialer(c HeadClient) DialFunc {
	return func(context.Context, string) (HeadClient, error) { return c, nil }
}

func receive(t *testing.T, blocks <-chan *domain.Block) *domain.Block {
	t.Helper()
	select {
	case b := <-blocks:
		return b
	case <-time.After(2 * time.Second):
		t.Fatal("no block received")
		return nil
	}
}

func TestSubscriber_WebSocketHeads(t *testing.T) {
	client := newFakeClient(100)
	cfg := DefaultSubscriberConfig("ws://node", "")
	cfg.Dial = dialer(client)
	s, err := NewSubscriber(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	blocks, err := s.Subscribe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.StateConnected, s.State())

	first := header(101, common.HexToHash("0x01"))
	client.heads <- first
	second := header(102, first.Hash())
	client.heads <- second

	assert.Equal(t, uint64(101), receive(t, blocks).Number)
	b := receive(t, blocks)
	assert.Equal(t, uint64(102), b.Number)
	assert.Equal(t, first.Hash(), b.ParentHash)

	status := s.Status()
	assert.Equal(t, uint64(102), status.LastBlock)
	assert.Zero(t, status.Reorgs)
	assert.False(t, status.UsingHTTP)
}

func TestSubscriber_CountsReorgs(t *testing.T) {
	client := newFakeClient(100)
	cfg := DefaultSubscriberConfig("ws://node", "")
	cfg.Dial = dialer(client)
	s, err := NewSubscriber(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	blocks, err := s.Subscribe(context.Background())
	require.NoError(t, err)

	client.heads <- header(101, common.HexToHash("0x01"))
	receive(t, blocks)
	client.heads <- header(102, common.HexToHash("0xdead"))
	receive(t, blocks)

	assert.Equal(t, 1, s.Status().Reorgs)
}

func TestSubscriber_HTTPPolling(t *testing.T) {
	client := newFakeClient(500)
	cfg := DefaultSubscriberConfig("", "http://node")
	cfg.PollInterval = 10 * time.Millisecond
	cfg.Dial = dialer(client)
	s, err := NewSubscriber(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	blocks, err := s.Subscribe(context.Background())
	require.NoError(t, err)
	assert.True(t, s.Status().UsingHTTP)

	assert.Equal(t, uint64(500), receive(t, blocks).Number)

	client.setHead(header(501, common.Hash{}))
	assert.Equal(t, uint64(501), receive(t, blocks).Number)
}

func TestSubscriber_LatestHeadWins(t *testing.T) {
	cfg := DefaultSubscriberConfig("ws://node", "")
	cfg.BufferSize = 1
	cfg.Dial = dialer(newFakeClient(1))
	s, err := NewSubscriber(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	s.emit(&domain.Block{Number: 1})
	s.emit(&domain.Block{Number: 2})
	s.emit(&domain.Block{Number: 3})

	b := <-s.blocks
	assert.Equal(t, uint64(3), b.Number)
}

func TestSubscriber_LatestBlock(t *testing.T) {
	client := newFakeClient(42)
	cfg := DefaultSubscriberConfig("", "http://node")
	cfg.PollInterval = time.Hour
	cfg.Dial = dialer(client)
	s, err := NewSubscriber(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	_, err = s.LatestBlock(context.Background())
	assert.True(t, apperror.HasCode(err, apperror.CodeEthereumConnectionFailed))

	_, err = s.Subscribe(context.Background())
	require.NoError(t, err)

	b, err := s.LatestBlock(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(42), b.Number)
}

func TestSubscriber_VerifyChain(t *testing.T) {
	client := newFakeClient(1)
	cfg := DefaultSubscriberConfig("", "http://node")
	cfg.Dial = dialer(client)
	s, err := NewSubscriber(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.VerifyChain(context.Background(), 1))

	err = s.VerifyChain(context.Background(), 42161)
	assert.True(t, apperror.HasCode(err, apperror.CodeConfigurationError))
}

func TestSubscriber_BothEndpointsFail(t *testing.T) {
	cfg := DefaultSubscriberConfig("ws://node", "http://node")
	cfg.Dial = func(context.Context, string) (HeadClient, error) { return nil, errors.New("refused") }
	s, err := NewSubscriber(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	_, err = s.Subscribe(context.Background())
	assert.True(t, apperror.HasCode(err, apperror.CodeEthereumConnectionFailed))
	assert.Equal(t, domain.StateDisconnected, s.State())
}

func TestNewSubscriber_RequiresEndpoint(t *testing.T) {
	_, err := NewSubscriber(SubscriberConfig{}, nil)
	assert.True(t, apperror.HasCode(err, apperror.CodeConfigurationError))
}
