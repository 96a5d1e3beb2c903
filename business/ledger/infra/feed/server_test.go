package feed

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/dex-trader/business/ledger/app"
	"github.com/fd1az/dex-trader/business/ledger/domain"
	marketDomain "github.com/fd1az/dex-trader/business/market/domain"
	"github.com/fd1az/dex-trader/internal/wsconn"
)

var (
	ethUSDC  = marketDomain.NewKey("ETH", "USDC")
	wbtcUSDC = marketDomain.NewKey("WBTC", "USDC")
)

func dial(t *testing.T, s *Server) (*wsconn.Client, <-chan Message) {
	t.Helper()
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	cfg := wsconn.DefaultConfig("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", "feed-test")
	cfg.PingInterval = 0
	c, err := wsconn.New(cfg)
	require.NoError(t, err)

	msgs := make(chan Message, 16)
	c.OnMessage(func(_ context.Context, data []byte) {
		var m Message
		if json.Unmarshal(data, &m) == nil {
			msgs <- m
		}
	})
	require.NoError(t, c.Connect(context.Background()))
	t.Cleanup(func() { _ = c.Close() })

	require.Eventually(t, func() bool { return s.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)
	return c, msgs
}

func next(t *testing.T, msgs <-chan Message) Message {
	t.Helper()
	select {
	case m := <-msgs:
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
		return Message{}
	}
}

func notification(market marketDomain.Key) domain.Notification {
	return domain.Notification{
		ID:        "n-1",
		Kind:      domain.KindFill,
		Side:      domain.SideBuy,
		Market:    market,
		AmountIn:  big.NewInt(2500),
		AmountOut: big.NewInt(1),
		Timestamp: 1700000000,
	}
}

func TestServer_BroadcastsNotifications(t *testing.T) {
	s := NewServer(0, nil)
	_, msgs := dial(t, s)

	s.Notify(notification(ethUSDC))

	m := next(t, msgs)
	assert.Equal(t, TypeNotification, m.Type)
	require.NotNil(t, m.Notification)
	assert.Equal(t, "fill", m.Notification.Kind)
	assert.Equal(t, "buy", m.Notification.Side)
	assert.Equal(t, "ETH/USDC", m.Notification.Market)
	assert.Equal(t, "2500", m.Notification.AmountIn)
	assert.Empty(t, m.Notification.Price)
}

func TestServer_MarketFilter(t *testing.T) {
	s := NewServer(0, nil)
	c, msgs := dial(t, s)

	require.NoError(t, c.SendJSON(context.Background(), ClientMessage{Type: TypeSubscribe, Markets: []string{"WBTC/USDC", "WBTC/USDC"}}))
	ack := next(t, msgs)
	assert.Equal(t, TypeSubscribed, ack.Type)
	assert.Equal(t, []string{"WBTC/USDC"}, ack.Markets)

	s.Notify(notification(ethUSDC))
	s.Notify(notification(wbtcUSDC))

	m := next(t, msgs)
	require.NotNil(t, m.Notification)
	assert.Equal(t, "WBTC/USDC", m.Notification.Market)

	select {
	case extra := <-msgs:
		t.Fatalf("unexpected message %+v", extra)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestServer_SyncStatus(t *testing.T) {
	s := NewServer(0, nil)
	_, msgs := dial(t, s)

	s.UpdateSyncStatus(app.SyncStatus{LastBlock: 90, HeadBlock: 100, Connected: true})

	m := next(t, msgs)
	assert.Equal(t, TypeSync, m.Type)
	require.NotNil(t, m.Sync)
	assert.Equal(t, uint64(10), m.Sync.Lag)
	assert.True(t, m.Sync.Connected)
}

func TestServer_RemovesClosedClients(t *testing.T) {
	s := NewServer(0, nil)
	c, _ := dial(t, s)

	require.NoError(t, c.Close())
	assert.Eventually(t, func() bool { return s.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
}
