package ui

import (
	"errors"
	"math/big"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/dex-trader/business/ledger/domain"
	marketDomain "github.com/fd1az/dex-trader/business/market/domain"
)

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	out, ok := next.(Model)
	require.True(t, ok)
	return out
}

func dashboard(t *testing.T) Model {
	t.Helper()
	m := New()
	m = update(t, m, tea.WindowSizeMsg{Width: 160, Height: 50})
	m = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("x")})
	for _, step := range stepOrder {
		m = update(t, m, StartupMsg{Step: step, Status: "done"})
	}
	require.Equal(t, PhaseDashboard, m.phase)
	return m
}

func TestModel_WelcomeAdvancesOnKey(t *testing.T) {
	m := update(t, New(), tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("x")})
	assert.Equal(t, PhaseStartup, m.phase)
	assert.Contains(t, m.View(), "Starting up")
}

func TestModel_LedgerSnapshot(t *testing.T) {
	m := dashboard(t)
	key := marketDomain.NewKey("ETH", "USDC")

	snap := &domain.Snapshot{
		OpenOrders: []domain.Order{{
			PriceLevel:       big.NewInt(2500),
			OrderKey:         42,
			QuantityEstimate: decimal.RequireFromString("1.5"),
			Side:             domain.SideBuy,
			Market:           key,
		}},
		Trades: []domain.Trade{{
			AmountIn: big.NewInt(10), AmountOut: big.NewInt(20), Price: big.NewInt(2), Market: key,
		}},
		MarketTrades: map[marketDomain.Key][]domain.Trade{
			key: {{AmountIn: big.NewInt(10), AmountOut: big.NewInt(20), Price: big.NewInt(2), Side: domain.SideBuy, Market: key}},
		},
		LastBlock: 777,
	}
	m = update(t, m, LedgerMsg{Snapshot: snap})

	stats := m.stats.Stats()
	assert.Equal(t, 1, stats.OpenOrders)
	assert.Equal(t, 1, stats.Trades)
	assert.Equal(t, uint64(777), stats.LastBlock)
	assert.Equal(t, 1, m.orders.Len())
	assert.Equal(t, 1, m.prices.Len())

	view := m.View()
	assert.Contains(t, view, "OPEN ORDERS (1)")
	assert.Contains(t, view, "ETH/USDC")
	assert.Contains(t, view, "1.500000")
	assert.Contains(t, view, "MARKETS")
}

func TestModel_NotificationsAreCapped(t *testing.T) {
	m := dashboard(t)
	for i := 0; i < maxNotifications+3; i++ {
		m = update(t, m, NotificationMsg{Notification: domain.Notification{Kind: domain.KindFill, Market: "ETH/USDC"}})
	}
	assert.Len(t, m.notifications, maxNotifications)
	assert.Equal(t, int64(maxNotifications+3), m.stats.Stats().Notifications)

	m = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("c")})
	assert.Empty(t, m.notifications)
}

func TestModel_PauseIgnoresSnapshots(t *testing.T) {
	m := dashboard(t)
	m = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("p")})
	m = update(t, m, LedgerMsg{Snapshot: &domain.Snapshot{OpenOrders: []domain.Order{{
		PriceLevel: big.NewInt(1), Market: "ETH/USDC",
	}}}})
	assert.Equal(t, 0, m.orders.Len())
	assert.Contains(t, m.View(), "PAUSED")
}

func TestModel_ErrorsKeepLastThree(t *testing.T) {
	m := dashboard(t)
	for i := 0; i < 5; i++ {
		m = update(t, m, ErrorMsg{Error: errors.New("rpc down")})
	}
	assert.Len(t, m.errors, maxErrors)
	assert.Equal(t, int64(5), m.stats.Stats().Errors)

	m = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("e")})
	assert.Empty(t, m.errors)
}

func TestModel_SyncStatus(t *testing.T) {
	m := dashboard(t)
	m = update(t, m, SyncMsg{LastBlock: 90, HeadBlock: 100, Connected: true})

	conn, ok := m.status.Get("Syncer")
	require.True(t, ok)
	assert.Equal(t, uint64(10), conn.Lag)
	assert.True(t, conn.Connected)
}

func TestModel_Quit(t *testing.T) {
	next, cmd := New().Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	assert.NotNil(t, cmd)
	assert.Contains(t, next.View(), "Goodbye")
}
