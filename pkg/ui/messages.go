// Package ui provides the Bubble Tea dashboard for the DEX trader.
package ui

import (
	"time"

	"github.com/fd1az/dex-trader/business/ledger/domain"
)

// LedgerMsg carries a new ledger snapshot.
type LedgerMsg struct {
	Snapshot *domain.Snapshot
}

// NotificationMsg carries one account notification.
type NotificationMsg struct {
	Notification domain.Notification
}

// SyncMsg reports syncer progress.
type SyncMsg struct {
	LastBlock uint64
	HeadBlock uint64
	Connected bool
	LastSync  time.Time
}

// ConnectionStatusMsg is sent when a connection changes state.
type ConnectionStatusMsg struct {
	Name      string
	Connected bool
	Latency   time.Duration
}

// BlockMsg is sent when a new block is received.
type BlockMsg struct {
	Number    uint64
	Timestamp time.Time
}

type ErrorMsg struct {
	Error error
}

// TickMsg drives animations.
type TickMsg struct{}

// StartModulesMsg signals that modules should start loading.
type StartModulesMsg struct{}

type LogMsg struct {
	Level   string // "info", "warn", "error"
	Message string
}

// StartupMsg reports progress of one startup step.
type StartupMsg struct {
	Step    string // "config", "ethereum", "markets", "ledger"
	Status  string // "connecting", "connected", "done", "failed"
	Message string
}
