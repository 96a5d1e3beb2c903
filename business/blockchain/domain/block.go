// Package domain contains the chain head types shared with the ledger syncer.
package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Block is the part of a block header the syncer needs.
type Block struct {
	Number     uint64
	Hash       common.Hash
	ParentHash common.Hash
	Timestamp  time.Time
}

// Follows reports whether b directly extends prev.
func (b *Block) Follows(prev *Block) bool {
	return prev != nil && b.Number == prev.Number+1 && b.ParentHash == prev.Hash
}

// ConnectionState represents the state of a blockchain connection.
type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
	StateReconnecting ConnectionState = "reconnecting"
)

// GaugeValue is the eth_connection_state metric encoding.
func (s ConnectionState) GaugeValue() int64 {
	switch s {
	case StateConnecting:
		return 1
	case StateConnected:
		return 2
	case StateReconnecting:
		return 3
	default:
		return 0
	}
}

// ConnectionStatus contains detailed connection information.
type ConnectionStatus struct {
	State      ConnectionState
	LastBlock  uint64
	LastUpdate time.Time
	Reconnects int
	Reorgs     int
	UsingHTTP  bool
}
