// Package infra contains the output adapters of the ledger context.
package infra

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fd1az/dex-trader/business/ledger/app"
	"github.com/fd1az/dex-trader/business/ledger/domain"
)

// ConsoleNotifier implements app.Notifier for CLI output.
type ConsoleNotifier struct {
	mu        sync.Mutex
	out       io.Writer
	connected bool
}

var _ app.Notifier = (*ConsoleNotifier)(nil)

func NewConsoleNotifier() *ConsoleNotifier {
	return NewConsoleNotifierTo(os.Stdout)
}

func NewConsoleNotifierTo(out io.Writer) *ConsoleNotifier {
	return &ConsoleNotifier{out: out}
}

func (r *ConsoleNotifier) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.out, "DEX Trader Started")
	fmt.Fprintln(r.out, "==================")
	return nil
}

// Notify prints one notification block.
func (r *ConsoleNotifier) Notify(n domain.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fmt.Fprintln(r.out, "")
	fmt.Fprintln(r.out, "--------------------------------------------------------------------------------")
	fmt.Fprintf(r.out, "%s ORDER %s\n", strings.ToUpper(n.Side.String()), strings.ToUpper(string(n.Kind)))
	fmt.Fprintln(r.out, "--------------------------------------------------------------------------------")
	fmt.Fprintf(r.out, "Market:         %s\n", n.Market)
	fmt.Fprintf(r.out, "Amount in:      %s\n", intString(n.AmountIn))
	fmt.Fprintf(r.out, "Amount out:     %s\n", intString(n.AmountOut))
	if n.Price != nil {
		fmt.Fprintf(r.out, "Price:          %s\n", n.Price)
	}
	fmt.Fprintf(r.out, "Tx:             %s\n", n.TxHash.Hex())
	fmt.Fprintf(r.out, "Time:           %s\n", time.Unix(n.Timestamp, 0).UTC().Format(time.RFC3339))
}

// UpdateLedger is a no-op; the console only prints notifications.
func (r *ConsoleNotifier) UpdateLedger(*domain.Snapshot) {}

// UpdateSyncStatus prints connection changes only.
func (r *ConsoleNotifier) UpdateSyncStatus(status app.SyncStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if status.Connected == r.connected {
		return
	}
	r.connected = status.Connected

	state := "disconnected"
	if status.Connected {
		state = fmt.Sprintf("synced to #%d (head #%d)", status.LastBlock, status.HeadBlock)
	}
	fmt.Fprintf(r.out, "[%s] syncer: %s\n", time.Now().Format("15:04:05"), state)
}

func (r *ConsoleNotifier) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.out, "")
	fmt.Fprintln(r.out, "DEX Trader Stopped")
	return nil
}
