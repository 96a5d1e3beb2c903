package infra

import (
	"context"

	"github.com/fd1az/dex-trader/business/ledger/app"
	"github.com/fd1az/dex-trader/business/ledger/domain"
	"github.com/fd1az/dex-trader/pkg/ui"
)

// TUINotifier forwards ledger output to the Bubble Tea program.
// The program itself is owned by main.
type TUINotifier struct {
	send func(msg any)
}

var _ app.Notifier = (*TUINotifier)(nil)

func NewTUINotifier() *TUINotifier {
	return &TUINotifier{send: func(msg any) { ui.Send(msg) }}
}

func (r *TUINotifier) Start(ctx context.Context) error {
	r.send(ui.StartupMsg{Step: "ledger", Status: "connecting"})
	return nil
}

func (r *TUINotifier) Notify(n domain.Notification) {
	r.send(ui.NotificationMsg{Notification: n})
}

func (r *TUINotifier) UpdateLedger(snap *domain.Snapshot) {
	r.send(ui.LedgerMsg{Snapshot: snap})
}

func (r *TUINotifier) UpdateSyncStatus(status app.SyncStatus) {
	r.send(ui.SyncMsg{
		LastBlock: status.LastBlock,
		HeadBlock: status.HeadBlock,
		Connected: status.Connected,
		LastSync:  status.LastSync,
	})
}

func (r *TUINotifier) Stop() error {
	return nil
}
