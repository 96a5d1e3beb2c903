// Package di contains dependency injection tokens for the ledger context.
package di

import (
	"github.com/fd1az/dex-trader/business/ledger/app"
	"github.com/fd1az/dex-trader/business/ledger/infra/feed"
	"github.com/fd1az/dex-trader/internal/di"
)

// Public service tokens - exposed to other modules
var (
	LedgerService = di.NewToken[*app.LedgerService]("ledger.LedgerService")
	Syncer        = di.NewToken[*app.Syncer]("ledger.Syncer")
)

// Private dependency tokens - internal to ledger module
var (
	LogSource  = di.NewToken[app.LogSource]("ledger:logSource")
	FeedServer   = di.NewToken[*feed.Server]("ledger:feedServer")
)

func GetLedgerService(c di.ServiceRegistry) *app.LedgerService {
	return di.GetToken(c, LedgerService)
}

func GetSyncer(c di.ServiceRegistry) *app.Syncer {
	return di.GetToken(c, Syncer)
}

func GetLogSource(c di.ServiceRegistry) app.LogSource {
	return di.GetToken(c, LogSource)
}

func GetFeedServer(c di.ServiceRegistry) *feed.Server {
	return di.GetToken(c, FeedServer)
}
