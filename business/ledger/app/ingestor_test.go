package app_test

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/dex-trader/business/ledger/app"
	"github.com/fd1az/dex-trader/business/ledger/domain"
	"github.com/fd1az/dex-trader/business/ledger/domain/ledgertest"
	marketDomain "github.com/fd1az/dex-trader/business/market/domain"
	"github.com/fd1az/dex-trader/internal/apperror"
)

var (
	contractM = common.HexToAddress("0x00000000000000000000000000000000000000d1")
	aliceAddr = common.HexToAddress(alice)
	bobAddr   = common.HexToAddress(bob)
)

type marketTable []marketDomain.Market

func (t marketTable) ByContract(addr common.Address) (marketDomain.Market, bool) {
	for _, m := range t {
		if m.ContractAddress == addr {
			return m, true
		}
	}
	return marketDomain.Market{}, false
}

func (t marketTable) Markets() []marketDomain.Market {
	return t
}

func testMarkets() marketTable {
	return marketTable{{Key: marketM, ContractAddress: contractM, Fee: 99900}}
}

func newLedger(t *testing.T, account string) *app.LedgerService {
	t.Helper()
	svc, err := app.NewLedgerService(app.ServiceConfig{
		Account: account,
		Topics:  domain.Topics{OrderChange: ledgertest.OrderTopic, TradeFill: ledgertest.TradeTopic},
	}, testMarkets(), nil, nil, nil)
	require.NoError(t, err)
	return svc
}

func placeLog(tx byte, owner common.Address, c ledgertest.Chunk) types.Log {
	return ledgertest.Log(ledgertest.OrderTopic, contractM, owner, tx, 0, ledgertest.OrderChangeData(1700000000, c))
}

func fillLog(tx byte, owner common.Address, chunks ...ledgertest.Chunk) types.Log {
	return ledgertest.Log(ledgertest.TradeTopic, contractM, owner, tx, 0, ledgertest.TradeFillData(ledgertest.TradeFill{
		AmountIn:  big.NewInt(1000),
		AmountOut: big.NewInt(1),
		SideBuy:   true,
		Timestamp: 1700000100,
		Price:     big.NewInt(1000000),
		Chunks:    chunks,
	}))
}

var buyPlaceChunk = ledgertest.Chunk{Action: 1, PriceLevel: big.NewInt(1000000), OrderKey: 7, RawSize: mul(5, e(17))}

func TestIngest_PlaceCreatesOpenOrder(t *testing.T) {
	svc := newLedger(t, "")

	res := svc.Ingest(context.Background(), []types.Log{placeLog(1, aliceAddr, buyPlaceChunk)}, 1)

	assert.Empty(t, res.Errors)
	assert.Equal(t, 1, res.Applied)
	require.Len(t, res.Notifications, 1)
	n := res.Notifications[0]
	assert.Equal(t, domain.KindNew, n.Kind)
	assert.Equal(t, domain.SideBuy, n.Side)
	assert.Equal(t, marketM, n.Market)

	snap := svc.Snapshot()
	require.Len(t, snap.OpenOrders, 1)
	o := snap.OpenOrders[0]
	assert.True(t, decimal.RequireFromString("500000000000").Equal(o.QuantityEstimate))
	assert.Equal(t, uint64(7), o.OrderKey)
	assert.Equal(t, domain.StatusOpen, o.Status)
	assert.Equal(t, int64(1700000000), o.PlacedAt)
	require.Len(t, snap.Ledger, 1)
	assert.Equal(t, uint64(1), snap.LastBlock)
}

func TestIngest_CancelClosesOrder(t *testing.T) {
	svc := newLedger(t, "")
	ctx := context.Background()
	svc.Ingest(ctx, []types.Log{placeLog(1, aliceAddr, buyPlaceChunk)}, 1)

	cancel := buyPlaceChunk
	cancel.Action = 2
	res := svc.Ingest(ctx, []types.Log{placeLog(2, aliceAddr, cancel)}, 2)

	require.Len(t, res.Notifications, 1)
	assert.Equal(t, domain.KindCancel, res.Notifications[0].Kind)

	snap := svc.Snapshot()
	assert.Empty(t, snap.OpenOrders)
	require.Len(t, snap.Ledger, 1)
	assert.Equal(t, domain.StatusCanceled, snap.Ledger[0].Status)
}

func TestIngest_DuplicateBatchIsIdempotent(t *testing.T) {
	svc := newLedger(t, "")
	ctx := context.Background()

	cancel := buyPlaceChunk
	cancel.Action = 2
	batch := []types.Log{placeLog(1, aliceAddr, buyPlaceChunk), placeLog(2, aliceAddr, cancel)}

	first := svc.Ingest(ctx, batch, 2)
	assert.Equal(t, 2, first.Applied)
	before := svc.Snapshot()

	second := svc.Ingest(ctx, batch, 2)
	assert.Zero(t, second.Applied)
	assert.Equal(t, 2, second.Skipped)
	assert.Empty(t, second.Notifications)
	assert.Equal(t, before.Ledger, svc.Snapshot().Ledger)
	assert.Equal(t, before.OpenOrders, svc.Snapshot().OpenOrders)
}

func TestIngest_OrderChangesBeforeTradeFills(t *testing.T) {
	svc := newLedger(t, "")

	fill := buyPlaceChunk
	fill.Action = 2
	fill.RawSize = big.NewInt(0)

	// the fill arrives first but must see the placed order
	res := svc.Ingest(context.Background(), []types.Log{
		fillLog(1, bobAddr, fill),
		placeLog(2, aliceAddr, buyPlaceChunk),
	}, 2)

	require.Len(t, res.Notifications, 2)
	assert.Equal(t, domain.KindNew, res.Notifications[0].Kind)
	assert.Equal(t, domain.KindFill, res.Notifications[1].Kind)

	snap := svc.Snapshot()
	assert.Empty(t, snap.OpenOrders)
	assert.Equal(t, domain.StatusFilled, snap.Ledger[0].Status)
	// synthetic trade plus the taker trade
	assert.Len(t, snap.Trades, 2)
	assert.Len(t, res.NewTrades, 2)
}

func TestIngest_ErrorIsolation(t *testing.T) {
	svc := newLedger(t, "")

	short := ledgertest.Log(ledgertest.OrderTopic, contractM, aliceAddr, 1, 0, make([]byte, 40))
	unrouted := ledgertest.Log(ledgertest.OrderTopic, common.HexToAddress("0xdead"), aliceAddr, 2, 0, ledgertest.OrderChangeData(1, buyPlaceChunk))
	good := placeLog(3, aliceAddr, buyPlaceChunk)

	res := svc.Ingest(context.Background(), []types.Log{short, unrouted, good}, 3)

	assert.Equal(t, 1, res.Applied)
	require.Len(t, res.Errors, 2)
	assert.Equal(t, domain.LogID(short), res.Errors[0].LogID)
	assert.True(t, apperror.HasCode(res.Errors[0], apperror.CodeInvalidLogData))
	assert.True(t, apperror.HasCode(res.Errors[1], apperror.CodeMarketNotFound))
	assert.Len(t, svc.Snapshot().OpenOrders, 1)
}

func TestIngest_RejectedLogIsStillDeduped(t *testing.T) {
	svc := newLedger(t, "")
	short := ledgertest.Log(ledgertest.OrderTopic, contractM, aliceAddr, 1, 0, make([]byte, 40))

	first := svc.Ingest(context.Background(), []types.Log{short}, 1)
	second := svc.Ingest(context.Background(), []types.Log{short}, 1)

	assert.Len(t, first.Errors, 1)
	assert.Empty(t, second.Errors)
	assert.Equal(t, 1, second.Skipped)
}

func TestIngest_UnknownTopicSkipped(t *testing.T) {
	svc := newLedger(t, "")
	l := ledgertest.Log(common.HexToHash("0x1234"), contractM, aliceAddr, 1, 0, nil)

	res := svc.Ingest(context.Background(), []types.Log{l}, 1)
	assert.Equal(t, 1, res.Skipped)
	assert.Empty(t, res.Errors)
}

func TestIngest_AccountFiltersPlaces(t *testing.T) {
	svc := newLedger(t, alice)
	other := buyPlaceChunk
	other.OrderKey = 8

	res := svc.Ingest(context.Background(), []types.Log{
		placeLog(1, aliceAddr, buyPlaceChunk),
		placeLog(2, bobAddr, other),
		fillLog(3, aliceAddr),
	}, 3)

	require.Len(t, res.Notifications, 2)
	assert.Equal(t, domain.KindNew, res.Notifications[0].Kind)
	assert.Equal(t, domain.KindTrade, res.Notifications[1].Kind)
	assert.Len(t, svc.Snapshot().OpenOrders, 1)
	assert.Equal(t, 3, res.Applied)
}

func TestLogError_Unwrap(t *testing.T) {
	cause := apperror.New(apperror.CodeInvalidLogData)
	err := &app.LogError{LogID: "0x01-0", Err: cause}
	assert.Contains(t, err.Error(), "0x01-0")
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidLogData))
}

func BenchmarkIngest(b *testing.B) {
	ctx := context.Background()
	logs := make([]types.Log, 0, 64)
	for i := 0; i < 64; i++ {
		c := buyPlaceChunk
		c.OrderKey = uint64(i)
		logs = append(logs, ledgertest.Log(ledgertest.OrderTopic, contractM, aliceAddr, byte(i), uint(i), ledgertest.OrderChangeData(1, c)))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		svc, _ := app.NewLedgerService(app.ServiceConfig{
			Topics: domain.Topics{OrderChange: ledgertest.OrderTopic, TradeFill: ledgertest.TradeTopic},
		}, testMarkets(), nil, nil, nil)
		svc.Ingest(ctx, logs, 1)
	}
}
