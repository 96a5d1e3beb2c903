package store

import (
	"context"
	"math/big"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/dex-trader/business/ledger/domain"
	marketDomain "github.com/fd1az/dex-trader/business/market/domain"
	"github.com/fd1az/dex-trader/internal/apperror"
)

var ethUSDC = marketDomain.NewKey("ETH", "USDC")

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open("sqlite", filepath.Join(t.TempDir(), "ledger.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func order(seq, key uint64, raw int64) domain.Order {
	return domain.Order{
		Seq:              seq,
		PriceLevel:       big.NewInt(2500),
		OrderKey:         key,
		QuantityEstimate: decimal.RequireFromString("0.4"),
		Side:             domain.SideBuy,
		Market:           ethUSDC,
		TxHash:           common.HexToHash("0xabc"),
		PlacedAt:         1700000000,
		FilledQuantity:   decimal.Zero,
		RawSize:          big.NewInt(raw),
		FilledRaw:        new(big.Int),
		Status:           domain.StatusOpen,
		UpdatedAt:        1700000000,
	}
}

func TestStore_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	trade := domain.Trade{
		AmountIn:  big.NewInt(1000),
		AmountOut: new(big.Int).Exp(big.NewInt(10), big.NewInt(30), nil),
		Side:      domain.SideSell,
		Price:     big.NewInt(2500),
		Market:    ethUSDC,
		TxHash:    common.HexToHash("0xdef"),
		Timestamp: 1700000001,
	}
	require.NoError(t, s.SaveBatch(ctx, []domain.Order{order(1, 7, 1000), order(2, 3, 500)}, []domain.Trade{trade}))

	orders, trades, err := s.Load(ctx)
	require.NoError(t, err)

	require.Len(t, orders, 2)
	assert.Equal(t, uint64(7), orders[0].OrderKey, "first-seen order is kept")
	assert.Equal(t, "2500", orders[0].PriceLevel.String())
	assert.True(t, orders[0].QuantityEstimate.Equal(decimal.RequireFromString("0.4")))
	assert.Equal(t, domain.SideBuy, orders[0].Side)

	require.Len(t, trades, 1)
	assert.Equal(t, trade.AmountOut.String(), trades[0].AmountOut.String())
	assert.Equal(t, trade.TxHash, trades[0].TxHash)
	assert.Equal(t, ethUSDC, trades[0].Market)
}

func TestStore_UpsertBySeq(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveBatch(ctx, []domain.Order{order(1, 1, 1000), order(2, 2, 1000)}, nil))

	updated := order(1, 1, 0)
	updated.Status = domain.StatusFilled
	updated.FilledQuantity = decimal.RequireFromString("0.4")
	updated.FilledRaw = big.NewInt(1000)
	require.NoError(t, s.SaveBatch(ctx, []domain.Order{updated}, nil))

	orders, _, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 2)

	assert.Equal(t, uint64(1), orders[0].OrderKey)
	assert.Equal(t, domain.StatusFilled, orders[0].Status)
	assert.Equal(t, "0", orders[0].RawSize.String())
	assert.Equal(t, "1000", orders[0].FilledRaw.String())
}

func TestStore_SameKeyDifferentMarket(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	other := order(2, 1, 1000)
	other.Market = marketDomain.NewKey("WBTC", "USDC")
	require.NoError(t, s.SaveBatch(ctx, []domain.Order{order(1, 1, 1000), other}, nil))

	orders, _, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, orders, 2)
}

func TestStore_ReplacedIdentityKeepsBothEntries(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	canceled := order(1, 7, 600)
	canceled.Status = domain.StatusCanceled
	require.NoError(t, s.SaveBatch(ctx, []domain.Order{canceled}, nil))
	require.NoError(t, s.SaveBatch(ctx, []domain.Order{order(2, 7, 1000)}, nil))

	orders, _, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, uint64(1), orders[0].Seq)
	assert.Equal(t, domain.StatusCanceled, orders[0].Status)
	assert.Equal(t, "600", orders[0].RawSize.String())
	assert.Equal(t, uint64(2), orders[1].Seq)
	assert.Equal(t, domain.StatusOpen, orders[1].Status)
	assert.Equal(t, orders[0].ID(), orders[1].ID())
}

func TestStore_EmptyBatch(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.SaveBatch(context.Background(), nil, nil))
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open("mongodb", "x", nil)
	assert.True(t, apperror.HasCode(err, apperror.CodeConfigurationError))
}
