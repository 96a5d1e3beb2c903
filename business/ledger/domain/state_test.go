package domain_test

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/dex-trader/business/ledger/domain"
	marketDomain "github.com/fd1az/dex-trader/business/market/domain"
)

var ethUSDC = marketDomain.NewKey("ETH", "USDC")

func openOrder(key uint64) *domain.Order {
	return &domain.Order{
		PriceLevel: big.NewInt(100),
		OrderKey:   key,
		Market:     ethUSDC,
		RawSize:    big.NewInt(50),
		FilledRaw:  new(big.Int),
		Status:     domain.StatusOpen,
	}
}

func TestState_ReplaceAppendsLedgerEntry(t *testing.T) {
	s := domain.NewState()
	require.True(t, s.Place(openOrder(7)))
	assert.False(t, s.Place(openOrder(7)), "identity already open")

	_, entry, ok := s.Open(openOrder(7).ID())
	require.True(t, ok)
	entry.Status = domain.StatusCanceled
	s.Close(entry.ID())

	require.True(t, s.Place(openOrder(7)))

	dirty := s.TakeDirty()
	require.Len(t, dirty, 2)
	assert.Equal(t, uint64(1), dirty[0].Seq)
	assert.Equal(t, domain.StatusCanceled, dirty[0].Status)
	assert.Equal(t, uint64(2), dirty[1].Seq)
	assert.Equal(t, domain.StatusOpen, dirty[1].Status)

	assert.Nil(t, s.TakeDirty())
	assert.Equal(t, 2, s.LedgerCount())
	assert.Equal(t, 1, s.OpenCount())
}

func TestState_RestoreContinuesSeq(t *testing.T) {
	first := openOrder(1)
	first.Seq = 4
	first.Status = domain.StatusFilled
	second := openOrder(2)
	second.Seq = 9

	s := domain.NewState()
	s.Restore([]domain.Order{*first, *second}, nil)

	assert.Nil(t, s.TakeDirty(), "restored entries are already persisted")
	assert.Equal(t, 1, s.OpenCount())

	require.True(t, s.Place(openOrder(3)))
	dirty := s.TakeDirty()
	require.Len(t, dirty, 1)
	assert.Equal(t, uint64(10), dirty[0].Seq)
}
