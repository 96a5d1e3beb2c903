package domain_test

import (
	"fmt"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/dex-trader/business/ledger/domain"
	"github.com/fd1az/dex-trader/business/ledger/domain/ledgertest"
	"github.com/fd1az/dex-trader/internal/apperror"
)

var (
	contract = common.HexToAddress("0x00000000000000000000000000000000000000d1")
	account  = common.HexToAddress("0x00000000000000000000000000000000000000AA")
)

func bi(s string) *big.Int {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic(s)
	}
	return n
}

// The hex offsets below are written out field by field so the bit layout is
// checked independently of the test encoder.
func TestDecodeOrderChange_HexLayout(t *testing.T) {
	raw := bi("500000000000000000")
	hexData := "0x" +
		fmt.Sprintf("%064x", 1700000000) +
		strings.Repeat("0", 128) +
		fmt.Sprintf("%x%019x%012x%032x", 1, 1000000, 7, raw)

	data, err := hexutil.Decode(hexData)
	require.NoError(t, err)
	log := ledgertest.Log(ledgertest.OrderTopic, contract, account, 9, 3, data)

	ev, err := domain.DecodeOrderChange(log)
	require.NoError(t, err)

	assert.Equal(t, int64(1700000000), ev.Timestamp)
	require.Len(t, ev.Chunks, 1)
	c := ev.Chunks[0]
	assert.True(t, c.IsPlace())
	assert.Equal(t, domain.SideBuy, c.Side())
	assert.Equal(t, "1000000", c.PriceLevel.String())
	assert.Equal(t, uint64(7), c.OrderKey)
	assert.Equal(t, raw.String(), c.RawSize.String())
	assert.True(t, decimal.RequireFromString("500000000000").Equal(c.QuantityEstimate()))

	assert.Equal(t, log.TxHash.Hex()+"-3", ev.LogID)
	assert.Equal(t, strings.ToLower(account.Hex()), ev.Owner)
	assert.Equal(t, contract, ev.Contract)
}

func TestDecodeTradeFill_HexLayout(t *testing.T) {
	hexData := "0x" +
		fmt.Sprintf("%032x", 2500) + // amountIn
		fmt.Sprintf("%032x", 1) + // amountOut
		"1" + fmt.Sprintf("%031x", 1700000123) + // side nibble + timestamp
		fmt.Sprintf("%032x", 2500000) + // price
		strings.Repeat("0", 128) +
		fmt.Sprintf("%x%019x%012x%032x", 2, 2500000, 11, 0)

	data, err := hexutil.Decode(hexData)
	require.NoError(t, err)

	ev, err := domain.DecodeTradeFill(ledgertest.Log(ledgertest.TradeTopic, contract, account, 4, 0, data))
	require.NoError(t, err)

	assert.Equal(t, int64(2500), ev.AmountIn.Int64())
	assert.Equal(t, int64(1), ev.AmountOut.Int64())
	assert.Equal(t, domain.SideBuy, ev.Side)
	assert.Equal(t, int64(1700000123), ev.Timestamp)
	assert.Equal(t, int64(2500000), ev.Price.Int64())
	require.Len(t, ev.Chunks, 1)
	assert.False(t, ev.Chunks[0].IsPlace())
	assert.Equal(t, uint64(11), ev.Chunks[0].OrderKey)
	assert.Zero(t, ev.Chunks[0].RawSize.Sign())
}

func TestDecodeTradeFill_EncoderRoundTrip(t *testing.T) {
	data := ledgertest.TradeFillData(ledgertest.TradeFill{
		AmountIn:  bi("340282366920938463463374607431768211455"), // 2^128-1
		AmountOut: big.NewInt(5),
		Timestamp: 42,
		Price:     big.NewInt(77),
	})
	ev, err := domain.DecodeTradeFill(ledgertest.Log(ledgertest.TradeTopic, contract, common.Address{}, 1, 1, data))
	require.NoError(t, err)
	assert.Equal(t, "340282366920938463463374607431768211455", ev.AmountIn.String())
	assert.Equal(t, domain.SideSell, ev.Side)
	assert.Equal(t, int64(42), ev.Timestamp)
	assert.Empty(t, ev.Chunks)
	assert.Empty(t, ev.Owner)
}

func TestDecodeChunks_FieldLimits(t *testing.T) {
	maxLevel := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 76), big.NewInt(1))
	chunk := ledgertest.EncodeChunk(ledgertest.Chunk{
		Action:     0xf,
		PriceLevel: maxLevel,
		OrderKey:   1<<48 - 1,
		RawSize:    big.NewInt(9),
	})

	chunks, err := domain.DecodeChunks(chunk)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, uint8(0xf), chunks[0].Action)
	assert.Equal(t, maxLevel.String(), chunks[0].PriceLevel.String())
	assert.Equal(t, uint64(1<<48-1), chunks[0].OrderKey)
	assert.Equal(t, int64(9), chunks[0].RawSize.Int64())
}

func TestChunk_ActionNibbles(t *testing.T) {
	tests := []struct {
		action  uint8
		place   bool
		side    domain.Side
		buySide bool
	}{
		{0, true, domain.SideSell, false},
		{1, true, domain.SideBuy, false},
		{2, false, domain.SideSell, false},
		{3, false, domain.SideSell, true},
		{4, false, domain.SideSell, false},
		{15, false, domain.SideSell, false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("nibble %d", tt.action), func(t *testing.T) {
			c := domain.Chunk{Action: tt.action, PriceLevel: big.NewInt(1), RawSize: big.NewInt(1)}
			assert.Equal(t, tt.place, c.IsPlace())
			if tt.place {
				assert.Equal(t, tt.side, c.Side())
			}
			assert.Equal(t, tt.buySide, c.BuySide())
		})
	}
}

func TestDecode_Malformed(t *testing.T) {
	valid := ledgertest.OrderChangeData(1, ledgertest.Chunk{Action: 1, PriceLevel: big.NewInt(1), RawSize: big.NewInt(1)})

	tests := []struct {
		name   string
		decode func(types.Log) error
		data   []byte
	}{
		{"order change too short", decodeOrder, make([]byte, 95)},
		{"order change ragged chunk", decodeOrder, valid[:len(valid)-1]},
		{"order change extra bytes", decodeOrder, append(append([]byte{}, valid...), 0x01)},
		{"trade fill too short", decodeTrade, make([]byte, 127)},
		{"trade fill ragged chunk", decodeTrade, make([]byte, 128+33)},
		{"order change timestamp overflows", decodeOrder, func() []byte {
			d := make([]byte, 96)
			d[0] = 0xff
			return d
		}()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.decode(ledgertest.Log(ledgertest.OrderTopic, contract, account, 1, 0, tt.data))
			require.Error(t, err)
			assert.True(t, apperror.HasCode(err, apperror.CodeInvalidLogData), err.Error())
		})
	}
}

func TestDecodeOrderChange_EmptyChunkSection(t *testing.T) {
	ev, err := domain.DecodeOrderChange(ledgertest.Log(ledgertest.OrderTopic, contract, account, 1, 0, ledgertest.OrderChangeData(5)))
	require.NoError(t, err)
	assert.Empty(t, ev.Chunks)
	assert.Equal(t, int64(5), ev.Timestamp)
}

func TestTopics_Classify(t *testing.T) {
	topics := domain.Topics{OrderChange: ledgertest.OrderTopic, TradeFill: ledgertest.TradeTopic}

	assert.Equal(t, domain.EventOrderChange, topics.Classify(ledgertest.Log(ledgertest.OrderTopic, contract, account, 1, 0, nil)))
	assert.Equal(t, domain.EventTradeFill, topics.Classify(ledgertest.Log(ledgertest.TradeTopic, contract, account, 1, 0, nil)))
	assert.Equal(t, domain.EventUnknown, topics.Classify(ledgertest.Log(common.HexToHash("0x01"), contract, account, 1, 0, nil)))
	assert.Equal(t, domain.EventUnknown, topics.Classify(types.Log{}))
}

func TestQuantity_ZeroPriceLevel(t *testing.T) {
	assert.True(t, domain.Quantity(big.NewInt(10), big.NewInt(0)).IsZero())
	assert.Equal(t, "3.333333333333333333", domain.Quantity(big.NewInt(10), big.NewInt(3)).String())
}

func decodeOrder(l types.Log) error {
	_, err := domain.DecodeOrderChange(l)
	return err
}

func decodeTrade(l types.Log) error {
	_, err := domain.DecodeTradeFill(l)
	return err
}

func BenchmarkDecodeOrderChange(b *testing.B) {
	chunks := make([]ledgertest.Chunk, 16)
	for i := range chunks {
		chunks[i] = ledgertest.Chunk{Action: uint8(i % 4), PriceLevel: big.NewInt(int64(1000 + i)), OrderKey: uint64(i), RawSize: big.NewInt(1e18)}
	}
	log := ledgertest.Log(ledgertest.OrderTopic, contract, account, 1, 0, ledgertest.OrderChangeData(1700000000, chunks...))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = domain.DecodeOrderChange(log)
	}
}
