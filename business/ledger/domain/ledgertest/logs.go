// Package ledgertest builds packed exchange logs for tests.
package ledgertest

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var (
	OrderTopic = common.HexToHash("0x9e230000000000000000000000000000000000000000000000000000000087eb")
	TradeTopic = common.HexToHash("0xcd72000000000000000000000000000000000000000000000000000000000a66")
)

// Chunk is a chunk description in plain integers.
type Chunk struct {
	Action     uint8
	PriceLevel *big.Int
	OrderKey   uint64
	RawSize    *big.Int
}

// EncodeChunk packs c into 32 bytes.
func EncodeChunk(c Chunk) []byte {
	head := new(big.Int).Lsh(big.NewInt(int64(c.Action&0x0f)), 124)
	head.Or(head, new(big.Int).Lsh(c.PriceLevel, 48))
	head.Or(head, new(big.Int).SetUint64(c.OrderKey&(1<<48-1)))

	out := make([]byte, 32)
	head.FillBytes(out[0:16])
	c.RawSize.FillBytes(out[16:32])
	return out
}

// OrderChangeData builds an order-change payload.
func OrderChangeData(timestamp int64, chunks ...Chunk) []byte {
	data := make([]byte, 96)
	big.NewInt(timestamp).FillBytes(data[0:32])
	for _, c := range chunks {
		data = append(data, EncodeChunk(c)...)
	}
	return data
}

// TradeFill describes a trade-fill payload.
type TradeFill struct {
	AmountIn  *big.Int
	AmountOut *big.Int
	SideBuy   bool
	Timestamp int64
	Price     *big.Int
	Chunks    []Chunk
}

func TradeFillData(t TradeFill) []byte {
	data := make([]byte, 128)
	t.AmountIn.FillBytes(data[0:16])
	t.AmountOut.FillBytes(data[16:32])
	big.NewInt(t.Timestamp).FillBytes(data[32:48])
	if t.SideBuy {
		data[32] |= 0x10
	}
	t.Price.FillBytes(data[48:64])
	for _, c := range t.Chunks {
		data = append(data, EncodeChunk(c)...)
	}
	return data
}

// Log wraps data into a log record from contract, with owner as topics[1]
// when non-zero.
func Log(topic common.Hash, contract, owner common.Address, tx byte, index uint, data []byte) types.Log {
	topics := []common.Hash{topic}
	if owner != (common.Address{}) {
		topics = append(topics, common.BytesToHash(owner.Bytes()))
	}
	return types.Log{
		Address:     contract,
		Topics:      topics,
		Data:        data,
		TxHash:      common.BytesToHash([]byte{tx}),
		Index:       index,
		BlockNumber: uint64(tx),
	}
}
