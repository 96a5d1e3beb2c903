package domain

import (
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/fd1az/dex-trader/internal/apperror"
)

// Packed layout sizes, in bytes of the log payload.
const (
	ChunkSize = 32

	orderChangeHeader = 96  // timestamp word + dynamic array header
	tradeFillHeader   = 128 // amounts, side|timestamp, price, array header
)

var (
	mask48 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 48), big.NewInt(1))
	mask76 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 76), big.NewInt(1))
)

type EventKind int

const (
	EventUnknown EventKind = iota
	EventOrderChange
	EventTradeFill
)

func (k EventKind) String() string {
	switch k {
	case EventOrderChange:
		return "order_change"
	case EventTradeFill:
		return "trade_fill"
	default:
		return "unknown"
	}
}

// Topics holds the topic[0] values of the two consumed log shapes.
type Topics struct {
	OrderChange common.Hash
	TradeFill   common.Hash
}

// Classify returns the log shape named by topics[0].
func (t Topics) Classify(log types.Log) EventKind {
	if len(log.Topics) == 0 {
		return EventUnknown
	}
	switch log.Topics[0] {
	case t.OrderChange:
		return EventOrderChange
	case t.TradeFill:
		return EventTradeFill
	default:
		return EventUnknown
	}
}

// LogID is the dedup identifier: transaction hash, dash, log index.
func LogID(log types.Log) string {
	return log.TxHash.Hex() + "-" + strconv.FormatUint(uint64(log.Index), 10)
}

// Owner returns topics[1] as a lower-cased address, or "".
func Owner(log types.Log) string {
	if len(log.Topics) < 2 {
		return ""
	}
	return NormalizeAddress(common.BytesToAddress(log.Topics[1].Bytes()[12:]).Hex())
}

// NormalizeAddress lower-cases a 0x address for comparison.
func NormalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// DecodeOrderChange decodes an order-change log.
func DecodeOrderChange(log types.Log) (OrderChangeEvent, error) {
	data := log.Data
	if len(data) < orderChangeHeader {
		return OrderChangeEvent{}, invalid(log, "order-change payload is %d bytes, need at least %d", len(data), orderChangeHeader)
	}

	ts, err := toInt64(new(big.Int).SetBytes(data[0:32]))
	if err != nil {
		return OrderChangeEvent{}, invalid(log, "timestamp: %v", err)
	}
	chunks, err := DecodeChunks(data[orderChangeHeader:])
	if err != nil {
		return OrderChangeEvent{}, wrapInvalid(log, err)
	}

	return OrderChangeEvent{
		EventMeta: meta(log),
		Timestamp: ts,
		Chunks:    chunks,
	}, nil
}

// DecodeTradeFill decodes a trade-fill log.
func DecodeTradeFill(log types.Log) (TradeFillEvent, error) {
	data := log.Data
	if len(data) < tradeFillHeader {
		return TradeFillEvent{}, invalid(log, "trade-fill payload is %d bytes, need at least %d", len(data), tradeFillHeader)
	}

	side := SideSell
	if data[32]>>4 == 1 {
		side = SideBuy
	}

	// 124-bit timestamp: low nibble of byte 32 plus bytes 33..47
	tsBytes := make([]byte, 16)
	copy(tsBytes, data[32:48])
	tsBytes[0] &= 0x0f
	ts, err := toInt64(new(big.Int).SetBytes(tsBytes))
	if err != nil {
		return TradeFillEvent{}, invalid(log, "timestamp: %v", err)
	}

	chunks, err := DecodeChunks(data[tradeFillHeader:])
	if err != nil {
		return TradeFillEvent{}, wrapInvalid(log, err)
	}

	return TradeFillEvent{
		EventMeta: meta(log),
		AmountIn:  new(big.Int).SetBytes(data[0:16]),
		AmountOut: new(big.Int).SetBytes(data[16:32]),
		Side:      side,
		Timestamp: ts,
		Price:     new(big.Int).SetBytes(data[48:64]),
		Chunks:    chunks,
	}, nil
}

// DecodeChunks splits b into 32-byte change chunks. An empty section yields none.
func DecodeChunks(b []byte) ([]Chunk, error) {
	if len(b)%ChunkSize != 0 {
		return nil, apperror.New(apperror.CodeInvalidLogData,
			apperror.WithContextf("chunk section is %d bytes, not a multiple of %d", len(b), ChunkSize))
	}

	chunks := make([]Chunk, 0, len(b)/ChunkSize)
	for off := 0; off < len(b); off += ChunkSize {
		chunks = append(chunks, decodeChunk(b[off:off+ChunkSize]))
	}
	return chunks, nil
}

// decodeChunk reads: action (4 bits), price level (76), order key (48), raw size (128).
func decodeChunk(c []byte) Chunk {
	head := new(big.Int).SetBytes(c[0:16])

	orderKey := new(big.Int).And(head, mask48)
	priceLevel := new(big.Int).Rsh(head, 48)
	priceLevel.And(priceLevel, mask76)

	return Chunk{
		Action:     c[0] >> 4,
		PriceLevel: priceLevel,
		OrderKey:   orderKey.Uint64(),
		RawSize:    new(big.Int).SetBytes(c[16:32]),
	}
}

func meta(log types.Log) EventMeta {
	return EventMeta{
		LogID:       LogID(log),
		TxHash:      log.TxHash,
		BlockNumber: log.BlockNumber,
		Contract:    log.Address,
		Owner:       Owner(log),
	}
}

func toInt64(n *big.Int) (int64, error) {
	if !n.IsInt64() {
		return 0, strconv.ErrRange
	}
	return n.Int64(), nil
}

func invalid(log types.Log, format string, args ...any) error {
	return apperror.New(apperror.CodeInvalidLogData,
		apperror.WithContextf("%s: "+format, append([]any{LogID(log)}, args...)...))
}

func wrapInvalid(log types.Log, err error) error {
	return apperror.New(apperror.CodeInvalidLogData, apperror.WithCause(err), apperror.WithContext(LogID(log)))
}
