// Package domain holds the order ledger model and the packed event decoder.
package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	marketDomain "github.com/fd1az/dex-trader/business/market/domain"
)

// QuantityPrecision is the number of fractional digits kept for quantities.
const QuantityPrecision = 18

type Side uint8

const (
	SideSell Side = iota
	SideBuy
)

func (s Side) String() string {
	if s == SideBuy {
		return "buy"
	}
	return "sell"
}

type Status uint8

const (
	StatusOpen Status = iota
	StatusFilled
	StatusCanceled
)

func (s Status) String() string {
	switch s {
	case StatusFilled:
		return "filled"
	case StatusCanceled:
		return "canceled"
	default:
		return "open"
	}
}

// Action nibbles. Anything other than the two place codes is an update.
const (
	ActionPlaceSell uint8 = 0
	ActionPlaceBuy  uint8 = 1
	actionUpdateBuy uint8 = 3
)

// Chunk is one 32-byte change record.
type Chunk struct {
	Action     uint8
	PriceLevel *big.Int
	OrderKey   uint64
	RawSize    *big.Int
}

// IsPlace reports whether the chunk creates a new resting order.
func (c Chunk) IsPlace() bool {
	return c.Action == ActionPlaceSell || c.Action == ActionPlaceBuy
}

// Side is meaningful for place chunks.
func (c Chunk) Side() Side {
	if c.Action == ActionPlaceBuy {
		return SideBuy
	}
	return SideSell
}

// BuySide flags an update chunk that touches the buy side of the book.
func (c Chunk) BuySide() bool {
	return c.Action == actionUpdateBuy
}

// QuantityEstimate is RawSize / PriceLevel, or zero when the level is zero.
func (c Chunk) QuantityEstimate() decimal.Decimal {
	return Quantity(c.RawSize, c.PriceLevel)
}

// Quantity divides a raw size by a price level at QuantityPrecision.
func Quantity(raw, priceLevel *big.Int) decimal.Decimal {
	if raw == nil || priceLevel == nil || priceLevel.Sign() == 0 {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(raw, 0).DivRound(decimal.NewFromBigInt(priceLevel, 0), QuantityPrecision)
}

// EventMeta is shared by both decoded log shapes.
type EventMeta struct {
	LogID       string
	TxHash      common.Hash
	BlockNumber uint64
	Contract    common.Address
	// Owner is topics[1] as a lower-cased address, or "" when absent.
	Owner string
}

// OrderChangeEvent is a decoded order-change log.
type OrderChangeEvent struct {
	EventMeta
	Timestamp int64
	Chunks    []Chunk
}

// TradeFillEvent is a decoded trade-fill log. Chunks describe the resting
// orders the taker matched against.
type TradeFillEvent struct {
	EventMeta
	AmountIn  *big.Int
	AmountOut *big.Int
	Side      Side
	Timestamp int64
	Price     *big.Int
	Chunks    []Chunk
}

// OrderID is the identity of a resting order within a market.
type OrderID struct {
	PriceLevel string
	OrderKey   uint64
	Market     marketDomain.Key
}

func NewOrderID(priceLevel *big.Int, orderKey uint64, market marketDomain.Key) OrderID {
	return OrderID{PriceLevel: priceLevel.String(), OrderKey: orderKey, Market: market}
}

// Order is one ledger entry.
type Order struct {
	// Seq numbers ledger entries in placement order. A re-placed identity
	// gets a new Seq, so it is the persisted key rather than the identity.
	Seq              uint64
	PriceLevel       *big.Int
	OrderKey         uint64
	QuantityEstimate decimal.Decimal
	Side             Side
	Market           marketDomain.Key
	TxHash           common.Hash
	PlacedAt         int64
	FilledQuantity   decimal.Decimal
	// RawSize is the remaining raw size.
	RawSize *big.Int
	// FilledRaw is the sum of applied fill deltas.
	FilledRaw *big.Int
	Status    Status
	UpdatedAt int64
}

func (o *Order) ID() OrderID {
	return NewOrderID(o.PriceLevel, o.OrderKey, o.Market)
}

// RemainingQuantity is QuantityEstimate - FilledQuantity.
func (o *Order) RemainingQuantity() decimal.Decimal {
	return o.QuantityEstimate.Sub(o.FilledQuantity)
}

// Clone returns a deep copy.
func (o *Order) Clone() *Order {
	c := *o
	c.PriceLevel = cloneInt(o.PriceLevel)
	c.RawSize = cloneInt(o.RawSize)
	c.FilledRaw = cloneInt(o.FilledRaw)
	return &c
}

// Trade is an immutable trade history entry.
type Trade struct {
	AmountIn  *big.Int
	AmountOut *big.Int
	Side      Side
	Price     *big.Int
	Market    marketDomain.Key
	TxHash    common.Hash
	Timestamp int64
}

type NotificationKind string

const (
	KindNew    NotificationKind = "new"
	KindCancel NotificationKind = "cancel"
	KindFill   NotificationKind = "fill"
	KindTrade  NotificationKind = "trade"
)

// Notification tells the account owner something happened to their orders.
type Notification struct {
	ID        string
	Kind      NotificationKind
	Side      Side
	Market    marketDomain.Key
	AmountIn  *big.Int
	AmountOut *big.Int
	Price     *big.Int
	TxHash    common.Hash
	Timestamp int64
}

func cloneInt(x *big.Int) *big.Int {
	if x == nil {
		return nil
	}
	return new(big.Int).Set(x)
}
