// Package app contains the ledger application services: the reconciler, the
// batch ingestor, the single-writer ledger service and the block syncer.
package app

import (
	"context"
	"math/big"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fd1az/dex-trader/business/ledger/domain"
	marketDomain "github.com/fd1az/dex-trader/business/market/domain"
	"github.com/fd1az/dex-trader/internal/logger"
)

// Reconciler merges decoded events into a State. It holds no state of its own
// beyond the active account.
type Reconciler struct {
	account string
	log     logger.LoggerInterface
	newID   func() string
}

// NewReconciler creates a reconciler for account. An empty account observes
// every owner but never raises trade notifications.
func NewReconciler(account string, log logger.LoggerInterface) *Reconciler {
	if log == nil {
		log = logger.NewNop()
	}
	return &Reconciler{
		account: domain.NormalizeAddress(account),
		log:     log,
		newID:   func() string { return uuid.NewString() },
	}
}

// Account returns the normalised active account.
func (r *Reconciler) Account() string {
	return r.account
}

// ApplyOrderChange applies place and cancel chunks in emitted order.
func (r *Reconciler) ApplyOrderChange(ctx context.Context, s *domain.State, ev domain.OrderChangeEvent, market marketDomain.Key) []domain.Notification {
	var out []domain.Notification
	for _, c := range ev.Chunks {
		var n *domain.Notification
		if c.IsPlace() {
			n = r.place(ctx, s, ev.EventMeta, ev.Timestamp, c, market)
		} else {
			n = r.cancel(ctx, s, ev.EventMeta, ev.Timestamp, c, market)
		}
		if n != nil {
			out = append(out, *n)
		}
	}
	return out
}

// ApplyTradeFill applies the matched resting orders, then records the taker trade.
func (r *Reconciler) ApplyTradeFill(ctx context.Context, s *domain.State, ev domain.TradeFillEvent, market marketDomain.Key) []domain.Notification {
	var out []domain.Notification
	for _, c := range ev.Chunks {
		var n *domain.Notification
		if c.IsPlace() {
			// taker remainder resting on the book
			n = r.place(ctx, s, ev.EventMeta, ev.Timestamp, c, market)
		} else {
			n = r.fill(ctx, s, ev.EventMeta, ev.Timestamp, c, market)
		}
		if n != nil {
			out = append(out, *n)
		}
	}

	s.AppendTrade(domain.Trade{
		AmountIn:  cloneInt(ev.AmountIn),
		AmountOut: cloneInt(ev.AmountOut),
		Side:      ev.Side,
		Price:     cloneInt(ev.Price),
		Market:    market,
		TxHash:    ev.TxHash,
		Timestamp: ev.Timestamp,
	})

	if r.account != "" && ev.Owner == r.account {
		out = append(out, r.notification(domain.KindTrade, ev.Side, market, ev.AmountIn, ev.AmountOut, ev.Price, ev.EventMeta, ev.Timestamp))
	}
	return out
}

// owns gates placements. Order-change logs are emitted with only the event
// topic, so an absent owner is accepted; a present one must match.
func (r *Reconciler) owns(owner string) bool {
	return r.account == "" || owner == "" || owner == r.account
}

func (r *Reconciler) place(ctx context.Context, s *domain.State, m domain.EventMeta, ts int64, c domain.Chunk, market marketDomain.Key) *domain.Notification {
	if !r.owns(m.Owner) {
		return nil
	}

	o := &domain.Order{
		PriceLevel:       cloneInt(c.PriceLevel),
		OrderKey:         c.OrderKey,
		QuantityEstimate: c.QuantityEstimate(),
		Side:             c.Side(),
		Market:           market,
		TxHash:           m.TxHash,
		PlacedAt:         ts,
		FilledQuantity:   decimal.Zero,
		RawSize:          cloneInt(c.RawSize),
		FilledRaw:        new(big.Int),
		Status:           domain.StatusOpen,
		UpdatedAt:        ts,
	}
	if !s.Place(o) {
		r.log.Debug(ctx, "place for an identity that is already open", "log_id", m.LogID, "order_key", c.OrderKey, "market", market)
		return nil
	}

	in, out := orient(o.Side, c.RawSize, c.PriceLevel)
	n := r.notification(domain.KindNew, o.Side, market, in, out, c.PriceLevel, m, ts)
	return &n
}

func (r *Reconciler) cancel(ctx context.Context, s *domain.State, m domain.EventMeta, ts int64, c domain.Chunk, market marketDomain.Key) *domain.Notification {
	id := domain.NewOrderID(c.PriceLevel, c.OrderKey, market)
	open, entry, ok := s.Open(id)
	if !ok {
		r.log.Debug(ctx, "cancel for unknown order", "log_id", m.LogID, "order_key", c.OrderKey, "market", market)
		return nil
	}
	r.checkSide(ctx, m, c, open)

	filled := entry.QuantityEstimate.Sub(domain.Quantity(c.RawSize, c.PriceLevel))
	if filled.LessThan(entry.FilledQuantity) {
		filled = entry.FilledQuantity
	}

	s.Close(id)
	entry.Status = domain.StatusCanceled
	entry.RawSize = cloneInt(c.RawSize)
	entry.FilledQuantity = filled
	entry.UpdatedAt = ts

	in, out := orient(open.Side, c.RawSize, c.PriceLevel)
	n := r.notification(domain.KindCancel, open.Side, market, in, out, c.PriceLevel, m, ts)
	return &n
}

func (r *Reconciler) fill(ctx context.Context, s *domain.State, m domain.EventMeta, ts int64, c domain.Chunk, market marketDomain.Key) *domain.Notification {
	id := domain.NewOrderID(c.PriceLevel, c.OrderKey, market)
	open, entry, ok := s.Open(id)
	if !ok {
		r.log.Debug(ctx, "fill for unknown order", "log_id", m.LogID, "order_key", c.OrderKey, "market", market)
		return nil
	}
	r.checkSide(ctx, m, c, open)

	delta := new(big.Int).Sub(open.RawSize, c.RawSize)
	if delta.Sign() < 0 {
		delta.SetInt64(0)
	}
	filledRaw := new(big.Int).Add(open.FilledRaw, delta)
	filledQty := open.FilledQuantity.Add(domain.Quantity(delta, c.PriceLevel))

	for _, o := range []*domain.Order{open, entry} {
		o.RawSize = cloneInt(c.RawSize)
		o.FilledRaw = cloneInt(filledRaw)
		o.FilledQuantity = filledQty
		o.UpdatedAt = ts
	}

	if c.RawSize.Sign() == 0 {
		in, out := orient(open.Side, filledRaw, c.PriceLevel)
		s.AppendTrade(domain.Trade{
			AmountIn:  in,
			AmountOut: out,
			Side:      open.Side,
			Price:     cloneInt(c.PriceLevel),
			Market:    market,
			TxHash:    m.TxHash,
			Timestamp: ts,
		})
		s.Close(id)
		entry.Status = domain.StatusFilled
	}

	r.log.Debug(ctx, "order filled", "log_id", m.LogID, "order_key", c.OrderKey,
		"remaining", open.RemainingQuantity().String(), "status", entry.Status.String())

	in, out := orient(open.Side, delta, c.PriceLevel)
	n := r.notification(domain.KindFill, open.Side, market, in, out, c.PriceLevel, m, ts)
	return &n
}

// checkSide logs an update whose buy-side flag disagrees with the open
// order. The open order's side stays authoritative.
func (r *Reconciler) checkSide(ctx context.Context, m domain.EventMeta, c domain.Chunk, open *domain.Order) {
	if c.BuySide() != (open.Side == domain.SideBuy) {
		r.log.Debug(ctx, "update side differs from open order", "log_id", m.LogID,
			"order_key", c.OrderKey, "action", c.Action, "side", open.Side.String())
	}
}

func (r *Reconciler) notification(kind domain.NotificationKind, side domain.Side, market marketDomain.Key, in, out, price *big.Int, m domain.EventMeta, ts int64) domain.Notification {
	return domain.Notification{
		ID:        r.newID(),
		Kind:      kind,
		Side:      side,
		Market:    market,
		AmountIn:  cloneInt(in),
		AmountOut: cloneInt(out),
		Price:     cloneInt(price),
		TxHash:    m.TxHash,
		Timestamp: ts,
	}
}

// orient splits a raw (quote-denominated) size into what the order pays and
// receives. Buy orders pay quote and receive base; sell orders the reverse.
func orient(side domain.Side, raw, priceLevel *big.Int) (in, out *big.Int) {
	quote := cloneInt(raw)
	base := new(big.Int)
	if priceLevel != nil && priceLevel.Sign() != 0 {
		base.Quo(raw, priceLevel)
	}
	if side == domain.SideBuy {
		return quote, base
	}
	return base, quote
}

func cloneInt(x *big.Int) *big.Int {
	if x == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(x)
}
