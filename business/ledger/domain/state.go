package domain

import (
	"math/big"
	"sort"

	marketDomain "github.com/fd1az/dex-trader/business/market/domain"
)

// State is the mutable ledger of one session. It has a single owner.
//
// Open and the ledger hold separate copies of each order; every transition
// updates both.
type State struct {
	open        map[OrderID]*Order
	ledger      []*Order
	ledgerIndex map[OrderID]int // newest ledger entry per identity
	trades      []Trade
	byMarket    map[marketDomain.Key][]Trade
	nextSeq     uint64
	dirty       map[int]struct{} // ledger positions changed since TakeDirty
}

func NewState() *State {
	return &State{
		open:        make(map[OrderID]*Order),
		ledgerIndex: make(map[OrderID]int),
		byMarket:    make(map[marketDomain.Key][]Trade),
		nextSeq:     1,
		dirty:       make(map[int]struct{}),
	}
}

// Place records a new open order. It returns false if the identity is already open.
func (s *State) Place(o *Order) bool {
	id := o.ID()
	if _, exists := s.open[id]; exists {
		return false
	}
	o = o.Clone()
	o.Seq = s.nextSeq
	s.nextSeq++
	s.open[id] = o.Clone()
	s.ledgerIndex[id] = len(s.ledger)
	s.dirty[len(s.ledger)] = struct{}{}
	s.ledger = append(s.ledger, o)
	return true
}

// Open returns the open copy and the ledger copy of id for a transition.
// The ledger entry is marked dirty.
func (s *State) Open(id OrderID) (open *Order, entry *Order, ok bool) {
	open, ok = s.open[id]
	if !ok {
		return nil, nil, false
	}
	idx, ok := s.ledgerIndex[id]
	if !ok {
		return nil, nil, false
	}
	s.dirty[idx] = struct{}{}
	return open, s.ledger[idx], true
}

// TakeDirty returns copies of the ledger entries placed or transitioned
// since the last call, in ledger order, and resets the set.
func (s *State) TakeDirty() []Order {
	if len(s.dirty) == 0 {
		return nil
	}
	idx := make([]int, 0, len(s.dirty))
	for i := range s.dirty {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	out := make([]Order, 0, len(idx))
	for _, i := range idx {
		out = append(out, *s.ledger[i].Clone())
	}
	s.dirty = make(map[int]struct{})
	return out
}

// Close removes id from the open set. The ledger entry stays.
func (s *State) Close(id OrderID) {
	delete(s.open, id)
}

// AppendTrade adds t to the global history and to its market's log.
func (s *State) AppendTrade(t Trade) {
	s.trades = append(s.trades, t)
	s.byMarket[t.Market] = append(s.byMarket[t.Market], t)
}

// Restore loads persisted orders, in Seq order, and trades into an empty
// state. Open entries are re-added to the open set. Restored entries are not dirty.
func (s *State) Restore(orders []Order, trades []Trade) {
	for i := range orders {
		o := orders[i].Clone()
		id := o.ID()
		s.ledgerIndex[id] = len(s.ledger)
		s.ledger = append(s.ledger, o)
		if o.Status == StatusOpen {
			s.open[id] = o.Clone()
		}
		if o.Seq >= s.nextSeq {
			s.nextSeq = o.Seq + 1
		}
	}
	for _, t := range trades {
		s.AppendTrade(t)
	}
}

func (s *State) OpenCount() int   { return len(s.open) }
func (s *State) LedgerCount() int { return len(s.ledger) }
func (s *State) TradeCount() int  { return len(s.trades) }

// LedgerEntry returns the newest ledger entry for id.
func (s *State) LedgerEntry(id OrderID) (*Order, bool) {
	idx, ok := s.ledgerIndex[id]
	if !ok {
		return nil, false
	}
	return s.ledger[idx], true
}

// Snapshot deep-copies the state for readers.
func (s *State) Snapshot() Snapshot {
	snap := Snapshot{
		OpenOrders:   make([]Order, 0, len(s.open)),
		Ledger:       make([]Order, 0, len(s.ledger)),
		Trades:       append([]Trade(nil), s.trades...),
		MarketTrades: make(map[marketDomain.Key][]Trade, len(s.byMarket)),
	}
	for _, o := range s.ledger {
		snap.Ledger = append(snap.Ledger, *o.Clone())
		if open, ok := s.open[o.ID()]; ok && s.ledger[s.ledgerIndex[o.ID()]] == o {
			snap.OpenOrders = append(snap.OpenOrders, *open.Clone())
		}
	}
	for k, v := range s.byMarket {
		snap.MarketTrades[k] = append([]Trade(nil), v...)
	}
	return snap
}

// Snapshot is an immutable copy of State. Open orders are in placement order.
type Snapshot struct {
	OpenOrders   []Order
	Ledger       []Order
	Trades       []Trade
	MarketTrades map[marketDomain.Key][]Trade
	LastBlock    uint64
}

// LastPrice returns the price of the most recent trade in market.
func (s Snapshot) LastPrice(market marketDomain.Key) (*big.Int, bool) {
	trades := s.MarketTrades[market]
	if len(trades) == 0 {
		return nil, false
	}
	p := trades[len(trades)-1].Price
	if p == nil {
		return nil, false
	}
	return new(big.Int).Set(p), true
}

// RecentTrades returns up to n of the newest trades, newest first.
func (s Snapshot) RecentTrades(n int) []Trade {
	if n > len(s.Trades) {
		n = len(s.Trades)
	}
	out := make([]Trade, 0, n)
	for i := len(s.Trades) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.Trades[i])
	}
	return out
}

// TradesSince returns the trades appended after the first n.
func (s *State) TradesSince(n int) []Trade {
	if n >= len(s.trades) {
		return nil
	}
	return append([]Trade(nil), s.trades[n:]...)
}
