// Package app contains the router and the market service.
package app

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/dex-trader/business/market/domain"
	"github.com/fd1az/dex-trader/internal/asset"
)

// Mode is the order entry mode of the caller.
type Mode int

const (
	ModeMarket Mode = iota
	// ModeLimit disables multihop routing.
	ModeLimit
)

func (m Mode) String() string {
	if m == ModeLimit {
		return "limit"
	}
	return "market"
}

// TokenLookup resolves token addresses to registered assets.
type TokenLookup interface {
	ByAddress(addr common.Address) (*asset.Asset, bool)
}

// RouterConfig names the tickers that form the native/wrapped pseudo-market.
type RouterConfig struct {
	NativeTicker  string
	WrappedTicker string
	StableTicker  string
}

type pair struct{ a, b common.Address }

// Router answers market and path queries over the configured markets.
// It is immutable after construction and safe for concurrent use.
type Router struct {
	markets []domain.Market
	byKey   map[domain.Key]int
	byPair  map[pair]int
	graph   *domain.Graph
	tokens  TokenLookup
	cfg     RouterConfig
}

func NewRouter(markets []domain.Market, tokens TokenLookup, cfg RouterConfig) *Router {
	r := &Router{
		markets: markets,
		byKey:   make(map[domain.Key]int, len(markets)),
		byPair:  make(map[pair]int, 2*len(markets)),
		graph:   domain.NewGraph(markets),
		tokens:  tokens,
		cfg:     cfg,
	}
	for i, m := range markets {
		r.byKey[m.Key] = i
		r.byPair[pair{m.BaseAddress, m.QuoteAddress}] = i
		r.byPair[pair{m.QuoteAddress, m.BaseAddress}] = i
	}
	return r
}

// FindMarket resolves the market for trading a into b: a direct market first,
// then the native/wrapped pseudo-market, then (outside limit mode) a composite
// over the shortest path.
func (r *Router) FindMarket(a, b common.Address, mode Mode) (domain.Market, bool) {
	if a == b {
		return domain.Market{}, false
	}
	if m, ok := r.direct(a, b); ok {
		return m, true
	}
	if m, ok := r.nativeWrap(a, b); ok {
		return m, true
	}
	if mode == ModeLimit {
		return domain.Market{}, false
	}

	path, ok := r.graph.ShortestPath(a, b)
	if !ok || len(path) < 3 {
		return domain.Market{}, false
	}
	hops, ok := r.Hops(path)
	if !ok {
		return domain.Market{}, false
	}
	return domain.Composite(path, hops), true
}

// ShortestPath returns the token path with the fewest hops from a to b.
func (r *Router) ShortestPath(a, b common.Address) ([]common.Address, bool) {
	return r.graph.ShortestPath(a, b)
}

// Hops resolves each consecutive pair in path to its direct market.
func (r *Router) Hops(path []common.Address) ([]domain.Market, bool) {
	if len(path) < 2 {
		return nil, false
	}
	hops := make([]domain.Market, 0, len(path)-1)
	for i := 0; i+1 < len(path); i++ {
		idx, ok := r.byPair[pair{path[i], path[i+1]}]
		if !ok {
			return nil, false
		}
		hops = append(hops, r.markets[idx])
	}
	return hops, true
}

// ByKey returns the configured market for key.
func (r *Router) ByKey(key domain.Key) (domain.Market, bool) {
	idx, ok := r.byKey[key]
	if !ok {
		return domain.Market{}, false
	}
	return r.markets[idx], true
}

// Markets returns the configured markets in configuration order.
func (r *Router) Markets() []domain.Market {
	return r.markets
}

func (r *Router) direct(a, b common.Address) (domain.Market, bool) {
	ta, tb := r.ticker(a), r.ticker(b)
	if ta == "" || tb == "" {
		return domain.Market{}, false
	}
	idx, ok := r.byKey[domain.NewKey(ta, tb)]
	if !ok {
		idx, ok = r.byKey[domain.NewKey(tb, ta)]
	}
	if !ok {
		return domain.Market{}, false
	}
	m := r.markets[idx].Clone()
	m.Path = []common.Address{a, b}
	return m, true
}

func (r *Router) nativeWrap(a, b common.Address) (domain.Market, bool) {
	native, wrapped := strings.ToUpper(r.cfg.NativeTicker), strings.ToUpper(r.cfg.WrappedTicker)
	ta, tb := r.ticker(a), r.ticker(b)
	if native == "" || wrapped == "" {
		return domain.Market{}, false
	}
	if !(ta == native && tb == wrapped) && !(ta == wrapped && tb == native) {
		return domain.Market{}, false
	}

	base, ok := r.ByKey(domain.NewKey(native, r.cfg.StableTicker))
	if !ok {
		return domain.Market{}, false
	}
	m := base.Clone()
	m.Path = []common.Address{a, b}
	m.Fee = domain.NativeWrapFee
	return m, true
}

func (r *Router) ticker(addr common.Address) string {
	if r.tokens != nil {
		if a, ok := r.tokens.ByAddress(addr); ok {
			return strings.ToUpper(a.Symbol())
		}
	}
	for _, m := range r.markets {
		switch addr {
		case m.BaseAddress:
			return strings.ToUpper(m.BaseAsset)
		case m.QuoteAddress:
			return strings.ToUpper(m.QuoteAsset)
		}
	}
	return ""
}
