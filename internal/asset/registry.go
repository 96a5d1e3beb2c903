package asset

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Registry is a thread-safe token table keyed by address and ticker.
type Registry struct {
	mu        sync.RWMutex
	byAddress map[common.Address]*Asset
	bySymbol  map[string]*Asset
}

func NewRegistry() *Registry {
	return &Registry{
		byAddress: make(map[common.Address]*Asset),
		bySymbol:  make(map[string]*Asset),
	}
}

// Register adds a token. Address and ticker must both be unused.
func (r *Registry) Register(a *Asset) error {
	if a == nil {
		return ErrNilAsset
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byAddress[a.Address()]; exists {
		return fmt.Errorf("asset: address %s already registered", a.Address().Hex())
	}
	key := strings.ToUpper(a.Symbol())
	if _, exists := r.bySymbol[key]; exists {
		return fmt.Errorf("asset: ticker %s already registered", a.Symbol())
	}

	r.byAddress[a.Address()] = a
	r.bySymbol[key] = a
	return nil
}

// MustRegister panics on a duplicate. Intended for tests and static tables.
func (r *Registry) MustRegister(assets ...*Asset) *Registry {
	for _, a := range assets {
		if err := r.Register(a); err != nil {
			panic(err)
		}
	}
	return r
}

// ByAddress looks a token up by contract address (zero address for native).
func (r *Registry) ByAddress(addr common.Address) (*Asset, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byAddress[addr]
	return a, ok
}

// BySymbol looks a token up by ticker, case-insensitively.
func (r *Registry) BySymbol(symbol string) (*Asset, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.bySymbol[strings.ToUpper(symbol)]
	return a, ok
}

// All returns tokens ordered by ticker.
func (r *Registry) All() []*Asset {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*Asset, 0, len(r.byAddress))
	for _, a := range r.byAddress {
		result = append(result, a)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Symbol() < result[j].Symbol() })
	return result
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byAddress)
}
