package app

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/dex-trader/business/market/domain"
	"github.com/fd1az/dex-trader/internal/apperror"
	"github.com/fd1az/dex-trader/internal/asset"
)

// MarketService is the public face of the market context.
type MarketService struct {
	router     *Router
	registry   *asset.Registry
	byContract map[common.Address]domain.Market
}

func NewMarketService(markets []domain.Market, registry *asset.Registry, cfg RouterConfig) *MarketService {
	byContract := make(map[common.Address]domain.Market, len(markets))
	for _, m := range markets {
		byContract[m.ContractAddress] = m
	}
	return &MarketService{
		router:     NewRouter(markets, registry, cfg),
		registry:   registry,
		byContract: byContract,
	}
}

func (s *MarketService) Router() *Router {
	return s.router
}

func (s *MarketService) Markets() []domain.Market {
	return s.router.Markets()
}

func (s *MarketService) Market(key domain.Key) (domain.Market, bool) {
	return s.router.ByKey(key)
}

// ByContract maps an emitting contract address to its market.
func (s *MarketService) ByContract(addr common.Address) (domain.Market, bool) {
	m, ok := s.byContract[addr]
	return m, ok
}

// Contracts lists every market contract, in configuration order.
func (s *MarketService) Contracts() []common.Address {
	out := make([]common.Address, 0, len(s.router.Markets()))
	for _, m := range s.router.Markets() {
		out = append(out, m.ContractAddress)
	}
	return out
}

func (s *MarketService) FindMarket(a, b common.Address, mode Mode) (domain.Market, bool) {
	return s.router.FindMarket(a, b, mode)
}

// FindMarketBySymbol resolves tickers through the token registry first.
func (s *MarketService) FindMarketBySymbol(symbolA, symbolB string, mode Mode) (domain.Market, error) {
	a, err := s.Token(symbolA)
	if err != nil {
		return domain.Market{}, err
	}
	b, err := s.Token(symbolB)
	if err != nil {
		return domain.Market{}, err
	}
	m, ok := s.router.FindMarket(a.Address(), b.Address(), mode)
	if !ok {
		return domain.Market{}, apperror.New(apperror.CodeRouteNotFound, apperror.WithContextf("%s -> %s (%s)", symbolA, symbolB, mode))
	}
	return m, nil
}

func (s *MarketService) Token(symbol string) (*asset.Asset, error) {
	a, ok := s.registry.BySymbol(symbol)
	if !ok {
		return nil, apperror.NotFound(apperror.CodeTokenNotFound, symbol)
	}
	return a, nil
}

func (s *MarketService) TokenByAddress(addr common.Address) (*asset.Asset, bool) {
	return s.registry.ByAddress(addr)
}

// Hops resolves each consecutive pair of path to its direct market.
func (s *MarketService) Hops(path []common.Address) ([]domain.Market, bool) {
	return s.router.Hops(path)
}
