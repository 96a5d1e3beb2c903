package app

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	marketApp "github.com/fd1az/dex-trader/business/market/app"
	marketDomain "github.com/fd1az/dex-trader/business/market/domain"
	"github.com/fd1az/dex-trader/business/pricing/domain"
	"github.com/fd1az/dex-trader/internal/apperror"
	"github.com/fd1az/dex-trader/internal/asset"
	"github.com/fd1az/dex-trader/internal/logger"
)

// QuoteRequest asks for the price of trading AmountIn of TokenIn for
// TokenOut. AmountOut may be nil when no fill is known yet.
type QuoteRequest struct {
	TokenIn   common.Address
	TokenOut  common.Address
	AmountIn  *big.Int
	AmountOut *big.Int
	Mode      marketApp.Mode
}

// Quote is the priced route for a QuoteRequest.
type Quote struct {
	Market     marketDomain.Market
	Path       []common.Address
	Input      asset.Amount // zero value when the token is not registered
	Output     asset.Amount
	AvgPrice   decimal.Decimal
	Reference  decimal.Decimal
	Impact     decimal.Decimal // percent
	Fee        decimal.Decimal // in TokenIn units
	FeeDisplay string
}

// LadderRequest describes a scale order on a configured market.
type LadderRequest struct {
	Market       marketDomain.Key
	AmountIn     *big.Int
	StartPrice   *big.Int
	EndPrice     *big.Int
	NumOrders    int
	Skew         decimal.Decimal
	Denomination domain.Denomination
}

// Ladder is a validated scale order.
type Ladder struct {
	Market       marketDomain.Key
	Orders       []domain.LadderOrder
	BelowMinSize []int // indexes of orders smaller than the market minimum
	TotalSize    *big.Int
	TotalValue   *big.Int
}

// PricingService prices routes and builds scale orders.
type PricingService struct {
	markets MarketFinder
	book    BookReader
	trades  LastPriceSource
	logger  logger.LoggerInterface
}

// NewPricingService creates the service. book and trades may be nil.
func NewPricingService(markets MarketFinder, book BookReader, trades LastPriceSource, log logger.LoggerInterface) *PricingService {
	if log == nil {
		log = logger.NewNop()
	}
	return &PricingService{markets: markets, book: book, trades: trades, logger: log}
}

// Quote routes the request and prices it against the current book.
func (s *PricingService) Quote(ctx context.Context, req QuoteRequest) (*Quote, error) {
	m, ok := s.markets.FindMarket(req.TokenIn, req.TokenOut, req.Mode)
	if !ok {
		return nil, apperror.New(apperror.CodeRouteNotFound,
			apperror.WithContextf("%s -> %s (%s)", req.TokenIn.Hex(), req.TokenOut.Hex(), req.Mode))
	}

	decIn := s.decimals(req.TokenIn, m)
	q := &Quote{Market: m, Path: m.Path, Input: s.amount(req.TokenIn, req.AmountIn), Output: s.amount(req.TokenOut, req.AmountOut)}

	if m.IsComposite() {
		hops, ok := s.markets.Hops(m.Path)
		if !ok {
			return nil, apperror.New(apperror.CodeRouteNotFound, apperror.WithContextf("unresolvable path for %s", m.Key))
		}
		mids := make([]decimal.Decimal, len(hops))
		for i, hop := range hops {
			bid, ask := s.bidAsk(ctx, hop)
			mids[i] = domain.MidPrice(bid, ask)
		}
		decOut := s.decimals(req.TokenOut, m)
		q.AvgPrice = domain.AveragePriceMultihop(m.Path, hops, req.AmountIn, req.AmountOut, decIn, decOut, mids)
		q.Reference = domain.ChainedMid(m.Path, hops, mids)
	} else {
		bid, ask := s.bidAsk(ctx, m)
		q.AvgPrice = domain.AveragePrice(m, req.TokenIn, req.AmountIn, req.AmountOut)
		q.Reference = domain.ReferencePrice(m, req.TokenIn, bid, ask)
	}

	q.Impact = domain.PriceImpact(q.AvgPrice, q.Reference)
	q.Fee = domain.TradeFee(req.AmountIn, m, decIn)
	q.FeeDisplay = domain.FormatFee(q.Fee)
	return q, nil
}

// Ladder builds a scale order and checks it against the market limits.
// Prices are snapped down to the tick size when the market has one.
func (s *PricingService) Ladder(ctx context.Context, req LadderRequest) (*Ladder, error) {
	m, ok := s.markets.Market(req.Market)
	if !ok {
		return nil, apperror.NotFound(apperror.CodeMarketNotFound, string(req.Market))
	}
	if positive(m.MaxPrice) && (exceeds(req.StartPrice, m.MaxPrice) || exceeds(req.EndPrice, m.MaxPrice)) {
		return nil, apperror.New(apperror.CodeInvalidLadder,
			apperror.WithContextf("%s: price above market maximum %s", m.Key, m.MaxPrice))
	}

	orders, err := domain.BuildLadder(domain.LadderParams{
		AmountIn:     req.AmountIn,
		StartPrice:   req.StartPrice,
		EndPrice:     req.EndPrice,
		NumOrders:    req.NumOrders,
		Skew:         req.Skew,
		ScaleFactor:  m.ScaleFactor,
		Denomination: req.Denomination,
	})
	if err != nil {
		return nil, err
	}

	out := &Ladder{Market: m.Key, TotalSize: new(big.Int), TotalValue: new(big.Int)}
	scale := decimal.NewFromBigInt(m.ScaleFactor, 0)
	for i, o := range orders {
		if positive(m.TickSize) {
			o.Price = new(big.Int).Sub(o.Price, new(big.Int).Mod(o.Price, m.TickSize))
			o.Value = decimal.NewFromBigInt(o.Price, 0).Mul(decimal.NewFromBigInt(o.Size, 0)).Div(scale).Round(0).BigInt()
		}
		if positive(m.MinSize) && o.Size.Cmp(m.MinSize) < 0 {
			out.BelowMinSize = append(out.BelowMinSize, i)
		}
		out.TotalSize.Add(out.TotalSize, o.Size)
		out.TotalValue.Add(out.TotalValue, o.Value)
		out.Orders = append(out.Orders, o)
	}

	if len(out.BelowMinSize) > 0 {
		s.logger.Debug(ctx, "ladder has orders below minimum size", "market", m.Key, "count", len(out.BelowMinSize))
	}
	return out, nil
}

// bidAsk reads the book, falling back to the last trade price for both sides.
func (s *PricingService) bidAsk(ctx context.Context, m marketDomain.Market) (decimal.Decimal, decimal.Decimal) {
	if s.book != nil {
		bid, ask, err := s.book.BestBidAsk(ctx, m)
		if err == nil && positive(bid) && positive(ask) {
			return decimal.NewFromBigInt(bid, 0), decimal.NewFromBigInt(ask, 0)
		}
		if err != nil {
			s.logger.Warn(ctx, "order book unavailable, using last trade", "market", m.Key, "error", err)
		}
	}
	if s.trades != nil {
		if last, ok := s.trades.LastPrice(m.Key); ok && positive(last) {
			p := decimal.NewFromBigInt(last, 0)
			return p, p
		}
	}
	s.logger.Debug(ctx, "no price for market", "market", m.Key)
	return decimal.Zero, decimal.Zero
}

func (s *PricingService) decimals(token common.Address, m marketDomain.Market) uint8 {
	if a, ok := s.markets.TokenByAddress(token); ok {
		return a.Decimals()
	}
	return m.DecimalsOf(token)
}

func (s *PricingService) amount(token common.Address, raw *big.Int) asset.Amount {
	a, ok := s.markets.TokenByAddress(token)
	if !ok || raw == nil || raw.Sign() < 0 {
		return asset.Amount{}
	}
	return asset.NewAmount(a, raw)
}

func positive(x *big.Int) bool {
	return x != nil && x.Sign() > 0
}

func exceeds(x, limit *big.Int) bool {
	return x != nil && x.Cmp(limit) > 0
}
