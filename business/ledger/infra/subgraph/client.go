// Package subgraph reads recent trade history from a GraphQL indexer.
package subgraph

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sony/gobreaker/v2"

	"github.com/fd1az/dex-trader/business/ledger/domain"
	marketDomain "github.com/fd1az/dex-trader/business/market/domain"
	"github.com/fd1az/dex-trader/internal/apperror"
	"github.com/fd1az/dex-trader/internal/circuitbreaker"
	"github.com/fd1az/dex-trader/internal/httpclient"
	"github.com/fd1az/dex-trader/internal/logger"
	"github.com/fd1az/dex-trader/internal/ratelimit"
)

const tradesQuery = `query RecentTrades($market: String!, $first: Int!) {
  trades(first: $first, orderBy: timestamp, orderDirection: desc, where: {market: $market}) {
    txHash
    side
    amountIn
    amountOut
    price
    timestamp
  }
}`

// Config holds configuration for the subgraph client.
type Config struct {
	URL               string
	PageSize          int
	Timeout           time.Duration
	RequestsPerMinute int
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type tradesResponse struct {
	Data struct {
		Trades []tradeRow `json:"trades"`
	} `json:"data"`
	Errors []graphQLError `json:"errors"`
}

// BigInt fields come back as decimal strings.
type tradeRow struct {
	TxHash    string `json:"txHash"`
	Side      string `json:"side"`
	AmountIn  string `json:"amountIn"`
	AmountOut string `json:"amountOut"`
	Price     string `json:"price"`
	Timestamp string `json:"timestamp"`
}

// Client implements app.TradeHistorySource.
type Client struct {
	http     *httpclient.Client
	pageSize int
	cb       *circuitbreaker.CircuitBreaker[[]tradeRow]
	logger   logger.LoggerInterface
}

// NewClient creates a subgraph client.
func NewClient(cfg Config, log logger.LoggerInterface) (*Client, error) {
	if cfg.URL == "" {
		return nil, apperror.New(apperror.CodeConfigurationError, apperror.WithContext("subgraph url is empty"))
	}
	if log == nil {
		log = logger.NewNop()
	}

	hc, err := httpclient.New(
		httpclient.WithBaseURL(cfg.URL),
		httpclient.WithTimeout(cfg.Timeout),
		httpclient.WithProviderName("subgraph"),
		httpclient.WithLimiter(ratelimit.New(cfg.RequestsPerMinute)),
	)
	if err != nil {
		return nil, err
	}

	cbCfg := circuitbreaker.DefaultConfig("subgraph")
	cbCfg.OnStateChange = func(name string, from, to gobreaker.State) {
		log.Info(context.Background(), "circuit breaker state change",
			"breaker", name, "from", from.String(), "to", to.String())
	}

	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}

	return &Client{
		http:     hc,
		pageSize: pageSize,
		cb:       circuitbreaker.New[[]tradeRow](cbCfg),
		logger:   log,
	}, nil
}

// RecentTrades returns up to limit trades of market, newest first.
func (c *Client) RecentTrades(ctx context.Context, market marketDomain.Market, limit int) ([]domain.Trade, error) {
	if limit <= 0 || limit > c.pageSize {
		limit = c.pageSize
	}

	rows, err := c.cb.Execute(func() ([]tradeRow, error) {
		var resp tradesResponse
		req := graphQLRequest{
			Query: tradesQuery,
			Variables: map[string]any{
				"market": strings.ToLower(market.ContractAddress.Hex()),
				"first":  limit,
			},
		}
		if err := c.http.PostJSON(ctx, "", req, &resp); err != nil {
			return nil, err
		}
		if len(resp.Errors) > 0 {
			return nil, fmt.Errorf("graphql: %s", resp.Errors[0].Message)
		}
		return resp.Data.Trades, nil
	})
	if err != nil {
		if apperror.HasCode(err, apperror.CodeCircuitOpen) {
			return nil, err
		}
		return nil, apperror.New(apperror.CodeSubgraphQueryFailed,
			apperror.WithCause(err),
			apperror.WithContextf("trades for %s", market.Key))
	}

	trades := make([]domain.Trade, 0, len(rows))
	for _, r := range rows {
		t, err := r.toTrade(market.Key)
		if err != nil {
			c.logger.Warn(ctx, "skipping malformed subgraph trade", "market", market.Key, "tx", r.TxHash, "error", err)
			continue
		}
		trades = append(trades, t)
	}
	return trades, nil
}

func (r tradeRow) toTrade(market marketDomain.Key) (domain.Trade, error) {
	in, ok := new(big.Int).SetString(r.AmountIn, 10)
	if !ok {
		return domain.Trade{}, fmt.Errorf("amountIn %q", r.AmountIn)
	}
	out, ok := new(big.Int).SetString(r.AmountOut, 10)
	if !ok {
		return domain.Trade{}, fmt.Errorf("amountOut %q", r.AmountOut)
	}
	price, ok := new(big.Int).SetString(r.Price, 10)
	if !ok {
		return domain.Trade{}, fmt.Errorf("price %q", r.Price)
	}
	ts, err := strconv.ParseInt(r.Timestamp, 10, 64)
	if err != nil {
		return domain.Trade{}, fmt.Errorf("timestamp: %w", err)
	}

	side := domain.SideSell
	if strings.EqualFold(r.Side, "buy") {
		side = domain.SideBuy
	}

	return domain.Trade{
		AmountIn:  in,
		AmountOut: out,
		Side:      side,
		Price:     price,
		Market:    market,
		TxHash:    common.HexToHash(r.TxHash),
		Timestamp: ts,
	}, nil
}
