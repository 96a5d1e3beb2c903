// Package ethereum reads best bid and ask from the exchange market contracts.
package ethereum

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	marketDomain "github.com/fd1az/dex-trader/business/market/domain"
	"github.com/fd1az/dex-trader/business/pricing/app"
	"github.com/fd1az/dex-trader/internal/apperror"
	"github.com/fd1az/dex-trader/internal/circuitbreaker"
	"github.com/fd1az/dex-trader/internal/logger"
	"github.com/fd1az/dex-trader/internal/ratelimit"
)

const (
	tracerName = "github.com/fd1az/dex-trader/business/pricing/infra/ethereum"
	meterName  = "github.com/fd1az/dex-trader/business/pricing/infra/ethereum"
)

// MarketABI holds the read-only book method of a market contract.
const MarketABI = `[
	{
		"inputs": [],
		"name": "bestBidAsk",
		"outputs": [
			{"internalType": "uint256", "name": "bid", "type": "uint256"},
			{"internalType": "uint256", "name": "ask", "type": "uint256"}
		],
		"stateMutability": "view",
		"type": "function"
	}
]`

var _ app.BookReader = (*BookReader)(nil)

// Caller is the subset of ethclient.Client the reader uses.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

type bookMetrics struct {
	calls   metric.Int64Counter
	errors  metric.Int64Counter
	latency metric.Float64Histogram
}

// BookReader implements app.BookReader with eth_call.
type BookReader struct {
	client  Caller
	abi     abi.ABI
	limiter *ratelimit.Limiter
	logger  logger.LoggerInterface
	cb      *circuitbreaker.CircuitBreaker[[]byte]

	tracer  trace.Tracer
	metrics *bookMetrics
}

func NewBookReader(client Caller, limiter *ratelimit.Limiter, log logger.LoggerInterface) (*BookReader, error) {
	parsed, err := abi.JSON(strings.NewReader(MarketABI))
	if err != nil {
		return nil, fmt.Errorf("parse market abi: %w", err)
	}
	if log == nil {
		log = logger.NewNop()
	}

	r := &BookReader{
		client:  client,
		abi:     parsed,
		limiter: limiter,
		logger:  log,
		tracer:  otel.Tracer(tracerName),
	}

	cbCfg := circuitbreaker.DefaultConfig("market-book")
	cbCfg.OnStateChange = func(name string, from, to gobreaker.State) {
		log.Info(context.Background(), "circuit breaker state change",
			"breaker", name, "from", from.String(), "to", to.String())
	}
	r.cb = circuitbreaker.New[[]byte](cbCfg)

	if err := r.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	return r, nil
}

func (r *BookReader) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	r.metrics = &bookMetrics{}

	r.metrics.calls, err = meter.Int64Counter(
		"pricing_book_calls_total",
		metric.WithDescription("bestBidAsk calls"),
	)
	if err != nil {
		return err
	}

	r.metrics.errors, err = meter.Int64Counter(
		"pricing_book_errors_total",
		metric.WithDescription("Failed bestBidAsk calls"),
	)
	if err != nil {
		return err
	}

	r.metrics.latency, err = meter.Float64Histogram(
		"pricing_book_latency_ms",
		metric.WithDescription("bestBidAsk latency"),
		metric.WithUnit("ms"),
	)
	return err
}

// BestBidAsk calls bestBidAsk() on the market contract.
func (r *BookReader) BestBidAsk(ctx context.Context, m marketDomain.Market) (*big.Int, *big.Int, error) {
	ctx, span := r.tracer.Start(ctx, "pricing.best_bid_ask",
		trace.WithAttributes(
			attribute.String("market", string(m.Key)),
			attribute.String("contract", m.ContractAddress.Hex()),
		),
	)
	defer span.End()

	start := time.Now()
	r.metrics.calls.Add(ctx, 1)
	defer func() {
		r.metrics.latency.Record(ctx, float64(time.Since(start).Milliseconds()))
	}()

	fail := func(err error) (*big.Int, *big.Int, error) {
		r.metrics.errors.Add(ctx, 1)
		span.RecordError(err)
		span.SetStatus(codes.Error, "book read failed")
		return nil, nil, err
	}

	callData, err := r.abi.Pack("bestBidAsk")
	if err != nil {
		return fail(fmt.Errorf("encode call: %w", err))
	}

	if err := r.limiter.Wait(ctx); err != nil {
		return fail(err)
	}

	to := m.ContractAddress
	result, err := r.cb.Execute(func() ([]byte, error) {
		return r.client.CallContract(ctx, ethereum.CallMsg{To: &to, Data: callData}, nil)
	})
	if err != nil {
		if apperror.HasCode(err, apperror.CodeCircuitOpen) {
			return fail(err)
		}
		return fail(apperror.New(apperror.CodeOrderbookFetchFailed,
			apperror.WithCause(err),
			apperror.WithContextf("%s at %s", m.Key, to.Hex())))
	}

	outputs, err := r.abi.Unpack("bestBidAsk", result)
	if err != nil || len(outputs) != 2 {
		return fail(apperror.New(apperror.CodeOrderbookFetchFailed,
			apperror.WithCause(err),
			apperror.WithContextf("%s: malformed bestBidAsk result", m.Key)))
	}
	bid, okBid := outputs[0].(*big.Int)
	ask, okAsk := outputs[1].(*big.Int)
	if !okBid || !okAsk {
		return fail(apperror.New(apperror.CodeOrderbookFetchFailed,
			apperror.WithContextf("%s: unexpected bestBidAsk types", m.Key)))
	}

	span.SetAttributes(attribute.String("bid", bid.String()), attribute.String("ask", ask.String()))
	span.SetStatus(codes.Ok, "book read")
	r.logger.Debug(ctx, "best bid/ask", "market", m.Key, "bid", bid.String(), "ask", ask.String())
	return bid, ask, nil
}
