// Package ethereum reads exchange logs from an Ethereum node.
package ethereum

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/dex-trader/business/ledger/domain"
	"github.com/fd1az/dex-trader/internal/apperror"
	"github.com/fd1az/dex-trader/internal/circuitbreaker"
	"github.com/fd1az/dex-trader/internal/logger"
	"github.com/fd1az/dex-trader/internal/ratelimit"
)

const (
	tracerName = "github.com/fd1az/dex-trader/business/ledger/infra/ethereum"
	meterName  = "github.com/fd1az/dex-trader/business/ledger/infra/ethereum"
)

// Client is the subset of ethclient.Client used here.
type Client interface {
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

type logSourceMetrics struct {
	requests    metric.Int64Counter
	errors      metric.Int64Counter
	logsFetched metric.Int64Counter
	latency     metric.Float64Histogram
}

// LogSource implements app.LogSource with eth_getLogs.
type LogSource struct {
	client    Client
	contracts []common.Address
	topics    domain.Topics
	limiter   *ratelimit.Limiter
	logger    logger.LoggerInterface

	logsCB  *circuitbreaker.CircuitBreaker[[]types.Log]
	blockCB *circuitbreaker.CircuitBreaker[uint64]

	tracer  trace.Tracer
	metrics *logSourceMetrics
}

// NewLogSource watches both exchange topics on contracts.
func NewLogSource(client Client, contracts []common.Address, topics domain.Topics, limiter *ratelimit.Limiter, log logger.LoggerInterface) (*LogSource, error) {
	if log == nil {
		log = logger.NewNop()
	}
	s := &LogSource{
		client:    client,
		contracts: append([]common.Address(nil), contracts...),
		topics:    topics,
		limiter:   limiter,
		logger:    log,
		tracer:    otel.Tracer(tracerName),
	}
	if err := s.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	onChange := func(name string, from, to gobreaker.State) {
		s.logger.Info(context.Background(), "circuit breaker state change",
			"breaker", name, "from", from.String(), "to", to.String())
	}
	logsCfg := circuitbreaker.DefaultConfig("eth-logs")
	logsCfg.OnStateChange = onChange
	s.logsCB = circuitbreaker.New[[]types.Log](logsCfg)

	blockCfg := circuitbreaker.DefaultConfig("eth-block-number")
	blockCfg.OnStateChange = onChange
	s.blockCB = circuitbreaker.New[uint64](blockCfg)

	return s, nil
}

func (s *LogSource) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	s.metrics = &logSourceMetrics{}

	s.metrics.requests, err = meter.Int64Counter(
		"eth_get_logs_requests_total",
		metric.WithDescription("eth_getLogs calls"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return err
	}

	s.metrics.errors, err = meter.Int64Counter(
		"eth_get_logs_errors_total",
		metric.WithDescription("Failed eth_getLogs calls"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return err
	}

	s.metrics.logsFetched, err = meter.Int64Counter(
		"eth_logs_fetched_total",
		metric.WithDescription("Exchange logs returned by the node"),
		metric.WithUnit("{log}"),
	)
	if err != nil {
		return err
	}

	s.metrics.latency, err = meter.Float64Histogram(
		"eth_get_logs_latency_ms",
		metric.WithDescription("eth_getLogs round trip"),
		metric.WithUnit("ms"),
	)
	return err
}

// Query builds the filter for [from, to].
func (s *LogSource) Query(from, to uint64) ethereum.FilterQuery {
	return ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: s.contracts,
		Topics:    [][]common.Hash{{s.topics.OrderChange, s.topics.TradeFill}},
	}
}

// LatestBlock returns the chain head number.
func (s *LogSource) LatestBlock(ctx context.Context) (uint64, error) {
	ctx, span := s.tracer.Start(ctx, "eth.block_number")
	defer span.End()

	if err := s.limiter.Wait(ctx); err != nil {
		return 0, err
	}

	n, err := s.blockCB.Execute(func() (uint64, error) {
		return s.client.BlockNumber(ctx)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "block number failed")
		return 0, wrapRPC(err, "eth_blockNumber")
	}
	span.SetStatus(codes.Ok, "fetched")
	return n, nil
}

// FetchLogs returns exchange logs in [from, to] ordered by block and index.
func (s *LogSource) FetchLogs(ctx context.Context, from, to uint64) ([]types.Log, error) {
	ctx, span := s.tracer.Start(ctx, "eth.get_logs",
		trace.WithAttributes(
			attribute.Int64("from_block", int64(from)),
			attribute.Int64("to_block", int64(to)),
			attribute.Int("contracts", len(s.contracts)),
		),
	)
	defer span.End()

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	s.metrics.requests.Add(ctx, 1)

	logs, err := s.logsCB.Execute(func() ([]types.Log, error) {
		return s.client.FilterLogs(ctx, s.Query(from, to))
	})
	s.metrics.latency.Record(ctx, float64(time.Since(start).Milliseconds()))
	if err != nil {
		s.metrics.errors.Add(ctx, 1)
		span.RecordError(err)
		span.SetStatus(codes.Error, "get logs failed")
		return nil, wrapFetch(err, from, to)
	}

	// removed logs belong to reorged blocks
	out := logs[:0]
	for _, l := range logs {
		if !l.Removed {
			out = append(out, l)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].BlockNumber != out[j].BlockNumber {
			return out[i].BlockNumber < out[j].BlockNumber
		}
		return out[i].Index < out[j].Index
	})

	s.metrics.logsFetched.Add(ctx, int64(len(out)))
	span.SetAttributes(attribute.Int("logs", len(out)))
	span.SetStatus(codes.Ok, "fetched")
	s.logger.Debug(ctx, "logs fetched", "from", from, "to", to, "count", len(out))
	return out, nil
}

func wrapRPC(err error, call string) error {
	if apperror.HasCode(err, apperror.CodeCircuitOpen) {
		return err
	}
	return apperror.New(apperror.CodeEthereumRPCError, apperror.WithCause(err), apperror.WithContext(call))
}

func wrapFetch(err error, from, to uint64) error {
	if apperror.HasCode(err, apperror.CodeCircuitOpen) {
		return err
	}
	return apperror.New(apperror.CodeLogFetchFailed,
		apperror.WithCause(err),
		apperror.WithContextf("blocks %d-%d", from, to))
}
