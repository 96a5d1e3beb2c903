package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/dex-trader/business/ledger/domain"
	marketDomain "github.com/fd1az/dex-trader/business/market/domain"
	"github.com/fd1az/dex-trader/internal/apperror"
	"github.com/fd1az/dex-trader/internal/dedup"
	"github.com/fd1az/dex-trader/internal/logger"
)

const (
	tracerName = "github.com/fd1az/dex-trader/business/ledger/app"
	meterName  = "github.com/fd1az/dex-trader/business/ledger/app"
)

// LogError is a per-log failure. It never aborts the rest of the batch.
type LogError struct {
	LogID string
	Err   error
}

func (e *LogError) Error() string {
	return fmt.Sprintf("log %s: %v", e.LogID, e.Err)
}

func (e *LogError) Unwrap() error {
	return e.Err
}

// Result summarises one ingested batch.
type Result struct {
	Notifications []domain.Notification
	Errors        []*LogError
	// Applied counts decoded events merged into the state.
	Applied int
	// Skipped counts duplicates and logs with unknown topics.
	Skipped int
	// NewTrades lists trades appended by this batch, in order.
	NewTrades []domain.Trade
}

type ingestMetrics struct {
	processed     metric.Int64Counter
	skipped       metric.Int64Counter
	decodeErrors  metric.Int64Counter
	notifications metric.Int64Counter
	duration      metric.Float64Histogram
}

type orderChange struct {
	ev     domain.OrderChangeEvent
	market marketDomain.Key
}

type tradeFill struct {
	ev     domain.TradeFillEvent
	market marketDomain.Key
}

// Ingestor runs a raw log batch through dedup, decode and reconcile.
// It is not safe for concurrent use; LedgerService serialises calls.
type Ingestor struct {
	topics     domain.Topics
	window     *dedup.Window
	markets    MarketLookup
	reconciler *Reconciler
	log        logger.LoggerInterface

	tracer  trace.Tracer
	metrics *ingestMetrics
}

// NewIngestor creates an Ingestor.
func NewIngestor(topics domain.Topics, window *dedup.Window, markets MarketLookup, reconciler *Reconciler, log logger.LoggerInterface) (*Ingestor, error) {
	if log == nil {
		log = logger.NewNop()
	}
	in := &Ingestor{
		topics:     topics,
		window:     window,
		markets:    markets,
		reconciler: reconciler,
		log:        log,
		tracer:     otel.Tracer(tracerName),
	}
	if err := in.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	return in, nil
}

func (in *Ingestor) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	in.metrics = &ingestMetrics{}

	in.metrics.processed, err = meter.Int64Counter(
		"ledger_logs_processed_total",
		metric.WithDescription("Exchange logs decoded and applied"),
		metric.WithUnit("{log}"),
	)
	if err != nil {
		return err
	}

	in.metrics.skipped, err = meter.Int64Counter(
		"ledger_logs_skipped_total",
		metric.WithDescription("Logs skipped as duplicates or unknown events"),
		metric.WithUnit("{log}"),
	)
	if err != nil {
		return err
	}

	in.metrics.decodeErrors, err = meter.Int64Counter(
		"ledger_decode_errors_total",
		metric.WithDescription("Logs rejected as malformed or unroutable"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return err
	}

	in.metrics.notifications, err = meter.Int64Counter(
		"ledger_notifications_total",
		metric.WithDescription("Notifications emitted by the reconciler"),
		metric.WithUnit("{notification}"),
	)
	if err != nil {
		return err
	}

	in.metrics.duration, err = meter.Float64Histogram(
		"ledger_ingest_duration_ms",
		metric.WithDescription("Time to ingest one log batch"),
		metric.WithUnit("ms"),
	)
	return err
}

// Ingest merges logs into s. Order-change logs are applied before trade-fill
// logs; each group keeps arrival order.
func (in *Ingestor) Ingest(ctx context.Context, s *domain.State, logs []types.Log) Result {
	ctx, span := in.tracer.Start(ctx, "ledger.ingest",
		trace.WithAttributes(attribute.Int("batch_size", len(logs))),
	)
	defer span.End()
	start := time.Now()

	var (
		res     Result
		changes []orderChange
		fills   []tradeFill
	)

	for _, l := range logs {
		id := domain.LogID(l)

		kind := in.topics.Classify(l)
		if kind == domain.EventUnknown {
			res.Skipped++
			continue
		}
		if !in.window.Admit(id) {
			res.Skipped++
			continue
		}

		market, ok := in.markets.ByContract(l.Address)
		if !ok {
			in.fail(ctx, &res, id, kind, apperror.New(apperror.CodeMarketNotFound,
				apperror.WithContextf("no market for contract %s", l.Address.Hex())))
			continue
		}

		switch kind {
		case domain.EventOrderChange:
			ev, err := domain.DecodeOrderChange(l)
			if err != nil {
				in.fail(ctx, &res, id, kind, err)
				continue
			}
			changes = append(changes, orderChange{ev: ev, market: market.Key})
		case domain.EventTradeFill:
			ev, err := domain.DecodeTradeFill(l)
			if err != nil {
				in.fail(ctx, &res, id, kind, err)
				continue
			}
			fills = append(fills, tradeFill{ev: ev, market: market.Key})
		}
	}

	tradesBefore := s.TradeCount()

	for _, c := range changes {
		res.Notifications = append(res.Notifications, in.reconciler.ApplyOrderChange(ctx, s, c.ev, c.market)...)
		res.Applied++
		in.metrics.processed.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", domain.EventOrderChange.String())))
	}
	for _, f := range fills {
		res.Notifications = append(res.Notifications, in.reconciler.ApplyTradeFill(ctx, s, f.ev, f.market)...)
		res.Applied++
		in.metrics.processed.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", domain.EventTradeFill.String())))
	}

	res.NewTrades = s.TradesSince(tradesBefore)

	if res.Skipped > 0 {
		in.metrics.skipped.Add(ctx, int64(res.Skipped))
	}
	if n := len(res.Notifications); n > 0 {
		in.metrics.notifications.Add(ctx, int64(n))
	}
	in.metrics.duration.Record(ctx, float64(time.Since(start).Microseconds())/1000)

	span.SetAttributes(
		attribute.Int("applied", res.Applied),
		attribute.Int("skipped", res.Skipped),
		attribute.Int("errors", len(res.Errors)),
	)
	if len(res.Errors) > 0 {
		span.SetStatus(codes.Error, "batch had rejected logs")
	} else {
		span.SetStatus(codes.Ok, "ingested")
	}
	return res
}

func (in *Ingestor) fail(ctx context.Context, res *Result, id string, kind domain.EventKind, err error) {
	res.Errors = append(res.Errors, &LogError{LogID: id, Err: err})
	in.metrics.decodeErrors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind.String()),
		attribute.String("code", string(apperror.GetCode(err))),
	))
	in.log.Warn(ctx, "rejected exchange log", "log_id", id, "kind", kind.String(), "error", err)
}
