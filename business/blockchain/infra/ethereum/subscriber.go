// Package ethereum follows the chain head over websocket with HTTP polling fallback.
package ethereum

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/dex-trader/business/blockchain/domain"
	"github.com/fd1az/dex-trader/internal/apperror"
	"github.com/fd1az/dex-trader/internal/circuitbreaker"
	"github.com/fd1az/dex-trader/internal/logger"
)

const (
	tracerName = "github.com/fd1az/dex-trader/business/blockchain/infra/ethereum"
	meterName  = "github.com/fd1az/dex-trader/business/blockchain/infra/ethereum"
)

// HeadClient is the subset of ethclient.Client the subscriber uses.
type HeadClient interface {
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	SubscribeNewHead(ctx context.Context, ch chan<- *types.Header) (ethereum.Subscription, error)
	ChainID(ctx context.Context) (*big.Int, error)
	Close()
}

// DialFunc opens a HeadClient for url.
type DialFunc func(ctx context.Context, url string) (HeadClient, error)

func dialEthclient(ctx context.Context, url string) (HeadClient, error) {
	return ethclient.DialContext(ctx, url)
}

// SubscriberConfig holds configuration for the head subscriber.
type SubscriberConfig struct {
	WSURL          string
	HTTPURL        string
	PollInterval   time.Duration
	ReconnectDelay time.Duration
	BufferSize     int
	Dial           DialFunc // nil uses ethclient
}

func DefaultSubscriberConfig(wsURL, httpURL string) SubscriberConfig {
	return SubscriberConfig{
		WSURL:          wsURL,
		HTTPURL:        httpURL,
		PollInterval:   12 * time.Second,
		ReconnectDelay: 5 * time.Second,
		BufferSize:     16,
	}
}

type subscriberMetrics struct {
	blocksReceived   metric.Int64Counter
	subscribeErrors  metric.Int64Counter
	connectionState  metric.Int64Gauge
	blockLatency     metric.Float64Histogram
	httpFallbackUsed metric.Int64Counter
	reorgs           metric.Int64Counter
}

// Subscriber implements app.BlockSubscriber.
type Subscriber struct {
	config SubscriberConfig
	logger logger.LoggerInterface

	clientMu   sync.RWMutex
	wsClient   HeadClient
	httpClient HeadClient

	stateMu    sync.RWMutex
	state      domain.ConnectionState
	head       *domain.Block
	lastUpdate time.Time

	usingHTTP  atomic.Bool
	reconnects atomic.Int32
	reorgs     atomic.Int32

	blocks  chan *domain.Block
	emitMu  sync.Mutex
	done    chan struct{}
	closeMu sync.Mutex
	closed  atomic.Bool

	httpCB *circuitbreaker.CircuitBreaker[*types.Header]
	wsCB   *circuitbreaker.CircuitBreaker[*types.Header]

	tracer  trace.Tracer
	metrics *subscriberMetrics
}

func NewSubscriber(cfg SubscriberConfig, log logger.LoggerInterface) (*Subscriber, error) {
	if cfg.WSURL == "" && cfg.HTTPURL == "" {
		return nil, apperror.New(apperror.CodeConfigurationError, apperror.WithContext("no ethereum endpoint configured"))
	}
	if log == nil {
		log = logger.NewNop()
	}
	if cfg.Dial == nil {
		cfg.Dial = dialEthclient
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}

	s := &Subscriber{
		config: cfg,
		logger: log,
		state:  domain.StateDisconnected,
		blocks: make(chan *domain.Block, cfg.BufferSize),
		done:   make(chan struct{}),
		tracer: otel.Tracer(tracerName),
	}
	if err := s.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	onChange := func(name string, from, to gobreaker.State) {
		s.logger.Info(context.Background(), "circuit breaker state change",
			"breaker", name, "from", from.String(), "to", to.String())
	}
	wsCfg := circuitbreaker.DefaultConfig("eth-ws")
	wsCfg.OnStateChange = onChange
	s.wsCB = circuitbreaker.New[*types.Header](wsCfg)

	httpCfg := circuitbreaker.DefaultConfig("eth-http")
	httpCfg.OnStateChange = onChange
	s.httpCB = circuitbreaker.New[*types.Header](httpCfg)

	return s, nil
}

func (s *Subscriber) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	s.metrics = &subscriberMetrics{}

	s.metrics.blocksReceived, err = meter.Int64Counter(
		"eth_blocks_received_total",
		metric.WithDescription("Chain heads received"),
		metric.WithUnit("{block}"),
	)
	if err != nil {
		return err
	}

	s.metrics.subscribeErrors, err = meter.Int64Counter(
		"eth_subscribe_errors_total",
		metric.WithDescription("Head subscription and polling errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return err
	}

	s.metrics.connectionState, err = meter.Int64Gauge(
		"eth_connection_state",
		metric.WithDescription("0=disconnected, 1=connecting, 2=connected, 3=reconnecting"),
		metric.WithUnit("{state}"),
	)
	if err != nil {
		return err
	}

	s.metrics.blockLatency, err = meter.Float64Histogram(
		"eth_block_latency_ms",
		metric.WithDescription("Latency from block timestamp to receipt"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	s.metrics.httpFallbackUsed, err = meter.Int64Counter(
		"eth_http_fallback_total",
		metric.WithDescription("Times HTTP polling replaced the websocket"),
		metric.WithUnit("{fallback}"),
	)
	if err != nil {
		return err
	}

	s.metrics.reorgs, err = meter.Int64Counter(
		"eth_reorgs_total",
		metric.WithDescription("Heads that did not extend the previous head"),
		metric.WithUnit("{reorg}"),
	)
	return err
}

// Subscribe connects over websocket, falling back to HTTP polling.
func (s *Subscriber) Subscribe(ctx context.Context) (<-chan *domain.Block, error) {
	ctx, span := s.tracer.Start(ctx, "eth.subscribe",
		trace.WithAttributes(attribute.Bool("ws_configured", s.config.WSURL != "")),
	)
	defer span.End()

	if s.closed.Load() {
		err := errors.New("subscriber is closed")
		span.RecordError(err)
		return nil, err
	}

	s.setState(domain.StateConnecting)

	if err := s.connectWS(ctx); err != nil {
		s.logger.Warn(ctx, "ws connection failed, trying http fallback", "error", err)
		span.AddEvent("ws_failed_trying_http")

		if err := s.connectHTTP(ctx); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "both connections failed")
			s.setState(domain.StateDisconnected)
			return nil, apperror.New(apperror.CodeEthereumConnectionFailed,
				apperror.WithCause(err),
				apperror.WithContext("failed to connect via WS and HTTP"))
		}
		s.usingHTTP.Store(true)
		go s.runHTTPPoller(ctx)
	} else {
		go s.runWSSubscription(ctx)
	}

	s.setState(domain.StateConnected)
	span.SetStatus(codes.Ok, "subscribed")
	return s.blocks, nil
}

func (s *Subscriber) connectWS(ctx context.Context) error {
	if s.config.WSURL == "" {
		return errors.New("ws url not configured")
	}
	client, err := s.config.Dial(ctx, s.config.WSURL)
	if err != nil {
		return fmt.Errorf("dial ws: %w", err)
	}

	s.clientMu.Lock()
	old := s.wsClient
	s.wsClient = client
	s.clientMu.Unlock()
	if old != nil {
		old.Close()
	}
	return nil
}

func (s *Subscriber) connectHTTP(ctx context.Context) error {
	s.clientMu.RLock()
	connected := s.httpClient != nil
	s.clientMu.RUnlock()
	if connected {
		return nil
	}

	if s.config.HTTPURL == "" {
		return errors.New("http url not configured")
	}
	client, err := s.config.Dial(ctx, s.config.HTTPURL)
	if err != nil {
		return fmt.Errorf("dial http: %w", err)
	}

	s.clientMu.Lock()
	s.httpClient = client
	s.clientMu.Unlock()
	return nil
}

func (s *Subscriber) runWSSubscription(ctx context.Context) {
	s.clientMu.RLock()
	client := s.wsClient
	s.clientMu.RUnlock()
	if client == nil {
		s.handleWSDisconnect(ctx)
		return
	}

	headers := make(chan *types.Header, s.config.BufferSize)
	sub, err := client.SubscribeNewHead(ctx, headers)
	if err != nil {
		s.logger.Error(ctx, "subscribe new head failed", "error", err)
		s.metrics.subscribeErrors.Add(ctx, 1)
		s.handleWSDisconnect(ctx)
		return
	}
	s.logger.Info(ctx, "subscribed to new heads via ws")

	for {
		select {
		case <-s.done:
			sub.Unsubscribe()
			return
		case <-ctx.Done():
			sub.Unsubscribe()
			return
		case err := <-sub.Err():
			if err != nil {
				s.logger.Error(ctx, "subscription error", "error", err)
				s.metrics.subscribeErrors.Add(ctx, 1)
			}
			sub.Unsubscribe()
			s.handleWSDisconnect(ctx)
			return
		case header := <-headers:
			if header != nil {
				s.processHeader(ctx, header, false)
			}
		}
	}
}

func (s *Subscriber) handleWSDisconnect(ctx context.Context) {
	if s.closed.Load() {
		return
	}

	s.setState(domain.StateReconnecting)
	s.reconnects.Add(1)

	select {
	case <-s.done:
		return
	case <-ctx.Done():
		return
	case <-time.After(s.config.ReconnectDelay):
	}

	if err := s.connectWS(ctx); err != nil {
		s.logger.Warn(ctx, "ws reconnect failed, switching to http", "error", err)
		if err := s.connectHTTP(ctx); err != nil {
			s.logger.Error(ctx, "http fallback connection failed", "error", err)
			s.setState(domain.StateDisconnected)
			return
		}
		s.usingHTTP.Store(true)
		s.metrics.httpFallbackUsed.Add(ctx, 1)
		s.setState(domain.StateConnected)
		go s.runHTTPPoller(ctx)
		return
	}

	s.usingHTTP.Store(false)
	s.setState(domain.StateConnected)
	go s.runWSSubscription(ctx)
}

func (s *Subscriber) runHTTPPoller(ctx context.Context) {
	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	s.logger.Info(ctx, "starting http polling fallback", "interval", s.config.PollInterval)
	s.pollLatestBlock(ctx)

	for {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.pollLatestBlock(ctx)
		}
	}
}

func (s *Subscriber) pollLatestBlock(ctx context.Context) {
	ctx, span := s.tracer.Start(ctx, "eth.poll.block")
	defer span.End()

	s.clientMu.RLock()
	client := s.httpClient
	s.clientMu.RUnlock()
	if client == nil {
		span.AddEvent("no_http_client")
		return
	}

	header, err := s.httpCB.Execute(func() (*types.Header, error) {
		return client.HeaderByNumber(ctx, nil)
	})
	if err != nil {
		span.RecordError(err)
		s.logger.Error(ctx, "http poll failed", "error", err)
		s.metrics.subscribeErrors.Add(ctx, 1)
		return
	}

	if head := s.currentHead(); head != nil && header.Number.Uint64() <= head.Number && header.Hash() == head.Hash {
		span.AddEvent("duplicate_block")
		return
	}
	s.processHeader(ctx, header, true)
	span.SetStatus(codes.Ok, "polled")
}

func (s *Subscriber) processHeader(ctx context.Context, header *types.Header, fromHTTP bool) {
	block := headerToBlock(header)
	latency := time.Since(block.Timestamp)
	s.metrics.blockLatency.Record(ctx, float64(latency.Milliseconds()),
		metric.WithAttributes(attribute.Bool("from_http", fromHTTP)))

	s.stateMu.Lock()
	prev := s.head
	s.head = block
	s.lastUpdate = time.Now()
	s.stateMu.Unlock()

	// polling can skip heads, so only a same-height or parent mismatch counts
	if prev != nil && ((block.Number == prev.Number+1 && !block.Follows(prev)) || block.Number <= prev.Number) {
		s.reorgs.Add(1)
		s.metrics.reorgs.Add(ctx, 1)
		s.logger.Warn(ctx, "chain reorg detected", "previous", prev.Number, "head", block.Number)
	}

	s.emit(block)
	s.metrics.blocksReceived.Add(ctx, 1)
	s.logger.Debug(ctx, "block received", "number", block.Number, "latency_ms", latency.Milliseconds())
}

// emit never blocks: when the buffer is full the oldest head is discarded.
func (s *Subscriber) emit(block *domain.Block) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	if s.closed.Load() {
		return
	}
	for {
		select {
		case s.blocks <- block:
			return
		default:
		}
		select {
		case <-s.blocks:
		default:
		}
	}
}

func headerToBlock(header *types.Header) *domain.Block {
	return &domain.Block{
		Number:     header.Number.Uint64(),
		Hash:       header.Hash(),
		ParentHash: header.ParentHash,
		Timestamp:  time.Unix(int64(header.Time), 0),
	}
}

// LatestBlock fetches the head from whichever client is live.
func (s *Subscriber) LatestBlock(ctx context.Context) (*domain.Block, error) {
	ctx, span := s.tracer.Start(ctx, "eth.latest_block")
	defer span.End()

	s.clientMu.RLock()
	wsClient := s.wsClient
	httpClient := s.httpClient
	s.clientMu.RUnlock()

	var header *types.Header
	var err error
	if wsClient != nil && !s.usingHTTP.Load() {
		header, err = s.wsCB.Execute(func() (*types.Header, error) {
			return wsClient.HeaderByNumber(ctx, nil)
		})
	}
	if header == nil && httpClient != nil {
		header, err = s.httpCB.Execute(func() (*types.Header, error) {
			return httpClient.HeaderByNumber(ctx, nil)
		})
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return nil, apperror.New(apperror.CodeBlockNotFound,
			apperror.WithCause(err),
			apperror.WithContext("failed to fetch latest block"))
	}
	if header == nil {
		return nil, apperror.New(apperror.CodeEthereumConnectionFailed,
			apperror.WithContext("no ethereum client connected"))
	}

	span.SetStatus(codes.Ok, "fetched")
	return headerToBlock(header), nil
}

// VerifyChain checks that the node serves the configured chain.
func (s *Subscriber) VerifyChain(ctx context.Context, expected uint64) error {
	s.clientMu.RLock()
	client := s.wsClient
	if client == nil || s.usingHTTP.Load() {
		client = s.httpClient
	}
	s.clientMu.RUnlock()
	if client == nil {
		if err := s.connectHTTP(ctx); err != nil {
			return apperror.New(apperror.CodeEthereumConnectionFailed, apperror.WithCause(err))
		}
		s.clientMu.RLock()
		client = s.httpClient
		s.clientMu.RUnlock()
	}

	id, err := client.ChainID(ctx)
	if err != nil {
		return apperror.New(apperror.CodeEthereumRPCError, apperror.WithCause(err), apperror.WithContext("eth_chainId"))
	}
	if !id.IsUint64() || id.Uint64() != expected {
		return apperror.New(apperror.CodeConfigurationError,
			apperror.WithContextf("node serves chain %s, configured %d", id, expected))
	}
	return nil
}

func (s *Subscriber) State() domain.ConnectionState {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state
}

func (s *Subscriber) Status() domain.ConnectionStatus {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()

	status := domain.ConnectionStatus{
		State:      s.state,
		LastUpdate: s.lastUpdate,
		Reconnects: int(s.reconnects.Load()),
		Reorgs:     int(s.reorgs.Load()),
		UsingHTTP:  s.usingHTTP.Load(),
	}
	if s.head != nil {
		status.LastBlock = s.head.Number
	}
	return status
}

func (s *Subscriber) currentHead() *domain.Block {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.head
}

// Close stops following the chain and closes the head channel.
func (s *Subscriber) Close() error {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	if s.closed.Load() {
		return nil
	}

	s.logger.Info(context.Background(), "closing ethereum subscriber")
	s.closed.Store(true)
	close(s.done)

	s.clientMu.Lock()
	if s.wsClient != nil {
		s.wsClient.Close()
		s.wsClient = nil
	}
	if s.httpClient != nil {
		s.httpClient.Close()
		s.httpClient = nil
	}
	s.clientMu.Unlock()

	s.emitMu.Lock()
	close(s.blocks)
	s.emitMu.Unlock()

	s.setState(domain.StateDisconnected)
	return nil
}

func (s *Subscriber) setState(state domain.ConnectionState) {
	s.stateMu.Lock()
	s.state = state
	s.stateMu.Unlock()
	s.metrics.connectionState.Record(context.Background(), state.GaugeValue())
}
