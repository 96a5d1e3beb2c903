// Package feed broadcasts ledger notifications to websocket subscribers.
package feed

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/fd1az/dex-trader/business/ledger/app"
	"github.com/fd1az/dex-trader/business/ledger/domain"
	marketDomain "github.com/fd1az/dex-trader/business/market/domain"
	"github.com/fd1az/dex-trader/internal/logger"
)

const (
	sendBuffer   = 64
	writeTimeout = 5 * time.Second
)

// Message types.
const (
	TypeSubscribe    = "subscribe"
	TypeSubscribed   = "subscribed"
	TypeNotification = "notification"
	TypeSync         = "sync"
)

// ClientMessage is what subscribers send. An empty market list means all markets.
type ClientMessage struct {
	Type    string   `json:"type"`
	Markets []string `json:"markets,omitempty"`
}

// Message is what the server sends.
type Message struct {
	Type         string               `json:"type"`
	Markets      []string             `json:"markets,omitempty"`
	Notification *NotificationPayload `json:"notification,omitempty"`
	Sync         *SyncPayload         `json:"sync,omitempty"`
}

type NotificationPayload struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	Side      string `json:"side"`
	Market    string `json:"market"`
	AmountIn  string `json:"amountIn"`
	AmountOut string `json:"amountOut"`
	Price     string `json:"price,omitempty"`
	TxHash    string `json:"txHash"`
	Timestamp int64  `json:"timestamp"`
}

type SyncPayload struct {
	LastBlock uint64 `json:"lastBlock"`
	HeadBlock uint64 `json:"headBlock"`
	Lag       uint64 `json:"lag"`
	Connected bool   `json:"connected"`
}

type subscriber struct {
	conn *websocket.Conn
	send chan Message

	mu      sync.RWMutex
	markets map[marketDomain.Key]struct{}
}

func (c *subscriber) wants(market marketDomain.Key) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.markets) == 0 {
		return true
	}
	_, ok := c.markets[market]
	return ok
}

func (c *subscriber) subscribe(markets []string) []string {
	set := make(map[marketDomain.Key]struct{}, len(markets))
	keys := make([]string, 0, len(markets))
	for _, m := range markets {
		k := marketDomain.Key(m)
		if _, dup := set[k]; dup {
			continue
		}
		set[k] = struct{}{}
		keys = append(keys, string(k))
	}
	c.mu.Lock()
	c.markets = set
	c.mu.Unlock()
	return keys
}

// Server serves /ws and implements app.Notifier.
type Server struct {
	port   int
	logger logger.LoggerInterface

	mu      sync.RWMutex
	clients map[*subscriber]struct{}
	server  *http.Server
}

var _ app.Notifier = (*Server)(nil)

func NewServer(port int, log logger.LoggerInterface) *Server {
	if log == nil {
		log = logger.NewNop()
	}
	return &Server{
		port:    port,
		logger:  log,
		clients: make(map[*subscriber]struct{}),
	}
}

// Handler returns the routed mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	return mux
}

// Start listens in the background.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           otelhttp.NewHandler(s.Handler(), "feed"),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error(context.Background(), "feed server stopped", "error", err, "port", s.port)
		}
	}()
	s.logger.Info(ctx, "notification feed listening", "port", s.port, "path", "/ws")
	return nil
}

// Stop disconnects every subscriber and shuts the listener down.
func (s *Server) Stop() error {
	s.mu.Lock()
	clients := s.clients
	s.clients = make(map[*subscriber]struct{})
	s.mu.Unlock()

	for c := range clients {
		c.conn.Close(websocket.StatusGoingAway, "shutting down")
	}

	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// Clients is the number of connected subscribers.
func (s *Server) Clients() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Notify sends n to every subscriber of its market.
func (s *Server) Notify(n domain.Notification) {
	msg := Message{Type: TypeNotification, Notification: notificationPayload(n)}
	s.broadcast(msg, func(c *subscriber) bool { return c.wants(n.Market) })
}

// UpdateLedger is a no-op; subscribers only receive notifications and sync progress.
func (s *Server) UpdateLedger(*domain.Snapshot) {}

func (s *Server) UpdateSyncStatus(status app.SyncStatus) {
	msg := Message{Type: TypeSync, Sync: &SyncPayload{
		LastBlock: status.LastBlock,
		HeadBlock: status.HeadBlock,
		Lag:       status.Lag(),
		Connected: status.Connected,
	}}
	s.broadcast(msg, func(*subscriber) bool { return true })
}

func (s *Server) broadcast(msg Message, match func(*subscriber) bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for c := range s.clients {
		if !match(c) {
			continue
		}
		select {
		case c.send <- msg:
		default:
			s.logger.Warn(context.Background(), "feed subscriber too slow, dropping message", "type", msg.Type)
		}
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		s.logger.Warn(r.Context(), "websocket accept failed", "error", err)
		return
	}

	c := &subscriber{conn: conn, send: make(chan Message, sendBuffer)}
	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		s.remove(c)
	}()

	go s.writeLoop(ctx, c)
	s.readLoop(ctx, c)
}

func (s *Server) readLoop(ctx context.Context, c *subscriber) {
	for {
		var in ClientMessage
		if err := wsjson.Read(ctx, c.conn, &in); err != nil {
			return
		}
		if in.Type != TypeSubscribe {
			continue
		}
		keys := c.subscribe(in.Markets)
		select {
		case c.send <- Message{Type: TypeSubscribed, Markets: keys}:
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) writeLoop(ctx context.Context, c *subscriber) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-c.send:
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(wctx, c.conn, msg)
			cancel()
			if err != nil {
				c.conn.Close(websocket.StatusInternalError, "write failed")
				return
			}
		}
	}
}

func (s *Server) remove(c *subscriber) {
	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()
	c.conn.Close(websocket.StatusNormalClosure, "")
}

func notificationPayload(n domain.Notification) *NotificationPayload {
	p := &NotificationPayload{
		ID:        n.ID,
		Kind:      string(n.Kind),
		Side:      n.Side.String(),
		Market:    string(n.Market),
		AmountIn:  intString(n.AmountIn),
		AmountOut: intString(n.AmountOut),
		TxHash:    n.TxHash.Hex(),
		Timestamp: n.Timestamp,
	}
	if n.Price != nil {
		p.Price = n.Price.String()
	}
	return p
}

func intString(x *big.Int) string {
	if x == nil {
		return "0"
	}
	return x.String()
}
