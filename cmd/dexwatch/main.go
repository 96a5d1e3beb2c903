// Package main follows a running dextrader notification feed and prints it.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fd1az/dex-trader/business/ledger/infra/feed"
	"github.com/fd1az/dex-trader/internal/logger"
	"github.com/fd1az/dex-trader/internal/wsconn"
)

func main() {
	url := flag.String("url", "ws://localhost:8090/ws", "Feed websocket URL")
	markets := flag.String("markets", "", "Comma separated market keys such as ETH/USDC (empty = all)")
	level := flag.String("log-level", "info", "Log level")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log := logger.New(os.Stderr, logger.ParseLevel(*level), "dexwatch", nil)
	if err := run(ctx, *url, splitMarkets(*markets), os.Stdout, log); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, url string, markets []string, out io.Writer, log logger.LoggerInterface) error {
	client, err := wsconn.New(wsconn.DefaultConfig(url, "feed"))
	if err != nil {
		return err
	}
	defer client.Close()

	client.OnMessage(func(_ context.Context, data []byte) {
		var msg feed.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Warn(ctx, "bad feed message", "error", err)
			return
		}
		if line := formatMessage(msg); line != "" {
			fmt.Fprintln(out, line)
		}
	})

	// subscriptions are per connection, so resend after every reconnect
	client.OnStateChange(func(state wsconn.State, cause error) {
		switch state {
		case wsconn.StateConnected:
			log.Info(ctx, "feed connected", "url", url)
			go subscribe(ctx, client, markets, log)
		case wsconn.StateReconnecting, wsconn.StateDisconnected:
			log.Warn(ctx, "feed connection lost", "state", string(state), "error", cause)
		}
	})

	if err := client.Connect(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return nil
}

func subscribe(ctx context.Context, client *wsconn.Client, markets []string, log logger.LoggerInterface) {
	msg := feed.ClientMessage{Type: feed.TypeSubscribe, Markets: markets}
	if err := client.SendJSON(ctx, msg); err != nil {
		log.Error(ctx, "subscribe failed", "error", err)
	}
}

func splitMarkets(s string) []string {
	var keys []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			keys = append(keys, part)
		}
	}
	return keys
}

func formatMessage(msg feed.Message) string {
	switch msg.Type {
	case feed.TypeSubscribed:
		if len(msg.Markets) == 0 {
			return "subscribed: all markets"
		}
		return "subscribed: " + strings.Join(msg.Markets, ", ")
	case feed.TypeNotification:
		n := msg.Notification
		if n == nil {
			return ""
		}
		line := fmt.Sprintf("%-8s %-4s %-12s in=%s out=%s", n.Kind, n.Side, n.Market, n.AmountIn, n.AmountOut)
		if n.Price != "" {
			line += " price=" + n.Price
		}
		return line + " tx=" + n.TxHash
	case feed.TypeSync:
		s := msg.Sync
		if s == nil {
			return ""
		}
		return fmt.Sprintf("sync     block=%d head=%d lag=%d connected=%t", s.LastBlock, s.HeadBlock, s.Lag, s.Connected)
	}
	return ""
}
