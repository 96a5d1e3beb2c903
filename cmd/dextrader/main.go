// Package main is the entry point for the DEX trader client.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"github.com/fd1az/dex-trader/business/blockchain"
	blockchainDI "github.com/fd1az/dex-trader/business/blockchain/di"
	"github.com/fd1az/dex-trader/business/ledger"
	ledgerDI "github.com/fd1az/dex-trader/business/ledger/di"
	"github.com/fd1az/dex-trader/business/market"
	"github.com/fd1az/dex-trader/business/pricing"
	"github.com/fd1az/dex-trader/internal/apm"
	"github.com/fd1az/dex-trader/internal/config"
	"github.com/fd1az/dex-trader/internal/health"
	"github.com/fd1az/dex-trader/internal/logger"
	"github.com/fd1az/dex-trader/internal/metrics"
	"github.com/fd1az/dex-trader/internal/monolith"
	"github.com/fd1az/dex-trader/pkg/ui"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", "", "Path to configuration file")
	cliMode := flag.Bool("cli", false, "Run in CLI mode with logs (no TUI)")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("dex-trader %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	tuiMode := !*cliMode

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		if !tuiMode {
			fmt.Fprintf(os.Stderr, "received shutdown signal: %v\n", sig)
		}
		cancel()
	}()

	if err := run(ctx, *configPath, tuiMode); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string, tuiMode bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg.UI.TUIMode = tuiMode

	var out io.Writer = os.Stderr
	if tuiMode {
		out = io.Discard
	}
	log := logger.New(out, logger.ParseLevel(cfg.App.LogLevel), cfg.App.Name, nil)
	log.Info(ctx, "starting dex trader", "version", version, "environment", cfg.App.Environment)

	if cfg.Telemetry.Enabled {
		traceProvider, err := apm.NewTraceProvider(cfg.Telemetry, log)
		if err != nil {
			return fmt.Errorf("failed to init tracing: %w", err)
		}
		defer traceProvider.Stop()

		meterProvider, err := metrics.NewMeterProvider(ctx, cfg.Telemetry)
		if err != nil {
			return fmt.Errorf("failed to init metrics: %w", err)
		}
		defer meterProvider.Shutdown(context.Background())

		port := cfg.Telemetry.PrometheusPort
		if port == 0 {
			port = 9090
		}
		go metrics.ServePrometheus(ctx, port, log)
	}

	mono, err := monolith.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create monolith: %w", err)
	}
	defer mono.Close()

	modules := []monolith.Module{
		&blockchain.Module{}, // chain heads
		&market.Module{},     // market table and router
		&ledger.Module{},     // depends on blockchain and market
		&pricing.Module{},    // depends on market and ledger
	}

	if err := mono.RegisterModules(modules...); err != nil {
		return fmt.Errorf("failed to register modules: %w", err)
	}

	healthServer := health.NewServer(cfg.Health.Port, version, log)
	healthServer.RegisterCheck("ethereum", func(context.Context) (bool, string) {
		svc := blockchainDI.GetBlockchainService(mono.Services())
		return svc.Connected(), string(svc.ConnectionState())
	})
	healthServer.RegisterCheck("ledger_sync", health.LagCheck(func() time.Time {
		return ledgerDI.GetSyncer(mono.Services()).LastSync()
	}, cfg.Health.MaxSyncLag))
	if err := healthServer.Start(); err != nil {
		log.Warn(ctx, "failed to start health server", "error", err)
	}
	defer healthServer.Stop(context.Background())

	start := func() error {
		if tuiMode {
			ui.Send(ui.StartupMsg{Step: "config", Status: "done"})
		}
		if err := mono.StartModules(ctx, modules...); err != nil {
			return fmt.Errorf("failed to start modules: %w", err)
		}
		if tuiMode {
			ui.Send(ui.StartupMsg{Step: "markets", Status: "done"})
		}
		return nil
	}
	stop := func() {
		if err := ledgerDI.GetLedgerService(mono.Services()).Stop(); err != nil {
			log.Error(ctx, "error stopping notifiers", "error", err)
		}
	}

	if tuiMode {
		return runTUI(ctx, start, stop)
	}
	return runCLI(ctx, start, stop, log)
}

func runCLI(ctx context.Context, start func() error, stop func(), log *logger.Logger) error {
	if err := start(); err != nil {
		return err
	}
	log.Info(ctx, "all modules started, following the exchange")

	<-ctx.Done()
	log.Info(ctx, "shutting down")
	stop()
	return nil
}

func runTUI(ctx context.Context, start func() error, stop func()) error {
	startSignal := make(chan struct{}, 1)
	ui.OnStartModules = func() {
		select {
		case startSignal <- struct{}{}:
		default:
		}
	}

	p := tea.NewProgram(ui.New(), tea.WithAltScreen())
	ui.Program = p

	errCh := make(chan error, 1)
	go func() {
		select {
		case <-startSignal:
		case <-ctx.Done():
			errCh <- nil
			return
		}

		if err := start(); err != nil {
			ui.Send(ui.ErrorMsg{Error: err})
			errCh <- err
			return
		}

		<-ctx.Done()
		stop()
		errCh <- nil
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	select {
	case err := <-errCh:
		return err
	default:
		return nil
	}
}
