// Package main is the entry point of the regime bracket bot. It replays bar
// history in inference mode against the simulated execution engine and
// serves its state over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/your-org/regime-bracket-bot/internal/alert"
	"github.com/your-org/regime-bracket-bot/internal/benchmark"
	"github.com/your-org/regime-bracket-bot/internal/config"
	"github.com/your-org/regime-bracket-bot/internal/datastore"
	"github.com/your-org/regime-bracket-bot/internal/dbwriter"
	"github.com/your-org/regime-bracket-bot/internal/engine"
	"github.com/your-org/regime-bracket-bot/internal/http/handler"
	"github.com/your-org/regime-bracket-bot/internal/metrics"
	"github.com/your-org/regime-bracket-bot/internal/replay"
	"github.com/your-org/regime-bracket-bot/internal/strategy"
	"github.com/your-org/regime-bracket-bot/pkg/logger"
)

func main() {
	// --- Configuration ---
	configPath := flag.String("config", "config/config.yaml", "Path to the configuration file")
	envPath := flag.String("env", ".env", "Path to an optional .env file")
	serve := flag.Bool("serve", false, "Keep the status server running after the replay until a signal arrives")
	flag.Parse()

	if err := config.LoadDotEnv(*envPath); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load environment: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	cfg.App.Mode = config.ModeInfer

	// --- Logger ---
	logger.SetGlobalLogLevel(cfg.App.LogLevel)
	defer logger.Sync()
	logger.Info("Regime bracket bot starting...")
	logger.Infof("Loaded configuration from: %s", *configPath)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *serve); err != nil {
		logger.Fatalf("Bot stopped with error: %v", err)
	}
	logger.Info("Regime bracket bot shut down gracefully.")
}

func run(ctx context.Context, cfg *config.Config, serve bool) error {
	log := logger.L()

	// --- Metrics ---
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// --- TimescaleDB (Optional) ---
	pool, repo, err := dbwriter.Connect(ctx, cfg.Database, cfg.DBWriter, log)
	if err != nil {
		return err
	}
	// The writer flushes its buffers through the pool, so it closes first.
	defer func() {
		repo.Close()
		if pool != nil {
			pool.Close()
		}
	}()

	universe, err := datastore.LoadUniverse(cfg.Replay.Tickers, cfg.Replay.TickersFile, cfg.Replay.ExclusionsFile)
	if err != nil {
		return err
	}
	var (
		bars   replay.BarFetcher
		closed handler.ClosedBracketFetcher
	)
	if pool != nil {
		r := datastore.NewRepository(pool)
		bars, closed = r, r
	}
	src, err := replay.NewSource(ctx, cfg.Replay, bars, universe)
	if err != nil {
		return err
	}

	// --- Strategy ---
	exec := engine.NewReplayExecutionEngine(cfg.Risk.StartingEquity, log)
	notifier := alert.NewLogNotifier(log, 0)
	defer notifier.Close()
	s, err := strategy.New(cfg, strategy.Deps{
		Exec:       exec,
		Positions:  exec,
		Equity:     exec,
		Repository: repo,
		Notifier:   notifier,
		Metrics:    m,
		Logger:     log,
	})
	if err != nil {
		return err
	}
	if err := s.LoadModel(); err != nil {
		log.Warn("continuing without inference", zap.Error(err))
	}

	// --- Status Server ---
	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           handler.NewRouter(handler.NewBracketHandler(s, closed), reg),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("Status server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Status server failed", zap.Error(err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn("Status server shutdown", zap.Error(err))
		}
	}()

	// --- Main Execution Loop ---
	res, err := replay.NewRunner(cfg, s, exec, universe, log).Run(ctx, src)
	if err != nil {
		return err
	}
	m.SetRealizedPnL(res.RealizedPnL)
	m.SetBenchmarkPnL(res.Benchmark.PnL())
	log.Info("replay summary",
		zap.String("run_id", res.Stats.RunID),
		zap.Bool("inference", res.Stats.Inference),
		zap.Int("brackets_opened", res.Stats.BracketsOpened),
		zap.Int("brackets_closed", res.Stats.BracketsClosed),
		zap.Float64("realized_pnl", res.RealizedPnL),
		zap.Float64("equity", res.Equity),
		zap.Float64("benchmark_pnl", res.Benchmark.PnL()))

	if pool != nil && !res.Benchmark.LastTime().IsZero() {
		value := decimal.NewFromFloat(res.Benchmark.Value()).Round(2)
		if err := benchmark.NewDBBenchmarkService(pool).Tick(ctx, res.Stats.RunID, res.Benchmark.LastTime(), value); err != nil {
			log.Error("Failed to record benchmark", zap.Error(err))
		}
	}

	if serve {
		log.Info("Replay finished, serving status until interrupted")
		<-ctx.Done()
	}
	return nil
}
