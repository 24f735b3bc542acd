// Command learner replays bar history in training mode and writes the
// resulting transition matrix.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/your-org/regime-bracket-bot/internal/config"
	"github.com/your-org/regime-bracket-bot/internal/datastore"
	"github.com/your-org/regime-bracket-bot/internal/dbwriter"
	"github.com/your-org/regime-bracket-bot/internal/replay"
	"github.com/your-org/regime-bracket-bot/internal/strategy"
	"github.com/your-org/regime-bracket-bot/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "Path to the configuration file")
	envPath := flag.String("env", ".env", "Path to an optional .env file")
	pruneHours := flag.Int("prune-hours", 0, "Delete state observations older than this many hours before training (0 keeps all)")
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
	cfg.App.Mode = config.ModeTrain

	logger.SetGlobalLogLevel(cfg.App.LogLevel)
	defer logger.Sync()
	logger.Infof("Learner starting with configuration %s", *configPath)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *pruneHours); err != nil {
		logger.Fatalf("Training run failed: %v", err)
	}
}

func run(ctx context.Context, cfg *config.Config, pruneHours int) error {
	log := logger.L()

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
	var bars replay.BarFetcher
	if pool != nil {
		r := datastore.NewRepository(pool)
		if pruneHours > 0 {
			n, err := r.DeleteOldStates(ctx, pruneHours)
			if err != nil {
				return fmt.Errorf("prune state observations: %w", err)
			}
			log.Info("pruned old state observations", zap.Int64("rows", n), zap.Int("max_age_hours", pruneHours))
		}
		bars = r
	}
	src, err := replay.NewSource(ctx, cfg.Replay, bars, universe)
	if err != nil {
		return err
	}

	s, err := strategy.New(cfg, strategy.Deps{Repository: repo, Logger: log})
	if err != nil {
		return err
	}
	res, err := replay.NewRunner(cfg, s, nil, universe, log).Run(ctx, src)
	if err != nil {
		return err
	}
	log.Info("training finished",
		zap.String("run_id", res.Stats.RunID),
		zap.String("matrix_id", res.Stats.MatrixID),
		zap.String("matrix_path", cfg.Model.MatrixPath),
		zap.Int("states", res.Matrix.States()),
		zap.Int("observations", res.Stats.Observations))
	return nil
}
