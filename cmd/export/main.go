// Command export moves bar history between TimescaleDB and CSV files.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/your-org/regime-bracket-bot/internal/config"
	"github.com/your-org/regime-bracket-bot/internal/datastore"
	"github.com/your-org/regime-bracket-bot/internal/dbwriter"
	"github.com/your-org/regime-bracket-bot/internal/replay"
	"github.com/your-org/regime-bracket-bot/pkg/logger"
)

func main() {
	// --- Argument Parsing ---
	configPath := flag.String("config", "config/config.yaml", "Path to the configuration file")
	envPath := flag.String("env", ".env", "Path to an optional .env file")
	importMode := flag.Bool("import", false, "Load the CSV file into the bars table instead of exporting")
	csvPath := flag.String("csv", "bars.csv", "CSV file to write, or to read with --import")
	startTimeStr := flag.String("start", "", "Start of the export window (YYYY-MM-DD or RFC 3339)")
	endTimeStr := flag.String("end", "", "End of the export window, exclusive")
	flag.Parse()

	// --- Config and Logger Setup ---
	if err := config.LoadDotEnv(*envPath); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load environment: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logger.SetGlobalLogLevel(cfg.App.LogLevel)
	defer logger.Sync()
	if !cfg.Database.Enabled() {
		logger.Fatal("Database settings are required (DB_HOST, DB_USER, DB_NAME).")
	}

	// --- Database Connection ---
	ctx := context.Background()
	pool, repo, err := dbwriter.Connect(ctx, cfg.Database, config.DBWriterConfig{}, logger.L())
	if err != nil {
		logger.Fatalf("Unable to connect to database: %v", err)
	}
	// The writer flushes its buffers through the pool, so it closes first.
	defer func() {
		repo.Close()
		if pool != nil {
			pool.Close()
		}
	}()
	bars := datastore.NewRepository(pool)

	if *importMode {
		ticks, err := datastore.LoadBarsFromCSV(*csvPath)
		if err != nil {
			logger.Fatalf("Failed to read %s: %v", *csvPath, err)
		}
		var all []datastore.Bar
		for _, t := range ticks {
			all = append(all, t.Bars...)
		}
		n, err := bars.SaveBars(ctx, all)
		if err != nil {
			logger.Fatalf("Failed to import bars: %v", err)
		}
		logger.Infof("Successfully imported %d bars from %s.", n, *csvPath)
		return
	}

	start, end, err := replay.ParseWindow(*startTimeStr, *endTimeStr)
	if err != nil {
		logger.Fatalf("Invalid export window: %v", err)
	}
	universe, err := datastore.LoadUniverse(cfg.Replay.Tickers, cfg.Replay.TickersFile, cfg.Replay.ExclusionsFile)
	if err != nil {
		logger.Fatalf("Failed to load universe: %v", err)
	}
	src, err := replay.FromRepository(ctx, bars, universe, start, end)
	if err != nil {
		logger.Fatalf("Failed to query bars: %v", err)
	}
	n, err := datastore.WriteBarsCSV(*csvPath, src, logger.L())
	if err != nil {
		logger.Fatalf("Failed to write %s: %v", *csvPath, err)
	}
	logger.Infof("Successfully exported %d bars from %s to %s.", n, start.Format("2006-01-02"), end.Format("2006-01-02"))
}
