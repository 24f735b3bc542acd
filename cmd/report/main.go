// Command report prints the most probable transitions of a matrix file and,
// when a database is configured, the closed-bracket performance of a run.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/your-org/regime-bracket-bot/internal/config"
	"github.com/your-org/regime-bracket-bot/internal/datastore"
	"github.com/your-org/regime-bracket-bot/internal/dbwriter"
	"github.com/your-org/regime-bracket-bot/internal/learning"
	"github.com/your-org/regime-bracket-bot/internal/report"
	"github.com/your-org/regime-bracket-bot/pkg/logger"
)

type options struct {
	matrixPath string
	top        int
	runID      string
	save       bool
	csvPath    string
}

// bracketStore is the read side of datastore.Repository used here.
type bracketStore interface {
	FetchClosedBrackets(ctx context.Context, runID string) ([]dbwriter.ClosedBracket, error)
	FetchLatestRun(ctx context.Context) (*dbwriter.RunSummary, error)
}

func main() {
	configPath := flag.String("config", "config/config.yaml", "Path to the configuration file")
	envPath := flag.String("env", ".env", "Path to an optional .env file")
	var opts options
	flag.StringVar(&opts.matrixPath, "matrix", "", "Transition matrix file (defaults to model.matrix_path)")
	flag.IntVar(&opts.top, "top", 20, "Number of transitions to list")
	flag.StringVar(&opts.runID, "run", "", "Run to analyze (defaults to the latest run)")
	flag.BoolVar(&opts.save, "save", false, "Store the bracket report in the database")
	flag.StringVar(&opts.csvPath, "csv", "", "Also export the closed brackets to this CSV file")
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
	logger.SetGlobalLogLevel(cfg.App.LogLevel)
	defer logger.Sync()
	if opts.matrixPath == "" {
		opts.matrixPath = cfg.Model.MatrixPath
	}

	ctx := context.Background()
	if err := printTransitions(os.Stdout, opts.matrixPath, opts.top); err != nil {
		logger.Errorf("Failed to report transition matrix: %v", err)
	}

	if !cfg.Database.Enabled() {
		logger.Info("No database configured, skipping bracket report.")
		return
	}
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

	var saver *report.Service
	if opts.save {
		saver = report.NewService(pool)
	}
	if err := runBracketReport(ctx, os.Stdout, datastore.NewRepository(pool), saver, opts, logger.L()); err != nil {
		logger.Fatalf("Failed to generate bracket report: %v", err)
	}
}

// printTransitions renders the top transitions of the matrix at path.
func printTransitions(w io.Writer, path string, top int) error {
	m, ok, err := learning.LoadMatrix(path)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintf(w, "No transition matrix at %s\n", path)
		return nil
	}
	fmt.Fprintf(w, "Transition matrix %s: %d states, %d entries\n", path, m.States(), m.Len())
	report.RenderTransitions(w, report.TopTransitions(m, top))
	return nil
}

// runBracketReport analyzes the closed brackets of one run. saver may be nil.
func runBracketReport(ctx context.Context, w io.Writer, store bracketStore, saver *report.Service, opts options, l *zap.Logger) error {
	runID := opts.runID
	if runID == "" {
		latest, err := store.FetchLatestRun(ctx)
		if err != nil {
			return err
		}
		if latest == nil {
			fmt.Fprintln(w, "No runs recorded yet.")
			return nil
		}
		runID = latest.RunID
	}

	brackets, err := store.FetchClosedBrackets(ctx, runID)
	if err != nil {
		return err
	}
	analysis, err := report.AnalyzeBrackets(brackets)
	if errors.Is(err, report.ErrNoBrackets) {
		fmt.Fprintf(w, "Run %s closed no brackets.\n", runID)
		return nil
	}
	if err != nil {
		return err
	}

	report.RenderSummary(w, analysis)
	report.RenderBrackets(w, brackets)

	if opts.csvPath != "" {
		if err := report.WriteBracketsCSV(opts.csvPath, brackets, l); err != nil {
			return err
		}
	}
	if saver != nil {
		if err := saver.SaveReport(ctx, analysis); err != nil {
			return fmt.Errorf("failed to save bracket report: %w", err)
		}
		l.Info("Bracket report saved", zap.String("run_id", runID), zap.Int("brackets", analysis.TotalBrackets))
	}
	return nil
}
