// Package replay drives a Strategy over historical bars.
package replay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/your-org/regime-bracket-bot/internal/benchmark"
	"github.com/your-org/regime-bracket-bot/internal/config"
	"github.com/your-org/regime-bracket-bot/internal/datastore"
	"github.com/your-org/regime-bracket-bot/internal/engine"
	"github.com/your-org/regime-bracket-bot/internal/indicator"
	"github.com/your-org/regime-bracket-bot/internal/learning"
	"github.com/your-org/regime-bracket-bot/internal/strategy"
	"github.com/your-org/regime-bracket-bot/pkg/logger"
)

// Source yields ticks in time order. The error channel carries at most one
// error and is closed once the tick channel is exhausted.
type Source interface {
	Stream(ctx context.Context) (<-chan datastore.Tick, <-chan error)
}

// CSVSource streams bars from a CSV file.
type CSVSource string

// Stream implements Source.
func (s CSVSource) Stream(ctx context.Context) (<-chan datastore.Tick, <-chan error) {
	return datastore.StreamBarsFromCSV(ctx, string(s))
}

// TickSource replays ticks already in memory.
type TickSource []datastore.Tick

// Stream implements Source.
func (s TickSource) Stream(ctx context.Context) (<-chan datastore.Tick, <-chan error) {
	tickCh := make(chan datastore.Tick)
	errCh := make(chan error, 1)
	go func() {
		defer close(tickCh)
		defer close(errCh)
		for _, t := range s {
			select {
			case tickCh <- t:
			case <-ctx.Done():
				return
			}
		}
	}()
	return tickCh, errCh
}

// BarFetcher loads bar history, typically datastore.Repository.
type BarFetcher interface {
	FetchBars(ctx context.Context, tickers []string, start, end time.Time) ([]datastore.Tick, error)
}

// FromRepository fetches the universe's bars between start and end.
func FromRepository(ctx context.Context, f BarFetcher, u *datastore.Universe, start, end time.Time) (TickSource, error) {
	var tickers []string
	if u != nil {
		tickers = u.Tickers()
	}
	ticks, err := f.FetchBars(ctx, tickers, start, end)
	if err != nil {
		return nil, fmt.Errorf("fetch bars: %w", err)
	}
	return TickSource(ticks), nil
}

// ParseWindow parses a replay window given as dates or RFC 3339 times. An
// empty start is the zero time and an empty end is now.
func ParseWindow(start, end string) (time.Time, time.Time, error) {
	var from, to time.Time
	var err error
	if start != "" {
		if from, err = parseWhen(start); err != nil {
			return from, to, fmt.Errorf("replay start: %w", err)
		}
	}
	to = time.Now().UTC()
	if end != "" {
		if to, err = parseWhen(end); err != nil {
			return from, to, fmt.Errorf("replay end: %w", err)
		}
	}
	if !to.After(from) {
		return from, to, fmt.Errorf("replay window %s - %s is empty", start, end)
	}
	return from, to, nil
}

func parseWhen(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// NewSource picks the bar source of rc: the database when FromDB is set,
// otherwise the CSV file.
func NewSource(ctx context.Context, rc config.ReplayConfig, f BarFetcher, u *datastore.Universe) (Source, error) {
	if !rc.FromDB {
		if rc.BarsCSV == "" {
			return nil, errors.New("replay: no bars_csv configured and from_db is off")
		}
		return CSVSource(rc.BarsCSV), nil
	}
	if f == nil {
		return nil, errors.New("replay: from_db needs a database connection")
	}
	start, end, err := ParseWindow(rc.Start, rc.End)
	if err != nil {
		return nil, err
	}
	return FromRepository(ctx, f, u, start, end)
}

// Result summarizes a finished replay.
type Result struct {
	Ticks       int
	Stats       strategy.Stats
	Matrix      *learning.Matrix
	RealizedPnL float64
	Equity      float64
	// Benchmark is the equal-weight buy-and-hold of the same bars.
	Benchmark *benchmark.Tracker
}

// Runner feeds bars through the indicators into a Strategy and matches its
// orders against the same bars.
type Runner struct {
	strategy *strategy.Strategy
	exec     *engine.ReplayExecutionEngine
	universe *datastore.Universe
	periods  indicator.Periods
	warmup   int
	feeds    map[string]*indicator.Feed
	bench    *benchmark.Tracker
	ticks    int
	logger   *zap.Logger
}

// NewRunner creates a Runner. exec may be nil for training runs.
func NewRunner(cfg *config.Config, s *strategy.Strategy, exec *engine.ReplayExecutionEngine, u *datastore.Universe, l *zap.Logger) *Runner {
	if l == nil {
		l = logger.L()
	}
	return &Runner{
		strategy: s,
		exec:     exec,
		universe: u,
		periods: indicator.Periods{
			Fast:     cfg.Indicators.FastPeriod,
			Slow:     cfg.Indicators.SlowPeriod,
			ShortStd: cfg.Indicators.ShortStdPeriod,
			LongStd:  cfg.Indicators.LongStdPeriod,
			ATR:      cfg.Indicators.ATRPeriod,
		},
		warmup: cfg.Replay.WarmupBars,
		feeds:  make(map[string]*indicator.Feed),
		bench:  benchmark.NewTracker(cfg.Risk.StartingEquity),
		logger: l,
	}
}

// Run consumes src to the end and finalizes the strategy. A cancelled
// context stops the run without finalizing.
func (r *Runner) Run(ctx context.Context, src Source) (*Result, error) {
	ticks, errs := src.Stream(ctx)
	started := time.Now()

loop:
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case tick, ok := <-ticks:
			if !ok {
				break loop
			}
			if err := r.Step(ctx, tick); err != nil {
				return nil, err
			}
		}
	}
	if err := <-errs; err != nil {
		return nil, fmt.Errorf("read bars: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m, err := r.strategy.Finalize(ctx)
	res := &Result{
		Ticks:     r.ticks,
		Stats:     r.strategy.Stats(),
		Matrix:    m,
		Benchmark: r.bench,
	}
	if r.exec != nil {
		res.RealizedPnL = r.exec.RealizedPnL()
		res.Equity = r.exec.Equity()
	}
	r.logger.Info("replay finished",
		zap.Int("ticks", res.Ticks),
		zap.Int("instruments", len(r.feeds)),
		zap.Duration("elapsed", time.Since(started)),
		zap.Float64("realized_pnl", res.RealizedPnL),
		zap.Float64("benchmark_pnl", r.bench.PnL()))
	return res, err
}

// Step processes one tick: resting orders are matched against its bars,
// the indicators advance, and the strategy sees the new readings.
func (r *Runner) Step(ctx context.Context, tick datastore.Tick) error {
	tick = r.universe.Filter(tick)
	if len(tick.Bars) == 0 {
		return nil
	}

	if r.exec != nil {
		for _, b := range tick.Bars {
			r.exec.OnBar(b)
		}
		r.dispatch(ctx)
	}

	snaps := make(map[string]indicator.Snapshot, len(tick.Bars))
	for _, b := range tick.Bars {
		feed, err := r.feed(b.Ticker)
		if err != nil {
			return err
		}
		snaps[b.Ticker] = feed.Update(b.High, b.Low, b.Close)
		r.bench.Observe(b.Time, b.Ticker, b.Close)
	}

	err := r.strategy.OnData(ctx, strategy.Tick{
		Time:        tick.Time,
		WarmingUp:   r.ticks < r.warmup,
		Instruments: snaps,
	})
	r.ticks++
	if err != nil {
		return fmt.Errorf("tick %s: %w", tick.Time.Format(time.RFC3339), err)
	}
	if r.exec != nil {
		r.dispatch(ctx)
	}
	return nil
}

func (r *Runner) feed(ticker string) (*indicator.Feed, error) {
	if f, ok := r.feeds[ticker]; ok {
		return f, nil
	}
	f, err := indicator.NewFeed(r.periods)
	if err != nil {
		return nil, fmt.Errorf("indicators for %s: %w", ticker, err)
	}
	r.feeds[ticker] = f
	return f, nil
}

// dispatch delivers queued order events until none are left. Handling an
// event may place orders that queue further events.
func (r *Runner) dispatch(ctx context.Context) {
	for {
		events := r.exec.Drain()
		if len(events) == 0 {
			return
		}
		for _, ev := range events {
			r.strategy.OnOrderEvent(ctx, ev)
		}
	}
}
