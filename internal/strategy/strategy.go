// Package strategy runs the per-tick regime encoding, transition learning and
// bracket decisions for every instrument.
package strategy

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/your-org/regime-bracket-bot/internal/alert"
	"github.com/your-org/regime-bracket-bot/internal/config"
	"github.com/your-org/regime-bracket-bot/internal/dbwriter"
	"github.com/your-org/regime-bracket-bot/internal/engine"
	"github.com/your-org/regime-bracket-bot/internal/indicator"
	"github.com/your-org/regime-bracket-bot/internal/learning"
	"github.com/your-org/regime-bracket-bot/internal/metrics"
	"github.com/your-org/regime-bracket-bot/internal/regime"
	"github.com/your-org/regime-bracket-bot/internal/risk"
	"github.com/your-org/regime-bracket-bot/internal/target"
)

// EquitySource reports account equity.
type EquitySource interface {
	Equity() float64
}

// Deps are the collaborators of a Strategy. Exec is required in infer mode.
type Deps struct {
	Exec       engine.ExecutionEngine
	Positions  engine.PositionSource
	Equity     EquitySource
	Repository dbwriter.Repository
	Notifier   alert.Notifier
	Metrics    *metrics.Metrics
	Logger     *zap.Logger
}

// Tick is one scheduling step: the readings of every instrument with data.
type Tick struct {
	Time        time.Time
	WarmingUp   bool
	Instruments map[string]indicator.Snapshot
}

// Stats summarizes a run.
type Stats struct {
	RunID          string
	Mode           config.Mode
	StartedAt      time.Time
	Observations   int
	BracketsOpened int
	BracketsClosed int
	Inference      bool
	MatrixID       string
}

// Strategy is the host-facing entry point: OnData per tick, OnOrderEvent per
// order update and Finalize at the end of a run.
type Strategy struct {
	mu       sync.RWMutex
	cfg      *config.Config
	deps     Deps
	logger   *zap.Logger
	encoder  *regime.Encoder
	sizer    *risk.Sizer
	policy   learning.Policy
	matrix   *learning.Matrix
	registry *Registry
	stats    Stats
}

// New builds a Strategy from cfg.
func New(cfg *config.Config, deps Deps) (*Strategy, error) {
	if cfg == nil {
		return nil, errors.New("strategy: nil config")
	}
	if cfg.App.Mode == config.ModeInfer && deps.Exec == nil {
		return nil, errors.New("strategy: infer mode needs an execution engine")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Repository == nil {
		deps.Repository = dbwriter.NewDummyWriter(deps.Logger)
	}
	if deps.Notifier == nil {
		deps.Notifier = alert.NewNoOpNotifier()
	}

	s := &Strategy{
		cfg:    cfg,
		deps:   deps,
		logger: deps.Logger,
		encoder: regime.NewEncoder(regime.Params{
			TrendEpsilon:    cfg.Encoder.TrendEpsilon,
			LongTrendBucket: cfg.Encoder.LongTrendBucket,
			ShortThresholds: cfg.Encoder.ShortThresholds,
			LongThresholds:  cfg.Encoder.LongThresholds,
		}),
		sizer: risk.NewSizer(risk.Params{
			ATRMultiplier:       cfg.Risk.ATRMultiplier,
			MaxRiskFraction:     cfg.Risk.MaxRiskFraction,
			MaxNotionalFraction: cfg.Risk.MaxNotionalFraction,
			MinRewardToRisk:     cfg.Risk.MinRewardToRisk,
			NotionalTolerance:   cfg.Risk.NotionalTolerance,
		}),
		policy: learning.Policy{
			MinSamples:        cfg.Model.MinSamples,
			LowConfidenceProb: cfg.Model.LowConfidenceProb,
		},
		stats: Stats{
			RunID:     "run-" + uuid.NewString(),
			Mode:      cfg.App.Mode,
			StartedAt: time.Now().UTC(),
		},
	}
	s.registry = NewRegistry(func(symbol string) *engine.Lifecycle {
		return engine.NewLifecycle(symbol, engine.Deps{
			Exec:       deps.Exec,
			Positions:  deps.Positions,
			Repository: deps.Repository,
			Notifier:   deps.Notifier,
			Metrics:    deps.Metrics,
			Logger:     deps.Logger,
		})
	})
	deps.Repository.SetRunID(s.stats.RunID)
	return s, nil
}

// RunID identifies this run in persisted records.
func (s *Strategy) RunID() string { return s.stats.RunID }

// LoadModel loads the transition matrix for inference. A missing file
// disables inference without error. A malformed file also leaves inference
// disabled and returns the error.
func (s *Strategy) LoadModel() error {
	path := s.cfg.Model.MatrixPath
	m, ok, err := learning.LoadMatrix(path)
	if err != nil {
		s.logger.Error("transition matrix rejected, inference disabled", zap.String("path", path), zap.Error(err))
		s.SetMatrix(nil)
		return fmt.Errorf("load transition matrix: %w", err)
	}
	if !ok {
		s.logger.Info("no transition matrix found, inference disabled", zap.String("path", path))
		s.SetMatrix(nil)
		return nil
	}
	s.logger.Info("transition matrix loaded", zap.String("path", path), zap.Int("states", m.States()), zap.Int("entries", m.Len()))
	s.SetMatrix(m)
	return nil
}

// SetMatrix installs m for inference. A nil matrix disables inference.
func (s *Strategy) SetMatrix(m *learning.Matrix) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.matrix = m
	s.stats.Inference = m != nil
	if m != nil {
		s.stats.MatrixID = m.Version()
		s.deps.Metrics.SetMatrix(m.States(), m.Len())
	}
}

// InferenceEnabled reports whether a matrix is loaded.
func (s *Strategy) InferenceEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.matrix != nil
}

// OnData processes one tick. Instruments are handled one after another in
// symbol order.
func (s *Strategy) OnData(ctx context.Context, tick Tick) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	symbols := make([]string, 0, len(tick.Instruments))
	for sym := range tick.Instruments {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	for _, sym := range symbols {
		if err := ctx.Err(); err != nil {
			return err
		}
		snap := tick.Instruments[sym]
		ic := s.registry.Get(sym)
		ic.Readings = snap

		if ic.Lifecycle != nil && ic.Lifecycle.Reconcile(ctx, snap.Price, tick.Time) {
			s.stats.BracketsClosed++
		}
		if tick.WarmingUp || !snap.Ready() {
			continue
		}

		label := s.encoder.Encode(&ic.Tracker, snap.Fast.Value, snap.Slow.Value, snap.Price,
			regime.Horizon{Mean: snap.ShortMean.Value, StdDev: snap.ShortStd.Value},
			regime.Horizon{Mean: snap.LongMean.Value, StdDev: snap.LongStd.Value})
		ic.Current = &label
		s.stats.Observations++
		s.deps.Metrics.StateObserved(string(s.cfg.App.Mode))
		s.deps.Repository.SaveStateObservation(dbwriter.StateObservation{
			Time:       tick.Time,
			Instrument: sym,
			Label:      label.String(),
			Price:      snap.Price,
			Mode:       string(s.cfg.App.Mode),
		})

		switch s.cfg.App.Mode {
		case config.ModeTrain:
			ic.Counts.Record(ic.Prev, label)
		case config.ModeInfer:
			s.decide(ctx, ic, label, tick.Time)
		}
		prev := label
		ic.Prev = &prev
	}
	s.deps.Metrics.SetOpenBrackets(s.registry.Active())
	return nil
}

// decide looks for a qualifying transition out of label and opens a bracket.
// Candidates that fail to resolve are skipped. The first one that resolves
// is the decision: if the sizer rejects it, no trade is placed this tick and
// less likely candidates are not tried.
func (s *Strategy) decide(ctx context.Context, ic *InstrumentContext, label regime.Label, now time.Time) {
	if s.matrix == nil || ic.Lifecycle == nil || ic.Lifecycle.State() != engine.Flat {
		return
	}
	snap := ic.Readings
	short := target.Horizon{Mean: snap.ShortMean.Value, StdDev: snap.ShortStd.Value, Thresholds: s.cfg.Encoder.ShortThresholds}
	long := target.Horizon{Mean: snap.LongMean.Value, StdDev: snap.LongStd.Value, Thresholds: s.cfg.Encoder.LongThresholds}
	log := s.logger.With(zap.String("instrument", ic.Symbol), zap.String("state", label.String()))

	for _, c := range s.matrix.Candidates(label.String(), s.cfg.Model.MinCandidateProb) {
		price, err := target.Resolve(c.State, short, long)
		if err != nil {
			log.Warn("skipping candidate", zap.String("candidate", c.State), zap.Error(err))
			s.deps.Metrics.ResolveError()
			continue
		}

		d := s.sizer.Evaluate(risk.Input{
			Price:  snap.Price,
			Target: price,
			ATR:    snap.ATR.Value,
			Equity: s.equity(),
		})
		if !d.Approved {
			s.deps.Metrics.Decision(string(d.Reason))
			log.Debug("no trade", zap.String("candidate", c.State), zap.Stringer("decision", d))
			return
		}
		s.deps.Metrics.Decision("approved")

		err = ic.Lifecycle.Open(ctx, engine.EntryRequest{
			Price:       snap.Price,
			Quantity:    float64(d.Size),
			TargetPrice: d.TargetPrice,
			RiskPerUnit: d.RiskPerUnit,
			Time:        now,
		})
		if err != nil {
			log.Error("entry failed", zap.Error(err))
			return
		}
		s.stats.BracketsOpened++
		log.Info("bracket requested",
			zap.String("candidate", c.State),
			zap.Float64("probability", c.Probability),
			zap.Stringer("decision", d))
		return
	}
}

func (s *Strategy) equity() float64 {
	if s.deps.Equity != nil {
		return s.deps.Equity.Equity()
	}
	return s.cfg.Risk.StartingEquity
}

// OnOrderEvent routes an order update to the bracket that owns it.
func (s *Strategy) OnOrderEvent(ctx context.Context, ev engine.OrderEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ic, ok := s.registry.Lookup(ev.Instrument)
	if !ok || ic.Lifecycle == nil || !ic.Lifecycle.Owns(ev.Handle) {
		ic, ok = s.registry.FindByHandle(ev.Handle)
	}
	if !ok {
		return
	}
	role, err := ic.Lifecycle.OnOrderEvent(ctx, ev)
	if err != nil {
		s.logger.Error("order event handling failed", zap.String("instrument", ic.Symbol), zap.Error(err))
	}
	if (role == engine.StopFilled || role == engine.TakeProfitFilled) && ic.Lifecycle.State() == engine.Flat {
		s.stats.BracketsClosed++
	}
	s.deps.Metrics.SetOpenBrackets(s.registry.Active())
}

// Finalize ends the run. In train mode it compiles the transition matrix,
// writes it to the configured path and stores a snapshot in the database.
// It returns the compiled matrix, or nil in infer mode.
func (s *Strategy) Finalize(ctx context.Context) (*learning.Matrix, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		m      *learning.Matrix
		runErr error
	)
	if s.cfg.App.Mode == config.ModeTrain {
		counts := s.registry.Counts()
		m = learning.Compile(counts, s.policy)
		s.stats.MatrixID = m.Version()
		s.deps.Metrics.SetMatrix(m.States(), m.Len())

		if err := learning.SaveMatrix(s.cfg.Model.MatrixPath, m, s.logger); err != nil {
			runErr = fmt.Errorf("save transition matrix: %w", err)
		} else {
			s.logger.Info("transition matrix saved",
				zap.String("path", s.cfg.Model.MatrixPath),
				zap.Int("states", m.States()),
				zap.Int("entries", m.Len()),
				zap.Int("transitions", counts.Total()))
		}

		now := time.Now().UTC()
		rows := make([]dbwriter.MatrixRow, 0, m.Len())
		for _, r := range m.Rows() {
			rows = append(rows, dbwriter.MatrixRow{
				MatrixID:    m.Version(),
				FromState:   r.From,
				ToState:     r.To,
				Probability: r.Probability,
				Count:       counts[learning.Transition{From: r.From, To: r.To}],
				CreatedAt:   now,
			})
		}
		if err := s.deps.Repository.SaveTransitionMatrix(ctx, rows); err != nil {
			s.logger.Error("failed to store transition matrix", zap.Error(err))
		}
	}

	var realized float64
	if pnl, ok := s.deps.Equity.(interface{ RealizedPnL() float64 }); ok {
		realized = pnl.RealizedPnL()
	}
	summary := dbwriter.RunSummary{
		RunID:          s.stats.RunID,
		StrategyID:     s.cfg.App.StrategyID,
		Mode:           string(s.cfg.App.Mode),
		StartedAt:      s.stats.StartedAt,
		FinishedAt:     time.Now().UTC(),
		Instruments:    s.registry.Len(),
		Observations:   s.stats.Observations,
		BracketsOpened: s.stats.BracketsOpened,
		BracketsClosed: s.stats.BracketsClosed,
		RealizedPnL:    decimal.NewFromFloat(realized),
		MatrixID:       s.stats.MatrixID,
	}
	if err := s.deps.Repository.SaveRunSummary(ctx, summary); err != nil {
		s.logger.Error("failed to store run summary", zap.Error(err))
	}
	s.logger.Info("run finished",
		zap.String("run_id", summary.RunID),
		zap.Int("instruments", summary.Instruments),
		zap.Int("observations", summary.Observations),
		zap.Int("brackets_opened", summary.BracketsOpened),
		zap.Int("brackets_closed", summary.BracketsClosed))
	return m, runErr
}

// Stats returns the run counters.
func (s *Strategy) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

// BracketView is the externally visible state of one instrument.
type BracketView struct {
	Instrument     string  `json:"instrument"`
	State          string  `json:"state"`
	Label          string  `json:"label,omitempty"`
	Price          float64 `json:"price"`
	EntryFillPrice float64 `json:"entry_fill_price,omitempty"`
	StopPrice      float64 `json:"stop_price,omitempty"`
	TargetPrice    float64 `json:"target_price,omitempty"`
	Quantity       float64 `json:"quantity,omitempty"`
}

// Brackets returns a view of every instrument, sorted by symbol.
func (s *Strategy) Brackets() []BracketView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]BracketView, 0, s.registry.Len())
	for _, sym := range s.registry.Symbols() {
		ic, _ := s.registry.Lookup(sym)
		v := BracketView{Instrument: sym, Price: ic.Readings.Price, State: engine.Flat.String()}
		if ic.Current != nil {
			v.Label = ic.Current.String()
		}
		if ic.Lifecycle != nil {
			b := ic.Lifecycle.Bracket()
			v.State = b.State.String()
			v.EntryFillPrice = b.EntryFillPrice
			v.StopPrice = b.StopPrice
			v.TargetPrice = b.TargetPrice
			v.Quantity = b.Quantity
		}
		out = append(out, v)
	}
	return out
}
