package strategy

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/regime-bracket-bot/internal/config"
	"github.com/your-org/regime-bracket-bot/internal/datastore"
	"github.com/your-org/regime-bracket-bot/internal/dbwriter"
	"github.com/your-org/regime-bracket-bot/internal/engine"
	"github.com/your-org/regime-bracket-bot/internal/indicator"
	"github.com/your-org/regime-bracket-bot/internal/learning"
	"github.com/your-org/regime-bracket-bot/internal/metrics"
)

var t0 = time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)

func ready(v float64) indicator.Reading { return indicator.Reading{Ready: true, Value: v} }

// snap builds a ready snapshot with equal short and long horizons.
func snap(price, fast, slow, mean, std, atr float64) indicator.Snapshot {
	return indicator.Snapshot{
		Price:     price,
		Fast:      ready(fast),
		Slow:      ready(slow),
		ShortMean: ready(mean),
		ShortStd:  ready(std),
		LongMean:  ready(mean),
		LongStd:   ready(std),
		ATR:       ready(atr),
	}
}

func testConfig(t *testing.T, mode config.Mode) *config.Config {
	t.Helper()
	cfg, err := config.Default()
	require.NoError(t, err)
	cfg.App.Mode = mode
	cfg.Model.MatrixPath = filepath.Join(t.TempDir(), "matrix.csv")
	return cfg
}

func TestStrategy_TrainAndFinalize(t *testing.T) {
	cfg := testConfig(t, config.ModeTrain)
	repo := dbwriter.NewInMemWriter()
	s, err := New(cfg, Deps{Repository: repo})
	require.NoError(t, err)
	ctx := context.Background()

	ticks := []Tick{
		{Time: t0, WarmingUp: true, Instruments: map[string]indicator.Snapshot{"AAPL": snap(100, 11, 10, 100, 1, 1)}},
		{Time: t0.Add(1 * time.Hour), Instruments: map[string]indicator.Snapshot{"AAPL": snap(100, 11, 10, 100, 1, 1)}},
		{Time: t0.Add(2 * time.Hour), Instruments: map[string]indicator.Snapshot{"AAPL": snap(101, 9, 10, 100, 1, 1)}},
		{Time: t0.Add(3 * time.Hour), Instruments: map[string]indicator.Snapshot{
			"AAPL": snap(100, 10, 10, 100, 1, 1),
			"MSFT": {Price: 50},
		}},
	}
	for _, tick := range ticks {
		require.NoError(t, s.OnData(ctx, tick))
	}

	require.Len(t, repo.States, 3)
	assert.Equal(t, "Up_ST_Z0Up_Z0Up", repo.States[0].Label)
	assert.Equal(t, "Down_ST_Z1Up_Z1Up", repo.States[1].Label)
	assert.Equal(t, "Flat_ST_Z0Up_Z0Up", repo.States[2].Label)
	assert.Equal(t, s.RunID(), repo.States[0].RunID)

	ic, ok := s.registry.Lookup("AAPL")
	require.True(t, ok)
	assert.Equal(t, 2, ic.Counts.Total())
	msft, ok := s.registry.Lookup("MSFT")
	require.True(t, ok)
	assert.Nil(t, msft.Prev, "not-ready readings never produce a label")

	m, err := s.Finalize(ctx)
	require.NoError(t, err)
	require.NotNil(t, m)
	p, ok := m.Probability("Up_ST_Z0Up_Z0Up", "Down_ST_Z1Up_Z1Up")
	require.True(t, ok)
	assert.Equal(t, 0.05, p)

	loaded, ok, err := learning.LoadMatrix(cfg.Model.MatrixPath)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, loaded.Len())

	require.Len(t, repo.MatrixRows, 2)
	assert.Equal(t, m.Version(), repo.MatrixRows[0].MatrixID)
	assert.Equal(t, 1, repo.MatrixRows[0].Count)
	require.Len(t, repo.RunSummaries, 1)
	assert.Equal(t, 3, repo.RunSummaries[0].Observations)
	assert.Equal(t, 2, repo.RunSummaries[0].Instruments)
}

func TestStrategy_LoadModel(t *testing.T) {
	cfg := testConfig(t, config.ModeInfer)
	s, err := New(cfg, Deps{Exec: engine.NewReplayExecutionEngine(1000, nil)})
	require.NoError(t, err)

	require.NoError(t, s.LoadModel())
	assert.False(t, s.InferenceEnabled(), "missing file disables inference")

	require.NoError(t, os.WriteFile(cfg.Model.MatrixPath, []byte("From,To,Probability\nA,B,oops\n"), 0o644))
	assert.ErrorIs(t, s.LoadModel(), learning.ErrMalformedRow)
	assert.False(t, s.InferenceEnabled())

	m := learning.NewMatrix()
	m.Set("A", "B", 0.5)
	require.NoError(t, learning.SaveMatrix(cfg.Model.MatrixPath, m, nil))
	require.NoError(t, s.LoadModel())
	assert.True(t, s.InferenceEnabled())
}

func TestNew_InferNeedsEngine(t *testing.T) {
	_, err := New(testConfig(t, config.ModeInfer), Deps{})
	assert.Error(t, err)
	_, err = New(nil, Deps{})
	assert.Error(t, err)
}

func inferenceMatrix() *learning.Matrix {
	m := learning.NewMatrix()
	from := "Up_ST_Z0Up_Z0Up"
	m.Set(from, from, 0.95)
	m.Set(from, "garbage", 0.9)
	m.Set(from, "Up_ST_Z3Up_Z3Up", 0.6)
	m.Set(from, "Down_ST_Z3Down_Z3Down", 0.2)
	return m
}

func TestStrategy_InferOpensAndClosesBracket(t *testing.T) {
	cfg := testConfig(t, config.ModeInfer)
	repo := dbwriter.NewInMemWriter()
	exec := engine.NewReplayExecutionEngine(cfg.Risk.StartingEquity, nil)
	reg := prometheus.NewRegistry()
	s, err := New(cfg, Deps{Exec: exec, Positions: exec, Equity: exec, Repository: repo, Metrics: metrics.New(reg)})
	require.NoError(t, err)
	s.SetMatrix(inferenceMatrix())
	ctx := context.Background()
	pump := func() {
		for _, ev := range exec.Drain() {
			s.OnOrderEvent(ctx, ev)
		}
	}

	exec.OnBar(datastore.Bar{Time: t0, Ticker: "AAPL", Open: 100, High: 100, Low: 100, Close: 100})
	require.NoError(t, s.OnData(ctx, Tick{Time: t0, Instruments: map[string]indicator.Snapshot{"AAPL": snap(100, 11, 10, 100, 2, 0.5)}}))
	pump()

	views := s.Brackets()
	require.Len(t, views, 1)
	assert.Equal(t, "open", views[0].State)
	assert.Equal(t, 100.0, views[0].Quantity)
	assert.InDelta(t, 104, views[0].TargetPrice, 1e-9)
	assert.InDelta(t, 99, views[0].StopPrice, 1e-9)
	assert.Equal(t, 100.0, exec.Position("AAPL"))

	// A second qualifying tick does not open another bracket.
	require.NoError(t, s.OnData(ctx, Tick{Time: t0.Add(time.Hour), Instruments: map[string]indicator.Snapshot{"AAPL": snap(100, 11, 10, 100, 2, 0.5)}}))
	assert.Equal(t, 1, s.Stats().BracketsOpened)

	exec.OnBar(datastore.Bar{Time: t0.Add(2 * time.Hour), Ticker: "AAPL", Open: 101, High: 105, Low: 100.5, Close: 104.5})
	pump()
	assert.Equal(t, "flat", s.Brackets()[0].State)
	assert.Zero(t, exec.Resting())
	assert.Equal(t, 1, s.Stats().BracketsClosed)
	require.Len(t, repo.ClosedBrackets, 1)
	assert.Equal(t, engine.ExitTakeProfit, repo.ClosedBrackets[0].ExitReason)
	assert.InDelta(t, 400, exec.RealizedPnL(), 1e-9)

	_, err = s.Finalize(ctx)
	require.NoError(t, err)
	require.Len(t, repo.RunSummaries, 1)
	assert.Equal(t, "400", repo.RunSummaries[0].RealizedPnL.String())
}

func TestStrategy_InferRejectionMeansNoTrade(t *testing.T) {
	cfg := testConfig(t, config.ModeInfer)
	exec := engine.NewReplayExecutionEngine(cfg.Risk.StartingEquity, nil)
	s, err := New(cfg, Deps{Exec: exec, Positions: exec, Equity: exec})
	require.NoError(t, err)
	s.SetMatrix(inferenceMatrix())

	// ATR of 2 makes risk per unit 4 against a reward of 4: below 2:1.
	require.NoError(t, s.OnData(context.Background(), Tick{Time: t0, Instruments: map[string]indicator.Snapshot{"AAPL": snap(100, 11, 10, 100, 2, 2)}}))
	assert.Equal(t, "flat", s.Brackets()[0].State)
	assert.Zero(t, s.Stats().BracketsOpened)
	assert.Empty(t, exec.Drain())
}

func TestStrategy_InferAllCandidatesMalformed(t *testing.T) {
	cfg := testConfig(t, config.ModeInfer)
	exec := engine.NewReplayExecutionEngine(cfg.Risk.StartingEquity, nil)
	m := metrics.New(prometheus.NewRegistry())
	s, err := New(cfg, Deps{Exec: exec, Positions: exec, Equity: exec, Metrics: m})
	require.NoError(t, err)

	matrix := learning.NewMatrix()
	from := "Up_ST_Z0Up_Z0Up"
	matrix.Set(from, "garbage", 0.9)
	matrix.Set(from, "Up_ST_Z9_Z1Up", 0.5)
	matrix.Set(from, "Up_ST_Z3Up_Z3Up", 0.1) // valid but below the cutoff
	s.SetMatrix(matrix)

	require.NoError(t, s.OnData(context.Background(), Tick{Time: t0, Instruments: map[string]indicator.Snapshot{"AAPL": snap(100, 11, 10, 100, 2, 0.5)}}))
	assert.Equal(t, "flat", s.Brackets()[0].State)
	assert.Zero(t, s.Stats().BracketsOpened)
	assert.Empty(t, exec.Drain())
	assert.Zero(t, exec.Resting())
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ResolveErrors))
}

func TestStrategy_ExternalFlatReconciles(t *testing.T) {
	cfg := testConfig(t, config.ModeInfer)
	exec := engine.NewReplayExecutionEngine(cfg.Risk.StartingEquity, nil)
	s, err := New(cfg, Deps{Exec: exec, Positions: exec, Equity: exec})
	require.NoError(t, err)
	s.SetMatrix(inferenceMatrix())
	ctx := context.Background()

	exec.OnBar(datastore.Bar{Time: t0, Ticker: "AAPL", Open: 100, High: 100, Low: 100, Close: 100})
	require.NoError(t, s.OnData(ctx, Tick{Time: t0, Instruments: map[string]indicator.Snapshot{"AAPL": snap(100, 11, 10, 100, 2, 0.5)}}))
	for _, ev := range exec.Drain() {
		ev.Instrument = "" // route by handle alone
		s.OnOrderEvent(ctx, ev)
	}
	require.Equal(t, "open", s.Brackets()[0].State)

	require.NoError(t, exec.Flatten("AAPL"))
	require.NoError(t, s.OnData(ctx, Tick{Time: t0.Add(time.Hour), WarmingUp: true, Instruments: map[string]indicator.Snapshot{"AAPL": {Price: 100}}}))
	assert.Equal(t, "flat", s.Brackets()[0].State)
	assert.Zero(t, exec.Resting())
	assert.Equal(t, 1, s.Stats().BracketsClosed)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(nil)
	a := r.Get("B")
	assert.Same(t, a, r.Get("B"))
	r.Get("A")
	assert.Equal(t, []string{"A", "B"}, r.Symbols())
	assert.Equal(t, 0, r.Active())
	_, ok := r.FindByHandle("x")
	assert.False(t, ok)

	a.Counts.Observe("X", "Y")
	r.Get("A").Counts.Observe("X", "Y")
	assert.Equal(t, 2, r.Counts()[learning.Transition{From: "X", To: "Y"}])
}
