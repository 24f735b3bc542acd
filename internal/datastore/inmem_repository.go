package datastore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/your-org/regime-bracket-bot/internal/dbwriter"
)

// InMemRepository is an in-memory stand-in for Repository used in tests and
// when no database is configured.
type InMemRepository struct {
	mu       sync.RWMutex
	bars     []Bar
	brackets map[string][]dbwriter.ClosedBracket
	runs     []dbwriter.RunSummary
}

// NewInMemRepository creates a new InMemRepository.
func NewInMemRepository() *InMemRepository {
	return &InMemRepository{brackets: make(map[string][]dbwriter.ClosedBracket)}
}

// SeedBars allows adding bars for test setup.
func (r *InMemRepository) SeedBars(bars []Bar) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bars = append(r.bars, bars...)
	sort.SliceStable(r.bars, func(i, j int) bool {
		if !r.bars[i].Time.Equal(r.bars[j].Time) {
			return r.bars[i].Time.Before(r.bars[j].Time)
		}
		return r.bars[i].Ticker < r.bars[j].Ticker
	})
}

// SeedClosedBrackets allows adding closed brackets for test setup.
func (r *InMemRepository) SeedClosedBrackets(bs []dbwriter.ClosedBracket) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range bs {
		r.brackets[b.RunID] = append(r.brackets[b.RunID], b)
	}
}

// SeedRuns allows adding run summaries for test setup.
func (r *InMemRepository) SeedRuns(runs []dbwriter.RunSummary) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, runs...)
}

// FetchBars mirrors Repository.FetchBars.
func (r *InMemRepository) FetchBars(ctx context.Context, tickers []string, start, end time.Time) ([]Tick, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	want := NewUniverse(tickers, nil)
	var out []Bar
	for _, b := range r.bars {
		if b.Time.Before(start) || !b.Time.Before(end) || !want.Allows(b.Ticker) {
			continue
		}
		out = append(out, b)
	}
	return GroupBars(out), nil
}

// FetchClosedBrackets mirrors Repository.FetchClosedBrackets.
func (r *InMemRepository) FetchClosedBrackets(ctx context.Context, runID string) ([]dbwriter.ClosedBracket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := append([]dbwriter.ClosedBracket(nil), r.brackets[runID]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].ClosedAt.Before(out[j].ClosedAt) })
	return out, nil
}

// FetchLatestRun mirrors Repository.FetchLatestRun.
func (r *InMemRepository) FetchLatestRun(ctx context.Context) (*dbwriter.RunSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.runs) == 0 {
		return nil, nil
	}
	latest := r.runs[0]
	for _, s := range r.runs[1:] {
		if s.FinishedAt.After(latest.FinishedAt) {
			latest = s
		}
	}
	return &latest, nil
}

// Clear clears all data from the in-memory repository.
func (r *InMemRepository) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bars = nil
	r.brackets = make(map[string][]dbwriter.ClosedBracket)
	r.runs = nil
}
