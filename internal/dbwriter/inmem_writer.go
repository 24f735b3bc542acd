package dbwriter

import (
	"context"
	"sync"
)

// InMemWriter is an in-memory implementation of the Repository interface for testing.
type InMemWriter struct {
	mu             sync.RWMutex
	RunID          string
	States         []StateObservation
	BracketEvents  []BracketEvent
	ClosedBrackets []ClosedBracket
	MatrixRows     []MatrixRow
	RunSummaries   []RunSummary
	IsClosed       bool
}

// NewInMemWriter creates a new InMemWriter.
func NewInMemWriter() *InMemWriter {
	return &InMemWriter{}
}

// SetRunID records the run id.
func (w *InMemWriter) SetRunID(runID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.RunID = runID
}

// SaveStateObservation appends an observation to the in-memory slice.
func (w *InMemWriter) SaveStateObservation(obs StateObservation) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if obs.RunID == "" {
		obs.RunID = w.RunID
	}
	w.States = append(w.States, obs)
}

// SaveBracketEvent appends an event to the in-memory slice.
func (w *InMemWriter) SaveBracketEvent(ev BracketEvent) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if ev.RunID == "" {
		ev.RunID = w.RunID
	}
	w.BracketEvents = append(w.BracketEvents, ev)
}

// SaveClosedBracket appends a closed bracket to the in-memory slice.
func (w *InMemWriter) SaveClosedBracket(ctx context.Context, b ClosedBracket) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if b.RunID == "" {
		b.RunID = w.RunID
	}
	w.ClosedBrackets = append(w.ClosedBrackets, b)
	return nil
}

// SaveTransitionMatrix appends matrix rows to the in-memory slice.
func (w *InMemWriter) SaveTransitionMatrix(ctx context.Context, rows []MatrixRow) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.MatrixRows = append(w.MatrixRows, rows...)
	return nil
}

// SaveRunSummary appends a run summary to the in-memory slice.
func (w *InMemWriter) SaveRunSummary(ctx context.Context, s RunSummary) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.RunSummaries = append(w.RunSummaries, s)
	return nil
}

// Close marks the writer as closed.
func (w *InMemWriter) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.IsClosed = true
}

// Events returns a copy of the recorded bracket events.
func (w *InMemWriter) Events() []BracketEvent {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]BracketEvent(nil), w.BracketEvents...)
}

// Clear resets all the in-memory slices.
func (w *InMemWriter) Clear() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.States = nil
	w.BracketEvents = nil
	w.ClosedBrackets = nil
	w.MatrixRows = nil
	w.RunSummaries = nil
}
