package dbwriter

import (
	"context"

	"go.uber.org/zap"
)

// dummyWriter is a no-op implementation of the Repository interface.
// It is used when the database connection is not available.
type dummyWriter struct {
	logger *zap.Logger
}

// NewDummyWriter creates a new dummy writer.
func NewDummyWriter(l *zap.Logger) Repository {
	if l == nil {
		l = zap.NewNop()
	}
	l.Info("Creating dummy DB writer because no database connection is available.")
	return &dummyWriter{logger: l}
}

// SetRunID does nothing.
func (d *dummyWriter) SetRunID(runID string) {
	d.logger.Debug("Dummy writer: SetRunID called", zap.String("runID", runID))
}

// SaveStateObservation does nothing.
func (d *dummyWriter) SaveStateObservation(obs StateObservation) {}

// SaveBracketEvent does nothing.
func (d *dummyWriter) SaveBracketEvent(ev BracketEvent) {}

// SaveClosedBracket does nothing and returns nil.
func (d *dummyWriter) SaveClosedBracket(ctx context.Context, b ClosedBracket) error {
	d.logger.Debug("Dummy writer: SaveClosedBracket called", zap.String("instrument", b.Instrument))
	return nil
}

// SaveTransitionMatrix does nothing and returns nil.
func (d *dummyWriter) SaveTransitionMatrix(ctx context.Context, rows []MatrixRow) error {
	d.logger.Debug("Dummy writer: SaveTransitionMatrix called", zap.Int("rows", len(rows)))
	return nil
}

// SaveRunSummary does nothing and returns nil.
func (d *dummyWriter) SaveRunSummary(ctx context.Context, s RunSummary) error {
	d.logger.Debug("Dummy writer: SaveRunSummary called", zap.Any("summary", s))
	return nil
}

// Close does nothing.
func (d *dummyWriter) Close() {
	d.logger.Debug("Dummy writer: Close called")
}
