package benchmark

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker(t *testing.T) {
	t0 := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	t.Run("観測なし", func(t *testing.T) {
		tr := NewTracker(1000)
		assert.Zero(t, tr.Return())
		assert.InDelta(t, 1000, tr.Value(), 1e-9)
		assert.True(t, tr.LastTime().IsZero())
	})

	t.Run("均等配分", func(t *testing.T) {
		tr := NewTracker(1000)
		tr.Observe(t0, "AAPL", 100)
		tr.Observe(t0, "MSFT", 50)
		tr.Observe(t0.Add(24*time.Hour), "AAPL", 110)
		tr.Observe(t0.Add(24*time.Hour), "MSFT", 45)
		tr.Observe(t0.Add(48*time.Hour), "AAPL", 0)

		// (+10% + -10%) / 2
		assert.InDelta(t, 0, tr.Return(), 1e-9)
		assert.InDelta(t, 0, tr.PnL(), 1e-9)
		assert.Equal(t, t0.Add(24*time.Hour), tr.LastTime())
	})

	t.Run("途中から加わる銘柄", func(t *testing.T) {
		tr := NewTracker(1000)
		tr.Observe(t0, "AAPL", 100)
		tr.Observe(t0.Add(time.Hour), "AAPL", 120)
		tr.Observe(t0.Add(time.Hour), "MSFT", 40)

		assert.InDelta(t, 0.1, tr.Return(), 1e-9)
		assert.InDelta(t, 1100, tr.Value(), 1e-9)
	})
}

func TestDBBenchmarkService_Tick(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	at := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	value := decimal.NewFromFloat(101234.5)
	svc := NewDBBenchmarkService(mock)

	mock.ExpectExec("INSERT INTO benchmark_values").
		WithArgs(at, "run-1", value).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, svc.Tick(context.Background(), "run-1", at, value))

	mock.ExpectExec("INSERT INTO benchmark_values").
		WithArgs(at, "run-2", value).
		WillReturnError(errors.New("db down"))
	assert.Error(t, svc.Tick(context.Background(), "run-2", at, value))

	require.NoError(t, mock.ExpectationsWereMet())
}
