package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/regime-bracket-bot/internal/dbwriter"
	"github.com/your-org/regime-bracket-bot/internal/metrics"
	"github.com/your-org/regime-bracket-bot/internal/strategy"
)

type stubSource struct{}

func (stubSource) Brackets() []strategy.BracketView {
	return []strategy.BracketView{{Instrument: "AAPL", State: "open", Price: 101, StopPrice: 99, TargetPrice: 104, Quantity: 100}}
}

func (stubSource) Stats() strategy.Stats { return strategy.Stats{RunID: "run-live", Observations: 7} }

type stubFetcher struct {
	gotRunID string
	err      error
}

func (f *stubFetcher) FetchClosedBrackets(ctx context.Context, runID string) ([]dbwriter.ClosedBracket, error) {
	f.gotRunID = runID
	if f.err != nil {
		return nil, f.err
	}
	if runID != "run-live" {
		return nil, nil
	}
	return []dbwriter.ClosedBracket{{RunID: runID, Instrument: "AAPL", ExitReason: "stop", PnL: decimal.NewFromInt(-40)}}, nil
}

func serve(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestHealthCheckHandler(t *testing.T) {
	rec := serve(t, NewRouter(nil, nil), "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())

	rec = serve(t, NewRouter(NewBracketHandler(stubSource{}, nil), nil), "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	var got healthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, healthStatus{Status: "ok", RunID: "run-live", OpenBrackets: 1}, got)
}

func TestBracketHandler(t *testing.T) {
	fetcher := &stubFetcher{}
	router := NewRouter(NewBracketHandler(stubSource{}, fetcher), nil)

	t.Run("brackets", func(t *testing.T) {
		rec := serve(t, router, "/brackets")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		var views []strategy.BracketView
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &views))
		require.Len(t, views, 1)
		assert.Equal(t, "open", views[0].State)
		assert.Equal(t, 104.0, views[0].TargetPrice)
	})

	t.Run("closed defaults to the live run", func(t *testing.T) {
		rec := serve(t, router, "/brackets/closed")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "run-live", fetcher.gotRunID)
		assert.Contains(t, rec.Body.String(), `"ExitReason":"stop"`)
	})

	t.Run("closed for another run", func(t *testing.T) {
		rec := serve(t, router, "/brackets/closed?run_id=run-old")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "run-old", fetcher.gotRunID)
		assert.Equal(t, "[]\n", rec.Body.String())
	})

	t.Run("stats", func(t *testing.T) {
		rec := serve(t, router, "/stats")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"Observations":7`)
	})
}

func TestBracketHandler_ClosedErrors(t *testing.T) {
	rec := serve(t, NewRouter(NewBracketHandler(stubSource{}, &stubFetcher{err: errors.New("boom")}), nil), "/brackets/closed")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = serve(t, NewRouter(NewBracketHandler(stubSource{}, nil), nil), "/brackets/closed")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.BracketEvent("entry_filled")

	rec := serve(t, NewRouter(nil, reg), "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "regime_bot_bracket_events_total"))
}
