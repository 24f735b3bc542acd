package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/regime-bracket-bot/internal/dbwriter"
	"github.com/your-org/regime-bracket-bot/internal/strategy"
)

// BracketSource exposes the live bracket state, typically a *strategy.Strategy.
type BracketSource interface {
	Brackets() []strategy.BracketView
	Stats() strategy.Stats
}

// ClosedBracketFetcher loads completed round trips of a run.
type ClosedBracketFetcher interface {
	FetchClosedBrackets(ctx context.Context, runID string) ([]dbwriter.ClosedBracket, error)
}

// BracketHandler はブラケット関連のHTTPリクエストを処理します。
type BracketHandler struct {
	source BracketSource
	closed ClosedBracketFetcher
}

// NewBracketHandler は新しいBracketHandlerを作成します。closed は nil でも構いません。
func NewBracketHandler(source BracketSource, closed ClosedBracketFetcher) *BracketHandler {
	return &BracketHandler{source: source, closed: closed}
}

// RegisterRoutes はchiルーターにブラケット関連のルートを登録します。
func (h *BracketHandler) RegisterRoutes(r chi.Router) {
	r.Get("/brackets", h.GetBrackets)
	r.Get("/brackets/closed", h.GetClosedBrackets)
	r.Get("/stats", h.GetStats)
}

// GetBrackets は全銘柄の現在のブラケット状態を返します。
func (h *BracketHandler) GetBrackets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.source.Brackets())
}

// GetStats は実行中のランの集計を返します。
func (h *BracketHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.source.Stats())
}

// GetClosedBrackets は決済済みブラケットを返します。run_id が無ければ実行中のランです。
func (h *BracketHandler) GetClosedBrackets(w http.ResponseWriter, r *http.Request) {
	if h.closed == nil {
		http.Error(w, "Closed brackets are not available without a database", http.StatusServiceUnavailable)
		return
	}
	runID := r.URL.Query().Get("run_id")
	if runID == "" {
		runID = h.source.Stats().RunID
	}
	brackets, err := h.closed.FetchClosedBrackets(r.Context(), runID)
	if err != nil {
		http.Error(w, "Failed to fetch closed brackets", http.StatusInternalServerError)
		return
	}
	if brackets == nil {
		brackets = []dbwriter.ClosedBracket{}
	}
	writeJSON(w, brackets)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "Failed to encode response to JSON", http.StatusInternalServerError)
	}
}

// NewRouter builds the status server: health, bracket state and metrics
// gathered from g.
func NewRouter(h *BracketHandler, g prometheus.Gatherer) chi.Router {
	r := chi.NewRouter()
	var source BracketSource
	if h != nil {
		source = h.source
	}
	r.Get("/health", HealthCheckHandler(source))
	if h != nil {
		h.RegisterRoutes(r)
	}
	if g != nil {
		r.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	}
	return r
}
