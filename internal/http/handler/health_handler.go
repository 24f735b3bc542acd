package handler

import (
	"net/http"

	"github.com/your-org/regime-bracket-bot/internal/engine"
)

// healthStatus is the body of /health once a run is attached.
type healthStatus struct {
	Status       string `json:"status"`
	RunID        string `json:"run_id"`
	Mode         string `json:"mode"`
	Inference    bool   `json:"inference"`
	OpenBrackets int    `json:"open_brackets"`
}

// HealthCheckHandler returns 200 for liveness checks. Without a source it
// answers a plain "OK"; with one it also reports the run being served.
func HealthCheckHandler(source BracketSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if source == nil {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("OK"))
			return
		}
		stats := source.Stats()
		open := 0
		for _, b := range source.Brackets() {
			if b.State != engine.Flat.String() {
				open++
			}
		}
		writeJSON(w, healthStatus{
			Status:       "ok",
			RunID:        stats.RunID,
			Mode:         string(stats.Mode),
			Inference:    stats.Inference,
			OpenBrackets: open,
		})
	}
}
