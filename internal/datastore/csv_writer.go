package datastore

import (
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/your-org/regime-bracket-bot/internal/csvwriter"
)

// WriteBarsCSV writes ticks to path in the format StreamBarsFromCSV reads.
func WriteBarsCSV(path string, ticks []Tick, logger *zap.Logger) (int, error) {
	w, err := csvwriter.NewWriter(path, BarColumns, logger)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, t := range ticks {
		for _, b := range t.Bars {
			if err := w.Write(formatBar(b)); err != nil {
				w.Abort()
				return n, err
			}
			n++
		}
	}
	return n, w.Close()
}

func formatBar(b Bar) []string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	return []string{
		b.Time.UTC().Format(time.RFC3339),
		b.Ticker,
		f(b.Open),
		f(b.High),
		f(b.Low),
		f(b.Close),
		f(b.Volume),
	}
}
