package datastore

import (
	"sort"
	"time"
)

// Bar is one OHLCV observation of a ticker.
type Bar struct {
	Time   time.Time `json:"time"`
	Ticker string    `json:"ticker"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Tick is every bar sharing one timestamp.
type Tick struct {
	Time time.Time
	Bars []Bar
}

// Tickers returns the tickers present in the tick, sorted.
func (t Tick) Tickers() []string {
	out := make([]string, 0, len(t.Bars))
	for _, b := range t.Bars {
		out = append(out, b.Ticker)
	}
	sort.Strings(out)
	return out
}

// GroupBars groups time-ordered bars into ticks.
func GroupBars(bars []Bar) []Tick {
	var ticks []Tick
	for _, b := range bars {
		if n := len(ticks); n > 0 && ticks[n-1].Time.Equal(b.Time) {
			ticks[n-1].Bars = append(ticks[n-1].Bars, b)
			continue
		}
		ticks = append(ticks, Tick{Time: b.Time, Bars: []Bar{b}})
	}
	return ticks
}
