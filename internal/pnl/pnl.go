// Package pnl accumulates realized profit and loss.
package pnl

import (
	"sort"
	"sync"
)

// Calculator handles PnL calculations.
type Calculator struct {
	realized     float64
	byInstrument map[string]float64
	wins, losses int
	mutex        sync.RWMutex
}

// NewCalculator creates a new PnL Calculator.
func NewCalculator() *Calculator {
	return &Calculator{byInstrument: make(map[string]float64)}
}

// UpdateRealizedPnL books a realized amount against instrument.
func (c *Calculator) UpdateRealizedPnL(instrument string, pnl float64) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.realized += pnl
	c.byInstrument[instrument] += pnl
}

// RecordRoundTrip counts a closed trade as a win or a loss. Break-even trades count as neither.
func (c *Calculator) RecordRoundTrip(pnl float64) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	switch {
	case pnl > 0:
		c.wins++
	case pnl < 0:
		c.losses++
	}
}

// CalculateUnrealizedPnL calculates the unrealized PnL.
func (c *Calculator) CalculateUnrealizedPnL(positionSize float64, avgEntryPrice float64, currentPrice float64) float64 {
	if positionSize == 0 {
		return 0
	}
	return (currentPrice - avgEntryPrice) * positionSize
}

// GetRealizedPnL returns the total realized PnL.
func (c *Calculator) GetRealizedPnL() float64 {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.realized
}

// WinsLosses returns the round-trip tally.
func (c *Calculator) WinsLosses() (int, int) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.wins, c.losses
}

// InstrumentPnL is the realized PnL of one instrument.
type InstrumentPnL struct {
	Instrument string
	Realized   float64
}

// ByInstrument returns realized PnL per instrument, sorted by instrument.
func (c *Calculator) ByInstrument() []InstrumentPnL {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	out := make([]InstrumentPnL, 0, len(c.byInstrument))
	for k, v := range c.byInstrument {
		out = append(out, InstrumentPnL{Instrument: k, Realized: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Instrument < out[j].Instrument })
	return out
}
