// Package position tracks signed quantities and average entry prices.
package position

import (
	"fmt"
	"math"
	"sort"
	"sync"
)

// flatEpsilon absorbs float residue when a position is closed in pieces.
const flatEpsilon = 1e-9

// Position holds the state of a position in one instrument.
type Position struct {
	Instrument    string
	Size          float64
	AvgEntryPrice float64
	mutex         sync.RWMutex
}

// NewPosition creates a new flat Position.
func NewPosition(instrument string) *Position {
	return &Position{Instrument: instrument}
}

// Update applies a fill of tradeSize (negative for sells) at tradePrice and
// returns the realized PnL of any closed quantity.
func (p *Position) Update(tradeSize float64, tradePrice float64) (realizedPnL float64) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.Size == 0 {
		p.Size = tradeSize
		p.AvgEntryPrice = tradePrice
		return 0.0
	}

	// Same direction adds to the position.
	if (p.Size > 0 && tradeSize > 0) || (p.Size < 0 && tradeSize < 0) {
		newSize := p.Size + tradeSize
		p.AvgEntryPrice = (p.Size*p.AvgEntryPrice + tradeSize*tradePrice) / newSize
		p.Size = newSize
		return 0.0
	}

	closedSize := math.Min(math.Abs(tradeSize), math.Abs(p.Size))
	realizedPnL = (tradePrice - p.AvgEntryPrice) * closedSize
	if p.Size < 0 {
		realizedPnL = -realizedPnL
	}

	newSize := p.Size + tradeSize
	switch {
	case math.Abs(newSize) < flatEpsilon:
		p.Size = 0
		p.AvgEntryPrice = 0
	case (newSize > 0) != (p.Size > 0):
		// flipped through zero: the remainder opens at the trade price
		p.Size = newSize
		p.AvgEntryPrice = tradePrice
	default:
		p.Size = newSize
	}
	return realizedPnL
}

// Get returns the current size and average entry price of the position.
func (p *Position) Get() (float64, float64) {
	p.mutex.RLock()
	defer p.mutex.RUnlock()
	return p.Size, p.AvgEntryPrice
}

// IsFlat reports whether no quantity is held.
func (p *Position) IsFlat() bool {
	p.mutex.RLock()
	defer p.mutex.RUnlock()
	return p.Size == 0
}

// String returns a string representation of the position.
func (p *Position) String() string {
	p.mutex.RLock()
	defer p.mutex.RUnlock()
	return fmt.Sprintf("Position{%s Size: %.4f, AvgEntryPrice: %.4f}", p.Instrument, p.Size, p.AvgEntryPrice)
}

// Book holds one Position per instrument.
type Book struct {
	mu        sync.RWMutex
	positions map[string]*Position
}

// NewBook returns an empty Book.
func NewBook() *Book {
	return &Book{positions: make(map[string]*Position)}
}

// Get returns the position for instrument, creating it if needed.
func (b *Book) Get(instrument string) *Position {
	b.mu.RLock()
	p, ok := b.positions[instrument]
	b.mu.RUnlock()
	if ok {
		return p
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if p, ok = b.positions[instrument]; ok {
		return p
	}
	p = NewPosition(instrument)
	b.positions[instrument] = p
	return p
}

// Quantity returns the signed size held in instrument.
func (b *Book) Quantity(instrument string) float64 {
	b.mu.RLock()
	p, ok := b.positions[instrument]
	b.mu.RUnlock()
	if !ok {
		return 0
	}
	size, _ := p.Get()
	return size
}

// Instruments returns the instruments with a non-flat position, sorted.
func (b *Book) Instruments() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, 0, len(b.positions))
	for k, p := range b.positions {
		if !p.IsFlat() {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
