package strategy

import (
	"sort"

	"github.com/your-org/regime-bracket-bot/internal/engine"
	"github.com/your-org/regime-bracket-bot/internal/indicator"
	"github.com/your-org/regime-bracket-bot/internal/learning"
	"github.com/your-org/regime-bracket-bot/internal/regime"
)

// InstrumentContext is the mutable state of one instrument. It is owned by
// a Registry and never shared between instruments.
type InstrumentContext struct {
	Symbol    string
	Readings  indicator.Snapshot
	Tracker   regime.TrendTracker
	Prev      *regime.Label
	Current   *regime.Label
	Counts    learning.Counts
	Lifecycle *engine.Lifecycle
}

// Registry owns the InstrumentContext of every instrument seen.
type Registry struct {
	contexts     map[string]*InstrumentContext
	newLifecycle func(symbol string) *engine.Lifecycle
}

// NewRegistry creates a Registry whose contexts get lifecycles from newLifecycle.
func NewRegistry(newLifecycle func(symbol string) *engine.Lifecycle) *Registry {
	return &Registry{
		contexts:     make(map[string]*InstrumentContext),
		newLifecycle: newLifecycle,
	}
}

// Get returns the context for symbol, creating it on first use.
func (r *Registry) Get(symbol string) *InstrumentContext {
	if ic, ok := r.contexts[symbol]; ok {
		return ic
	}
	ic := &InstrumentContext{
		Symbol: symbol,
		Counts: learning.NewCounts(),
	}
	if r.newLifecycle != nil {
		ic.Lifecycle = r.newLifecycle(symbol)
	}
	r.contexts[symbol] = ic
	return ic
}

// Lookup returns the context for symbol if it exists.
func (r *Registry) Lookup(symbol string) (*InstrumentContext, bool) {
	ic, ok := r.contexts[symbol]
	return ic, ok
}

// Symbols returns every registered symbol, sorted.
func (r *Registry) Symbols() []string {
	out := make([]string, 0, len(r.contexts))
	for s := range r.contexts {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of registered instruments.
func (r *Registry) Len() int { return len(r.contexts) }

// Counts merges the training counts of every instrument.
func (r *Registry) Counts() learning.Counts {
	all := learning.NewCounts()
	for _, ic := range r.contexts {
		all.Merge(ic.Counts)
	}
	return all
}

// Active returns the number of instruments whose bracket is not flat.
func (r *Registry) Active() int {
	n := 0
	for _, ic := range r.contexts {
		if ic.Lifecycle != nil && ic.Lifecycle.State() != engine.Flat {
			n++
		}
	}
	return n
}

// FindByHandle returns the context whose bracket owns h.
func (r *Registry) FindByHandle(h engine.OrderHandle) (*InstrumentContext, bool) {
	for _, ic := range r.contexts {
		if ic.Lifecycle != nil && ic.Lifecycle.Owns(h) {
			return ic, true
		}
	}
	return nil, false
}
