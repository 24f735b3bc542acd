// Package learning は状態遷移の計数と遷移確率行列の構築・永続化を扱います。
package learning

import (
	"sort"

	"github.com/your-org/regime-bracket-bot/internal/regime"
)

// Transition is an observed move from one state label to the next.
type Transition struct {
	From string
	To   string
}

// Counts は (from, to) ごとの観測回数です。
type Counts map[Transition]int

// NewCounts returns an empty Counts.
func NewCounts() Counts {
	return make(Counts)
}

// Record counts prev -> current when prev is defined. Callers advance their
// previous label to current afterwards regardless.
func (c Counts) Record(prev *regime.Label, current regime.Label) {
	if prev == nil {
		return
	}
	c.Observe(prev.String(), current.String())
}

// Observe increments the count of from -> to.
func (c Counts) Observe(from, to string) {
	c[Transition{From: from, To: to}]++
}

// Merge adds every count in other into c.
func (c Counts) Merge(other Counts) {
	for k, v := range other {
		c[k] += v
	}
}

// Total returns the number of observations.
func (c Counts) Total() int {
	n := 0
	for _, v := range c {
		n += v
	}
	return n
}

// Totals は from ごとの合計観測回数を返します。
func (c Counts) Totals() map[string]int {
	totals := make(map[string]int)
	for k, v := range c {
		totals[k.From] += v
	}
	return totals
}

// Sorted returns the transitions ordered by (From, To).
func (c Counts) Sorted() []Transition {
	keys := make([]Transition, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].From != keys[j].From {
			return keys[i].From < keys[j].From
		}
		return keys[i].To < keys[j].To
	})
	return keys
}
