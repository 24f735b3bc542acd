package learning

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// Policy controls how raw counts become probabilities.
type Policy struct {
	// MinSamples is N: rows with total > N are normalized frequencies.
	MinSamples int
	// LowConfidenceProb is assigned to every observed successor of a state
	// seen N times or fewer. Such rows are not renormalized.
	LowConfidenceProb float64
}

// DefaultPolicy is N=3 with a 0.05 floor.
var DefaultPolicy = Policy{MinSamples: 3, LowConfidenceProb: 0.05}

// Matrix は遷移確率行列です。from -> to -> probability
type Matrix struct {
	version string
	rows    map[string]map[string]float64
}

// Row is one persisted (from, to, probability) triple.
type Row struct {
	From        string
	To          string
	Probability float64
}

// Candidate is a possible next state with its probability.
type Candidate struct {
	State       string
	Probability float64
}

// NewMatrix returns an empty matrix with a fresh version id.
func NewMatrix() *Matrix {
	return &Matrix{
		version: fmt.Sprintf("matrix-%s", uuid.New().String()),
		rows:    make(map[string]map[string]float64),
	}
}

// Compile builds a matrix from counts. States observed more than
// MinSamples times get count/total; the rest get LowConfidenceProb for
// every observed successor regardless of count.
func Compile(counts Counts, p Policy) *Matrix {
	m := NewMatrix()
	totals := counts.Totals()
	for tr, n := range counts {
		if n <= 0 {
			continue
		}
		total := totals[tr.From]
		prob := p.LowConfidenceProb
		if total > p.MinSamples {
			prob = float64(n) / float64(total)
		}
		m.Set(tr.From, tr.To, prob)
	}
	return m
}

// Set stores a probability.
func (m *Matrix) Set(from, to string, prob float64) {
	row, ok := m.rows[from]
	if !ok {
		row = make(map[string]float64)
		m.rows[from] = row
	}
	row[to] = prob
}

// Probability returns P(from -> to) and whether it is present.
func (m *Matrix) Probability(from, to string) (float64, bool) {
	p, ok := m.rows[from][to]
	return p, ok
}

// Version identifies this compilation.
func (m *Matrix) Version() string { return m.version }

// States returns the number of from-states.
func (m *Matrix) States() int { return len(m.rows) }

// Len returns the number of (from, to) entries.
func (m *Matrix) Len() int {
	n := 0
	for _, row := range m.rows {
		n += len(row)
	}
	return n
}

// RowSum returns the sum of probabilities leaving from.
func (m *Matrix) RowSum(from string) float64 {
	sum := 0.0
	for _, p := range m.rows[from] {
		sum += p
	}
	return sum
}

// Rows returns every entry ordered by (From, To).
func (m *Matrix) Rows() []Row {
	out := make([]Row, 0, m.Len())
	for from, row := range m.rows {
		for to, p := range row {
			out = append(out, Row{From: from, To: to, Probability: p})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].From != out[j].From {
			return out[i].From < out[j].From
		}
		return out[i].To < out[j].To
	})
	return out
}

// Candidates returns successors of current other than itself whose
// probability is strictly above minProb, most likely first. Ties are broken
// by state name so the order is deterministic.
func (m *Matrix) Candidates(current string, minProb float64) []Candidate {
	row := m.rows[current]
	out := make([]Candidate, 0, len(row))
	for to, p := range row {
		if to == current || p <= minProb {
			continue
		}
		out = append(out, Candidate{State: to, Probability: p})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Probability != out[j].Probability {
			return out[i].Probability > out[j].Probability
		}
		return out[i].State < out[j].State
	})
	return out
}
