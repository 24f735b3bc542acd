package regime

import "math"

// TrendTracker keeps the signed run length of sign(fast - slow).
type TrendTracker struct {
	sign    int
	run     int
	started bool
}

// Update folds in one observation of the fast and slow averages and returns
// the resulting trend. |fast-slow| <= epsilon counts as sign 0.
func (t *TrendTracker) Update(fast, slow, epsilon float64, bucket int) Trend {
	diff := fast - slow
	sign := 0
	switch {
	case diff > epsilon:
		sign = 1
	case diff < -epsilon:
		sign = -1
	}

	if !t.started || sign != t.sign {
		t.sign = sign
		t.run = 1
		t.started = true
	} else {
		t.run++
	}
	return trendFor(t.sign, t.run, bucket)
}

// Run returns the current run length.
func (t *TrendTracker) Run() int { return t.run }

// Sign returns the current sign (-1, 0 or 1).
func (t *TrendTracker) Sign() int { return t.sign }

func trendFor(sign, run, bucket int) Trend {
	if sign == 0 {
		return Trend{Direction: TrendFlat, Duration: ShortTerm}
	}
	tr := Trend{Direction: TrendUp, Duration: ShortTerm}
	if sign < 0 {
		tr.Direction = TrendDown
	}
	if run > bucket {
		tr.Duration = LongTerm
	}
	return tr
}

// ClassifyZone buckets the deviation of price from mean in units of stdDev.
// The index is the first threshold |z| is strictly below, or len(thresholds)
// when none is. A non-positive stdDev yields NeutralZone.
func ClassifyZone(price, mean, stdDev float64, thresholds []float64) Zone {
	if !(stdDev > 0) {
		return NeutralZone
	}
	z := (price - mean) / stdDev
	if math.IsNaN(z) {
		return NeutralZone
	}
	abs := math.Abs(z)
	idx := len(thresholds)
	for i, thr := range thresholds {
		if abs < thr {
			idx = i
			break
		}
	}
	zone := Zone{Index: uint(idx), Dir: Up}
	if z < 0 {
		zone.Dir = Down
	}
	return zone
}

// Horizon is the mean and dispersion of price over one lookback.
type Horizon struct {
	Mean   float64
	StdDev float64
}

// Params configures an Encoder.
type Params struct {
	TrendEpsilon    float64
	LongTrendBucket int
	ShortThresholds []float64
	LongThresholds  []float64
}

// Encoder turns readings into labels. It is stateless; trend run length
// lives in the caller-owned TrendTracker.
type Encoder struct {
	params Params
}

// NewEncoder returns an Encoder for the given parameters.
func NewEncoder(p Params) *Encoder {
	return &Encoder{params: p}
}

// Params returns the encoder configuration.
func (e *Encoder) Params() Params { return e.params }

// Encode advances tracker with the moving averages and classifies price
// against both horizons.
func (e *Encoder) Encode(tracker *TrendTracker, fast, slow, price float64, short, long Horizon) Label {
	return Label{
		Trend: tracker.Update(fast, slow, e.params.TrendEpsilon, e.params.LongTrendBucket),
		LT:    ClassifyZone(price, long.Mean, long.StdDev, e.params.LongThresholds),
		ST:    ClassifyZone(price, short.Mean, short.StdDev, e.params.ShortThresholds),
	}
}
