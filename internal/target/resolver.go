// Package target converts a predicted state label back into a price level.
package target

import (
	"errors"
	"fmt"

	"github.com/your-org/regime-bracket-bot/internal/regime"
)

// ErrMalformedTarget is returned when a candidate label cannot be decoded.
// Callers move on to the next candidate.
var ErrMalformedTarget = errors.New("malformed target state")

// Horizon is the geometry of one lookback: its mean, dispersion and the
// zone thresholds the encoder used for it.
type Horizon struct {
	Mean       float64
	StdDev     float64
	Thresholds []float64
}

// EffectiveSigma maps a zone index to the sigma multiple at its centre.
// Zone 0 is half the first threshold, the catch-all zone is the last
// threshold, and inner zones are the midpoint of their bounds.
func EffectiveSigma(index uint, thresholds []float64) float64 {
	n := uint(len(thresholds))
	switch {
	case n == 0:
		return 0
	case index == 0:
		return thresholds[0] / 2
	case index >= n:
		return thresholds[n-1]
	default:
		return (thresholds[index-1] + thresholds[index]) / 2
	}
}

// Price returns mean ± effectiveSigma·stdDev for zone z on horizon h.
func (h Horizon) Price(z regime.Zone) float64 {
	offset := EffectiveSigma(z.Index, h.Thresholds) * h.StdDev
	if z.Dir == regime.Down {
		return h.Mean - offset
	}
	return h.Mean + offset
}

// Resolve parses state and returns the average of its short-zone price on
// short and its long-zone price on long.
func Resolve(state string, short, long Horizon) (float64, error) {
	label, err := regime.ParseLabel(state)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformedTarget, err)
	}
	return ResolveLabel(label, short, long), nil
}

// ResolveLabel is Resolve for an already decoded label.
func ResolveLabel(label regime.Label, short, long Horizon) float64 {
	return (short.Price(label.ST) + long.Price(label.LT)) / 2
}
