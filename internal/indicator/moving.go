// Package indicator provides streaming indicators over bar data.
package indicator

import (
	"github.com/your-org/regime-bracket-bot/pkg/window"
)

// Reading is an indicator value together with whether enough samples have
// been seen for it to be meaningful.
type Reading struct {
	Ready bool
	Value float64
}

// SMA is a simple moving average over a fixed number of samples.
type SMA struct {
	buf *window.RingBuffer
}

// NewSMA creates an SMA over period samples.
func NewSMA(period int) *SMA {
	return &SMA{buf: window.NewRingBuffer(period)}
}

// Update adds v and returns the current average.
func (s *SMA) Update(v float64) Reading {
	s.buf.Add(v)
	return s.Reading()
}

// Reading returns the current average.
func (s *SMA) Reading() Reading {
	return Reading{Ready: s.buf.Full(), Value: s.buf.Mean()}
}

// RollingStats tracks the mean and population standard deviation of the
// last period samples.
type RollingStats struct {
	buf *window.RingBuffer
}

// NewRollingStats creates a RollingStats over period samples.
func NewRollingStats(period int) *RollingStats {
	return &RollingStats{buf: window.NewRingBuffer(period)}
}

// Update adds v.
func (r *RollingStats) Update(v float64) {
	r.buf.Add(v)
}

// Mean returns the window mean.
func (r *RollingStats) Mean() Reading {
	return Reading{Ready: r.buf.Full(), Value: r.buf.Mean()}
}

// StdDev returns the window standard deviation.
func (r *RollingStats) StdDev() Reading {
	return Reading{Ready: r.buf.Full(), Value: r.buf.StdDev()}
}
