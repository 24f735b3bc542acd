// Package window provides a fixed-size rolling window of float64 samples.
package window

import "math"

// RingBuffer holds the most recent samples in a circular buffer and keeps a
// running sum so that the mean is O(1).
type RingBuffer struct {
	values []float64
	size   int
	head   int // next slot to write
	count  int
	sum    float64
}

// NewRingBuffer creates a new RingBuffer with the given size.
func NewRingBuffer(size int) *RingBuffer {
	if size <= 0 {
		panic("ring buffer size must be positive")
	}
	return &RingBuffer{
		values: make([]float64, size),
		size:   size,
	}
}

// Add appends v, evicting the oldest sample once the buffer is full.
// It returns the evicted value and whether one was evicted.
func (rb *RingBuffer) Add(v float64) (evicted float64, ok bool) {
	if rb.count == rb.size {
		evicted = rb.values[rb.head]
		ok = true
		rb.sum -= evicted
	} else {
		rb.count++
	}
	rb.values[rb.head] = v
	rb.head = (rb.head + 1) % rb.size
	rb.sum += v
	if rb.head == 0 {
		rb.resum()
	}
	return evicted, ok
}

// resum recomputes the running sum once per lap to bound float drift.
func (rb *RingBuffer) resum() {
	rb.sum = 0
	for _, v := range rb.values[:rb.count] {
		rb.sum += v
	}
}

// Len returns the number of samples currently held.
func (rb *RingBuffer) Len() int { return rb.count }

// Cap returns the window size.
func (rb *RingBuffer) Cap() int { return rb.size }

// Full reports whether the window holds Cap samples.
func (rb *RingBuffer) Full() bool { return rb.count == rb.size }

// Sum returns the sum of the samples in the window.
func (rb *RingBuffer) Sum() float64 { return rb.sum }

// Mean returns the arithmetic mean, or 0 for an empty window.
func (rb *RingBuffer) Mean() float64 {
	if rb.count == 0 {
		return 0
	}
	return rb.sum / float64(rb.count)
}

// StdDev returns the population standard deviation of the window.
// Deviations are taken from the oldest sample, so a constant window is
// exactly 0 and small spreads at large price levels are kept.
func (rb *RingBuffer) StdDev() float64 {
	if rb.count == 0 {
		return 0
	}
	shift := rb.values[0]
	if rb.count == rb.size {
		shift = rb.values[rb.head]
	}
	var sum, sumSq float64
	for _, v := range rb.values[:rb.count] {
		d := v - shift
		sum += d
		sumSq += d * d
	}
	n := float64(rb.count)
	mean := sum / n
	variance := sumSq/n - mean*mean
	if variance <= 0 {
		return 0
	}
	return math.Sqrt(variance)
}

// Values returns the samples in the order they were added.
func (rb *RingBuffer) Values() []float64 {
	result := make([]float64, rb.count)
	if rb.count < rb.size {
		copy(result, rb.values[:rb.head])
		return result
	}
	copied := copy(result, rb.values[rb.head:])
	copy(result[copied:], rb.values[:rb.head])
	return result
}
