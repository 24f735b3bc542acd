// Copyright (c) 2024 OBI-Scalp-Bot
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package indicator

import (
	"math"
)

// ATR calculates Wilder's average true range.
type ATR struct {
	period    int
	prevClose float64
	seeded    bool // a previous close exists
	samples   int
	sumTR     float64
	value     float64
}

// NewATR creates an ATR over period bars.
func NewATR(period int) *ATR {
	if period <= 0 {
		panic("atr period must be positive")
	}
	return &ATR{period: period}
}

// TrueRange is the largest of the bar's range and its distance from the
// previous close. Without a previous close it is the bar's range.
func TrueRange(high, low, prevClose float64, hasPrev bool) float64 {
	tr := high - low
	if !hasPrev {
		return tr
	}
	return math.Max(tr, math.Max(math.Abs(high-prevClose), math.Abs(low-prevClose)))
}

// Update adds one bar. The first period true ranges are averaged; after that
// the value is smoothed as (prev*(n-1) + tr) / n.
func (a *ATR) Update(high, low, close float64) Reading {
	tr := TrueRange(high, low, a.prevClose, a.seeded)
	a.prevClose = close
	a.seeded = true

	n := float64(a.period)
	switch {
	case a.samples < a.period:
		a.samples++
		a.sumTR += tr
		a.value = a.sumTR / float64(a.samples)
	default:
		a.value = (a.value*(n-1) + tr) / n
	}
	return a.Reading()
}

// Reading returns the current ATR.
func (a *ATR) Reading() Reading {
	return Reading{Ready: a.samples >= a.period, Value: a.value}
}
