package position

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPosition_Update(t *testing.T) {
	tests := []struct {
		name        string
		fills       [][2]float64 // size, price
		wantSize    float64
		wantAvg     float64
		wantRealize float64
	}{
		{"open long", [][2]float64{{10, 100}}, 10, 100, 0},
		{"add to long averages", [][2]float64{{10, 100}, {10, 110}}, 20, 105, 0},
		{"close long at profit", [][2]float64{{10, 100}, {-10, 112}}, 0, 0, 120},
		{"partial close keeps average", [][2]float64{{10, 100}, {-4, 90}}, 6, 100, -40},
		{"short covered at profit", [][2]float64{{-5, 50}, {5, 40}}, 0, 0, 50},
		{"flip through zero", [][2]float64{{3, 10}, {-5, 12}}, -2, 12, 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPosition("X")
			realized := 0.0
			for _, f := range tt.fills {
				realized += p.Update(f[0], f[1])
			}
			size, avg := p.Get()
			assert.InDelta(t, tt.wantSize, size, 1e-9)
			assert.InDelta(t, tt.wantAvg, avg, 1e-9)
			assert.InDelta(t, tt.wantRealize, realized, 1e-9)
		})
	}
}

func TestBook(t *testing.T) {
	b := NewBook()
	assert.Equal(t, 0.0, b.Quantity("AAPL"))

	b.Get("AAPL").Update(5, 100)
	b.Get("MSFT").Update(1, 300)
	b.Get("MSFT").Update(-1, 310)

	assert.Equal(t, 5.0, b.Quantity("AAPL"))
	assert.Equal(t, 0.0, b.Quantity("MSFT"))
	assert.Equal(t, []string{"AAPL"}, b.Instruments())
	assert.Same(t, b.Get("AAPL"), b.Get("AAPL"))
}
