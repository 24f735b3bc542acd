package regime

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var defaultThresholds = []float64{0.5, 1.5, 2.0}

func TestClassifyZone(t *testing.T) {
	tests := []struct {
		name   string
		price  float64
		mean   float64
		stdDev float64
		want   Zone
	}{
		{"at mean", 100, 100, 1, Zone{0, Up}},
		{"z=0.6 above", 100.6, 100, 1, Zone{1, Up}},
		{"z=1.6 above", 101.6, 100, 1, Zone{2, Up}},
		{"z=3.0 catch-all", 103, 100, 1, Zone{3, Up}},
		{"z=-0.6 below", 99.4, 100, 1, Zone{1, Down}},
		{"exactly on threshold goes outward", 100.5, 100, 1, Zone{1, Up}},
		{"zero stddev is neutral", 120, 100, 0, NeutralZone},
		{"negative stddev is neutral", 80, 100, -1, NeutralZone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyZone(tt.price, tt.mean, tt.stdDev, defaultThresholds)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ClassifyZone() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestClassifyZone_Monotonic(t *testing.T) {
	prev := uint(0)
	for i := 0; i <= 400; i++ {
		z := float64(i) * 0.01
		got := ClassifyZone(100+z, 100, 1, defaultThresholds)
		if got.Index < prev {
			t.Fatalf("zone index decreased at |z|=%.2f: %d < %d", z, got.Index, prev)
		}
		prev = got.Index
	}
	assert.Equal(t, uint(len(defaultThresholds)), prev)
}

func TestTrendTracker_RunLength(t *testing.T) {
	var tr TrendTracker
	const bucket = 3

	// four up ticks: ST, ST, ST, LT
	for i := 1; i <= 4; i++ {
		got := tr.Update(101, 100, 0, bucket)
		assert.Equal(t, TrendUp, got.Direction)
		assert.Equal(t, i, tr.Run())
		if i <= bucket {
			assert.Equal(t, ShortTerm, got.Duration)
		} else {
			assert.Equal(t, LongTerm, got.Duration)
		}
	}

	// flip to down resets to 1
	got := tr.Update(99, 100, 0, bucket)
	assert.Equal(t, Trend{TrendDown, ShortTerm}, got)
	assert.Equal(t, 1, tr.Run())

	// inside the dead band is a flip to sign 0
	got = tr.Update(100.05, 100, 0.1, bucket)
	assert.Equal(t, Trend{TrendFlat, ShortTerm}, got)
	assert.Equal(t, 1, tr.Run())
	assert.Equal(t, 0, tr.Sign())
}

func TestTrendTracker_FlatAfterLongRunIsFlat(t *testing.T) {
	var tr TrendTracker
	for i := 0; i < 50; i++ {
		tr.Update(2, 1, 0, 20)
	}
	got := tr.Update(1, 1, 0, 20)
	assert.Equal(t, TrendFlat, got.Direction)
	assert.Equal(t, 1, tr.Run())
}

func TestLabel_StringAndParse(t *testing.T) {
	tests := []struct {
		label Label
		want  string
	}{
		{Label{Trend{TrendUp, LongTerm}, Zone{2, Down}, Zone{0, Up}}, "Up_LT_Z2Down_Z0Up"},
		{Label{Trend{TrendDown, ShortTerm}, Zone{3, Up}, Zone{1, Down}}, "Down_ST_Z3Up_Z1Down"},
		{Label{Trend{TrendFlat, ShortTerm}, NeutralZone, Zone{12, Down}}, "Flat_ST_Z0Up_Z12Down"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.label.String())
			parsed, err := ParseLabel(tt.want)
			require.NoError(t, err)
			assert.Equal(t, tt.label, parsed)
		})
	}
}

func TestParseLabel_Malformed(t *testing.T) {
	inputs := []string{
		"",
		"Up_LT_Z2Down",
		"Up_LT_Z2Down_Z0Up_extra",
		"Sideways_LT_Z2Down_Z0Up",
		"Up_MT_Z2Down_Z0Up",
		"Up_LT_2Down_Z0Up",
		"Up_LT_ZDown_Z0Up",
		"Up_LT_Z2Left_Z0Up",
		"Up_LT_Z-1Down_Z0Up",
		"Up_LT_Z2Down_Z+1Up",
	}
	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			_, err := ParseLabel(in)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedLabel))
		})
	}
}

func TestEncoder_Encode(t *testing.T) {
	enc := NewEncoder(Params{
		TrendEpsilon:    0,
		LongTrendBucket: 20,
		ShortThresholds: defaultThresholds,
		LongThresholds:  []float64{1, 2},
	})
	var tr TrendTracker

	got := enc.Encode(&tr, 105, 100, 103,
		Horizon{Mean: 102, StdDev: 1}, // short z=1 -> Z1Up
		Horizon{Mean: 106, StdDev: 1}, // long z=-3 -> Z2Down
	)
	assert.Equal(t, "Up_ST_Z2Down_Z1Up", got.String())
}
