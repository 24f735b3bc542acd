package risk

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestSizer_Evaluate(t *testing.T) {
	s := NewSizer(DefaultParams)

	tests := []struct {
		name string
		in   Input
		want Decision
	}{
		{
			name: "approved, risk budget binds",
			// risk/unit = 2, budget = 1000 -> 500 units, notional 5000 < 10000
			in:   Input{Price: 10, Target: 15, ATR: 1, Equity: 100000},
			want: Decision{Approved: true, Size: 500, TargetPrice: 15, RiskPerUnit: 2, RewardToRisk: 2.5, Notional: 5000},
		},
		{
			name: "notional cap rescales",
			// budget 1000 / risk 2 = 500 units * 100 = 50000 > 10000 -> 100 units
			in:   Input{Price: 100, Target: 110, ATR: 1, Equity: 100000},
			want: Decision{Approved: true, Size: 100, TargetPrice: 110, RiskPerUnit: 2, RewardToRisk: 5, Notional: 10000},
		},
		{
			name: "minimum one unit",
			// budget 10 / risk 20 = 0.5 -> 1 unit, notional 50 < 100
			in:   Input{Price: 50, Target: 100, ATR: 10, Equity: 1000},
			want: Decision{Approved: true, Size: 1, TargetPrice: 100, RiskPerUnit: 20, RewardToRisk: 2.5, Notional: 50},
		},
		{
			name: "single unit above cap by more than tolerance",
			// 1 unit at 200 vs cap 100
			in:   Input{Price: 200, Target: 300, ATR: 10, Equity: 1000},
			want: Decision{TargetPrice: 300, RiskPerUnit: 20, RewardToRisk: 5, Notional: 200, Reason: ReasonNotionalCap},
		},
		{
			name: "single unit within tolerance",
			// 1 unit at 104 vs cap 100 * 1.05
			in:   Input{Price: 104, Target: 200, ATR: 10, Equity: 1000},
			want: Decision{Approved: true, Size: 1, TargetPrice: 200, RiskPerUnit: 20, RewardToRisk: 4.8, Notional: 104},
		},
		{
			name: "target below price",
			in:   Input{Price: 100, Target: 99, ATR: 1, Equity: 100000},
			want: Decision{TargetPrice: 99, RiskPerUnit: 2, Reason: ReasonNoReward},
		},
		{
			name: "target equal to price",
			in:   Input{Price: 100, Target: 100, ATR: 1, Equity: 100000},
			want: Decision{TargetPrice: 100, RiskPerUnit: 2, Reason: ReasonNoReward},
		},
		{
			name: "reward to risk too low",
			in:   Input{Price: 100, Target: 103, ATR: 1, Equity: 100000},
			want: Decision{TargetPrice: 103, RiskPerUnit: 2, RewardToRisk: 1.5, Reason: ReasonRewardRisk},
		},
		{
			name: "zero atr",
			in:   Input{Price: 100, Target: 120, ATR: 0, Equity: 100000},
			want: Decision{TargetPrice: 120, Reason: ReasonNoATR},
		},
		{
			name: "nan atr",
			in:   Input{Price: 100, Target: 120, ATR: math.NaN(), Equity: 100000},
			want: Decision{TargetPrice: 120, Reason: ReasonNoATR},
		},
		{
			name: "no equity",
			in:   Input{Price: 100, Target: 120, ATR: 1, Equity: 0},
			want: Decision{TargetPrice: 120, Reason: ReasonNoEquity},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Evaluate(tt.in)
			if diff := cmp.Diff(tt.want, got, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
				t.Errorf("Evaluate() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSizer_NeverExceedsRiskBudgetAboveOneUnit(t *testing.T) {
	s := NewSizer(DefaultParams)
	for atr := 0.1; atr < 20; atr += 0.37 {
		d := s.Evaluate(Input{Price: 25, Target: 25 + 6*atr, ATR: atr, Equity: 50000})
		if !d.Approved {
			t.Fatalf("atr=%v unexpectedly rejected: %s", atr, d)
		}
		if d.Size > 1 && float64(d.Size)*d.RiskPerUnit > 0.01*50000+1e-9 {
			t.Errorf("atr=%v: size %d risks %.2f > budget", atr, d.Size, float64(d.Size)*d.RiskPerUnit)
		}
		if float64(d.Size)*25 > 0.10*50000*1.05+1e-9 {
			t.Errorf("atr=%v: notional %.2f above cap", atr, float64(d.Size)*25)
		}
	}
}
