// Package risk sizes positions under a volatility-adjusted risk budget.
package risk

import (
	"fmt"
	"math"
)

// Reason explains a rejected trade.
type Reason string

const (
	ReasonNone        Reason = ""
	ReasonNoATR       Reason = "no_atr"
	ReasonNoReward    Reason = "no_reward"
	ReasonRewardRisk  Reason = "reward_risk"
	ReasonNotionalCap Reason = "notional_cap"
	ReasonNoEquity    Reason = "no_equity"
)

// Params configures a Sizer.
type Params struct {
	ATRMultiplier       float64 // k
	MaxRiskFraction     float64
	MaxNotionalFraction float64
	MinRewardToRisk     float64
	NotionalTolerance   float64
}

// DefaultParams are k=2, 1% risk, 10% notional, 2:1 reward, 5% tolerance.
var DefaultParams = Params{
	ATRMultiplier:       2,
	MaxRiskFraction:     0.01,
	MaxNotionalFraction: 0.10,
	MinRewardToRisk:     2.0,
	NotionalTolerance:   0.05,
}

// Input is one sizing request.
type Input struct {
	Price  float64
	Target float64
	ATR    float64
	Equity float64
}

// Decision is the outcome of sizing. Rejections are ordinary results.
type Decision struct {
	Approved     bool
	Size         int64
	TargetPrice  float64
	RiskPerUnit  float64
	RewardToRisk float64
	Notional     float64
	Reason       Reason
}

func (d Decision) String() string {
	if !d.Approved {
		return fmt.Sprintf("rejected(%s, rr=%.2f)", d.Reason, d.RewardToRisk)
	}
	return fmt.Sprintf("approved(size=%d, target=%.4f, risk/unit=%.4f, rr=%.2f)", d.Size, d.TargetPrice, d.RiskPerUnit, d.RewardToRisk)
}

// Sizer approves and sizes trades.
type Sizer struct {
	p Params
}

// NewSizer returns a Sizer for p.
func NewSizer(p Params) *Sizer {
	return &Sizer{p: p}
}

// Params returns the sizer configuration.
func (s *Sizer) Params() Params { return s.p }

// Evaluate decides whether to take a long trade from in.Price toward in.Target.
func (s *Sizer) Evaluate(in Input) Decision {
	d := Decision{TargetPrice: in.Target}

	if !(in.ATR > 0) || math.IsInf(in.ATR, 0) {
		d.Reason = ReasonNoATR
		return d
	}
	if !(in.Equity > 0) || !(in.Price > 0) {
		d.Reason = ReasonNoEquity
		return d
	}

	d.RiskPerUnit = s.p.ATRMultiplier * in.ATR
	reward := in.Target - in.Price
	if reward <= 0 {
		d.Reason = ReasonNoReward
		return d
	}
	d.RewardToRisk = reward / d.RiskPerUnit
	if d.RewardToRisk < s.p.MinRewardToRisk {
		d.Reason = ReasonRewardRisk
		return d
	}

	size := math.Floor(s.p.MaxRiskFraction * in.Equity / d.RiskPerUnit)
	if size < 1 {
		size = 1
	}

	capNotional := s.p.MaxNotionalFraction * in.Equity
	notional := size * in.Price
	if notional > capNotional {
		size = math.Floor(size * capNotional / notional)
		if size < 1 {
			size = 1
		}
		notional = size * in.Price
		if notional > capNotional*(1+s.p.NotionalTolerance) {
			d.Reason = ReasonNotionalCap
			d.Notional = notional
			return d
		}
	}

	d.Approved = true
	d.Size = int64(size)
	d.Notional = notional
	return d
}
