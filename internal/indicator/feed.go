package indicator

import "fmt"

// Periods are the lookbacks of a Feed.
type Periods struct {
	Fast     int
	Slow     int
	ShortStd int
	LongStd  int
	ATR      int
}

func (p Periods) validate() error {
	for name, v := range map[string]int{"fast": p.Fast, "slow": p.Slow, "short std": p.ShortStd, "long std": p.LongStd, "atr": p.ATR} {
		if v <= 0 {
			return fmt.Errorf("%s period must be positive, got %d", name, v)
		}
	}
	return nil
}

// Snapshot is the set of readings for one instrument after a bar.
type Snapshot struct {
	Price     float64
	Fast      Reading
	Slow      Reading
	ShortMean Reading
	ShortStd  Reading
	LongMean  Reading
	LongStd   Reading
	ATR       Reading
}

// Ready reports whether every reading is ready.
func (s Snapshot) Ready() bool {
	for _, r := range []Reading{s.Fast, s.Slow, s.ShortMean, s.ShortStd, s.LongMean, s.LongStd, s.ATR} {
		if !r.Ready {
			return false
		}
	}
	return true
}

// Feed bundles the indicators of one instrument.
type Feed struct {
	fast, slow *SMA
	short      *RollingStats
	long       *RollingStats
	atr        *ATR
	last       Snapshot
}

// NewFeed creates a Feed with the given periods.
func NewFeed(p Periods) (*Feed, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	return &Feed{
		fast:  NewSMA(p.Fast),
		slow:  NewSMA(p.Slow),
		short: NewRollingStats(p.ShortStd),
		long:  NewRollingStats(p.LongStd),
		atr:   NewATR(p.ATR),
	}, nil
}

// Update adds one bar and returns the new snapshot.
func (f *Feed) Update(high, low, close float64) Snapshot {
	f.short.Update(close)
	f.long.Update(close)
	f.last = Snapshot{
		Price:     close,
		Fast:      f.fast.Update(close),
		Slow:      f.slow.Update(close),
		ShortMean: f.short.Mean(),
		ShortStd:  f.short.StdDev(),
		LongMean:  f.long.Mean(),
		LongStd:   f.long.StdDev(),
		ATR:       f.atr.Update(high, low, close),
	}
	return f.last
}

// Snapshot returns the readings after the last Update.
func (f *Feed) Snapshot() Snapshot { return f.last }
