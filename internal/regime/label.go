// Package regime discretizes indicator readings into composite state labels.
package regime

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformedLabel is returned when a string is not a canonical label.
var ErrMalformedLabel = errors.New("malformed state label")

// TrendDirection is the sign of the fast/slow moving average spread.
type TrendDirection int

const (
	TrendFlat TrendDirection = iota
	TrendUp
	TrendDown
)

func (d TrendDirection) String() string {
	switch d {
	case TrendUp:
		return "Up"
	case TrendDown:
		return "Down"
	default:
		return "Flat"
	}
}

// Duration buckets how long a trend has persisted.
type Duration int

const (
	ShortTerm Duration = iota
	LongTerm
)

func (d Duration) String() string {
	if d == LongTerm {
		return "LT"
	}
	return "ST"
}

// Direction is the side of the mean a price sits on.
type Direction int

const (
	Up Direction = iota
	Down
)

func (d Direction) String() string {
	if d == Down {
		return "Down"
	}
	return "Up"
}

// Trend is the trend component of a label.
type Trend struct {
	Direction TrendDirection
	Duration  Duration
}

// Zone is an ordinal bucket of deviation from a mean, in threshold units.
type Zone struct {
	Index uint
	Dir   Direction
}

func (z Zone) String() string {
	return "Z" + strconv.FormatUint(uint64(z.Index), 10) + z.Dir.String()
}

// NeutralZone is emitted when a horizon has no dispersion.
var NeutralZone = Zone{Index: 0, Dir: Up}

// Label is the discretized state of one instrument at one tick.
type Label struct {
	Trend Trend
	LT    Zone
	ST    Zone
}

// String renders the canonical form, e.g. "Up_LT_Z2Down_Z0Up".
func (l Label) String() string {
	var b strings.Builder
	b.WriteString(l.Trend.Direction.String())
	b.WriteByte('_')
	b.WriteString(l.Trend.Duration.String())
	b.WriteByte('_')
	b.WriteString(l.LT.String())
	b.WriteByte('_')
	b.WriteString(l.ST.String())
	return b.String()
}

// ParseLabel decodes the canonical string form.
func ParseLabel(s string) (Label, error) {
	tokens := strings.Split(s, "_")
	if len(tokens) != 4 {
		return Label{}, fmt.Errorf("%w: %q has %d tokens", ErrMalformedLabel, s, len(tokens))
	}

	var l Label
	switch tokens[0] {
	case "Up":
		l.Trend.Direction = TrendUp
	case "Down":
		l.Trend.Direction = TrendDown
	case "Flat":
		l.Trend.Direction = TrendFlat
	default:
		return Label{}, fmt.Errorf("%w: unknown trend %q", ErrMalformedLabel, tokens[0])
	}
	switch tokens[1] {
	case "ST":
		l.Trend.Duration = ShortTerm
	case "LT":
		l.Trend.Duration = LongTerm
	default:
		return Label{}, fmt.Errorf("%w: unknown duration %q", ErrMalformedLabel, tokens[1])
	}

	var err error
	if l.LT, err = ParseZone(tokens[2]); err != nil {
		return Label{}, err
	}
	if l.ST, err = ParseZone(tokens[3]); err != nil {
		return Label{}, err
	}
	return l, nil
}

// ParseZone decodes a zone token such as "Z3Down".
func ParseZone(tok string) (Zone, error) {
	if len(tok) < 4 || tok[0] != 'Z' {
		return Zone{}, fmt.Errorf("%w: bad zone token %q", ErrMalformedLabel, tok)
	}
	body := tok[1:]
	var z Zone
	var digits string
	switch {
	case strings.HasSuffix(body, "Down"):
		z.Dir = Down
		digits = strings.TrimSuffix(body, "Down")
	case strings.HasSuffix(body, "Up"):
		z.Dir = Up
		digits = strings.TrimSuffix(body, "Up")
	default:
		return Zone{}, fmt.Errorf("%w: bad zone direction in %q", ErrMalformedLabel, tok)
	}
	idx, err := strconv.ParseUint(digits, 10, 32)
	if err != nil {
		return Zone{}, fmt.Errorf("%w: bad zone index in %q", ErrMalformedLabel, tok)
	}
	z.Index = uint(idx)
	return z, nil
}
