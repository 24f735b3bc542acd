package datastore

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

// ReadTickerList parses a newline-delimited ticker list. The ticker is the
// first comma-delimited column; blank lines are ignored.
func ReadTickerList(r io.Reader) ([]string, error) {
	var out []string
	seen := make(map[string]struct{})
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		ticker := strings.TrimSpace(strings.SplitN(line, ",", 2)[0])
		if ticker == "" {
			continue
		}
		if _, dup := seen[ticker]; dup {
			continue
		}
		seen[ticker] = struct{}{}
		out = append(out, ticker)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read ticker list: %w", err)
	}
	return out, nil
}

// LoadTickerFile reads a ticker list file. An empty path yields no tickers.
func LoadTickerFile(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ticker list: %w", err)
	}
	defer f.Close()
	return ReadTickerList(f)
}

// Universe is the set of tradable tickers after exclusions. An empty
// universe admits every ticker.
type Universe struct {
	allowed map[string]struct{}
	exclude map[string]struct{}
}

// NewUniverse builds a Universe from explicit tickers and exclusions.
func NewUniverse(tickers, exclusions []string) *Universe {
	u := &Universe{
		allowed: make(map[string]struct{}, len(tickers)),
		exclude: make(map[string]struct{}, len(exclusions)),
	}
	for _, t := range tickers {
		u.allowed[t] = struct{}{}
	}
	for _, t := range exclusions {
		u.exclude[t] = struct{}{}
	}
	return u
}

// LoadUniverse combines inline tickers with the tickers and exclusions files.
func LoadUniverse(inline []string, tickersPath, exclusionsPath string) (*Universe, error) {
	fromFile, err := LoadTickerFile(tickersPath)
	if err != nil {
		return nil, err
	}
	excl, err := LoadTickerFile(exclusionsPath)
	if err != nil {
		return nil, err
	}
	return NewUniverse(append(append([]string(nil), inline...), fromFile...), excl), nil
}

// Allows reports whether ticker may be traded.
func (u *Universe) Allows(ticker string) bool {
	if u == nil {
		return true
	}
	if _, ok := u.exclude[ticker]; ok {
		return false
	}
	if len(u.allowed) == 0 {
		return true
	}
	_, ok := u.allowed[ticker]
	return ok
}

// Tickers returns the explicit tickers minus exclusions, sorted.
func (u *Universe) Tickers() []string {
	out := make([]string, 0, len(u.allowed))
	for t := range u.allowed {
		if _, ok := u.exclude[t]; !ok {
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out
}

// Filter keeps the bars the universe allows.
func (u *Universe) Filter(t Tick) Tick {
	out := Tick{Time: t.Time, Bars: make([]Bar, 0, len(t.Bars))}
	for _, b := range t.Bars {
		if u.Allows(b.Ticker) {
			out.Bars = append(out.Bars, b)
		}
	}
	return out
}
