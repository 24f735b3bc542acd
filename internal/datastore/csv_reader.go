package datastore

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/your-org/regime-bracket-bot/pkg/logger"
)

// BarColumns is the header of a bar CSV file.
var BarColumns = []string{"time", "ticker", "open", "high", "low", "close", "volume"}

// StreamBarsFromCSV reads bars from a CSV file and streams them grouped by
// timestamp. The file must be sorted by time and have the header
// time,ticker,open,high,low,close,volume.
// The function returns a channel for ticks and a channel for errors.
func StreamBarsFromCSV(ctx context.Context, filePath string) (<-chan Tick, <-chan error) {
	tickCh := make(chan Tick)
	errCh := make(chan error, 1)

	go func() {
		defer close(tickCh)
		defer close(errCh)

		file, err := os.Open(filePath)
		if err != nil {
			errCh <- fmt.Errorf("failed to open csv file: %w", err)
			return
		}
		defer file.Close()

		reader := csv.NewReader(file)
		if _, err := reader.Read(); err != nil {
			if err != io.EOF {
				errCh <- fmt.Errorf("failed to read csv header: %w", err)
			}
			return // Empty file is not an error
		}

		var current Tick
		var total int
		flush := func() bool {
			if len(current.Bars) == 0 {
				return true
			}
			select {
			case tickCh <- current:
				total++
				current = Tick{}
				return true
			case <-ctx.Done():
				return false
			}
		}

		for {
			select {
			case <-ctx.Done():
				logger.Info("CSV streaming cancelled by context.")
				return
			default:
			}

			record, err := reader.Read()
			if err == io.EOF {
				flush()
				logger.Infof("Successfully streamed %d ticks from %s", total, filePath)
				return
			}
			if err != nil {
				errCh <- fmt.Errorf("failed to read csv record: %w", err)
				return
			}

			bar, err := parseBar(record)
			if err != nil {
				logger.Warnf("Skipping record: %v", err)
				continue
			}
			if !current.Time.IsZero() && !bar.Time.Equal(current.Time) {
				if !flush() {
					return
				}
			}
			current.Time = bar.Time
			current.Bars = append(current.Bars, bar)
		}
	}()

	return tickCh, errCh
}

// LoadBarsFromCSV reads an entire bar CSV file into memory.
func LoadBarsFromCSV(filePath string) ([]Tick, error) {
	ticks, errs := StreamBarsFromCSV(context.Background(), filePath)
	var out []Tick
	for t := range ticks {
		out = append(out, t)
	}
	if err := <-errs; err != nil {
		return nil, err
	}
	return out, nil
}

func parseBar(record []string) (Bar, error) {
	if len(record) != len(BarColumns) {
		return Bar{}, fmt.Errorf("invalid number of columns: expected %d, got %d", len(BarColumns), len(record))
	}
	t, err := parseTime(record[0])
	if err != nil {
		return Bar{}, err
	}
	ticker := strings.TrimSpace(record[1])
	if ticker == "" {
		return Bar{}, fmt.Errorf("empty ticker at %s", record[0])
	}
	var vals [5]float64
	for i := range vals {
		v, err := strconv.ParseFloat(strings.TrimSpace(record[i+2]), 64)
		if err != nil {
			return Bar{}, fmt.Errorf("%s parse error: %w", BarColumns[i+2], err)
		}
		vals[i] = v
	}
	return Bar{
		Time:   t,
		Ticker: ticker,
		Open:   vals[0],
		High:   vals[1],
		Low:    vals[2],
		Close:  vals[3],
		Volume: vals[4],
	}, nil
}

var timeLayouts = []string{
	"2006-01-02 15:04:05.999999-07",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTime(timeStr string) (time.Time, error) {
	s := strings.TrimSpace(timeStr)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("could not parse time '%s' with any known format", timeStr)
}
