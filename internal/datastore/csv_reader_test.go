package datastore

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestStreamBarsFromCSV_GroupsByTimestamp(t *testing.T) {
	path := writeFile(t, "bars.csv", strings.Join([]string{
		"time,ticker,open,high,low,close,volume",
		"2024-03-01,AAPL,10,11,9,10.5,100",
		"2024-03-01,MSFT,20,21,19,20.5,50",
		"2024-03-02,AAPL,10.5,12,10,11,120",
		"bad-time,AAPL,1,1,1,1,1",
		"2024-03-03,AAPL,x,12,10,11,120",
		"2024-03-03,MSFT,21,22,20,21.5,40",
	}, "\n"))

	ticks, err := LoadBarsFromCSV(path)
	require.NoError(t, err)
	require.Len(t, ticks, 3)

	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), ticks[0].Time)
	assert.Equal(t, []string{"AAPL", "MSFT"}, ticks[0].Tickers())
	assert.Len(t, ticks[1].Bars, 1)
	assert.Equal(t, []string{"MSFT"}, ticks[2].Tickers())
	assert.Equal(t, 21.5, ticks[2].Bars[0].Close)
}

func TestStreamBarsFromCSV_Errors(t *testing.T) {
	_, err := LoadBarsFromCSV(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)

	empty := writeFile(t, "empty.csv", "")
	ticks, err := LoadBarsFromCSV(empty)
	require.NoError(t, err)
	assert.Empty(t, ticks)
}

func TestStreamBarsFromCSV_Cancel(t *testing.T) {
	path := writeFile(t, "bars.csv", strings.Join([]string{
		"time,ticker,open,high,low,close,volume",
		"2024-03-01,AAPL,10,11,9,10.5,100",
		"2024-03-02,AAPL,10,11,9,10.5,100",
		"2024-03-03,AAPL,10,11,9,10.5,100",
	}, "\n"))

	ctx, cancel := context.WithCancel(context.Background())
	ticks, errs := StreamBarsFromCSV(ctx, path)
	<-ticks
	cancel()
	for range ticks {
	}
	assert.NoError(t, <-errs)
}

func TestGroupBars(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	ticks := GroupBars([]Bar{
		{Time: t0, Ticker: "A"},
		{Time: t0, Ticker: "B"},
		{Time: t0.Add(time.Minute), Ticker: "A"},
	})
	require.Len(t, ticks, 2)
	assert.Len(t, ticks[0].Bars, 2)
	assert.Nil(t, GroupBars(nil))
}

func TestWriteBarsCSV_RoundTrip(t *testing.T) {
	t0 := time.Date(2024, 3, 1, 14, 30, 0, 0, time.UTC)
	ticks := GroupBars([]Bar{
		{Time: t0, Ticker: "AAPL", Open: 10, High: 11, Low: 9, Close: 10.25, Volume: 100},
		{Time: t0, Ticker: "MSFT", Open: 20, High: 21, Low: 19, Close: 20.5, Volume: 0},
		{Time: t0.Add(time.Hour), Ticker: "AAPL", Open: 10.25, High: 12, Low: 10, Close: 11, Volume: 120},
	})
	path := filepath.Join(t.TempDir(), "bars.csv")

	n, err := WriteBarsCSV(path, ticks, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	got, err := LoadBarsFromCSV(path)
	require.NoError(t, err)
	assert.Equal(t, ticks, got)
}
