// Package benchmark tracks an equal-weight buy-and-hold of the replayed
// instruments so that a run's P&L can be compared against simply holding.
package benchmark

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// Tracker は、各銘柄を最初の終値で買って保有し続けた場合の損益を追跡します。
// 資金は観測された銘柄に均等配分されたものとして扱います。
type Tracker struct {
	capital float64
	first   map[string]float64
	last    map[string]float64
	at      time.Time
}

// NewTracker は、capital を元本とする新しいTrackerを生成します。
func NewTracker(capital float64) *Tracker {
	return &Tracker{
		capital: capital,
		first:   make(map[string]float64),
		last:    make(map[string]float64),
	}
}

// Observe は、銘柄の終値を記録します。正でない価格は無視されます。
func (t *Tracker) Observe(at time.Time, instrument string, close float64) {
	if close <= 0 {
		return
	}
	if _, ok := t.first[instrument]; !ok {
		t.first[instrument] = close
	}
	t.last[instrument] = close
	if at.After(t.at) {
		t.at = at
	}
}

// Return は、均等配分した場合の平均リターンを返します。銘柄がなければ0です。
func (t *Tracker) Return() float64 {
	if len(t.first) == 0 {
		return 0
	}
	sum := 0.0
	for inst, first := range t.first {
		sum += t.last[inst]/first - 1
	}
	return sum / float64(len(t.first))
}

// Value は、現在のベンチマーク評価額を返します。
func (t *Tracker) Value() float64 {
	return t.capital * (1 + t.Return())
}

// PnL は、元本からの評価損益を返します。
func (t *Tracker) PnL() float64 {
	return t.Value() - t.capital
}

// LastTime は、最後に観測したバーの時刻を返します。
func (t *Tracker) LastTime() time.Time {
	return t.at
}

// Execer は、*pgxpool.Poolが満たすべきメソッドのインターフェースです。
// これにより、テストでモックを注入できます。
type Execer interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
}

// BenchmarkService は、ベンチマークデータの記録を担当します。
type BenchmarkService interface {
	// Tick は、現在のベンチマーク値を記録します。
	Tick(ctx context.Context, runID string, at time.Time, value decimal.Decimal) error
}

// DBBenchmarkService は、データベースにベンチマーク値を保存するBenchmarkServiceの実装です。
type DBBenchmarkService struct {
	pool Execer
}

// NewDBBenchmarkService は、新しいDBBenchmarkServiceを生成します。
func NewDBBenchmarkService(pool Execer) *DBBenchmarkService {
	return &DBBenchmarkService{pool: pool}
}

// Tick は、指定されたランIDと値でベンチマークデータをデータベースに挿入します。
func (s *DBBenchmarkService) Tick(ctx context.Context, runID string, at time.Time, value decimal.Decimal) error {
	const query = `
		INSERT INTO benchmark_values (time, run_id, value)
		VALUES ($1, $2, $3)
	`
	_, err := s.pool.Exec(ctx, query, at, runID, value)
	return err
}
