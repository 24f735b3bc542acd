package datastore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/your-org/regime-bracket-bot/internal/dbwriter"
)

// DBTX is the subset of pgxpool.Pool the repository uses.
type DBTX interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// Repository handles database operations for replay input and reports.
type Repository struct {
	db DBTX
}

// NewRepository creates a new Repository.
func NewRepository(db DBTX) *Repository {
	return &Repository{db: db}
}

const fetchBarsQuery = `
        SELECT time, ticker, open, high, low, close, volume
        FROM bars
        WHERE time >= $1 AND time < $2
        ORDER BY time ASC, ticker ASC;
    `

const fetchBarsForTickersQuery = `
        SELECT time, ticker, open, high, low, close, volume
        FROM bars
        WHERE time >= $1 AND time < $2 AND ticker = ANY($3)
        ORDER BY time ASC, ticker ASC;
    `

// FetchBars fetches bars in [start, end) grouped into ticks. An empty
// tickers slice fetches every ticker.
func (r *Repository) FetchBars(ctx context.Context, tickers []string, start, end time.Time) ([]Tick, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if len(tickers) == 0 {
		rows, err = r.db.Query(ctx, fetchBarsQuery, start, end)
	} else {
		rows, err = r.db.Query(ctx, fetchBarsForTickersQuery, start, end, tickers)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query bars: %w", err)
	}
	defer rows.Close()

	var bars []Bar
	for rows.Next() {
		var b Bar
		if err := rows.Scan(&b.Time, &b.Ticker, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("failed to scan bar: %w", err)
		}
		bars = append(bars, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return GroupBars(bars), nil
}

// SaveBars bulk-loads bars with COPY.
func (r *Repository) SaveBars(ctx context.Context, bars []Bar) (int64, error) {
	if len(bars) == 0 {
		return 0, nil
	}
	n, err := r.db.CopyFrom(ctx, pgx.Identifier{"bars"}, BarColumns,
		pgx.CopyFromSlice(len(bars), func(i int) ([]interface{}, error) {
			b := bars[i]
			return []interface{}{b.Time, b.Ticker, b.Open, b.High, b.Low, b.Close, b.Volume}, nil
		}))
	if err != nil {
		return 0, fmt.Errorf("failed to copy bars: %w", err)
	}
	return n, nil
}

// FetchClosedBrackets returns the round trips of runID ordered by close time.
func (r *Repository) FetchClosedBrackets(ctx context.Context, runID string) ([]dbwriter.ClosedBracket, error) {
	query := `
        SELECT run_id, instrument, opened_at, closed_at, entry_price, exit_price,
               target_price, stop_price, quantity, exit_reason, pnl
        FROM closed_brackets
        WHERE run_id = $1
        ORDER BY closed_at ASC;
    `
	rows, err := r.db.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query closed brackets: %w", err)
	}
	defer rows.Close()

	var out []dbwriter.ClosedBracket
	for rows.Next() {
		var b dbwriter.ClosedBracket
		if err := rows.Scan(&b.RunID, &b.Instrument, &b.OpenedAt, &b.ClosedAt, &b.EntryPrice, &b.ExitPrice,
			&b.TargetPrice, &b.StopPrice, &b.Quantity, &b.ExitReason, &b.PnL); err != nil {
			return nil, fmt.Errorf("failed to scan closed bracket: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// FetchLatestRun returns the most recently finished run, or nil when none exists.
func (r *Repository) FetchLatestRun(ctx context.Context) (*dbwriter.RunSummary, error) {
	query := `
        SELECT run_id, strategy_id, mode, started_at, finished_at, instruments,
               observations, brackets_opened, brackets_closed, realized_pnl, matrix_id
        FROM run_summaries
        ORDER BY finished_at DESC
        LIMIT 1;
    `
	var s dbwriter.RunSummary
	err := r.db.QueryRow(ctx, query).Scan(&s.RunID, &s.StrategyID, &s.Mode, &s.StartedAt, &s.FinishedAt,
		&s.Instruments, &s.Observations, &s.BracketsOpened, &s.BracketsClosed, &s.RealizedPnL, &s.MatrixID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch latest run: %w", err)
	}
	return &s, nil
}

// DeleteOldStates removes state observations older than maxAgeHours.
func (r *Repository) DeleteOldStates(ctx context.Context, maxAgeHours int) (int64, error) {
	query := `DELETE FROM instrument_states WHERE time < NOW() - $1 * INTERVAL '1 hour';`
	tag, err := r.db.Exec(ctx, query, maxAgeHours)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old states: %w", err)
	}
	return tag.RowsAffected(), nil
}
