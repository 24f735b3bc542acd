package dbwriter

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// StateObservation はティックごとの状態ラベルです。
type StateObservation struct {
	Time       time.Time `db:"time"`
	RunID      string    `db:"run_id"`
	Instrument string    `db:"instrument"`
	Label      string    `db:"label"`
	Price      float64   `db:"price"`
	Mode       string    `db:"mode"`
}

// BracketEvent はブラケット注文のライフサイクルイベントです。
type BracketEvent struct {
	Time       time.Time       `db:"time"`
	RunID      string          `db:"run_id"`
	Instrument string          `db:"instrument"`
	Event      string          `db:"event"` // "entry_submitted", "entry_filled", "stop_filled", ...
	OrderID    string          `db:"order_id"`
	Price      decimal.Decimal `db:"price"`
	Quantity   decimal.Decimal `db:"quantity"`
	State      string          `db:"state"`
}

// ClosedBracket は決済済みのラウンドトリップです。
type ClosedBracket struct {
	RunID       string          `db:"run_id"`
	Instrument  string          `db:"instrument"`
	OpenedAt    time.Time       `db:"opened_at"`
	ClosedAt    time.Time       `db:"closed_at"`
	EntryPrice  decimal.Decimal `db:"entry_price"`
	ExitPrice   decimal.Decimal `db:"exit_price"`
	TargetPrice decimal.Decimal `db:"target_price"`
	StopPrice   decimal.Decimal `db:"stop_price"`
	Quantity    decimal.Decimal `db:"quantity"`
	ExitReason  string          `db:"exit_reason"`
	PnL         decimal.Decimal `db:"pnl"`
}

// MatrixRow は遷移確率行列の1エントリです。
type MatrixRow struct {
	MatrixID    string    `db:"matrix_id"`
	RunID       string    `db:"run_id"`
	FromState   string    `db:"from_state"`
	ToState     string    `db:"to_state"`
	Probability float64   `db:"probability"`
	Count       int       `db:"count"`
	CreatedAt   time.Time `db:"created_at"`
}

// RunSummary は1回の実行の要約です。
type RunSummary struct {
	RunID          string          `db:"run_id"`
	StrategyID     string          `db:"strategy_id"`
	Mode           string          `db:"mode"`
	StartedAt      time.Time       `db:"started_at"`
	FinishedAt     time.Time       `db:"finished_at"`
	Instruments    int             `db:"instruments"`
	Observations   int             `db:"observations"`
	BracketsOpened int             `db:"brackets_opened"`
	BracketsClosed int             `db:"brackets_closed"`
	RealizedPnL    decimal.Decimal `db:"realized_pnl"`
	MatrixID       string          `db:"matrix_id"`
}

// Repository defines the interface for database writing operations.
// This allows for mocking in tests and abstracting the writer implementation.
type Repository interface {
	// SetRunID stamps every subsequent record with runID.
	SetRunID(runID string)

	// SaveStateObservation adds a state observation to the buffer.
	SaveStateObservation(obs StateObservation)

	// SaveBracketEvent adds a bracket event to the buffer.
	SaveBracketEvent(ev BracketEvent)

	// SaveClosedBracket saves a single completed round trip.
	SaveClosedBracket(ctx context.Context, b ClosedBracket) error

	// SaveTransitionMatrix saves a compiled matrix in one batch.
	SaveTransitionMatrix(ctx context.Context, rows []MatrixRow) error

	// SaveRunSummary saves the summary of a finished run.
	SaveRunSummary(ctx context.Context, s RunSummary) error

	// Close flushes any buffered data and closes the database connection.
	Close()
}
