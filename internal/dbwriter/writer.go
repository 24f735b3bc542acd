package dbwriter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/your-org/regime-bracket-bot/internal/config"
)

var (
	stateColumns   = []string{"time", "run_id", "instrument", "label", "price", "mode"}
	bracketColumns = []string{"time", "run_id", "instrument", "event", "order_id", "price", "quantity", "state"}
	matrixColumns  = []string{"matrix_id", "run_id", "from_state", "to_state", "probability", "count", "created_at"}
)

// TimescaleWriter はTimescaleDBへのデータ書き込みを担当します。
type TimescaleWriter struct {
	pool          Pool
	logger        *zap.Logger
	config        config.DBWriterConfig
	runID         string
	stateBuffer   []StateObservation
	bracketBuffer []BracketEvent
	bufferMutex   sync.Mutex
	flushTicker   *time.Ticker
	shutdownChan  chan struct{}
	wg            sync.WaitGroup
	closeOnce     sync.Once
}

// NewTimescaleWriter は新しいTimescaleWriterインスタンスを作成します。
// このコンストラクタは、外部から提供されたDB接続プールを使用します。
func NewTimescaleWriter(pool Pool, writerConfig config.DBWriterConfig, logger *zap.Logger) (*TimescaleWriter, error) {
	if pool == nil {
		return nil, fmt.Errorf("dbwriter: pool is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if writerConfig.WriteIntervalSeconds <= 0 {
		logger.Warn("WriteIntervalSeconds is zero or negative, defaulting to 1s.", zap.Int("originalValue", writerConfig.WriteIntervalSeconds))
		writerConfig.WriteIntervalSeconds = 1
	}
	if writerConfig.BatchSize <= 0 {
		logger.Warn("BatchSize is zero or negative, defaulting to 100.", zap.Int("originalValue", writerConfig.BatchSize))
		writerConfig.BatchSize = 100
	}

	w := &TimescaleWriter{
		pool:          pool,
		logger:        logger,
		config:        writerConfig,
		stateBuffer:   make([]StateObservation, 0, writerConfig.BatchSize),
		bracketBuffer: make([]BracketEvent, 0, writerConfig.BatchSize),
		flushTicker:   time.NewTicker(time.Duration(writerConfig.WriteIntervalSeconds) * time.Second),
		shutdownChan:  make(chan struct{}),
	}
	w.wg.Add(1)
	go w.run()
	logger.Info("Started TimescaleDB batch writer", zap.Int("batchSize", writerConfig.BatchSize))
	return w, nil
}

// SetRunID stamps every subsequent record with runID.
func (w *TimescaleWriter) SetRunID(runID string) {
	w.bufferMutex.Lock()
	defer w.bufferMutex.Unlock()
	w.runID = runID
}

// Close はバッファをフラッシュし、データベース接続プールをクローズします。
func (w *TimescaleWriter) Close() {
	w.closeOnce.Do(func() {
		w.logger.Info("Closing TimescaleDB writer...")
		close(w.shutdownChan)
		w.wg.Wait()
		w.flushTicker.Stop()

		w.flushBuffers(context.Background())

		w.pool.Close()
		w.logger.Info("TimescaleDB connection pool closed")
	})
}

func (w *TimescaleWriter) run() {
	defer w.wg.Done()
	for {
		select {
		case <-w.flushTicker.C:
			w.flushBuffers(context.Background())
		case <-w.shutdownChan:
			return
		}
	}
}

// SaveStateObservation は状態ラベルをバッファに追加します。
func (w *TimescaleWriter) SaveStateObservation(obs StateObservation) {
	w.bufferMutex.Lock()
	if obs.RunID == "" {
		obs.RunID = w.runID
	}
	w.stateBuffer = append(w.stateBuffer, obs)
	shouldFlush := len(w.stateBuffer) >= w.config.BatchSize
	w.bufferMutex.Unlock()

	if shouldFlush {
		w.flushBuffers(context.Background())
	}
}

// SaveBracketEvent はブラケットイベントをバッファに追加します。
func (w *TimescaleWriter) SaveBracketEvent(ev BracketEvent) {
	w.bufferMutex.Lock()
	if ev.RunID == "" {
		ev.RunID = w.runID
	}
	w.bracketBuffer = append(w.bracketBuffer, ev)
	shouldFlush := len(w.bracketBuffer) >= w.config.BatchSize
	w.bufferMutex.Unlock()

	if shouldFlush {
		w.flushBuffers(context.Background())
	}
}

func (w *TimescaleWriter) flushBuffers(ctx context.Context) {
	w.bufferMutex.Lock()
	defer w.bufferMutex.Unlock()

	if len(w.stateBuffer) > 0 {
		w.copyRows(ctx, "instrument_states", stateColumns, toStateInterfaces(w.stateBuffer))
		w.stateBuffer = w.stateBuffer[:0]
	}
	if len(w.bracketBuffer) > 0 {
		w.copyRows(ctx, "bracket_events", bracketColumns, toBracketInterfaces(w.bracketBuffer))
		w.bracketBuffer = w.bracketBuffer[:0]
	}
}

func (w *TimescaleWriter) copyRows(ctx context.Context, table string, columns []string, rows [][]interface{}) {
	w.logger.Debug("Flushing rows", zap.String("table", table), zap.Int("count", len(rows)))
	if _, err := w.pool.CopyFrom(ctx, pgx.Identifier{table}, columns, pgx.CopyFromRows(rows)); err != nil {
		w.logger.Error("Failed to batch insert rows", zap.String("table", table), zap.Error(err))
	}
}

func toStateInterfaces(obs []StateObservation) [][]interface{} {
	rows := make([][]interface{}, len(obs))
	for i, o := range obs {
		rows[i] = []interface{}{o.Time, o.RunID, o.Instrument, o.Label, o.Price, o.Mode}
	}
	return rows
}

func toBracketInterfaces(events []BracketEvent) [][]interface{} {
	rows := make([][]interface{}, len(events))
	for i, e := range events {
		rows[i] = []interface{}{e.Time, e.RunID, e.Instrument, e.Event, e.OrderID, e.Price, e.Quantity, e.State}
	}
	return rows
}

func toMatrixInterfaces(mrows []MatrixRow) [][]interface{} {
	rows := make([][]interface{}, len(mrows))
	for i, r := range mrows {
		rows[i] = []interface{}{r.MatrixID, r.RunID, r.FromState, r.ToState, r.Probability, r.Count, r.CreatedAt}
	}
	return rows
}

// SaveTransitionMatrix は遷移確率行列を一括で保存します。
func (w *TimescaleWriter) SaveTransitionMatrix(ctx context.Context, mrows []MatrixRow) error {
	if len(mrows) == 0 {
		return nil
	}
	w.bufferMutex.Lock()
	runID := w.runID
	w.bufferMutex.Unlock()
	for i := range mrows {
		if mrows[i].RunID == "" {
			mrows[i].RunID = runID
		}
	}

	n, err := w.pool.CopyFrom(ctx, pgx.Identifier{"transition_matrix"}, matrixColumns, pgx.CopyFromRows(toMatrixInterfaces(mrows)))
	if err != nil {
		w.logger.Error("Failed to insert transition matrix", zap.Error(err))
		return fmt.Errorf("failed to insert transition matrix: %w", err)
	}
	w.logger.Info("Saved transition matrix to DB.", zap.Int64("rows", n))
	return nil
}

// SaveClosedBracket は決済済みブラケットを保存します。
func (w *TimescaleWriter) SaveClosedBracket(ctx context.Context, b ClosedBracket) error {
	if b.RunID == "" {
		w.bufferMutex.Lock()
		b.RunID = w.runID
		w.bufferMutex.Unlock()
	}
	query := `INSERT INTO closed_brackets (run_id, instrument, opened_at, closed_at, entry_price, exit_price, target_price, stop_price, quantity, exit_reason, pnl)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := w.pool.Exec(ctx, query,
		b.RunID, b.Instrument, b.OpenedAt, b.ClosedAt,
		b.EntryPrice, b.ExitPrice, b.TargetPrice, b.StopPrice,
		b.Quantity, b.ExitReason, b.PnL,
	)
	if err != nil {
		w.logger.Error("Failed to insert closed bracket", zap.Error(err), zap.String("instrument", b.Instrument))
		return fmt.Errorf("failed to insert closed bracket: %w", err)
	}
	return nil
}

// SaveRunSummary は実行サマリーを保存します。
func (w *TimescaleWriter) SaveRunSummary(ctx context.Context, s RunSummary) error {
	query := `INSERT INTO run_summaries (run_id, strategy_id, mode, started_at, finished_at, instruments, observations, brackets_opened, brackets_closed, realized_pnl, matrix_id)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := w.pool.Exec(ctx, query,
		s.RunID, s.StrategyID, s.Mode, s.StartedAt, s.FinishedAt,
		s.Instruments, s.Observations, s.BracketsOpened, s.BracketsClosed,
		s.RealizedPnL, s.MatrixID,
	)
	if err != nil {
		w.logger.Error("Failed to insert run summary", zap.Error(err), zap.Any("summary", s))
		return fmt.Errorf("failed to insert run summary: %w", err)
	}
	w.logger.Debug("Saved run summary to DB.")
	return nil
}
