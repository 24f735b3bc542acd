// Package report summarizes closed brackets and transition matrices.
package report

import (
	"context"
	"errors"
	"math"
	"sort"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/your-org/regime-bracket-bot/internal/dbwriter"
	"github.com/your-org/regime-bracket-bot/internal/engine"
)

// ErrNoBrackets is returned when there is nothing to analyze.
var ErrNoBrackets = errors.New("no closed brackets to analyze")

// Report は損益分析の結果を保持します。
type Report struct {
	RunID                       string          `json:"run_id"`
	StartDate                   time.Time       `json:"start_date"`
	EndDate                     time.Time       `json:"end_date"`
	TotalBrackets               int             `json:"total_brackets"`
	Instruments                 int             `json:"instruments"`
	WinningBrackets             int             `json:"winning_brackets"`
	LosingBrackets              int             `json:"losing_brackets"`
	WinRate                     float64         `json:"win_rate"`
	TakeProfitExits             int             `json:"take_profit_exits"`
	StopExits                   int             `json:"stop_exits"`
	ExternalExits               int             `json:"external_exits"`
	TotalPnL                    decimal.Decimal `json:"total_pnl"`
	AverageProfit               decimal.Decimal `json:"average_profit"`
	AverageLoss                 decimal.Decimal `json:"average_loss"`
	RiskRewardRatio             float64         `json:"risk_reward_ratio"`
	ProfitFactor                float64         `json:"profit_factor"`
	MaxDrawdown                 decimal.Decimal `json:"max_drawdown"`
	RecoveryFactor              float64         `json:"recovery_factor"`
	SharpeRatio                 float64         `json:"sharpe_ratio"`
	SortinoRatio                float64         `json:"sortino_ratio"`
	MaxConsecutiveWins          int             `json:"max_consecutive_wins"`
	MaxConsecutiveLosses        int             `json:"max_consecutive_losses"`
	AverageHoldingPeriodSeconds float64         `json:"average_holding_period_seconds"`
}

// AnalyzeBrackets はクローズ済みブラケットを決済時刻順に分析します。
func AnalyzeBrackets(brackets []dbwriter.ClosedBracket) (Report, error) {
	if len(brackets) == 0 {
		return Report{}, ErrNoBrackets
	}
	sorted := append([]dbwriter.ClosedBracket(nil), brackets...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ClosedAt.Before(sorted[j].ClosedAt) })

	var (
		r                                  Report
		totalProfit, totalLoss             decimal.Decimal
		pnlHistory                         []decimal.Decimal
		holdingTotal                       float64
		consecutiveWins, consecutiveLosses int
	)
	instruments := make(map[string]struct{})
	r.RunID = sorted[0].RunID
	r.StartDate = sorted[0].OpenedAt
	r.EndDate = sorted[len(sorted)-1].ClosedAt

	for _, b := range sorted {
		instruments[b.Instrument] = struct{}{}
		if b.OpenedAt.Before(r.StartDate) {
			r.StartDate = b.OpenedAt
		}
		switch b.ExitReason {
		case engine.ExitTakeProfit:
			r.TakeProfitExits++
		case engine.ExitStop:
			r.StopExits++
		default:
			r.ExternalExits++
		}

		pnl := b.PnL
		r.TotalPnL = r.TotalPnL.Add(pnl)
		pnlHistory = append(pnlHistory, pnl)
		holdingTotal += b.ClosedAt.Sub(b.OpenedAt).Seconds()

		if pnl.IsPositive() {
			r.WinningBrackets++
			totalProfit = totalProfit.Add(pnl)
			consecutiveWins++
			consecutiveLosses = 0
			if consecutiveWins > r.MaxConsecutiveWins {
				r.MaxConsecutiveWins = consecutiveWins
			}
		} else if pnl.IsNegative() {
			r.LosingBrackets++
			totalLoss = totalLoss.Add(pnl)
			consecutiveLosses++
			consecutiveWins = 0
			if consecutiveLosses > r.MaxConsecutiveLosses {
				r.MaxConsecutiveLosses = consecutiveLosses
			}
		}
	}

	r.TotalBrackets = len(sorted)
	r.Instruments = len(instruments)
	r.AverageHoldingPeriodSeconds = holdingTotal / float64(len(sorted))

	if decided := r.WinningBrackets + r.LosingBrackets; decided > 0 {
		r.WinRate = float64(r.WinningBrackets) / float64(decided) * 100
	}
	if r.WinningBrackets > 0 {
		r.AverageProfit = totalProfit.Div(decimal.NewFromInt(int64(r.WinningBrackets)))
	}
	if r.LosingBrackets > 0 {
		r.AverageLoss = totalLoss.Div(decimal.NewFromInt(int64(r.LosingBrackets)))
	}
	if !r.AverageLoss.IsZero() {
		r.RiskRewardRatio = r.AverageProfit.Div(r.AverageLoss.Abs()).InexactFloat64()
	}
	if totalLoss.IsNegative() {
		r.ProfitFactor = totalProfit.Div(totalLoss.Abs()).InexactFloat64()
	}

	// エクイティカーブ
	equity := decimal.Zero
	peak := decimal.Zero
	for _, pnl := range pnlHistory {
		equity = equity.Add(pnl)
		if equity.GreaterThan(peak) {
			peak = equity
		}
		if dd := peak.Sub(equity); dd.GreaterThan(r.MaxDrawdown) {
			r.MaxDrawdown = dd
		}
	}
	if r.MaxDrawdown.IsPositive() {
		r.RecoveryFactor = r.TotalPnL.Div(r.MaxDrawdown).InexactFloat64()
	}

	pnlFloats := make([]float64, len(pnlHistory))
	for i, pnl := range pnlHistory {
		pnlFloats[i] = pnl.InexactFloat64()
	}
	r.SharpeRatio = calculateSharpeRatio(pnlFloats, 0.0)
	r.SortinoRatio = calculateSortinoRatio(pnlFloats, 0.0)
	return r, nil
}

// Execer is the subset of pgxpool.Pool the report service needs.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// Service stores reports.
type Service struct {
	db Execer
}

// NewService creates a new report service.
func NewService(db Execer) *Service {
	return &Service{db: db}
}

// SaveReport は分析レポートをデータベースに保存します。
func (s *Service) SaveReport(ctx context.Context, report Report) error {
	query := `
        INSERT INTO bracket_reports (
            time, run_id, start_date, end_date, total_brackets, winning_brackets,
            losing_brackets, win_rate, total_pnl, profit_factor, max_drawdown,
            sharpe_ratio, sortino_ratio
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13);
    `
	_, err := s.db.Exec(ctx, query,
		time.Now().UTC(), report.RunID, report.StartDate, report.EndDate, report.TotalBrackets,
		report.WinningBrackets, report.LosingBrackets, report.WinRate, report.TotalPnL,
		report.ProfitFactor, report.MaxDrawdown, report.SharpeRatio, report.SortinoRatio,
	)
	return err
}

// calculateStandardDeviation はリターンの標準偏差を計算します。
func calculateStandardDeviation(returns []float64, mean float64) float64 {
	if len(returns) == 0 {
		return 0.0
	}
	variance := 0.0
	for _, r := range returns {
		variance += math.Pow(r-mean, 2)
	}
	return math.Sqrt(variance / float64(len(returns)))
}

// calculateDownsideDeviation は下方偏差を計算します。
func calculateDownsideDeviation(returns []float64, target float64) float64 {
	downsideVariance := 0.0
	downsideCount := 0
	for _, r := range returns {
		if r < target {
			downsideVariance += math.Pow(r-target, 2)
			downsideCount++
		}
	}
	if downsideCount == 0 {
		return 0.0
	}
	return math.Sqrt(downsideVariance / float64(downsideCount))
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// calculateSharpeRatio はシャープレシオを計算します。
func calculateSharpeRatio(returns []float64, riskFreeRate float64) float64 {
	if len(returns) == 0 {
		return 0.0
	}
	m := mean(returns)
	stdDev := calculateStandardDeviation(returns, m)
	if stdDev == 0 {
		return 0.0
	}
	return (m - riskFreeRate) / stdDev
}

// calculateSortinoRatio はソルティノレシオを計算します。
func calculateSortinoRatio(returns []float64, riskFreeRate float64) float64 {
	if len(returns) == 0 {
		return 0.0
	}
	downsideDev := calculateDownsideDeviation(returns, 0)
	if downsideDev == 0 {
		return 0.0
	}
	return (mean(returns) - riskFreeRate) / downsideDev
}
