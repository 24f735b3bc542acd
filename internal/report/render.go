package report

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"go.uber.org/zap"

	"github.com/your-org/regime-bracket-bot/internal/csvwriter"
	"github.com/your-org/regime-bracket-bot/internal/dbwriter"
	"github.com/your-org/regime-bracket-bot/internal/learning"
)

// TopTransitions returns the n most probable non-self transitions of m.
// n <= 0 returns all of them.
func TopTransitions(m *learning.Matrix, n int) []learning.Row {
	if m == nil {
		return nil
	}
	var rows []learning.Row
	for _, r := range m.Rows() {
		if r.From != r.To {
			rows = append(rows, r)
		}
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Probability > rows[j].Probability })
	if n > 0 && len(rows) > n {
		rows = rows[:n]
	}
	return rows
}

func newTable(w io.Writer, title string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(title)
	t.SetStyle(table.StyleRounded)
	return t
}

// RenderSummary writes r as a two-column table.
func RenderSummary(w io.Writer, r Report) {
	t := newTable(w, "BRACKET SUMMARY")
	t.AppendRows([]table.Row{
		{"Run", r.RunID},
		{"Period", fmt.Sprintf("%s - %s", r.StartDate.Format("2006-01-02"), r.EndDate.Format("2006-01-02"))},
		{"Instruments", r.Instruments},
		{"Brackets", r.TotalBrackets},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"Win rate", fmt.Sprintf("%.2f%% (%d/%d)", r.WinRate, r.WinningBrackets, r.WinningBrackets+r.LosingBrackets)},
		{"Exits tp/stop/ext", fmt.Sprintf("%d/%d/%d", r.TakeProfitExits, r.StopExits, r.ExternalExits)},
		{"Total P&L", r.TotalPnL.StringFixed(2)},
		{"Avg profit/loss", fmt.Sprintf("%s / %s", r.AverageProfit.StringFixed(2), r.AverageLoss.StringFixed(2))},
		{"Profit factor", fmt.Sprintf("%.2f", r.ProfitFactor)},
		{"Max drawdown", r.MaxDrawdown.StringFixed(2)},
		{"Sharpe / Sortino", fmt.Sprintf("%.2f / %.2f", r.SharpeRatio, r.SortinoRatio)},
		{"Max streak w/l", fmt.Sprintf("%d/%d", r.MaxConsecutiveWins, r.MaxConsecutiveLosses)},
	})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 18, Align: text.AlignLeft},
		{Number: 2, WidthMin: 25, Align: text.AlignRight},
	})
	t.Render()
}

// RenderTransitions writes rows with their probabilities.
func RenderTransitions(w io.Writer, rows []learning.Row) {
	t := newTable(w, "TOP TRANSITIONS")
	t.AppendHeader(table.Row{"#", "From", "To", "Probability"})
	for i, r := range rows {
		t.AppendRow(table.Row{i + 1, r.From, r.To, learning.FormatProbability(r.Probability)})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, Align: text.AlignRight},
	})
	t.Render()
}

// RenderBrackets writes one line per closed bracket.
func RenderBrackets(w io.Writer, brackets []dbwriter.ClosedBracket) {
	t := newTable(w, "CLOSED BRACKETS")
	t.AppendHeader(table.Row{"Instrument", "Opened", "Closed", "Entry", "Exit", "Qty", "Reason", "P&L"})
	total := 0.0
	for _, b := range brackets {
		t.AppendRow(table.Row{
			b.Instrument,
			b.OpenedAt.Format("2006-01-02 15:04"),
			b.ClosedAt.Format("2006-01-02 15:04"),
			b.EntryPrice.StringFixed(2),
			b.ExitPrice.StringFixed(2),
			b.Quantity.String(),
			b.ExitReason,
			b.PnL.StringFixed(2),
		})
		total += b.PnL.InexactFloat64()
	}
	t.AppendFooter(table.Row{"", "", "", "", "", "", "Total", fmt.Sprintf("%.2f", total)})
	t.Render()
}

// BracketColumns is the header of an exported closed bracket file.
var BracketColumns = []string{"run_id", "instrument", "opened_at", "closed_at", "entry_price", "exit_price", "target_price", "stop_price", "quantity", "exit_reason", "pnl"}

// WriteBracketsCSV exports brackets to path.
func WriteBracketsCSV(path string, brackets []dbwriter.ClosedBracket, logger *zap.Logger) error {
	w, err := csvwriter.NewWriter(path, BracketColumns, logger)
	if err != nil {
		return err
	}
	for _, b := range brackets {
		err := w.Write([]string{
			b.RunID,
			b.Instrument,
			b.OpenedAt.UTC().Format(time.RFC3339),
			b.ClosedAt.UTC().Format(time.RFC3339),
			b.EntryPrice.String(),
			b.ExitPrice.String(),
			b.TargetPrice.String(),
			b.StopPrice.String(),
			b.Quantity.String(),
			b.ExitReason,
			b.PnL.String(),
		})
		if err != nil {
			w.Abort()
			return err
		}
	}
	return w.Close()
}
