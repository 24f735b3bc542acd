package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/your-org/regime-bracket-bot/internal/alert"
	"github.com/your-org/regime-bracket-bot/internal/dbwriter"
	"github.com/your-org/regime-bracket-bot/internal/metrics"
)

// ErrBracketActive is returned by Open while a bracket is pending or open.
var ErrBracketActive = errors.New("bracket already active")

const flatEpsilon = 1e-9

// BracketState is the lifecycle state of an instrument's bracket.
type BracketState int

const (
	Flat BracketState = iota
	PendingEntry
	Open
)

func (s BracketState) String() string {
	switch s {
	case Flat:
		return "flat"
	case PendingEntry:
		return "pending_entry"
	case Open:
		return "open"
	default:
		return "unknown"
	}
}

// Fill is the role an order event plays in the current bracket.
type Fill int

const (
	Unrelated Fill = iota
	EntryFilled
	StopFilled
	TakeProfitFilled
)

func (f Fill) String() string {
	switch f {
	case EntryFilled:
		return "entry_filled"
	case StopFilled:
		return "stop_filled"
	case TakeProfitFilled:
		return "take_profit_filled"
	default:
		return "unrelated"
	}
}

// Exit reasons recorded on closed brackets.
const (
	ExitTakeProfit = "take_profit"
	ExitStop       = "stop"
	ExitExternal   = "external"
)

// Bracket is an entry with its dependent stop and take-profit legs.
type Bracket struct {
	State          BracketState
	Entry          OrderHandle
	Stop           OrderHandle
	TakeProfit     OrderHandle
	TargetPrice    float64
	StopPrice      float64
	EntryFillPrice float64
	RiskPerUnit    float64
	Quantity       float64
	OpenedAt       time.Time
}

// EntryRequest is an approved trade to open.
type EntryRequest struct {
	Price       float64
	Quantity    float64
	TargetPrice float64
	RiskPerUnit float64
	Time        time.Time
}

// Deps are the collaborators of a Lifecycle. Repository, Notifier, Metrics
// and Logger are optional.
type Deps struct {
	Exec       ExecutionEngine
	Positions  PositionSource
	Repository dbwriter.Repository
	Notifier   alert.Notifier
	Metrics    *metrics.Metrics
	Logger     *zap.Logger
}

// Lifecycle drives the bracket of one instrument:
// Flat -> PendingEntry -> Open -> Flat.
type Lifecycle struct {
	instrument string
	deps       Deps
	logger     *zap.Logger
	bracket    Bracket
}

// NewLifecycle returns a flat Lifecycle for instrument.
func NewLifecycle(instrument string, deps Deps) *Lifecycle {
	if deps.Repository == nil {
		deps.Repository = dbwriter.NewDummyWriter(deps.Logger)
	}
	if deps.Notifier == nil {
		deps.Notifier = alert.NewNoOpNotifier()
	}
	l := deps.Logger
	if l == nil {
		l = zap.NewNop()
	}
	return &Lifecycle{
		instrument: instrument,
		deps:       deps,
		logger:     l.With(zap.String("instrument", instrument)),
	}
}

// Instrument returns the instrument this lifecycle manages.
func (l *Lifecycle) Instrument() string { return l.instrument }

// State returns the current bracket state.
func (l *Lifecycle) State() BracketState { return l.bracket.State }

// Bracket returns a copy of the current bracket.
func (l *Lifecycle) Bracket() Bracket { return l.bracket }

// Open submits a market entry for req. It is refused unless the lifecycle is Flat.
func (l *Lifecycle) Open(ctx context.Context, req EntryRequest) error {
	if l.bracket.State != Flat {
		return ErrBracketActive
	}
	if req.Quantity <= 0 {
		return fmt.Errorf("entry quantity must be positive, got %v", req.Quantity)
	}
	h, err := l.deps.Exec.PlaceOrder(ctx, OrderRequest{
		Instrument: l.instrument,
		Type:       Market,
		Side:       Buy,
		Quantity:   req.Quantity,
		Price:      req.Price,
	})
	if err != nil {
		return fmt.Errorf("place entry for %s: %w", l.instrument, err)
	}
	l.bracket = Bracket{
		State:       PendingEntry,
		Entry:       h,
		TargetPrice: req.TargetPrice,
		RiskPerUnit: req.RiskPerUnit,
		Quantity:    req.Quantity,
		OpenedAt:    req.Time,
	}
	l.record(req.Time, "entry_submitted", h, req.Price, req.Quantity)
	l.logger.Info("entry submitted",
		zap.String("order", string(h)),
		zap.Float64("price", req.Price),
		zap.Float64("quantity", req.Quantity),
		zap.Float64("target", req.TargetPrice))
	return nil
}

// Classify maps an order handle to its role in the current bracket.
func (l *Lifecycle) Classify(h OrderHandle) Fill {
	if h == "" {
		return Unrelated
	}
	switch h {
	case l.bracket.Entry:
		return EntryFilled
	case l.bracket.Stop:
		return StopFilled
	case l.bracket.TakeProfit:
		return TakeProfitFilled
	default:
		return Unrelated
	}
}

// Owns reports whether h belongs to the current bracket.
func (l *Lifecycle) Owns(h OrderHandle) bool {
	return l.Classify(h) != Unrelated
}

// OnOrderEvent applies ev to the bracket and returns the role it played.
// Duplicate, stale and non-fill events are ignored and reported as Unrelated.
func (l *Lifecycle) OnOrderEvent(ctx context.Context, ev OrderEvent) (Fill, error) {
	role := l.Classify(ev.Handle)
	if role == Unrelated {
		return Unrelated, nil
	}

	switch ev.Status {
	case StatusFilled:
	case StatusCanceled, StatusRejected:
		l.onDropped(role, ev)
		return Unrelated, nil
	default:
		return Unrelated, nil
	}

	switch role {
	case EntryFilled:
		if l.bracket.State != PendingEntry {
			return Unrelated, nil
		}
		return EntryFilled, l.onEntryFilled(ctx, ev)
	case StopFilled, TakeProfitFilled:
		if l.bracket.State != Open {
			return Unrelated, nil
		}
		l.onLegFilled(ctx, role, ev)
		return role, nil
	}
	return Unrelated, nil
}

func (l *Lifecycle) onEntryFilled(ctx context.Context, ev OrderEvent) error {
	qty := ev.FilledQuantity
	if qty <= 0 {
		qty = l.bracket.Quantity
	}
	b := &l.bracket
	b.State = Open
	b.EntryFillPrice = ev.FillPrice
	b.Quantity = qty
	b.StopPrice = ev.FillPrice - b.RiskPerUnit
	l.record(ev.Time, EntryFilled.String(), ev.Handle, ev.FillPrice, qty)

	var errs []error
	stop, err := l.deps.Exec.PlaceOrder(ctx, OrderRequest{
		Instrument: l.instrument,
		Type:       StopMarket,
		Side:       Sell,
		Quantity:   qty,
		Price:      b.StopPrice,
	})
	if err != nil {
		errs = append(errs, fmt.Errorf("place stop: %w", err))
	} else {
		b.Stop = stop
		l.record(ev.Time, "stop_submitted", stop, b.StopPrice, qty)
	}

	tp, err := l.deps.Exec.PlaceOrder(ctx, OrderRequest{
		Instrument: l.instrument,
		Type:       Limit,
		Side:       Sell,
		Quantity:   qty,
		Price:      b.TargetPrice,
	})
	if err != nil {
		errs = append(errs, fmt.Errorf("place take-profit: %w", err))
	} else {
		b.TakeProfit = tp
		l.record(ev.Time, "take_profit_submitted", tp, b.TargetPrice, qty)
	}

	l.logger.Info("bracket open",
		zap.Float64("fill", b.EntryFillPrice),
		zap.Float64("stop", b.StopPrice),
		zap.Float64("target", b.TargetPrice),
		zap.Float64("quantity", qty))
	l.notify(fmt.Sprintf("%s bracket open: %.4g @ %.4f stop %.4f target %.4f",
		l.instrument, qty, b.EntryFillPrice, b.StopPrice, b.TargetPrice))

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("bracket legs for %s: %w", l.instrument, err)
	}
	return nil
}

func (l *Lifecycle) onLegFilled(ctx context.Context, role Fill, ev OrderEvent) {
	l.record(ev.Time, role.String(), ev.Handle, ev.FillPrice, ev.FilledQuantity)
	if !l.positionFlat() {
		l.logger.Info("leg filled, position still open", zap.String("leg", role.String()))
		return
	}
	if role == StopFilled {
		l.bracket.Stop = ""
		l.close(ctx, ExitStop, ev.FillPrice, ev.Time)
		return
	}
	l.bracket.TakeProfit = ""
	l.close(ctx, ExitTakeProfit, ev.FillPrice, ev.Time)
}

func (l *Lifecycle) onDropped(role Fill, ev OrderEvent) {
	l.record(ev.Time, "order_"+ev.Status.String(), ev.Handle, 0, 0)
	switch role {
	case EntryFilled:
		if l.bracket.State == PendingEntry {
			l.logger.Warn("entry not filled, back to flat", zap.String("status", ev.Status.String()))
			l.bracket = Bracket{}
		}
	case StopFilled:
		l.logger.Warn("stop leg dropped by venue", zap.String("status", ev.Status.String()))
		l.bracket.Stop = ""
	case TakeProfitFilled:
		l.logger.Warn("take-profit leg dropped by venue", zap.String("status", ev.Status.String()))
		l.bracket.TakeProfit = ""
	}
}

// Reconcile closes an open bracket whose position was flattened outside the
// bracket legs, cancelling both legs. mark is used as the exit price.
func (l *Lifecycle) Reconcile(ctx context.Context, mark float64, now time.Time) bool {
	if l.bracket.State != Open || !l.positionFlat() {
		return false
	}
	l.logger.Warn("position flattened externally, cancelling bracket legs")
	l.close(ctx, ExitExternal, mark, now)
	return true
}

// close cancels whatever legs remain, books the round trip and returns to Flat.
func (l *Lifecycle) close(ctx context.Context, reason string, exit float64, at time.Time) {
	b := l.bracket
	for _, h := range []OrderHandle{b.Stop, b.TakeProfit} {
		if h == "" {
			continue
		}
		if err := l.deps.Exec.CancelOrder(ctx, h); err != nil {
			l.logger.Error("cancel leg failed", zap.String("order", string(h)), zap.Error(err))
			continue
		}
		l.record(at, "leg_cancelled", h, 0, 0)
	}
	// Clearing before any cancel acknowledgement arrives makes it Unrelated.
	l.bracket = Bracket{}

	pnl := (exit - b.EntryFillPrice) * b.Quantity
	l.record(at, "closed_"+reason, "", exit, b.Quantity)
	closed := dbwriter.ClosedBracket{
		Instrument:  l.instrument,
		OpenedAt:    b.OpenedAt,
		ClosedAt:    at,
		EntryPrice:  decimal.NewFromFloat(b.EntryFillPrice),
		ExitPrice:   decimal.NewFromFloat(exit),
		TargetPrice: decimal.NewFromFloat(b.TargetPrice),
		StopPrice:   decimal.NewFromFloat(b.StopPrice),
		Quantity:    decimal.NewFromFloat(b.Quantity),
		ExitReason:  reason,
		PnL:         decimal.NewFromFloat(pnl),
	}
	if err := l.deps.Repository.SaveClosedBracket(ctx, closed); err != nil {
		l.logger.Error("save closed bracket", zap.Error(err))
	}
	l.logger.Info("bracket closed", zap.String("reason", reason), zap.Float64("exit", exit), zap.Float64("pnl", pnl))
	l.notify(fmt.Sprintf("%s bracket closed (%s) @ %.4f pnl %.2f", l.instrument, reason, exit, pnl))
}

func (l *Lifecycle) positionFlat() bool {
	if l.deps.Positions == nil {
		return true
	}
	return math.Abs(l.deps.Positions.Position(l.instrument)) < flatEpsilon
}

func (l *Lifecycle) record(at time.Time, event string, h OrderHandle, price, qty float64) {
	l.deps.Metrics.BracketEvent(event)
	l.deps.Repository.SaveBracketEvent(dbwriter.BracketEvent{
		Time:       at,
		Instrument: l.instrument,
		Event:      event,
		OrderID:    string(h),
		Price:      decimal.NewFromFloat(price),
		Quantity:   decimal.NewFromFloat(qty),
		State:      l.bracket.State.String(),
	})
}

func (l *Lifecycle) notify(msg string) {
	if err := l.deps.Notifier.Send(msg); err != nil {
		l.logger.Warn("notify failed", zap.Error(err))
	}
}
