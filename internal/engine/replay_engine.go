package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/your-org/regime-bracket-bot/internal/datastore"
	"github.com/your-org/regime-bracket-bot/internal/pnl"
	"github.com/your-org/regime-bracket-bot/internal/position"
)

var (
	// ErrOrderNotFound is returned when cancelling an order that is not resting.
	ErrOrderNotFound = errors.New("order not found")
	// ErrNoPrice is returned for a market order on an instrument without a price.
	ErrNoPrice = errors.New("no price for instrument")
)

type restingOrder struct {
	handle OrderHandle
	req    OrderRequest
}

// ReplayExecutionEngine simulates order execution against historical bars.
// Market orders fill at the last mark; resting stop and limit orders are
// matched against later bars. Sells never take a position below zero.
// Fill events are queued and handed out by Drain.
type ReplayExecutionEngine struct {
	mu            sync.Mutex
	logger        *zap.Logger
	book          *position.Book
	pnlCalculator *pnl.Calculator
	cash          float64
	marks         map[string]float64
	resting       []restingOrder
	queue         []OrderEvent
	roundTrip     map[string]float64
	now           time.Time
}

// NewReplayExecutionEngine creates an engine holding startingCash.
func NewReplayExecutionEngine(startingCash float64, logger *zap.Logger) *ReplayExecutionEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReplayExecutionEngine{
		logger:        logger,
		book:          position.NewBook(),
		pnlCalculator: pnl.NewCalculator(),
		cash:          startingCash,
		marks:         make(map[string]float64),
		roundTrip:     make(map[string]float64),
	}
}

// PlaceOrder simulates placing an order.
func (e *ReplayExecutionEngine) PlaceOrder(ctx context.Context, req OrderRequest) (OrderHandle, error) {
	if req.Instrument == "" {
		return "", fmt.Errorf("order has no instrument")
	}
	if req.Quantity <= 0 || math.IsNaN(req.Quantity) {
		return "", fmt.Errorf("order quantity must be positive, got %v", req.Quantity)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	h := OrderHandle(uuid.NewString())
	switch req.Type {
	case Market:
		price, ok := e.marks[req.Instrument]
		if !ok {
			price = req.Price
		}
		if price <= 0 {
			return "", fmt.Errorf("%w: %s", ErrNoPrice, req.Instrument)
		}
		if !e.fillLocked(h, req, price) {
			return "", fmt.Errorf("sell of %v %s exceeds position", req.Quantity, req.Instrument)
		}
	case Limit, StopMarket:
		if req.Price <= 0 {
			return "", fmt.Errorf("%s order needs a positive price", req.Type)
		}
		e.resting = append(e.resting, restingOrder{handle: h, req: req})
		e.queue = append(e.queue, OrderEvent{Handle: h, Instrument: req.Instrument, Status: StatusSubmitted, Time: e.now})
	default:
		return "", fmt.Errorf("unsupported order type %d", req.Type)
	}
	e.logger.Debug("order placed",
		zap.String("order", string(h)),
		zap.String("instrument", req.Instrument),
		zap.Stringer("type", req.Type),
		zap.Stringer("side", req.Side),
		zap.Float64("quantity", req.Quantity),
		zap.Float64("price", req.Price))
	return h, nil
}

// CancelOrder removes a resting order and queues a Canceled event.
func (e *ReplayExecutionEngine) CancelOrder(ctx context.Context, handle OrderHandle) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, o := range e.resting {
		if o.handle != handle {
			continue
		}
		e.resting = append(e.resting[:i], e.resting[i+1:]...)
		e.queue = append(e.queue, OrderEvent{Handle: handle, Instrument: o.req.Instrument, Status: StatusCanceled, Time: e.now})
		return nil
	}
	return fmt.Errorf("%w: %s", ErrOrderNotFound, handle)
}

// OnBar marks bar.Ticker at its close and matches resting orders against the
// bar's range. Stops are matched before limits.
func (e *ReplayExecutionEngine) OnBar(bar datastore.Bar) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if bar.Time.After(e.now) {
		e.now = bar.Time
	}
	for _, typ := range []OrderType{StopMarket, Limit} {
		kept := e.resting[:0]
		for _, o := range e.resting {
			if o.req.Instrument != bar.Ticker || o.req.Type != typ {
				kept = append(kept, o)
				continue
			}
			price, hit := triggerPrice(o.req, bar)
			if hit && e.fillLocked(o.handle, o.req, price) {
				continue
			}
			kept = append(kept, o)
		}
		e.resting = kept
	}
	e.marks[bar.Ticker] = bar.Close
}

// triggerPrice returns the fill price of a resting order within bar. Gaps
// through the trigger fill at the open.
func triggerPrice(req OrderRequest, bar datastore.Bar) (float64, bool) {
	switch {
	case req.Type == StopMarket && req.Side == Sell && bar.Low <= req.Price:
		return math.Min(req.Price, bar.Open), true
	case req.Type == StopMarket && req.Side == Buy && bar.High >= req.Price:
		return math.Max(req.Price, bar.Open), true
	case req.Type == Limit && req.Side == Sell && bar.High >= req.Price:
		return math.Max(req.Price, bar.Open), true
	case req.Type == Limit && req.Side == Buy && bar.Low <= req.Price:
		return math.Min(req.Price, bar.Open), true
	}
	return 0, false
}

// fillLocked books a fill and queues its event. It refuses sells that would
// take the position below zero.
func (e *ReplayExecutionEngine) fillLocked(h OrderHandle, req OrderRequest, price float64) bool {
	qty := req.Quantity
	held := e.book.Quantity(req.Instrument)
	if req.Side == Sell && qty > held+flatEpsilon {
		return false
	}
	signed := req.Side.Sign() * qty
	realized := e.book.Get(req.Instrument).Update(signed, price)
	e.cash -= signed * price
	if realized != 0 {
		e.pnlCalculator.UpdateRealizedPnL(req.Instrument, realized)
		e.roundTrip[req.Instrument] += realized
	}
	if e.book.Get(req.Instrument).IsFlat() {
		if rt, ok := e.roundTrip[req.Instrument]; ok {
			e.pnlCalculator.RecordRoundTrip(rt)
			delete(e.roundTrip, req.Instrument)
		}
	}
	e.queue = append(e.queue, OrderEvent{
		Handle:         h,
		Instrument:     req.Instrument,
		FillPrice:      price,
		FilledQuantity: qty,
		Status:         StatusFilled,
		Time:           e.now,
	})
	e.logger.Debug("order filled",
		zap.String("order", string(h)),
		zap.String("instrument", req.Instrument),
		zap.Stringer("side", req.Side),
		zap.Float64("price", price),
		zap.Float64("quantity", qty),
		zap.Float64("realized", realized))
	return true
}

// Drain returns and clears the queued order events.
func (e *ReplayExecutionEngine) Drain() []OrderEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := e.queue
	e.queue = nil
	return out
}

// Position implements PositionSource.
func (e *ReplayExecutionEngine) Position(instrument string) float64 {
	return e.book.Quantity(instrument)
}

// Flatten sells any long position in instrument at the mark without going
// through a bracket, as a manual liquidation would.
func (e *ReplayExecutionEngine) Flatten(instrument string) error {
	qty := e.book.Quantity(instrument)
	if qty <= 0 {
		return nil
	}
	_, err := e.PlaceOrder(context.Background(), OrderRequest{Instrument: instrument, Type: Market, Side: Sell, Quantity: qty})
	return err
}

// Equity is cash plus open positions at their marks.
func (e *ReplayExecutionEngine) Equity() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	eq := e.cash
	for _, instr := range e.book.Instruments() {
		size, avg := e.book.Get(instr).Get()
		mark, ok := e.marks[instr]
		if !ok {
			mark = avg
		}
		eq += size * mark
	}
	return eq
}

// UnrealizedPnL is the open P&L at the marks.
func (e *ReplayExecutionEngine) UnrealizedPnL() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	var total float64
	for _, instr := range e.book.Instruments() {
		size, avg := e.book.Get(instr).Get()
		mark, ok := e.marks[instr]
		if !ok {
			mark = avg
		}
		total += e.pnlCalculator.CalculateUnrealizedPnL(size, avg, mark)
	}
	return total
}

// RealizedPnL is the P&L booked on closed quantity.
func (e *ReplayExecutionEngine) RealizedPnL() float64 { return e.pnlCalculator.GetRealizedPnL() }

// PnL returns the realized P&L calculator.
func (e *ReplayExecutionEngine) PnL() *pnl.Calculator { return e.pnlCalculator }

// Resting returns the number of resting orders.
func (e *ReplayExecutionEngine) Resting() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.resting)
}
