package engine

import (
	"context"
	"time"
)

// OrderType is the kind of order submitted to an ExecutionEngine.
type OrderType int

const (
	Market OrderType = iota
	Limit
	StopMarket
)

func (t OrderType) String() string {
	switch t {
	case Market:
		return "market"
	case Limit:
		return "limit"
	case StopMarket:
		return "stop_market"
	default:
		return "unknown"
	}
}

// Side is buy or sell.
type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Sell {
		return "sell"
	}
	return "buy"
}

// Sign returns +1 for Buy and -1 for Sell.
func (s Side) Sign() float64 {
	if s == Sell {
		return -1
	}
	return 1
}

// OrderHandle is the opaque identity of a submitted order.
type OrderHandle string

// OrderRequest describes an order. Price is the reference price for market
// orders, the limit for Limit and the trigger for StopMarket.
type OrderRequest struct {
	Instrument string
	Type       OrderType
	Side       Side
	Quantity   float64
	Price      float64
}

// OrderStatus is the status carried by an order event.
type OrderStatus int

const (
	StatusSubmitted OrderStatus = iota
	StatusPartiallyFilled
	StatusFilled
	StatusCanceled
	StatusRejected
)

func (s OrderStatus) String() string {
	switch s {
	case StatusSubmitted:
		return "submitted"
	case StatusPartiallyFilled:
		return "partially_filled"
	case StatusFilled:
		return "filled"
	case StatusCanceled:
		return "canceled"
	case StatusRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// OrderEvent is delivered asynchronously for every status change of an order.
type OrderEvent struct {
	Handle         OrderHandle
	Instrument     string
	FillPrice      float64
	FilledQuantity float64
	Status         OrderStatus
	Time           time.Time
}

// ExecutionEngine defines the interface for order execution.
type ExecutionEngine interface {
	PlaceOrder(ctx context.Context, req OrderRequest) (OrderHandle, error)
	CancelOrder(ctx context.Context, handle OrderHandle) error
}

// PositionSource reports the signed quantity held per instrument.
type PositionSource interface {
	Position(instrument string) float64
}
