// Package broker abstracts order placement against the trading venue.
// The concrete network transport lives behind the Gateway interface; the
// executor only sees classified errors and order states.
package broker

import (
	"context"
	"errors"
)

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

type Status string

const (
	StatusPending         Status = "PENDING"
	StatusSubmitting      Status = "SUBMITTING"
	StatusSubmitted       Status = "SUBMITTED"
	StatusPartiallyFilled Status = "PARTIALLY_FILLED"
	StatusFilled          Status = "FILLED"
	StatusRejected        Status = "REJECTED"
	StatusCancelled       Status = "CANCELLED"
	StatusFailed          Status = "FAILED"
)

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	switch s {
	case StatusFilled, StatusRejected, StatusCancelled, StatusFailed:
		return true
	}
	return false
}

// OrderRequest is one order as the venue sees it. ClientOrderID is the
// caller-generated idempotency key: the venue treats a resubmission with the
// same id as a no-op, so the gateway must always pass it through.
type OrderRequest struct {
	ClientOrderID string
	Pair          string
	Side          Side
	Units         float64

	// LimitPrice of 0 means a market order.
	LimitPrice float64
}

// Ack is the venue's response to a successful submission.
type Ack struct {
	ExchangeOrderID string
	Status          Status
}

// OrderState is a point-in-time view of an order at the venue.
type OrderState struct {
	ExchangeOrderID string
	Status          Status
	FilledUnits     float64
	AvgFillPrice    float64
}

// ErrOrderNotFound means the venue has no record of the order. After an
// Unknown submit outcome this is the signal that the request never reached
// the venue and a retry is safe.
var ErrOrderNotFound = errors.New("broker: order not found")

type Gateway interface {
	// Submit places an order. Safe to retry with the same ClientOrderID.
	Submit(ctx context.Context, req OrderRequest) (Ack, error)

	// Cancel cancels the remainder of an order and returns its final state.
	Cancel(ctx context.Context, exchangeOrderID string) (OrderState, error)

	// PollStatus looks an order up by its exchange order id, or by its
	// client order id when no exchange id was ever received.
	PollStatus(ctx context.Context, id string) (OrderState, error)
}
