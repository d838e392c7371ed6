package executor

import (
	"time"

	"github.com/rmorgan/tradecore/broker"
	"github.com/rmorgan/tradecore/pkg/id"
)

// Transition is one audited state change. The full list on an order is the
// material for journaling and restart reconciliation.
type Transition struct {
	From broker.Status
	To   broker.Status
	At   time.Time
	Note string
}

// Order is owned exclusively by the executor until it reaches a terminal
// status, after which the loop hands its fills to the position tracker.
type Order struct {
	// ClientOrderID is generated once per trading decision and reused
	// verbatim across every retry: it is the idempotency key.
	ClientOrderID   string
	ExchangeOrderID string

	Pair  string
	Side  broker.Side
	Units float64
	// LimitPrice of 0 means a market order.
	LimitPrice float64

	Status       broker.Status
	FilledUnits  float64
	AvgFillPrice float64
	Attempts     int

	CreatedAt   time.Time
	UpdatedAt   time.Time
	Transitions []Transition
}

// NewOrder creates a PENDING order with a fresh client order id.
func NewOrder(pair string, side broker.Side, units float64) *Order {
	now := time.Now().UTC()
	return &Order{
		ClientOrderID: id.New(),
		Pair:          pair,
		Side:          side,
		Units:         units,
		Status:        broker.StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Terminal reports whether the order can no longer change state.
func (o *Order) Terminal() bool {
	return o.Status.Terminal()
}

// Remaining returns the unfilled size.
func (o *Order) Remaining() float64 {
	r := o.Units - o.FilledUnits
	if r < 0 {
		return 0
	}
	return r
}

func (o *Order) request() broker.OrderRequest {
	return broker.OrderRequest{
		ClientOrderID: o.ClientOrderID,
		Pair:          o.Pair,
		Side:          o.Side,
		Units:         o.Units,
		LimitPrice:    o.LimitPrice,
	}
}

// pollID returns the id to reconcile the order under: the exchange order id
// once known, otherwise the client order id.
func (o *Order) pollID() string {
	if o.ExchangeOrderID != "" {
		return o.ExchangeOrderID
	}
	return o.ClientOrderID
}
