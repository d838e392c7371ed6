// Package sim provides an in-process venue and market-data feed for paper
// trading and tests. The venue honors client order ids the way a real
// exchange does: resubmitting the same id never creates a second order.
package sim

import (
	"context"
	"errors"
	"sync"

	"github.com/rmorgan/tradecore/broker"
	"github.com/rmorgan/tradecore/pkg/id"
	"github.com/rmorgan/tradecore/pricing"
)

type VenueConfig struct {
	// FillPolls is how many status polls an accepted order needs to fill
	// completely. Intermediate polls report proportional partial fills.
	// Zero behaves as 1 (full fill on first poll).
	FillPolls int
}

type venueOrder struct {
	req        broker.OrderRequest
	exchangeID string
	status     broker.Status
	filled     float64
	avgPrice   float64
	polls      int
}

type submitFault struct {
	err error
	// reached marks faults where the order was accepted even though the
	// response was lost, for exercising Unknown-outcome reconciliation.
	reached bool
}

// Venue implements broker.Gateway against an in-memory order book of one.
// Fills happen at the current tick of the supplied source: asks for buys,
// bids for sells.
type Venue struct {
	mu       sync.Mutex
	ticks    pricing.TickSource
	cfg      VenueConfig
	orders   map[string]*venueOrder // by exchange order id
	byClient map[string]string

	submitFaults []submitFault
}

func NewVenue(ticks pricing.TickSource, cfg VenueConfig) *Venue {
	if cfg.FillPolls < 1 {
		cfg.FillPolls = 1
	}
	return &Venue{
		ticks:    ticks,
		cfg:      cfg,
		orders:   make(map[string]*venueOrder),
		byClient: make(map[string]string),
	}
}

// FailSubmit queues a fault for the next Submit call. When reached is true
// the order is accepted despite the error response, simulating a lost ack.
func (v *Venue) FailSubmit(err error, reached bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.submitFaults = append(v.submitFaults, submitFault{err: err, reached: reached})
}

func (v *Venue) Submit(ctx context.Context, req broker.OrderRequest) (broker.Ack, error) {
	if err := ctx.Err(); err != nil {
		return broker.Ack{}, broker.Transient("submit", err)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	// Duplicate client order id: idempotent no-op.
	if exID, ok := v.byClient[req.ClientOrderID]; ok {
		o := v.orders[exID]
		return broker.Ack{ExchangeOrderID: o.exchangeID, Status: o.status}, nil
	}

	var fault *submitFault
	if len(v.submitFaults) > 0 {
		fault = &v.submitFaults[0]
		v.submitFaults = v.submitFaults[1:]
	}
	if fault != nil && !fault.reached {
		return broker.Ack{}, fault.err
	}

	if req.Units <= 0 {
		return broker.Ack{}, broker.Rejected("submit", errors.New("units must be positive"))
	}
	if req.ClientOrderID == "" {
		return broker.Ack{}, broker.Rejected("submit", errors.New("missing client order id"))
	}

	o := &venueOrder{
		req:        req,
		exchangeID: id.New(),
		status:     broker.StatusSubmitted,
	}
	v.orders[o.exchangeID] = o
	v.byClient[req.ClientOrderID] = o.exchangeID

	if fault != nil {
		// Accepted, but the caller never hears about it.
		return broker.Ack{}, fault.err
	}
	return broker.Ack{ExchangeOrderID: o.exchangeID, Status: o.status}, nil
}

func (v *Venue) Cancel(ctx context.Context, exchangeOrderID string) (broker.OrderState, error) {
	if err := ctx.Err(); err != nil {
		return broker.OrderState{}, broker.Transient("cancel", err)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	o, ok := v.lookupLocked(exchangeOrderID)
	if !ok {
		return broker.OrderState{}, broker.ErrOrderNotFound
	}
	if !o.status.Terminal() {
		o.status = broker.StatusCancelled
	}
	return v.stateLocked(o), nil
}

func (v *Venue) PollStatus(ctx context.Context, orderID string) (broker.OrderState, error) {
	if err := ctx.Err(); err != nil {
		return broker.OrderState{}, broker.Transient("poll", err)
	}

	v.mu.Lock()
	o, ok := v.lookupLocked(orderID)
	if !ok {
		v.mu.Unlock()
		return broker.OrderState{}, broker.ErrOrderNotFound
	}
	if o.status.Terminal() {
		st := v.stateLocked(o)
		v.mu.Unlock()
		return st, nil
	}
	pair := o.req.Pair
	v.mu.Unlock()

	// Price lookup outside the lock; the tick source may be shared.
	tick, err := v.ticks.Tick(ctx, pair)
	if err != nil {
		return broker.OrderState{}, broker.Transient("poll", err)
	}
	price := tick.Ask
	if o.req.Side == broker.SideSell {
		price = tick.Bid
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if o.status.Terminal() {
		return v.stateLocked(o), nil
	}

	o.polls++
	fraction := float64(o.polls) / float64(v.cfg.FillPolls)
	if fraction > 1 {
		fraction = 1
	}
	target := o.req.Units * fraction
	if target > o.filled {
		// Weighted average over the fills so far.
		o.avgPrice = (o.avgPrice*o.filled + price*(target-o.filled)) / target
		o.filled = target
	}
	if o.filled >= o.req.Units {
		o.status = broker.StatusFilled
	} else if o.filled > 0 {
		o.status = broker.StatusPartiallyFilled
	}

	return v.stateLocked(o), nil
}

// OpenOrders reports how many non-terminal orders the venue holds.
func (v *Venue) OpenOrders() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	n := 0
	for _, o := range v.orders {
		if !o.status.Terminal() {
			n++
		}
	}
	return n
}

func (v *Venue) lookupLocked(orderID string) (*venueOrder, bool) {
	if o, ok := v.orders[orderID]; ok {
		return o, true
	}
	if exID, ok := v.byClient[orderID]; ok {
		return v.orders[exID], true
	}
	return nil, false
}

func (v *Venue) stateLocked(o *venueOrder) broker.OrderState {
	return broker.OrderState{
		ExchangeOrderID: o.exchangeID,
		Status:          o.status,
		FilledUnits:     o.filled,
		AvgFillPrice:    o.avgPrice,
	}
}
