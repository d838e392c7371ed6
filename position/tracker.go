// Package position tracks open positions per pair and turns closes into
// realized trade records. Stop-loss and take-profit levels attached at entry
// are checked against every price observation; a breach yields a forced-exit
// trigger for the trading loop to act on.
package position

import (
	"fmt"
	"sync"
	"time"

	"github.com/rmorgan/tradecore/account"
	"github.com/rmorgan/tradecore/market"
)

// Exit trigger reasons.
const (
	ReasonStopLoss   = "StopLoss"
	ReasonTakeProfit = "TakeProfit"
)

// Position is one open long position.
type Position struct {
	Pair       string
	EntryPrice float64
	Units      float64
	StopLoss   float64
	TakeProfit float64
	OpenedAt   time.Time
}

// Notional returns the position's exposure at its entry price.
func (p Position) Notional() float64 {
	return p.EntryPrice * p.Units
}

// UnrealizedPnL values the position at the given mark price, before fees.
func (p Position) UnrealizedPnL(mark float64) float64 {
	return (mark - p.EntryPrice) * p.Units
}

// Trade is one completed round trip. Fees are charged on both legs at the
// pair's fee rate; RealizedPnL is net of fees.
type Trade struct {
	Pair        string
	EntryPrice  float64
	ExitPrice   float64
	Units       float64
	Fees        float64
	RealizedPnL float64
	OpenedAt    time.Time
	ClosedAt    time.Time
	Reason      string
}

// Trigger is a price-driven forced exit the loop must execute.
type Trigger struct {
	Pair   string
	Price  float64
	Reason string
}

const maxRecentTrades = 256

// Tracker holds open positions for every pair and mirrors their exposure
// and realized results into the account ledger. Safe for concurrent use:
// each pair's loop goroutine writes its own pair, the dashboard reads all.
type Tracker struct {
	mu        sync.RWMutex
	positions map[string]*Position
	trades    []Trade
	ledger    *account.Ledger
}

func NewTracker(ledger *account.Ledger) *Tracker {
	return &Tracker{
		positions: make(map[string]*Position),
		ledger:    ledger,
	}
}

// Open records a new position. A second open on the same pair is an error;
// pyramiding is rejected upstream and must never reach the tracker.
func (t *Tracker) Open(pair string, entry, units, stop, take float64, at time.Time) (Position, error) {
	if units <= 0 {
		return Position{}, fmt.Errorf("position: open %s with non-positive units %v", pair, units)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.positions[pair]; ok {
		return Position{}, fmt.Errorf("position: %s already open", pair)
	}

	p := &Position{
		Pair:       pair,
		EntryPrice: entry,
		Units:      units,
		StopLoss:   stop,
		TakeProfit: take,
		OpenedAt:   at,
	}
	t.positions[pair] = p
	t.ledger.SetExposure(pair, p.Notional())
	return *p, nil
}

// MarkPrice checks an open position against a new price observation and
// returns a forced-exit trigger when a stop or target is breached. The
// position itself is not modified; the close happens once the exit order's
// fills are known.
func (t *Tracker) MarkPrice(pair string, price float64) (Trigger, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	p, ok := t.positions[pair]
	if !ok {
		return Trigger{}, false
	}
	if p.StopLoss > 0 && price <= p.StopLoss {
		return Trigger{Pair: pair, Price: price, Reason: ReasonStopLoss}, true
	}
	if p.TakeProfit > 0 && price >= p.TakeProfit {
		return Trigger{Pair: pair, Price: price, Reason: ReasonTakeProfit}, true
	}
	return Trigger{}, false
}

// Close realizes up to units of the open position at the exit price. A
// partial close shrinks the position and its ledger exposure; closing the
// full size removes it. The resulting trade is returned for journaling.
func (t *Tracker) Close(pair string, units, exit float64, at time.Time, reason string) (Trade, error) {
	if units <= 0 {
		return Trade{}, fmt.Errorf("position: close %s with non-positive units %v", pair, units)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.positions[pair]
	if !ok {
		return Trade{}, fmt.Errorf("position: %s not open", pair)
	}
	if units > p.Units {
		units = p.Units
	}

	feeRate := 0.0
	if mp, ok := market.Lookup(pair); ok {
		feeRate = mp.FeeRate
	}
	fees := (p.EntryPrice + exit) * units * feeRate
	realized := (exit-p.EntryPrice)*units - fees

	tr := Trade{
		Pair:        pair,
		EntryPrice:  p.EntryPrice,
		ExitPrice:   exit,
		Units:       units,
		Fees:        fees,
		RealizedPnL: realized,
		OpenedAt:    p.OpenedAt,
		ClosedAt:    at,
		Reason:      reason,
	}

	p.Units -= units
	if p.Units <= 1e-12 {
		delete(t.positions, pair)
		t.ledger.SetExposure(pair, 0)
	} else {
		t.ledger.SetExposure(pair, p.Notional())
	}

	t.trades = append(t.trades, tr)
	if len(t.trades) > maxRecentTrades {
		t.trades = t.trades[len(t.trades)-maxRecentTrades:]
	}
	t.ledger.ApplyRealized(realized, at)

	return tr, nil
}

// Get returns the open position for pair, if any.
func (t *Tracker) Get(pair string) (Position, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.positions[pair]
	if !ok {
		return Position{}, false
	}
	return *p, true
}

// Positions returns a snapshot of every open position.
func (t *Tracker) Positions() []Position {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Position, 0, len(t.positions))
	for _, p := range t.positions {
		out = append(out, *p)
	}
	return out
}

// RecentTrades returns up to n most recent trades, newest last.
func (t *Tracker) RecentTrades(n int) []Trade {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if n <= 0 || n > len(t.trades) {
		n = len(t.trades)
	}
	out := make([]Trade, n)
	copy(out, t.trades[len(t.trades)-n:])
	return out
}
