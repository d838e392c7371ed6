// Package account owns the global equity and exposure figures shared by all
// pair loops. All mutation goes through the Ledger so concurrent trade
// closes never lose updates.
package account

import (
	"sync"
	"time"
)

type realized struct {
	at  time.Time
	pnl float64
}

// Ledger is the single-writer state object for account-level figures:
// equity, per-pair open notional exposure, realized PnL over a rolling
// window, and the kill-switch flag. Safe for concurrent use.
type Ledger struct {
	mu sync.Mutex

	equity   float64
	exposure map[string]float64

	window time.Duration
	closes []realized

	halted     bool
	haltReason string
}

// NewLedger starts with the given equity. window bounds the realized-PnL
// history consulted by the drawdown kill-switch.
func NewLedger(equity float64, window time.Duration) *Ledger {
	if window <= 0 {
		window = 24 * time.Hour
	}
	return &Ledger{
		equity:   equity,
		exposure: make(map[string]float64),
		window:   window,
	}
}

func (l *Ledger) Equity() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.equity
}

// Exposure returns the aggregate open notional across all pairs.
func (l *Ledger) Exposure() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.exposureLocked()
}

func (l *Ledger) exposureLocked() float64 {
	var sum float64
	for _, n := range l.exposure {
		sum += n
	}
	return sum
}

// SetExposure records the open notional for a pair; 0 clears it.
func (l *Ledger) SetExposure(pair string, notional float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if notional <= 0 {
		delete(l.exposure, pair)
		return
	}
	l.exposure[pair] = notional
}

// ApplyRealized folds a closed trade's PnL into equity and the rolling
// window.
func (l *Ledger) ApplyRealized(pnl float64, at time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.equity += pnl
	l.closes = append(l.closes, realized{at: at, pnl: pnl})
	l.pruneLocked(at)
}

// WindowRealized returns the summed realized PnL of trades closed within
// the rolling window ending at now.
func (l *Ledger) WindowRealized(now time.Time) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.pruneLocked(now)
	var sum float64
	for _, c := range l.closes {
		sum += c.pnl
	}
	return sum
}

func (l *Ledger) pruneLocked(now time.Time) {
	cutoff := now.Add(-l.window)
	i := 0
	for i < len(l.closes) && !l.closes[i].at.After(cutoff) {
		i++
	}
	if i > 0 {
		l.closes = append(l.closes[:0], l.closes[i:]...)
	}
}

// Halt trips the kill-switch: new entries are blocked until Resume. Exits on
// already-open positions keep working.
func (l *Ledger) Halt(reason string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.halted = true
	l.haltReason = reason
}

// Resume clears the kill-switch. This is a manual operation.
func (l *Ledger) Resume() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.halted = false
	l.haltReason = ""
}

func (l *Ledger) Halted() (bool, string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.halted, l.haltReason
}
