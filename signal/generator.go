package signal

import "github.com/rmorgan/tradecore/indicators"

// Generator emits BUY/SELL/HOLD from a stream of snapshots.
//
// Transition rules:
//
//	NO_POSITION -> LONG  fast MA crosses above slow MA and RSI is below the
//	                     overbought threshold (don't buy into exhaustion)
//	LONG -> NO_POSITION  fast MA crosses below slow MA, or RSI rises above
//	                     the overbought threshold
//
// A cross is a sign change of (fast - slow) between consecutive snapshots.
// A zero difference is neither above nor below: it never counts as a cross,
// and the last non-zero sign persists until the difference leaves zero.
//
// The generator tracks its own belief about the position rather than reading
// the tracker, so it stays testable in isolation. The trading loop reconciles
// belief with actual fills via MarkLong/MarkFlat.
type Generator struct {
	pair       string
	overbought float64

	state    State
	prevSign int
	seq      uint64
}

func NewGenerator(pair string, overbought float64) *Generator {
	return &Generator{
		pair:       pair,
		overbought: overbought,
		state:      NoPosition,
	}
}

func (g *Generator) State() State { return g.state }

// Next consumes the snapshot for a new candle and returns the signal for it.
func (g *Generator) Next(snap indicators.Snapshot) Signal {
	g.seq++
	sig := Signal{
		Pair:     g.pair,
		Action:   Hold,
		Seq:      g.seq,
		Snapshot: snap,
	}

	s := sign(snap.FastMA - snap.SlowMA)
	crossUp := g.prevSign < 0 && s > 0
	crossDown := g.prevSign > 0 && s < 0
	if s != 0 {
		g.prevSign = s
	}

	switch g.state {
	case NoPosition:
		if crossUp && snap.RSI < g.overbought {
			sig.Action = Buy
			sig.Reason = "MACrossUp"
			g.state = Long
		}
	case Long:
		switch {
		case crossDown:
			sig.Action = Sell
			sig.Reason = "MACrossDown"
			g.state = NoPosition
		case snap.RSI > g.overbought:
			sig.Action = Sell
			sig.Reason = "Overbought"
			g.state = NoPosition
		}
	}

	return sig
}

// ForceExit emits a SELL for a stop-loss/take-profit trigger reported by the
// position tracker. It does not touch the cross state; the loop calls
// MarkFlat once the exit actually fills.
func (g *Generator) ForceExit(reason string, snap indicators.Snapshot) Signal {
	g.seq++
	return Signal{
		Pair:     g.pair,
		Action:   Sell,
		Seq:      g.seq,
		Snapshot: snap,
		Forced:   true,
		Reason:   reason,
	}
}

// MarkFlat resets the belief to NO_POSITION. Called when an entry was
// rejected or failed, or after an exit filled, so no phantom position
// lingers in the state machine.
func (g *Generator) MarkFlat() { g.state = NoPosition }

// MarkLong sets the belief to LONG. Called after an entry filled, and during
// restart reconciliation when the venue reports an open position.
func (g *Generator) MarkLong() { g.state = Long }

func sign(x float64) int {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	default:
		return 0
	}
}
