// Package signal turns indicator snapshots into trading signals through a
// small per-pair state machine.
package signal

import "github.com/rmorgan/tradecore/indicators"

type Action string

const (
	Buy  Action = "BUY"
	Sell Action = "SELL"
	Hold Action = "HOLD"
)

// State is the generator's belief about the pair's position.
type State string

const (
	NoPosition State = "NO_POSITION"
	Long       State = "LONG"
)

// Signal carries one decision. Seq increases monotonically per pair so
// downstream consumers can detect replays; a signal is consumed exactly once
// by the risk/execution pipeline.
type Signal struct {
	Pair     string
	Action   Action
	Seq      uint64
	Snapshot indicators.Snapshot

	// Forced marks a price-triggered exit injected by the position tracker,
	// bypassing the indicator logic.
	Forced bool
	Reason string
}
