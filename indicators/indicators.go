// Package indicators provides technical analysis indicators for trading.
package indicators

import (
	"errors"
	"time"

	"github.com/rmorgan/tradecore/pricing"
)

// ErrInsufficientData is returned when fewer candles are available than the
// longest window an indicator needs. Callers skip the cycle, they don't crash.
var ErrInsufficientData = errors.New("indicators: insufficient data")

// Indicator computes a single streaming value from closed candles.
// Implementations are deterministic: replaying the same candle sequence
// always yields the same value.
type Indicator interface {
	// Name returns a stable identifier like "SMA(20)" or "RSI(14)".
	Name() string

	// Warmup returns how many candles are needed before Ready() can be true.
	Warmup() int

	// Reset clears all internal state.
	Reset()

	// Update consumes the next *closed* candle.
	Update(c pricing.Candle)

	// Ready reports whether Value() is meaningful.
	Ready() bool

	// Value returns the current indicator value; callers must check Ready().
	Value() float64
}

// Snapshot is the indicator state derived from the newest candle.
type Snapshot struct {
	Time   time.Time
	FastMA float64
	SlowMA float64
	RSI    float64
}
