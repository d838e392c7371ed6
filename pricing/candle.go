package pricing

import "time"

// Candle is one closed OHLCV bar. Candles are immutable once received.
type Candle struct {
	Pair string
	Time time.Time

	Open  float64
	High  float64
	Low   float64
	Close float64

	Volume float64
}
