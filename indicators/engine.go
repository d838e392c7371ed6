package indicators

import (
	"fmt"
	"time"

	"github.com/rmorgan/tradecore/pricing"
)

// Engine derives an IndicatorSnapshot from an ordered candle series.
// It is side-effect free from the caller's point of view: Compute resets
// internal state and replays the whole series, so the same input always
// yields the same snapshot.
type Engine struct {
	fast *SMA
	slow *SMA
	rsi  *RSI
	atr  *ATR

	lastTime time.Time
}

// NewEngine builds an engine with the given windows. The fast window must be
// strictly shorter than the slow one. atrPeriod of 0 disables ATR.
func NewEngine(fastWindow, slowWindow, rsiPeriod, atrPeriod int) (*Engine, error) {
	if fastWindow <= 0 || slowWindow <= 0 || rsiPeriod <= 0 {
		return nil, fmt.Errorf("indicators: windows must be positive (fast=%d slow=%d rsi=%d)",
			fastWindow, slowWindow, rsiPeriod)
	}
	if fastWindow >= slowWindow {
		return nil, fmt.Errorf("indicators: fast window %d must be shorter than slow window %d",
			fastWindow, slowWindow)
	}

	e := &Engine{
		fast: NewSMA(fastWindow),
		slow: NewSMA(slowWindow),
		rsi:  NewRSI(rsiPeriod),
	}
	if atrPeriod > 0 {
		e.atr = NewATR(atrPeriod)
	}
	return e, nil
}

// Warmup returns the number of candles needed before Compute can succeed.
func (e *Engine) Warmup() int {
	w := e.slow.Warmup()
	if r := e.rsi.Warmup(); r > w {
		w = r
	}
	if e.atr != nil {
		if a := e.atr.Warmup(); a > w {
			w = a
		}
	}
	return w
}

func (e *Engine) Reset() {
	e.fast.Reset()
	e.slow.Reset()
	e.rsi.Reset()
	if e.atr != nil {
		e.atr.Reset()
	}
	e.lastTime = time.Time{}
}

// Compute replays candles from scratch and returns the snapshot for the
// newest one. ErrInsufficientData when the series is shorter than Warmup().
func (e *Engine) Compute(candles []pricing.Candle) (Snapshot, error) {
	e.Reset()
	for _, c := range candles {
		e.update(c)
	}
	return e.snapshot()
}

func (e *Engine) update(c pricing.Candle) {
	e.fast.Update(c)
	e.slow.Update(c)
	e.rsi.Update(c)
	if e.atr != nil {
		e.atr.Update(c)
	}
	e.lastTime = c.Time
}

func (e *Engine) snapshot() (Snapshot, error) {
	if !e.fast.Ready() || !e.slow.Ready() || !e.rsi.Ready() {
		return Snapshot{}, ErrInsufficientData
	}
	return Snapshot{
		Time:   e.lastTime,
		FastMA: e.fast.Value(),
		SlowMA: e.slow.Value(),
		RSI:    e.rsi.Value(),
	}, nil
}

// ATR returns the current average true range, if ATR is enabled and warm.
func (e *Engine) ATR() (float64, bool) {
	if e.atr == nil || !e.atr.Ready() {
		return 0, false
	}
	return e.atr.Value(), true
}
