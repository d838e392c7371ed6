package pricing

import (
	"context"
	"errors"
	"sync"
	"time"
)

// TickSource supplies the latest quote for a pair.
type TickSource interface {
	Tick(ctx context.Context, pair string) (Tick, error)
}

// Feed is the market-data collaborator: an append-only candle history plus
// the current quote. Implementations must return candles with strictly
// increasing timestamps; occasional duplicates are tolerated downstream.
type Feed interface {
	TickSource

	// Candles returns up to n of the most recent closed candles, oldest first.
	Candles(ctx context.Context, pair string, n int) ([]Candle, error)
}

type Tick struct {
	Pair string
	Time time.Time
	Bid  float64
	Ask  float64
}

func (t Tick) Mid() float64 {
	if t.Bid == 0 && t.Ask == 0 {
		return 0
	}
	return (t.Bid + t.Ask) / 2
}

func (t Tick) Spread() float64 {
	return t.Ask - t.Bid
}

var ErrNoTick = errors.New("pricing: no tick for pair")

// TickStore holds the latest tick per pair. Safe for concurrent use.
type TickStore struct {
	mu    sync.RWMutex
	ticks map[string]Tick
}

func NewTickStore() *TickStore {
	return &TickStore{ticks: make(map[string]Tick)}
}

func (ts *TickStore) Set(t Tick) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.ticks[t.Pair] = t
}

func (ts *TickStore) Get(pair string) (Tick, error) {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	t, ok := ts.ticks[pair]
	if !ok {
		return Tick{}, ErrNoTick
	}
	return t, nil
}
