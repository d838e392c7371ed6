package sim

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/rmorgan/tradecore/pricing"
)

type FeedConfig struct {
	// BasePrices seeds the random walk per pair.
	BasePrices map[string]float64
	// Interval is the candle period.
	Interval time.Duration
	// Volatility is the maximum per-candle move as a fraction of price.
	Volatility float64
	// SpreadPct is the bid/ask spread as a fraction of the mid price.
	SpreadPct float64
	// Seed fixes the walk for reproducible paper runs; 0 seeds from the
	// clock.
	Seed int64
}

func DefaultFeedConfig() FeedConfig {
	return FeedConfig{
		BasePrices: map[string]float64{
			"BTC/USDT": 50000,
			"ETH/USDT": 3000,
			"SOL/USDT": 100,
		},
		Interval:   time.Minute,
		Volatility: 0.01,
		SpreadPct:  0.0002,
	}
}

// Feed synthesizes a random-walk candle history. Each Candles call closes
// one new candle, so a paper loop advances the market once per cycle.
// Safe for concurrent use across pair loops.
type Feed struct {
	mu      sync.Mutex
	cfg     FeedConfig
	rng     *rand.Rand
	history map[string][]pricing.Candle
	last    map[string]float64
	nextAt  map[string]time.Time
}

func NewFeed(cfg FeedConfig) *Feed {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	f := &Feed{
		cfg:     cfg,
		rng:     rand.New(rand.NewSource(seed)),
		history: make(map[string][]pricing.Candle),
		last:    make(map[string]float64),
		nextAt:  make(map[string]time.Time),
	}
	for pair, base := range cfg.BasePrices {
		f.last[pair] = base
		f.nextAt[pair] = time.Now().UTC().Truncate(cfg.Interval)
	}
	return f
}

func (f *Feed) Candles(ctx context.Context, pair string, n int) ([]pricing.Candle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.last[pair]; !ok {
		return nil, fmt.Errorf("sim feed: unknown pair %q", pair)
	}

	f.closeCandleLocked(pair)

	h := f.history[pair]
	if len(h) > n {
		h = h[len(h)-n:]
	}
	out := make([]pricing.Candle, len(h))
	copy(out, h)
	return out, nil
}

func (f *Feed) Tick(ctx context.Context, pair string) (pricing.Tick, error) {
	if err := ctx.Err(); err != nil {
		return pricing.Tick{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	mid, ok := f.last[pair]
	if !ok {
		return pricing.Tick{}, pricing.ErrNoTick
	}
	half := mid * f.cfg.SpreadPct / 2
	return pricing.Tick{
		Pair: pair,
		Time: time.Now().UTC(),
		Bid:  mid - half,
		Ask:  mid + half,
	}, nil
}

// Warm pre-generates n candles of history so indicators are ready on the
// first live cycle.
func (f *Feed) Warm(pair string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := 0; i < n; i++ {
		f.closeCandleLocked(pair)
	}
}

func (f *Feed) closeCandleLocked(pair string) {
	open := f.last[pair]
	move := open * f.cfg.Volatility * (f.rng.Float64()*2 - 1)
	closeP := open + move

	high := open
	if closeP > high {
		high = closeP
	}
	high += open * f.cfg.Volatility * f.rng.Float64() / 2

	low := open
	if closeP < low {
		low = closeP
	}
	low -= open * f.cfg.Volatility * f.rng.Float64() / 2

	at := f.nextAt[pair]
	f.history[pair] = append(f.history[pair], pricing.Candle{
		Pair:   pair,
		Time:   at,
		Open:   open,
		High:   high,
		Low:    low,
		Close:  closeP,
		Volume: 1 + f.rng.Float64()*10,
	})
	f.nextAt[pair] = at.Add(f.cfg.Interval)
	f.last[pair] = closeP

	// Bound retained history; loops only ever ask for a warmup's worth.
	if h := f.history[pair]; len(h) > 2000 {
		f.history[pair] = h[len(h)-2000:]
	}
}
