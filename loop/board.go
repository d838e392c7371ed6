package loop

import (
	"sort"
	"sync"
	"time"

	"github.com/rmorgan/tradecore/indicators"
	"github.com/rmorgan/tradecore/signal"
)

// Status is one pair's live view for the dashboard. Written only by the
// pair's own runner goroutine, read by anyone.
type Status struct {
	Pair      string
	State     signal.State
	LastPrice float64
	Snapshot  indicators.Snapshot

	LastAction signal.Action
	LastReason string

	Cycles       uint64
	MissedCycles uint64
	LastCycle    time.Time
	LastError    string
}

// Board collects the per-pair statuses.
type Board struct {
	mu     sync.RWMutex
	status map[string]*Status
}

func NewBoard() *Board {
	return &Board{status: make(map[string]*Status)}
}

// Update applies fn to the pair's status under the lock, creating the entry
// on first use.
func (b *Board) Update(pair string, fn func(*Status)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	st, ok := b.status[pair]
	if !ok {
		st = &Status{Pair: pair, State: signal.NoPosition}
		b.status[pair] = st
	}
	fn(st)
}

func (b *Board) Get(pair string) (Status, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	st, ok := b.status[pair]
	if !ok {
		return Status{}, false
	}
	return *st, true
}

// All returns every pair's status, sorted by pair name.
func (b *Board) All() []Status {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Status, 0, len(b.status))
	for _, st := range b.status {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Pair < out[j].Pair })
	return out
}
