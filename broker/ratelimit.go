package broker

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is a token bucket shared by every pair loop talking to the
// same venue. Callers queue for a token instead of busy-waiting; a waiting
// caller never blocks unrelated goroutines because the reservation is made
// under the lock and the sleep happens outside it.
type RateLimiter struct {
	mu     sync.Mutex
	rate   float64 // tokens per second
	burst  float64
	tokens float64
	last   time.Time
}

// NewRateLimiter allows rate calls per second with the given burst.
func NewRateLimiter(rate float64, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		rate:   rate,
		burst:  float64(burst),
		tokens: float64(burst),
		last:   time.Now(),
	}
}

// Wait blocks until a token is available or ctx is done. Tokens are
// reserved in call order, so a burst of callers drains in FIFO-ish fashion
// rather than stampeding.
func (l *RateLimiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	now := time.Now()
	l.tokens += now.Sub(l.last).Seconds() * l.rate
	if l.tokens > l.burst {
		l.tokens = l.burst
	}
	l.last = now

	// Claim a token immediately; a negative balance is the queue of
	// callers already committed ahead of us.
	l.tokens--
	wait := time.Duration(0)
	if l.tokens < 0 {
		wait = time.Duration(-l.tokens / l.rate * float64(time.Second))
	}
	l.mu.Unlock()

	if wait <= 0 {
		return nil
	}

	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		// Give the claimed token back so cancelled callers don't slow
		// everyone else down.
		l.mu.Lock()
		l.tokens++
		l.mu.Unlock()
		return ctx.Err()
	}
}
