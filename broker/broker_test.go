package broker

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorClassification(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection reset")

	assert.Equal(t, ClassTransient, ClassOf(Transient("submit", cause)))
	assert.Equal(t, ClassRejected, ClassOf(Rejected("submit", cause)))
	assert.Equal(t, ClassUnknown, ClassOf(Unknown("submit", cause)))

	// Anything unclassified must resolve to Unknown, never Transient.
	assert.Equal(t, ClassUnknown, ClassOf(cause))

	assert.True(t, IsTransient(Transient("submit", cause)))
	assert.False(t, IsTransient(cause))
	assert.True(t, IsRejected(Rejected("submit", cause)))
}

func TestErrorWrapping(t *testing.T) {
	t.Parallel()

	cause := errors.New("insufficient balance")
	err := Rejected("submit", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "rejected")

	wrapped := fmt.Errorf("order abc: %w", err)
	assert.Equal(t, ClassRejected, ClassOf(wrapped))
}

func TestStatusTerminal(t *testing.T) {
	t.Parallel()

	for _, s := range []Status{StatusFilled, StatusRejected, StatusCancelled, StatusFailed} {
		assert.True(t, s.Terminal(), string(s))
	}
	for _, s := range []Status{StatusPending, StatusSubmitting, StatusSubmitted, StatusPartiallyFilled} {
		assert.False(t, s.Terminal(), string(s))
	}
}

func TestRateLimiter_BurstThenThrottle(t *testing.T) {
	t.Parallel()

	l := NewRateLimiter(100, 2)
	ctx := context.Background()

	start := time.Now()
	// Two burst tokens are free; the third queues for ~10ms.
	require.NoError(t, l.Wait(ctx))
	require.NoError(t, l.Wait(ctx))
	require.NoError(t, l.Wait(ctx))
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 5*time.Millisecond)
	assert.Less(t, elapsed, 200*time.Millisecond)
}

func TestRateLimiter_CancelledWaiterRefundsToken(t *testing.T) {
	t.Parallel()

	l := NewRateLimiter(1, 1) // one token per second
	require.NoError(t, l.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := l.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// The refunded reservation means the next waiter queues behind one
	// token, not two.
	start := time.Now()
	require.NoError(t, l.Wait(context.Background()))
	assert.Less(t, time.Since(start), 1500*time.Millisecond)
}
