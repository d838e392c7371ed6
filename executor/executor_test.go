package executor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmorgan/tradecore/broker"
)

// mockGateway scripts gateway behavior per call.
type mockGateway struct {
	submitCalls int
	submitFn    func(call int, req broker.OrderRequest) (broker.Ack, error)

	pollCalls int
	pollFn    func(call int, id string) (broker.OrderState, error)

	cancelCalls int
	cancelFn    func(id string) (broker.OrderState, error)
}

func (m *mockGateway) Submit(_ context.Context, req broker.OrderRequest) (broker.Ack, error) {
	m.submitCalls++
	return m.submitFn(m.submitCalls, req)
}

func (m *mockGateway) PollStatus(_ context.Context, id string) (broker.OrderState, error) {
	m.pollCalls++
	if m.pollFn == nil {
		return broker.OrderState{}, broker.ErrOrderNotFound
	}
	return m.pollFn(m.pollCalls, id)
}

func (m *mockGateway) Cancel(_ context.Context, id string) (broker.OrderState, error) {
	m.cancelCalls++
	if m.cancelFn == nil {
		return broker.OrderState{ExchangeOrderID: id, Status: broker.StatusCancelled}, nil
	}
	return m.cancelFn(id)
}

func fastConfig() Config {
	return Config{
		MaxAttempts:  3,
		BackoffBase:  time.Millisecond,
		BackoffCap:   2 * time.Millisecond,
		FillWait:     50 * time.Millisecond,
		PollInterval: time.Millisecond,
	}
}

func testExecutor(gw broker.Gateway, rec Recorder) *Executor {
	return New(gw, broker.NewRateLimiter(10000, 100), fastConfig(), rec)
}

func filled(id string, units, price float64) broker.OrderState {
	return broker.OrderState{
		ExchangeOrderID: id,
		Status:          broker.StatusFilled,
		FilledUnits:     units,
		AvgFillPrice:    price,
	}
}

func TestExecute_HappyPath(t *testing.T) {
	t.Parallel()

	gw := &mockGateway{
		submitFn: func(_ int, req broker.OrderRequest) (broker.Ack, error) {
			return broker.Ack{ExchangeOrderID: "x-1", Status: broker.StatusSubmitted}, nil
		},
		pollFn: func(_ int, id string) (broker.OrderState, error) {
			return filled("x-1", 0.5, 50001), nil
		},
	}

	o := NewOrder("BTC/USDT", broker.SideBuy, 0.5)
	err := testExecutor(gw, nil).Execute(context.Background(), o)
	require.NoError(t, err)

	assert.Equal(t, broker.StatusFilled, o.Status)
	assert.Equal(t, "x-1", o.ExchangeOrderID)
	assert.InDelta(t, 0.5, o.FilledUnits, 1e-9)
	assert.InDelta(t, 50001.0, o.AvgFillPrice, 1e-9)
	assert.Equal(t, 1, o.Attempts)
}

func TestExecute_RetryBoundIsExact(t *testing.T) {
	t.Parallel()

	gw := &mockGateway{
		submitFn: func(_ int, _ broker.OrderRequest) (broker.Ack, error) {
			return broker.Ack{}, broker.Transient("submit", errors.New("timeout"))
		},
	}

	o := NewOrder("BTC/USDT", broker.SideBuy, 0.5)
	err := testExecutor(gw, nil).Execute(context.Background(), o)
	require.NoError(t, err)

	assert.Equal(t, broker.StatusFailed, o.Status)
	assert.Equal(t, 3, gw.submitCalls) // exactly MaxAttempts, never more
	assert.Equal(t, 3, o.Attempts)
}

func TestExecute_SameClientOrderIDAcrossRetries(t *testing.T) {
	t.Parallel()

	var ids []string
	gw := &mockGateway{
		submitFn: func(call int, req broker.OrderRequest) (broker.Ack, error) {
			ids = append(ids, req.ClientOrderID)
			if call < 3 {
				return broker.Ack{}, broker.Transient("submit", errors.New("rate limited"))
			}
			return broker.Ack{ExchangeOrderID: "x-2", Status: broker.StatusSubmitted}, nil
		},
		pollFn: func(_ int, id string) (broker.OrderState, error) {
			return filled("x-2", 0.5, 50001), nil
		},
	}

	o := NewOrder("BTC/USDT", broker.SideBuy, 0.5)
	require.NoError(t, testExecutor(gw, nil).Execute(context.Background(), o))

	require.Len(t, ids, 3)
	assert.Equal(t, ids[0], ids[1])
	assert.Equal(t, ids[1], ids[2])
	assert.Equal(t, o.ClientOrderID, ids[0])
	assert.Equal(t, broker.StatusFilled, o.Status)
}

func TestExecute_RejectedIsTerminalNoRetry(t *testing.T) {
	t.Parallel()

	gw := &mockGateway{
		submitFn: func(_ int, _ broker.OrderRequest) (broker.Ack, error) {
			return broker.Ack{}, broker.Rejected("submit", errors.New("insufficient balance"))
		},
	}

	o := NewOrder("BTC/USDT", broker.SideBuy, 0.5)
	require.NoError(t, testExecutor(gw, nil).Execute(context.Background(), o))

	assert.Equal(t, broker.StatusRejected, o.Status)
	assert.Equal(t, 1, gw.submitCalls)
}

func TestExecute_UnknownPollsBeforeRetry(t *testing.T) {
	t.Parallel()

	gw := &mockGateway{}
	gw.submitFn = func(call int, _ broker.OrderRequest) (broker.Ack, error) {
		if call == 1 {
			return broker.Ack{}, broker.Unknown("submit", errors.New("response lost"))
		}
		return broker.Ack{ExchangeOrderID: "x-3", Status: broker.StatusSubmitted}, nil
	}
	gw.pollFn = func(call int, id string) (broker.OrderState, error) {
		// First poll resolves the ambiguous submit: not found, retry safe.
		if gw.submitCalls == 1 {
			assert.Equal(t, 0, gw.cancelCalls)
			return broker.OrderState{}, broker.ErrOrderNotFound
		}
		return filled("x-3", 0.5, 50001), nil
	}

	o := NewOrder("BTC/USDT", broker.SideBuy, 0.5)
	require.NoError(t, testExecutor(gw, nil).Execute(context.Background(), o))

	// The poll between the two submits is what makes the retry safe.
	assert.Equal(t, 2, gw.submitCalls)
	assert.GreaterOrEqual(t, gw.pollCalls, 2)
	assert.Equal(t, broker.StatusFilled, o.Status)
}

func TestExecute_UnknownResolvedAsReachedDoesNotResubmit(t *testing.T) {
	t.Parallel()

	gw := &mockGateway{
		submitFn: func(_ int, _ broker.OrderRequest) (broker.Ack, error) {
			return broker.Ack{}, broker.Unknown("submit", errors.New("response lost"))
		},
		pollFn: func(_ int, id string) (broker.OrderState, error) {
			return filled("x-4", 0.5, 50001), nil
		},
	}

	o := NewOrder("BTC/USDT", broker.SideBuy, 0.5)
	require.NoError(t, testExecutor(gw, nil).Execute(context.Background(), o))

	assert.Equal(t, 1, gw.submitCalls) // no double submission
	assert.Equal(t, broker.StatusFilled, o.Status)
	assert.Equal(t, "x-4", o.ExchangeOrderID)
}

func TestExecute_PartialFillThenCancelRemainder(t *testing.T) {
	t.Parallel()

	gw := &mockGateway{
		submitFn: func(_ int, _ broker.OrderRequest) (broker.Ack, error) {
			return broker.Ack{ExchangeOrderID: "x-5", Status: broker.StatusSubmitted}, nil
		},
		pollFn: func(_ int, id string) (broker.OrderState, error) {
			// Stuck at a partial fill forever.
			return broker.OrderState{
				ExchangeOrderID: "x-5",
				Status:          broker.StatusPartiallyFilled,
				FilledUnits:     0.2,
				AvgFillPrice:    50001,
			}, nil
		},
		cancelFn: func(id string) (broker.OrderState, error) {
			return broker.OrderState{
				ExchangeOrderID: "x-5",
				Status:          broker.StatusCancelled,
				FilledUnits:     0.2,
				AvgFillPrice:    50001,
			}, nil
		},
	}

	o := NewOrder("BTC/USDT", broker.SideBuy, 0.5)
	require.NoError(t, testExecutor(gw, nil).Execute(context.Background(), o))

	assert.Equal(t, broker.StatusCancelled, o.Status)
	assert.InDelta(t, 0.2, o.FilledUnits, 1e-9)
	assert.InDelta(t, 0.3, o.Remaining(), 1e-9)
	assert.Equal(t, 1, gw.cancelCalls)
}

func TestExecute_TransitionsAreTimestampedAndRecorded(t *testing.T) {
	t.Parallel()

	var recorded []broker.Status
	rec := func(o Order) { recorded = append(recorded, o.Status) }

	gw := &mockGateway{
		submitFn: func(_ int, _ broker.OrderRequest) (broker.Ack, error) {
			return broker.Ack{ExchangeOrderID: "x-6", Status: broker.StatusSubmitted}, nil
		},
		pollFn: func(_ int, id string) (broker.OrderState, error) {
			return filled("x-6", 0.5, 50001), nil
		},
	}

	o := NewOrder("BTC/USDT", broker.SideBuy, 0.5)
	require.NoError(t, testExecutor(gw, rec).Execute(context.Background(), o))

	require.NotEmpty(t, o.Transitions)
	assert.Equal(t, broker.StatusPending, o.Transitions[0].From)
	assert.Equal(t, broker.StatusSubmitting, o.Transitions[0].To)
	for i, tr := range o.Transitions {
		assert.False(t, tr.At.IsZero(), "transition %d has no timestamp", i)
		if i > 0 {
			assert.False(t, tr.At.Before(o.Transitions[i-1].At))
		}
	}
	assert.Equal(t, []broker.Status{
		broker.StatusSubmitting,
		broker.StatusSubmitted,
		broker.StatusFilled,
	}, recorded)
}

func TestExecute_ContextCancelAbortsCycleNotState(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	gw := &mockGateway{
		submitFn: func(_ int, _ broker.OrderRequest) (broker.Ack, error) {
			return broker.Ack{}, broker.Transient("submit", context.Canceled)
		},
	}

	o := NewOrder("BTC/USDT", broker.SideBuy, 0.5)
	err := testExecutor(gw, nil).Execute(ctx, o)
	assert.Error(t, err)
	assert.False(t, o.Terminal()) // the order stays reconcilable
}

func TestReconcile(t *testing.T) {
	t.Parallel()

	t.Run("found at venue", func(t *testing.T) {
		t.Parallel()

		gw := &mockGateway{
			pollFn: func(_ int, id string) (broker.OrderState, error) {
				return filled("x-7", 0.5, 50001), nil
			},
		}
		o := NewOrder("BTC/USDT", broker.SideBuy, 0.5)
		o.Status = broker.StatusSubmitted
		o.ExchangeOrderID = "x-7"

		require.NoError(t, testExecutor(gw, nil).Reconcile(context.Background(), o))
		assert.Equal(t, broker.StatusFilled, o.Status)
	})

	t.Run("never reached venue", func(t *testing.T) {
		t.Parallel()

		gw := &mockGateway{} // polls answer not-found
		o := NewOrder("BTC/USDT", broker.SideBuy, 0.5)
		o.Status = broker.StatusSubmitting

		require.NoError(t, testExecutor(gw, nil).Reconcile(context.Background(), o))
		assert.Equal(t, broker.StatusFailed, o.Status)
	})

	t.Run("terminal order untouched", func(t *testing.T) {
		t.Parallel()

		gw := &mockGateway{}
		o := NewOrder("BTC/USDT", broker.SideBuy, 0.5)
		o.Status = broker.StatusFilled

		require.NoError(t, testExecutor(gw, nil).Reconcile(context.Background(), o))
		assert.Equal(t, 0, gw.pollCalls)
	})
}
