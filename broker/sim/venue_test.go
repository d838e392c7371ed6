package sim

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmorgan/tradecore/broker"
	"github.com/rmorgan/tradecore/pricing"
)

func testTicks(bid, ask float64) *pricing.TickStore {
	ts := pricing.NewTickStore()
	ts.Set(pricing.Tick{Pair: "BTC/USDT", Time: time.Now(), Bid: bid, Ask: ask})
	return ts
}

type storeSource struct{ ts *pricing.TickStore }

func (s storeSource) Tick(_ context.Context, pair string) (pricing.Tick, error) {
	return s.ts.Get(pair)
}

func marketBuy(clientID string, units float64) broker.OrderRequest {
	return broker.OrderRequest{
		ClientOrderID: clientID,
		Pair:          "BTC/USDT",
		Side:          broker.SideBuy,
		Units:         units,
	}
}

func TestVenue_SubmitAndFill(t *testing.T) {
	t.Parallel()

	v := NewVenue(storeSource{testTicks(49999, 50001)}, VenueConfig{FillPolls: 1})
	ctx := context.Background()

	ack, err := v.Submit(ctx, marketBuy("c-1", 0.5))
	require.NoError(t, err)
	require.NotEmpty(t, ack.ExchangeOrderID)
	assert.Equal(t, broker.StatusSubmitted, ack.Status)

	st, err := v.PollStatus(ctx, ack.ExchangeOrderID)
	require.NoError(t, err)
	assert.Equal(t, broker.StatusFilled, st.Status)
	assert.InDelta(t, 0.5, st.FilledUnits, 1e-9)
	assert.InDelta(t, 50001.0, st.AvgFillPrice, 1e-9) // buys fill at ask
}

func TestVenue_DuplicateClientOrderIDIsNoOp(t *testing.T) {
	t.Parallel()

	v := NewVenue(storeSource{testTicks(49999, 50001)}, VenueConfig{FillPolls: 1})
	ctx := context.Background()

	ack1, err := v.Submit(ctx, marketBuy("c-dup", 0.5))
	require.NoError(t, err)
	ack2, err := v.Submit(ctx, marketBuy("c-dup", 0.5))
	require.NoError(t, err)

	assert.Equal(t, ack1.ExchangeOrderID, ack2.ExchangeOrderID)
	assert.Equal(t, 1, v.OpenOrders())
}

func TestVenue_PartialFills(t *testing.T) {
	t.Parallel()

	v := NewVenue(storeSource{testTicks(49999, 50001)}, VenueConfig{FillPolls: 3})
	ctx := context.Background()

	ack, err := v.Submit(ctx, marketBuy("c-part", 0.9))
	require.NoError(t, err)

	st, err := v.PollStatus(ctx, ack.ExchangeOrderID)
	require.NoError(t, err)
	assert.Equal(t, broker.StatusPartiallyFilled, st.Status)
	assert.InDelta(t, 0.3, st.FilledUnits, 1e-9)

	st, err = v.PollStatus(ctx, ack.ExchangeOrderID)
	require.NoError(t, err)
	assert.Equal(t, broker.StatusPartiallyFilled, st.Status)
	assert.InDelta(t, 0.6, st.FilledUnits, 1e-9)

	st, err = v.PollStatus(ctx, ack.ExchangeOrderID)
	require.NoError(t, err)
	assert.Equal(t, broker.StatusFilled, st.Status)
	assert.InDelta(t, 0.9, st.FilledUnits, 1e-9)
}

func TestVenue_CancelKeepsPartialFill(t *testing.T) {
	t.Parallel()

	v := NewVenue(storeSource{testTicks(49999, 50001)}, VenueConfig{FillPolls: 3})
	ctx := context.Background()

	ack, err := v.Submit(ctx, marketBuy("c-cxl", 0.9))
	require.NoError(t, err)

	_, err = v.PollStatus(ctx, ack.ExchangeOrderID)
	require.NoError(t, err)

	st, err := v.Cancel(ctx, ack.ExchangeOrderID)
	require.NoError(t, err)
	assert.Equal(t, broker.StatusCancelled, st.Status)
	assert.InDelta(t, 0.3, st.FilledUnits, 1e-9)
}

func TestVenue_LostAckIsFoundByClientID(t *testing.T) {
	t.Parallel()

	v := NewVenue(storeSource{testTicks(49999, 50001)}, VenueConfig{FillPolls: 1})
	ctx := context.Background()

	// The venue accepts the order but the response is lost.
	v.FailSubmit(broker.Unknown("submit", errors.New("response lost")), true)
	_, err := v.Submit(ctx, marketBuy("c-lost", 0.5))
	require.Error(t, err)
	assert.Equal(t, broker.ClassUnknown, broker.ClassOf(err))

	// Reconciliation by client order id finds it.
	st, err := v.PollStatus(ctx, "c-lost")
	require.NoError(t, err)
	assert.Equal(t, broker.StatusFilled, st.Status)
}

func TestVenue_NeverReachedReportsNotFound(t *testing.T) {
	t.Parallel()

	v := NewVenue(storeSource{testTicks(49999, 50001)}, VenueConfig{FillPolls: 1})
	ctx := context.Background()

	v.FailSubmit(broker.Unknown("submit", errors.New("dial timeout")), false)
	_, err := v.Submit(ctx, marketBuy("c-gone", 0.5))
	require.Error(t, err)

	_, err = v.PollStatus(ctx, "c-gone")
	assert.ErrorIs(t, err, broker.ErrOrderNotFound)
}

func TestVenue_RejectsBadOrders(t *testing.T) {
	t.Parallel()

	v := NewVenue(storeSource{testTicks(49999, 50001)}, VenueConfig{FillPolls: 1})
	ctx := context.Background()

	_, err := v.Submit(ctx, marketBuy("c-bad", 0))
	require.Error(t, err)
	assert.True(t, broker.IsRejected(err))
}

func TestFeed_ProducesOrderedCandles(t *testing.T) {
	t.Parallel()

	cfg := DefaultFeedConfig()
	cfg.Seed = 42
	f := NewFeed(cfg)
	f.Warm("BTC/USDT", 10)

	cs, err := f.Candles(context.Background(), "BTC/USDT", 20)
	require.NoError(t, err)
	require.Len(t, cs, 11) // 10 warm + 1 closed by the call

	for i := 1; i < len(cs); i++ {
		assert.True(t, cs[i].Time.After(cs[i-1].Time))
		assert.GreaterOrEqual(t, cs[i].High, cs[i].Low)
	}

	tick, err := f.Tick(context.Background(), "BTC/USDT")
	require.NoError(t, err)
	assert.Greater(t, tick.Ask, tick.Bid)
}
