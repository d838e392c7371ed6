package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmorgan/tradecore/account"
	"github.com/rmorgan/tradecore/market"
	"github.com/rmorgan/tradecore/signal"
)

func testPolicy() Policy {
	return Policy{
		RiskFraction:         0.01,
		MaxPositionUnits:     10,
		MaxAggregateExposure: 50000,
		DrawdownLimit:        0.15,
		StopMode:             StopPercent,
		StopLossPct:          0.02,
		TakeProfitPct:        0.04,
	}
}

func buySignal() signal.Signal {
	return signal.Signal{Pair: "BTC/USDT", Action: signal.Buy, Seq: 1}
}

func btc(t *testing.T) market.Pair {
	t.Helper()
	meta, ok := market.Lookup("BTC/USDT")
	require.True(t, ok)
	return meta
}

func TestPolicy_Validate(t *testing.T) {
	t.Parallel()

	assert.NoError(t, testPolicy().Validate())

	p := testPolicy()
	p.RiskFraction = 0
	assert.Error(t, p.Validate())

	p = testPolicy()
	p.StopMode = "trailing"
	assert.Error(t, p.Validate())

	p = testPolicy()
	p.StopMode = StopATR
	assert.Error(t, p.Validate()) // missing atr_multiple/reward_risk
	p.ATRMultiple = 2
	p.RewardRisk = 2
	assert.NoError(t, p.Validate())
}

func TestManager_SizingFormula(t *testing.T) {
	t.Parallel()

	ledger := account.NewLedger(10000, time.Hour)
	m, err := NewManager(testPolicy(), ledger)
	require.NoError(t, err)

	entry := 50000.0
	dec := m.Evaluate(buySignal(), entry, false, btc(t), 0, time.Now())
	require.True(t, dec.Approved)

	// stop = 50000 * 0.98 = 49000, risk amount = 100,
	// units = 100 / 1000 = 0.1 (on the 0.0001 lot step already).
	assert.InDelta(t, 49000.0, dec.StopLoss, 1e-9)
	assert.InDelta(t, 52000.0, dec.TakeProfit, 1e-9)
	assert.InDelta(t, 0.1, dec.Units, 1e-9)
}

func TestManager_ClampsToMaxPosition(t *testing.T) {
	t.Parallel()

	p := testPolicy()
	p.MaxPositionUnits = 0.05
	p.MaxAggregateExposure = 1e9
	ledger := account.NewLedger(10000, time.Hour)
	m, err := NewManager(p, ledger)
	require.NoError(t, err)

	dec := m.Evaluate(buySignal(), 50000, false, btc(t), 0, time.Now())
	require.True(t, dec.Approved)
	assert.InDelta(t, 0.05, dec.Units, 1e-9)
}

func TestManager_SizeBelowMinimum(t *testing.T) {
	t.Parallel()

	ledger := account.NewLedger(1, time.Hour) // tiny equity
	m, err := NewManager(testPolicy(), ledger)
	require.NoError(t, err)

	dec := m.Evaluate(buySignal(), 50000, false, btc(t), 0, time.Now())
	assert.False(t, dec.Approved)
	assert.Equal(t, ReasonSizeBelowMinimum, dec.Reason)
}

func TestManager_NoPyramiding(t *testing.T) {
	t.Parallel()

	ledger := account.NewLedger(10000, time.Hour)
	m, err := NewManager(testPolicy(), ledger)
	require.NoError(t, err)

	dec := m.Evaluate(buySignal(), 50000, true, btc(t), 0, time.Now())
	assert.False(t, dec.Approved)
	assert.Equal(t, ReasonPositionOpen, dec.Reason)
}

func TestManager_ExposureCeiling(t *testing.T) {
	t.Parallel()

	p := testPolicy()
	p.MaxAggregateExposure = 6000
	ledger := account.NewLedger(10000, time.Hour)
	ledger.SetExposure("ETH/USDT", 2000)
	m, err := NewManager(p, ledger)
	require.NoError(t, err)

	// Approved size would be 0.1 BTC * 50000 = 5000 notional; 2000 + 5000
	// breaches the 6000 ceiling.
	dec := m.Evaluate(buySignal(), 50000, false, btc(t), 0, time.Now())
	assert.False(t, dec.Approved)
	assert.Equal(t, ReasonExposureLimit, dec.Reason)

	// Exposure after any decision stays within the ceiling.
	assert.LessOrEqual(t, ledger.Exposure(), p.MaxAggregateExposure)
}

func TestManager_DrawdownKillSwitch(t *testing.T) {
	t.Parallel()

	now := time.Now()
	ledger := account.NewLedger(10000, time.Hour)
	ledger.ApplyRealized(-2000, now) // 20% of equity, limit is 15%
	m, err := NewManager(testPolicy(), ledger)
	require.NoError(t, err)

	dec := m.Evaluate(buySignal(), 50000, false, btc(t), 0, now)
	assert.False(t, dec.Approved)
	assert.Equal(t, ReasonDrawdownLimit, dec.Reason)

	// The kill-switch is now tripped and keeps rejecting even after the
	// window rolls off, until manually cleared.
	halted, reason := ledger.Halted()
	assert.True(t, halted)
	assert.Equal(t, ReasonDrawdownLimit, reason)

	dec = m.Evaluate(buySignal(), 50000, false, btc(t), 0, now.Add(2*time.Hour))
	assert.False(t, dec.Approved)
	assert.Equal(t, ReasonHalted, dec.Reason)

	ledger.Resume()
	dec = m.Evaluate(buySignal(), 50000, false, btc(t), 0, now.Add(2*time.Hour))
	assert.True(t, dec.Approved)
}

func TestManager_ATRStops(t *testing.T) {
	t.Parallel()

	p := testPolicy()
	p.StopMode = StopATR
	p.ATRMultiple = 2
	p.RewardRisk = 2
	ledger := account.NewLedger(10000, time.Hour)
	m, err := NewManager(p, ledger)
	require.NoError(t, err)

	dec := m.Evaluate(buySignal(), 50000, false, btc(t), 250, time.Now())
	require.True(t, dec.Approved)
	assert.InDelta(t, 49500.0, dec.StopLoss, 1e-9)   // 50000 - 2*250
	assert.InDelta(t, 51000.0, dec.TakeProfit, 1e-9) // 50000 + 2*500

	// Cold ATR falls back to percent offsets.
	dec = m.Evaluate(buySignal(), 50000, false, btc(t), 0, time.Now())
	require.True(t, dec.Approved)
	assert.InDelta(t, 49000.0, dec.StopLoss, 1e-9)
}

func TestManager_ExitsNeverGated(t *testing.T) {
	t.Parallel()

	ledger := account.NewLedger(10000, time.Hour)
	ledger.Halt("DRAWDOWN_LIMIT")
	m, err := NewManager(testPolicy(), ledger)
	require.NoError(t, err)

	sell := signal.Signal{Pair: "BTC/USDT", Action: signal.Sell, Forced: true, Reason: "StopLoss"}
	dec := m.Evaluate(sell, 50000, true, btc(t), 0, time.Now())
	assert.True(t, dec.Approved)
}
