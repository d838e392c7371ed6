package risk

import (
	"fmt"
	"time"

	"github.com/rmorgan/tradecore/account"
	"github.com/rmorgan/tradecore/market"
	"github.com/rmorgan/tradecore/signal"
)

// Rejection reason codes. Rejections are reported, never fatal: the loop
// degrades them to a HOLD outcome.
const (
	ReasonPositionOpen     = "POSITION_OPEN"
	ReasonSizeBelowMinimum = "SIZE_BELOW_MINIMUM"
	ReasonExposureLimit    = "EXPOSURE_LIMIT"
	ReasonDrawdownLimit    = "DRAWDOWN_LIMIT"
	ReasonHalted           = "TRADING_HALTED"
	ReasonBadEntry         = "BAD_ENTRY"
	ReasonNotEntry         = "NOT_ENTRY"
)

// Decision is the outcome of evaluating one signal. It is computed fresh
// per signal and never persisted beyond the decision cycle.
type Decision struct {
	Approved   bool
	Units      float64
	StopLoss   float64
	TakeProfit float64
	Reason     string
}

func reject(reason string) Decision {
	return Decision{Reason: reason}
}

// Manager gates BUY signals and sizes the resulting orders. Exits are never
// gated: reducing risk is always allowed.
type Manager struct {
	policy Policy
	ledger *account.Ledger
}

func NewManager(p Policy, ledger *account.Ledger) (*Manager, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Manager{policy: p, ledger: ledger}, nil
}

// Stops returns the stop-loss and take-profit for an entry at the given
// price. atr is only consulted in ATR mode; a zero atr there falls back to
// percent offsets so a cold volatility window cannot produce a stop at the
// entry price.
func (m *Manager) Stops(entry, atr float64) (stop, take float64) {
	if m.policy.StopMode == StopATR && atr > 0 {
		stop = entry - m.policy.ATRMultiple*atr
		take = entry + m.policy.RewardRisk*(entry-stop)
		return stop, take
	}
	stop = entry * (1 - m.policy.StopLossPct)
	take = entry * (1 + m.policy.TakeProfitPct)
	return stop, take
}

// Evaluate turns a signal into a sized, gated decision.
//
//   - HOLD never trades.
//   - SELL (indicator or forced) is approved as-is; the loop sizes it from
//     the open position.
//   - BUY is rejected while a position is open on the pair (no pyramiding),
//     while the kill-switch is tripped, when the rolling drawdown limit is
//     breached (which trips the kill-switch), when the computed size rounds
//     below the venue minimum, or when it would push aggregate exposure past
//     the ceiling.
func (m *Manager) Evaluate(sig signal.Signal, entry float64, positionOpen bool, meta market.Pair, atr float64, now time.Time) Decision {
	switch sig.Action {
	case signal.Sell:
		return Decision{Approved: true}
	case signal.Buy:
	default:
		return reject(ReasonNotEntry)
	}

	if positionOpen {
		return reject(ReasonPositionOpen)
	}
	if halted, _ := m.ledger.Halted(); halted {
		return reject(ReasonHalted)
	}
	if entry <= 0 {
		return reject(ReasonBadEntry)
	}

	equity := m.ledger.Equity()
	if windowPnL := m.ledger.WindowRealized(now); windowPnL <= -m.policy.DrawdownLimit*equity {
		m.ledger.Halt(ReasonDrawdownLimit)
		return reject(ReasonDrawdownLimit)
	}

	stop, take := m.Stops(entry, atr)
	if stop <= 0 || stop >= entry {
		return reject(ReasonBadEntry)
	}

	units := equity * m.policy.RiskFraction / (entry - stop)
	if units > m.policy.MaxPositionUnits {
		units = m.policy.MaxPositionUnits
	}
	units = meta.RoundLot(units)
	if units <= 0 {
		return reject(ReasonSizeBelowMinimum)
	}

	if m.ledger.Exposure()+units*entry > m.policy.MaxAggregateExposure {
		return reject(ReasonExposureLimit)
	}

	return Decision{
		Approved:   true,
		Units:      units,
		StopLoss:   stop,
		TakeProfit: take,
	}
}

// Describe renders a rejection for logs and the dashboard.
func (d Decision) Describe() string {
	if d.Approved {
		return fmt.Sprintf("approved units=%v stop=%v take=%v", d.Units, d.StopLoss, d.TakeProfit)
	}
	return "rejected: " + d.Reason
}
