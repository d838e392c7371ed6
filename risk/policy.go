// Package risk sizes orders and gates signals against exposure and
// drawdown limits.
package risk

import "fmt"

// StopMode selects how stop-loss/take-profit levels are derived.
type StopMode string

const (
	// StopPercent places stops at fixed percentage offsets from entry.
	StopPercent StopMode = "percent"
	// StopATR places the stop a multiple of the average true range below
	// entry; the take-profit is RewardRisk times the stop distance above.
	StopATR StopMode = "atr"
)

type Policy struct {
	// RiskFraction is the fraction of equity put at risk per trade.
	RiskFraction float64
	// MaxPositionUnits caps a single position's size in base units.
	MaxPositionUnits float64
	// MaxAggregateExposure caps the summed open notional across all pairs,
	// in quote currency.
	MaxAggregateExposure float64
	// DrawdownLimit trips the kill-switch when realized losses over the
	// ledger's rolling window exceed this fraction of equity.
	DrawdownLimit float64

	StopMode      StopMode
	StopLossPct   float64
	TakeProfitPct float64
	ATRMultiple   float64
	// RewardRisk is the take-profit distance as a multiple of the stop
	// distance, used in ATR mode.
	RewardRisk float64
}

func (p Policy) Validate() error {
	if p.RiskFraction <= 0 || p.RiskFraction >= 1 {
		return fmt.Errorf("risk: risk fraction must be in (0, 1), got %v", p.RiskFraction)
	}
	if p.MaxPositionUnits <= 0 {
		return fmt.Errorf("risk: max position units must be positive, got %v", p.MaxPositionUnits)
	}
	if p.MaxAggregateExposure <= 0 {
		return fmt.Errorf("risk: max aggregate exposure must be positive, got %v", p.MaxAggregateExposure)
	}
	if p.DrawdownLimit <= 0 || p.DrawdownLimit >= 1 {
		return fmt.Errorf("risk: drawdown limit must be in (0, 1), got %v", p.DrawdownLimit)
	}
	switch p.StopMode {
	case StopPercent:
		if p.StopLossPct <= 0 || p.TakeProfitPct <= 0 {
			return fmt.Errorf("risk: percent stops require positive stop_loss_pct and take_profit_pct")
		}
	case StopATR:
		if p.ATRMultiple <= 0 {
			return fmt.Errorf("risk: atr stops require positive atr_multiple")
		}
		if p.RewardRisk <= 0 {
			return fmt.Errorf("risk: atr stops require positive reward_risk")
		}
	default:
		return fmt.Errorf("risk: stop mode must be %q or %q, got %q", StopPercent, StopATR, p.StopMode)
	}
	return nil
}
