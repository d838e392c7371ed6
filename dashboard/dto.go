package dashboard

import (
	"fmt"
	"strconv"
	"time"

	"github.com/rmorgan/tradecore/loop"
)

type pairStatus struct {
	Pair         string    `json:"pair"`
	State        string    `json:"state"`
	LastPrice    float64   `json:"last_price"`
	FastMA       float64   `json:"fast_ma"`
	SlowMA       float64   `json:"slow_ma"`
	RSI          float64   `json:"rsi"`
	LastAction   string    `json:"last_action,omitempty"`
	LastReason   string    `json:"last_reason,omitempty"`
	Cycles       uint64    `json:"cycles"`
	MissedCycles uint64    `json:"missed_cycles"`
	LastCycle    time.Time `json:"last_cycle"`
	LastError    string    `json:"last_error,omitempty"`
}

func toPairStatus(st loop.Status) pairStatus {
	return pairStatus{
		Pair:         st.Pair,
		State:        string(st.State),
		LastPrice:    st.LastPrice,
		FastMA:       st.Snapshot.FastMA,
		SlowMA:       st.Snapshot.SlowMA,
		RSI:          st.Snapshot.RSI,
		LastAction:   string(st.LastAction),
		LastReason:   st.LastReason,
		Cycles:       st.Cycles,
		MissedCycles: st.MissedCycles,
		LastCycle:    st.LastCycle,
		LastError:    st.LastError,
	}
}

type positionView struct {
	Pair       string    `json:"pair"`
	EntryPrice float64   `json:"entry_price"`
	Units      float64   `json:"units"`
	Notional   float64   `json:"notional"`
	StopLoss   float64   `json:"stop_loss"`
	TakeProfit float64   `json:"take_profit"`
	OpenedAt   time.Time `json:"opened_at"`
}

type tradeView struct {
	Pair        string    `json:"pair"`
	EntryPrice  float64   `json:"entry_price"`
	ExitPrice   float64   `json:"exit_price"`
	Units       float64   `json:"units"`
	Fees        float64   `json:"fees"`
	RealizedPnL float64   `json:"realized_pnl"`
	OpenedAt    time.Time `json:"opened_at"`
	ClosedAt    time.Time `json:"closed_at"`
	Reason      string    `json:"reason"`
}

type accountSummary struct {
	Equity         float64 `json:"equity"`
	Exposure       float64 `json:"exposure"`
	WindowRealized float64 `json:"window_realized"`
	Halted         bool    `json:"halted"`
	HaltReason     string  `json:"halt_reason,omitempty"`
}

func parseLimit(raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("bad limit %q", raw)
	}
	return n, nil
}
