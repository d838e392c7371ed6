// Package journal persists the bot's audit trail: completed trades, equity
// snapshots, and every order state transition. The order table doubles as
// the restart reconciliation source.
package journal

import "time"

type TradeRecord struct {
	Pair        string
	Units       float64
	EntryPrice  float64
	ExitPrice   float64
	Fees        float64
	RealizedPnL float64
	OpenTime    time.Time
	CloseTime   time.Time
	Reason      string
}

type EquitySnapshot struct {
	Time     time.Time
	Equity   float64
	Exposure float64
	Realized float64
}

// OrderRecord is the latest known state of one order, keyed by its client
// order id so retries and transitions upsert rather than duplicate.
type OrderRecord struct {
	ClientOrderID   string
	ExchangeOrderID string
	Pair            string
	Side            string
	Units           float64
	FilledUnits     float64
	AvgFillPrice    float64
	Status          string
	Attempts        int
	UpdatedAt       time.Time
}

type Journal interface {
	RecordTrade(TradeRecord) error
	RecordEquity(EquitySnapshot) error
	RecordOrder(OrderRecord) error
	Close() error
}
