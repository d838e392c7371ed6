package journal

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
)

type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLite{db: db}, nil
}

func (j *SQLite) RecordTrade(t TradeRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO trades
		(pair, units, entry_price, exit_price, fees, realized_pnl, open_time, close_time, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Pair, t.Units, t.EntryPrice, t.ExitPrice,
		t.Fees, t.RealizedPnL, t.OpenTime, t.CloseTime, t.Reason,
	)
	return err
}

func (j *SQLite) RecordEquity(e EquitySnapshot) error {
	_, err := j.db.Exec(`
		INSERT INTO equity (time, equity, exposure, realized)
		VALUES (?, ?, ?, ?)`,
		e.Time, e.Equity, e.Exposure, e.Realized,
	)
	return err
}

// RecordOrder upserts the order's latest state. The executor calls this on
// every transition, so a retried submission overwrites its earlier row
// instead of leaving one row per attempt.
func (j *SQLite) RecordOrder(o OrderRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO orders
		(client_order_id, exchange_order_id, pair, side, units, filled_units, avg_fill_price, status, attempts, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(client_order_id) DO UPDATE SET
			exchange_order_id = excluded.exchange_order_id,
			filled_units = excluded.filled_units,
			avg_fill_price = excluded.avg_fill_price,
			status = excluded.status,
			attempts = excluded.attempts,
			updated_at = excluded.updated_at`,
		o.ClientOrderID, o.ExchangeOrderID, o.Pair, o.Side, o.Units,
		o.FilledUnits, o.AvgFillPrice, o.Status, o.Attempts, o.UpdatedAt,
	)
	return err
}

// OpenOrders returns every order not in a terminal status, for startup
// reconciliation against the venue.
func (j *SQLite) OpenOrders() ([]OrderRecord, error) {
	rows, err := j.db.Query(`
		SELECT client_order_id, exchange_order_id, pair, side, units, filled_units, avg_fill_price, status, attempts, updated_at
		FROM orders
		WHERE status NOT IN ('FILLED', 'REJECTED', 'CANCELLED', 'FAILED')
		ORDER BY updated_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OrderRecord
	for rows.Next() {
		var o OrderRecord
		if err := rows.Scan(
			&o.ClientOrderID,
			&o.ExchangeOrderID,
			&o.Pair,
			&o.Side,
			&o.Units,
			&o.FilledUnits,
			&o.AvgFillPrice,
			&o.Status,
			&o.Attempts,
			&o.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// RecentTrades returns up to n trades, most recently closed first.
func (j *SQLite) RecentTrades(n int) ([]TradeRecord, error) {
	rows, err := j.db.Query(`
		SELECT pair, units, entry_price, exit_price, fees, realized_pnl, open_time, close_time, reason
		FROM trades
		ORDER BY close_time DESC
		LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		var t TradeRecord
		if err := rows.Scan(
			&t.Pair,
			&t.Units,
			&t.EntryPrice,
			&t.ExitPrice,
			&t.Fees,
			&t.RealizedPnL,
			&t.OpenTime,
			&t.CloseTime,
			&t.Reason,
		); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

type Stats struct {
	TotalTrades  int
	Winning      int
	Losing       int
	TotalPnL     float64
	TotalFees    float64
	WinRate      float64
	ProfitFactor float64
}

// TradeStats aggregates trade performance over the whole journal.
func (j *SQLite) TradeStats() (Stats, error) {
	var s Stats
	var grossProfit, grossLoss float64

	row := j.db.QueryRow(`
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN realized_pnl > 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN realized_pnl < 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(realized_pnl), 0),
			COALESCE(SUM(fees), 0),
			COALESCE(SUM(CASE WHEN realized_pnl > 0 THEN realized_pnl ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN realized_pnl < 0 THEN -realized_pnl ELSE 0 END), 0)
		FROM trades`)
	if err := row.Scan(
		&s.TotalTrades, &s.Winning, &s.Losing,
		&s.TotalPnL, &s.TotalFees, &grossProfit, &grossLoss,
	); err != nil {
		return Stats{}, err
	}

	if s.TotalTrades > 0 {
		s.WinRate = float64(s.Winning) / float64(s.TotalTrades)
	}
	if grossLoss > 0 {
		s.ProfitFactor = grossProfit / grossLoss
	}
	return s, nil
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
