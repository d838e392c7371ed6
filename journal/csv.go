package journal

import (
	"encoding/csv"
	"os"
	"strconv"
	"time"
)

// CSVJournal appends trades, equity, and order states to three flat files.
// Useful for quick inspection of a paper run without a sqlite client.
type CSVJournal struct {
	trades *csv.Writer
	equity *csv.Writer
	orders *csv.Writer
	files  []*os.File
}

func NewCSV(tradesPath, equityPath, ordersPath string) (*CSVJournal, error) {
	j := &CSVJournal{}

	open := func(path string, header []string) (*csv.Writer, error) {
		f, err := os.Create(path)
		if err != nil {
			return nil, err
		}
		j.files = append(j.files, f)
		w := csv.NewWriter(f)
		if err := w.Write(header); err != nil {
			return nil, err
		}
		w.Flush()
		return w, w.Error()
	}

	var err error
	if j.trades, err = open(tradesPath, []string{
		"pair", "units", "entry_price", "exit_price", "fees", "realized_pnl", "open_time", "close_time", "reason",
	}); err != nil {
		j.Close()
		return nil, err
	}
	if j.equity, err = open(equityPath, []string{
		"time", "equity", "exposure", "realized",
	}); err != nil {
		j.Close()
		return nil, err
	}
	if j.orders, err = open(ordersPath, []string{
		"client_order_id", "exchange_order_id", "pair", "side", "units", "filled_units", "avg_fill_price", "status", "attempts", "updated_at",
	}); err != nil {
		j.Close()
		return nil, err
	}

	return j, nil
}

func (j *CSVJournal) RecordTrade(t TradeRecord) error {
	if err := j.trades.Write([]string{
		t.Pair,
		f(t.Units),
		f(t.EntryPrice),
		f(t.ExitPrice),
		f(t.Fees),
		f(t.RealizedPnL),
		t.OpenTime.Format(time.RFC3339),
		t.CloseTime.Format(time.RFC3339),
		t.Reason,
	}); err != nil {
		return err
	}
	j.trades.Flush()
	return j.trades.Error()
}

func (j *CSVJournal) RecordEquity(e EquitySnapshot) error {
	if err := j.equity.Write([]string{
		e.Time.Format(time.RFC3339),
		f(e.Equity),
		f(e.Exposure),
		f(e.Realized),
	}); err != nil {
		return err
	}
	j.equity.Flush()
	return j.equity.Error()
}

// RecordOrder appends one row per transition; unlike the sqlite journal the
// CSV keeps the full history rather than the latest state.
func (j *CSVJournal) RecordOrder(o OrderRecord) error {
	if err := j.orders.Write([]string{
		o.ClientOrderID,
		o.ExchangeOrderID,
		o.Pair,
		o.Side,
		f(o.Units),
		f(o.FilledUnits),
		f(o.AvgFillPrice),
		o.Status,
		strconv.Itoa(o.Attempts),
		o.UpdatedAt.Format(time.RFC3339),
	}); err != nil {
		return err
	}
	j.orders.Flush()
	return j.orders.Error()
}

func (j *CSVJournal) Close() error {
	var first error
	for _, w := range []*csv.Writer{j.trades, j.equity, j.orders} {
		if w == nil {
			continue
		}
		w.Flush()
		if err := w.Error(); err != nil && first == nil {
			first = err
		}
	}
	for _, f := range j.files {
		if err := f.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}
