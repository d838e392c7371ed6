package loop

import (
	"context"
	"time"

	"github.com/rmorgan/tradecore/broker"
	"github.com/rmorgan/tradecore/executor"
	"github.com/rmorgan/tradecore/journal"
)

// OrderStore is the journal slice reconciliation needs.
type OrderStore interface {
	OpenOrders() ([]journal.OrderRecord, error)
}

// RecoveredFill is a fill discovered during restart reconciliation that the
// caller must fold back into position state.
type RecoveredFill struct {
	Pair         string
	Side         broker.Side
	Units        float64
	AvgFillPrice float64
	At           time.Time
}

// Reconcile resolves every order the journal recorded as non-terminal
// against the venue. Orders the venue never saw are marked FAILED; orders
// that turn out filled come back as recovered fills so positions can be
// rebuilt before trading resumes. Transitions flow through the executor's
// recorder, so the journal ends up consistent with the venue.
func Reconcile(ctx context.Context, exec *executor.Executor, store OrderStore) ([]RecoveredFill, error) {
	open, err := store.OpenOrders()
	if err != nil {
		return nil, err
	}

	var fills []RecoveredFill
	for _, rec := range open {
		o := &executor.Order{
			ClientOrderID:   rec.ClientOrderID,
			ExchangeOrderID: rec.ExchangeOrderID,
			Pair:            rec.Pair,
			Side:            broker.Side(rec.Side),
			Units:           rec.Units,
			Status:          broker.Status(rec.Status),
			FilledUnits:     rec.FilledUnits,
			AvgFillPrice:    rec.AvgFillPrice,
			Attempts:        rec.Attempts,
			UpdatedAt:       rec.UpdatedAt,
		}

		if err := exec.Reconcile(ctx, o); err != nil {
			return fills, err
		}
		loopLog.Info("order reconciled", "pair", o.Pair,
			"client_order_id", o.ClientOrderID, "status", string(o.Status))

		if o.FilledUnits > 0 {
			fills = append(fills, RecoveredFill{
				Pair:         o.Pair,
				Side:         o.Side,
				Units:        o.FilledUnits,
				AvgFillPrice: o.AvgFillPrice,
				At:           o.UpdatedAt,
			})
		}
	}
	return fills, nil
}
