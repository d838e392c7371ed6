// Package loop runs the per-pair trading cycle: pull candles, compute
// indicators, generate a signal, gate it through risk, and hand approved
// orders to the executor. One goroutine per pair; shared state is confined
// to the ledger, the tracker, and the board.
package loop

import (
	"context"
	"errors"
	"time"

	"github.com/rmorgan/tradecore/account"
	"github.com/rmorgan/tradecore/broker"
	"github.com/rmorgan/tradecore/executor"
	"github.com/rmorgan/tradecore/indicators"
	"github.com/rmorgan/tradecore/internal/logging"
	"github.com/rmorgan/tradecore/journal"
	"github.com/rmorgan/tradecore/market"
	"github.com/rmorgan/tradecore/position"
	"github.com/rmorgan/tradecore/pricing"
	"github.com/rmorgan/tradecore/risk"
	"github.com/rmorgan/tradecore/signal"
)

var loopLog = logging.New("loop")

// Settings are one pair's strategy and pacing parameters.
type Settings struct {
	Meta market.Pair

	FastWindow int
	SlowWindow int
	RSIPeriod  int
	ATRPeriod  int
	Overbought float64

	// Cycle is the decision interval; CycleTimeout bounds one cycle's
	// feed and indicator work. TickEvery paces stop/take-profit checks
	// between cycles.
	Cycle        time.Duration
	TickEvery    time.Duration
	CycleTimeout time.Duration

	// History is how many candles to keep and feed the indicators.
	History int
}

func (s Settings) withDefaults() Settings {
	if s.ATRPeriod <= 0 {
		s.ATRPeriod = 14
	}
	if s.TickEvery <= 0 {
		s.TickEvery = s.Cycle / 4
	}
	if s.TickEvery <= 0 {
		s.TickEvery = 250 * time.Millisecond
	}
	if s.CycleTimeout <= 0 {
		s.CycleTimeout = s.Cycle * 8 / 10
	}
	if s.History <= 0 {
		s.History = s.SlowWindow * 4
	}
	return s
}

// Runner drives one pair. All of its mutable state is owned by the Run
// goroutine; cross-pair coordination happens in the ledger and tracker.
type Runner struct {
	set    Settings
	pair   string
	feed   pricing.Feed
	series *pricing.Series
	engine *indicators.Engine
	gen    *signal.Generator
	risk   *risk.Manager
	exec   *executor.Executor
	track  *position.Tracker
	ledger *account.Ledger
	jnl    journal.Journal
	board  *Board

	// runCtx outlives any single cycle so an in-flight order is not
	// abandoned when the cycle deadline fires.
	runCtx context.Context

	lastSnap indicators.Snapshot
	haveSnap bool
	lastTick pricing.Tick
}

func NewRunner(
	set Settings,
	feed pricing.Feed,
	riskMgr *risk.Manager,
	exec *executor.Executor,
	track *position.Tracker,
	ledger *account.Ledger,
	jnl journal.Journal,
	board *Board,
) (*Runner, error) {
	set = set.withDefaults()

	engine, err := indicators.NewEngine(set.FastWindow, set.SlowWindow, set.RSIPeriod, set.ATRPeriod)
	if err != nil {
		return nil, err
	}

	pair := set.Meta.Name
	return &Runner{
		set:    set,
		pair:   pair,
		runCtx: context.Background(),
		feed:   feed,
		series: pricing.NewSeries(pair, set.History),
		engine: engine,
		gen:    signal.NewGenerator(pair, set.Overbought),
		risk:   riskMgr,
		exec:   exec,
		track:  track,
		ledger: ledger,
		jnl:    jnl,
		board:  board,
	}, nil
}

// AdoptPosition seeds the runner's state machine with a position recovered
// during restart reconciliation.
func (r *Runner) AdoptPosition() { r.gen.MarkLong() }

// Run loops until ctx is cancelled. Cycle and tick cadences share one
// select so the runner stays single-threaded.
func (r *Runner) Run(ctx context.Context) error {
	r.runCtx = ctx

	r.board.Update(r.pair, func(st *Status) { st.State = r.gen.State() })

	cycle := time.NewTicker(r.set.Cycle)
	defer cycle.Stop()
	tick := time.NewTicker(r.set.TickEvery)
	defer tick.Stop()

	loopLog.Info("runner started", "pair", r.pair,
		"cycle", r.set.Cycle.String(), "tick", r.set.TickEvery.String())

	for {
		select {
		case <-ctx.Done():
			loopLog.Info("runner stopped", "pair", r.pair)
			return ctx.Err()
		case <-tick.C:
			r.onTick(ctx)
		case <-cycle.C:
			r.onCycle(ctx)
		}
	}
}

// onCycle runs one decision cycle under its deadline. A missed deadline
// skips the cycle, it never blocks the next one.
func (r *Runner) onCycle(ctx context.Context) {
	cctx, cancel := context.WithTimeout(ctx, r.set.CycleTimeout)
	defer cancel()

	err := r.cycle(cctx)

	r.board.Update(r.pair, func(st *Status) {
		st.Cycles++
		st.LastCycle = time.Now().UTC()
		st.State = r.gen.State()
		st.LastError = ""
		if err != nil {
			st.LastError = err.Error()
			if errors.Is(err, context.DeadlineExceeded) {
				st.MissedCycles++
			}
		}
	})
	if err != nil {
		loopLog.Warn("cycle failed", "pair", r.pair, "err", err)
	}
}

func (r *Runner) cycle(ctx context.Context) error {
	candles, err := r.feed.Candles(ctx, r.pair, r.set.History)
	if err != nil {
		return err
	}
	r.series.Merge(candles)

	snap, err := r.engine.Compute(r.series.Candles())
	if errors.Is(err, indicators.ErrInsufficientData) {
		// Still warming up.
		return nil
	}
	if err != nil {
		return err
	}
	r.lastSnap = snap
	r.haveSnap = true

	sig := r.gen.Next(snap)
	r.board.Update(r.pair, func(st *Status) {
		st.Snapshot = snap
		st.LastAction = sig.Action
		st.LastReason = sig.Reason
	})

	if sig.Action == signal.Hold {
		return nil
	}
	return r.act(sig)
}

// onTick refreshes the quote and checks the open position against its stop
// and take-profit levels.
func (r *Runner) onTick(ctx context.Context) {
	t, err := r.feed.Tick(ctx, r.pair)
	if err != nil {
		return
	}
	r.lastTick = t
	r.board.Update(r.pair, func(st *Status) { st.LastPrice = t.Mid() })

	trigger, fired := r.track.MarkPrice(r.pair, t.Mid())
	if !fired {
		return
	}

	loopLog.Info("price trigger", "pair", r.pair,
		"reason", trigger.Reason, "price", trigger.Price)
	sig := r.gen.ForceExit(trigger.Reason, r.lastSnap)
	if err := r.act(sig); err != nil {
		loopLog.Warn("forced exit failed", "pair", r.pair, "err", err)
	}
}

// act gates the signal through risk and executes the resulting order.
// Orders run on the run context, not the cycle context, so a cycle deadline
// can not orphan an in-flight submission.
func (r *Runner) act(sig signal.Signal) error {
	now := time.Now().UTC()
	pos, open := r.track.Get(r.pair)
	atr, _ := r.engine.ATR()

	dec := r.risk.Evaluate(sig, r.entryPrice(), open, r.set.Meta, atr, now)
	if !dec.Approved {
		// A rejected entry must not leave the generator believing it is
		// long.
		if sig.Action == signal.Buy {
			r.gen.MarkFlat()
		}
		r.board.Update(r.pair, func(st *Status) {
			st.LastReason = dec.Reason
			st.State = r.gen.State()
		})
		loopLog.Info("signal rejected", "pair", r.pair,
			"action", string(sig.Action), "reason", dec.Reason)
		return nil
	}

	var err error
	switch sig.Action {
	case signal.Buy:
		err = r.enter(dec, atr, now)
	case signal.Sell:
		if !open {
			r.gen.MarkFlat()
			break
		}
		err = r.exit(pos, sig.Reason, now)
	}
	r.board.Update(r.pair, func(st *Status) { st.State = r.gen.State() })
	return err
}

func (r *Runner) enter(dec risk.Decision, atr float64, now time.Time) error {
	o := executor.NewOrder(r.pair, broker.SideBuy, dec.Units)
	if err := r.exec.Execute(r.runCtx, o); err != nil {
		r.gen.MarkFlat()
		return err
	}
	if o.FilledUnits <= 0 {
		// Rejected, failed, or cancelled unfilled: stay flat.
		r.gen.MarkFlat()
		loopLog.Warn("entry not filled", "pair", r.pair, "status", string(o.Status))
		return nil
	}

	// Stops anchor to the actual fill price, not the decision price.
	stop, take := r.risk.Stops(o.AvgFillPrice, atr)
	if _, err := r.track.Open(r.pair, o.AvgFillPrice, o.FilledUnits, stop, take, now); err != nil {
		return err
	}
	r.gen.MarkLong()
	r.journalEquity(now)

	loopLog.Info("entered", "pair", r.pair,
		"units", o.FilledUnits, "price", o.AvgFillPrice, "stop", stop, "take", take)
	return nil
}

func (r *Runner) exit(pos position.Position, reason string, now time.Time) error {
	o := executor.NewOrder(r.pair, broker.SideSell, pos.Units)
	if err := r.exec.Execute(r.runCtx, o); err != nil {
		return err
	}

	if o.FilledUnits > 0 {
		// A partial fill whose remainder was cancelled closes only the
		// filled quantity; the rest stays an open position.
		trade, err := r.track.Close(r.pair, o.FilledUnits, o.AvgFillPrice, now, reason)
		if err != nil {
			return err
		}
		if jerr := r.jnl.RecordTrade(journal.TradeRecord{
			Pair:        trade.Pair,
			Units:       trade.Units,
			EntryPrice:  trade.EntryPrice,
			ExitPrice:   trade.ExitPrice,
			Fees:        trade.Fees,
			RealizedPnL: trade.RealizedPnL,
			OpenTime:    trade.OpenedAt,
			CloseTime:   trade.ClosedAt,
			Reason:      trade.Reason,
		}); jerr != nil {
			loopLog.Error("journal trade", "pair", r.pair, "err", jerr)
		}
		r.journalEquity(now)
		loopLog.Info("exited", "pair", r.pair,
			"units", trade.Units, "price", trade.ExitPrice,
			"pnl", trade.RealizedPnL, "reason", reason)
	} else {
		loopLog.Warn("exit not filled", "pair", r.pair, "status", string(o.Status))
	}

	if _, still := r.track.Get(r.pair); still {
		r.gen.MarkLong()
	} else {
		r.gen.MarkFlat()
	}
	return nil
}

// entryPrice prefers the live quote's ask and falls back to the last close.
func (r *Runner) entryPrice() float64 {
	if r.lastTick.Ask > 0 {
		return r.lastTick.Ask
	}
	if c, ok := r.series.Last(); ok {
		return c.Close
	}
	return 0
}

func (r *Runner) journalEquity(now time.Time) {
	if err := r.jnl.RecordEquity(journal.EquitySnapshot{
		Time:     now,
		Equity:   r.ledger.Equity(),
		Exposure: r.ledger.Exposure(),
		Realized: r.ledger.WindowRealized(now),
	}); err != nil {
		loopLog.Error("journal equity", "pair", r.pair, "err", err)
	}
}
