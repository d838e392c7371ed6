// Package executor drives an order through its lifecycle against the
// exchange gateway:
//
//	PENDING -> SUBMITTING -> {SUBMITTED | REJECTED | FAILED}
//	SUBMITTED -> {FILLED | PARTIALLY_FILLED | CANCELLED}
//
// Submission is idempotent (one client order id per decision, reused across
// retries), retries are bounded with exponential backoff, and ambiguous
// outcomes are reconciled with a status poll before any resubmission.
package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rmorgan/tradecore/broker"
	"github.com/rmorgan/tradecore/internal/logging"
)

type Config struct {
	// MaxAttempts bounds submit retries; once exhausted the order is FAILED.
	MaxAttempts int
	// BackoffBase is the first retry delay; it doubles per attempt up to
	// BackoffCap, with jitter.
	BackoffBase time.Duration
	BackoffCap  time.Duration
	// FillWait is how long a submitted order may stay unfilled before the
	// remainder is cancelled.
	FillWait time.Duration
	// PollInterval paces status polls on a submitted order.
	PollInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = 250 * time.Millisecond
	}
	if c.BackoffCap <= 0 {
		c.BackoffCap = 5 * time.Second
	}
	if c.FillWait <= 0 {
		c.FillWait = 30 * time.Second
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 500 * time.Millisecond
	}
	return c
}

// Recorder observes every order transition, e.g. to upsert the journal's
// order audit table. Called synchronously with a copy of the order.
type Recorder func(Order)

var execLog = logging.New("executor")

type Executor struct {
	gw      broker.Gateway
	limiter *broker.RateLimiter
	cfg     Config
	rec     Recorder
}

func New(gw broker.Gateway, limiter *broker.RateLimiter, cfg Config, rec Recorder) *Executor {
	return &Executor{
		gw:      gw,
		limiter: limiter,
		cfg:     cfg.withDefaults(),
		rec:     rec,
	}
}

// Execute runs the full lifecycle. The returned error is only for
// infrastructure failures (ctx cancelled); the trading outcome is in
// o.Status. Terminal orders are never silently dropped: FAILED and REJECTED
// are recorded like any other state.
func (e *Executor) Execute(ctx context.Context, o *Order) error {
	if err := e.submit(ctx, o); err != nil {
		return err
	}
	if o.Terminal() {
		return nil
	}
	return e.await(ctx, o)
}

// submit places the order, retrying Transient failures with backoff under
// the same client order id. Unknown outcomes are resolved by a status poll
// before any retry, distinguishing "never reached the venue" from "reached
// but the response was lost".
func (e *Executor) submit(ctx context.Context, o *Order) error {
	req := o.request()

	for attempt := 0; attempt < e.cfg.MaxAttempts; attempt++ {
		o.Attempts = attempt + 1
		e.transition(o, broker.StatusSubmitting, fmt.Sprintf("attempt %d", o.Attempts))

		if err := e.limiter.Wait(ctx); err != nil {
			return err
		}

		ack, err := e.gw.Submit(ctx, req)
		if err == nil {
			o.ExchangeOrderID = ack.ExchangeOrderID
			status := ack.Status
			if status == "" {
				status = broker.StatusSubmitted
			}
			e.transition(o, status, "accepted")
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		switch broker.ClassOf(err) {
		case broker.ClassRejected:
			e.transition(o, broker.StatusRejected, err.Error())
			return nil

		case broker.ClassUnknown:
			resolved, rerr := e.resolveUnknown(ctx, o)
			if rerr != nil {
				return rerr
			}
			if resolved {
				return nil
			}
			// Not found at the venue: the submit never landed, retrying
			// the same client order id is safe.

		case broker.ClassTransient:
			execLog.Debug("transient submit failure",
				"pair", o.Pair, "client_order_id", o.ClientOrderID,
				"attempt", o.Attempts, "err", err)
		}

		if attempt+1 < e.cfg.MaxAttempts {
			if err := sleep(ctx, backoff(e.cfg.BackoffBase, e.cfg.BackoffCap, attempt)); err != nil {
				return err
			}
		}
	}

	e.transition(o, broker.StatusFailed,
		fmt.Sprintf("submit failed after %d attempts", e.cfg.MaxAttempts))
	return nil
}

// resolveUnknown polls the venue after an ambiguous submit. It reports
// whether the order turned out to exist there.
func (e *Executor) resolveUnknown(ctx context.Context, o *Order) (bool, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return false, err
	}

	st, err := e.gw.PollStatus(ctx, o.pollID())
	if errors.Is(err, broker.ErrOrderNotFound) {
		return false, nil
	}
	if err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return false, cerr
		}
		// Still ambiguous. Do not resubmit; the await loop would be
		// flying blind, so surface the poll failure as one more chance
		// for the retry loop after backoff.
		return false, nil
	}

	o.ExchangeOrderID = st.ExchangeOrderID
	e.apply(o, st, "reconciled after ambiguous submit")
	return true, nil
}

// await polls a submitted order until it is terminal. Partial fills keep
// polling; once FillWait elapses the remainder is cancelled.
func (e *Executor) await(ctx context.Context, o *Order) error {
	deadline := time.Now().Add(e.cfg.FillWait)

	for {
		if err := sleep(ctx, e.cfg.PollInterval); err != nil {
			return err
		}
		if err := e.limiter.Wait(ctx); err != nil {
			return err
		}

		st, err := e.gw.PollStatus(ctx, o.pollID())
		if err != nil {
			if cerr := ctx.Err(); cerr != nil {
				return cerr
			}
			if broker.IsRejected(err) {
				e.transition(o, broker.StatusRejected, err.Error())
				return nil
			}
			// Transient or ambiguous: keep polling until the deadline.
		} else {
			e.apply(o, st, "")
			if o.Terminal() {
				return nil
			}
		}

		if time.Now().After(deadline) {
			return e.cancelRemainder(ctx, o)
		}
	}
}

func (e *Executor) cancelRemainder(ctx context.Context, o *Order) error {
	if err := e.limiter.Wait(ctx); err != nil {
		return err
	}

	st, err := e.gw.Cancel(ctx, o.ExchangeOrderID)
	if err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		// The cancel itself failed; poll once more for a final answer so
		// we never leave the order dangling without a state.
		st, err = e.gw.PollStatus(ctx, o.pollID())
		if err != nil {
			e.transition(o, broker.StatusFailed, "cancel failed: "+err.Error())
			return nil
		}
	}

	e.apply(o, st, "fill wait exceeded, remainder cancelled")
	if !o.Terminal() {
		e.transition(o, broker.StatusCancelled, "fill wait exceeded")
	}
	return nil
}

// Reconcile resolves an order left non-terminal by a previous run by asking
// the venue for its actual state. Orders the venue never saw are FAILED.
func (e *Executor) Reconcile(ctx context.Context, o *Order) error {
	if o.Terminal() {
		return nil
	}
	if err := e.limiter.Wait(ctx); err != nil {
		return err
	}

	st, err := e.gw.PollStatus(ctx, o.pollID())
	if errors.Is(err, broker.ErrOrderNotFound) {
		e.transition(o, broker.StatusFailed, "not found at venue during reconciliation")
		return nil
	}
	if err != nil {
		return err
	}

	o.ExchangeOrderID = st.ExchangeOrderID
	e.apply(o, st, "reconciled at startup")
	return nil
}

// apply folds a venue state into the order, recording a transition when the
// status actually changed.
func (e *Executor) apply(o *Order, st broker.OrderState, note string) {
	o.FilledUnits = st.FilledUnits
	o.AvgFillPrice = st.AvgFillPrice
	if st.Status != o.Status {
		e.transition(o, st.Status, note)
	}
}

func (e *Executor) transition(o *Order, to broker.Status, note string) {
	now := time.Now().UTC()
	o.Transitions = append(o.Transitions, Transition{
		From: o.Status,
		To:   to,
		At:   now,
		Note: note,
	})
	o.Status = to
	o.UpdatedAt = now

	execLog.Debug("order transition",
		"pair", o.Pair, "client_order_id", o.ClientOrderID,
		"to", string(to), "note", note)

	if e.rec != nil {
		e.rec(*o)
	}
}
