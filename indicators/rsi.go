package indicators

import (
	"fmt"

	"github.com/rmorgan/tradecore/pricing"
)

// RSI is a streaming Relative Strength Index using Wilder's smoothing.
//
// The first period deltas seed the gain/loss averages with a plain mean;
// after that each delta is folded in exponentially:
//
//	avg = (avg*(period-1) + x) / period
//
// The value is always within [0, 100], and 100 exactly when the average
// loss is zero.
type RSI struct {
	period int

	prevClose float64
	havePrev  bool

	count   int
	gainSum float64
	lossSum float64

	avgGain float64
	avgLoss float64
}

func NewRSI(period int) *RSI {
	return &RSI{period: period}
}

func (r *RSI) Name() string {
	return fmt.Sprintf("RSI(%d)", r.period)
}

func (r *RSI) Warmup() int {
	// One extra candle because deltas need a previous close.
	return r.period + 1
}

func (r *RSI) Reset() {
	r.prevClose = 0
	r.havePrev = false
	r.count = 0
	r.gainSum = 0
	r.lossSum = 0
	r.avgGain = 0
	r.avgLoss = 0
}

func (r *RSI) Update(c pricing.Candle) {
	if !r.havePrev {
		r.prevClose = c.Close
		r.havePrev = true
		return
	}

	delta := c.Close - r.prevClose
	r.prevClose = c.Close

	gain, loss := 0.0, 0.0
	if delta > 0 {
		gain = delta
	} else {
		loss = -delta
	}

	if r.count < r.period {
		r.gainSum += gain
		r.lossSum += loss
		r.count++
		if r.count == r.period {
			r.avgGain = r.gainSum / float64(r.period)
			r.avgLoss = r.lossSum / float64(r.period)
		}
		return
	}

	n := float64(r.period)
	r.avgGain = (r.avgGain*(n-1) + gain) / n
	r.avgLoss = (r.avgLoss*(n-1) + loss) / n
}

func (r *RSI) Ready() bool {
	return r.count >= r.period
}

func (r *RSI) Value() float64 {
	if !r.Ready() {
		return 0
	}
	if r.avgLoss == 0 {
		return 100
	}
	rs := r.avgGain / r.avgLoss
	return 100 - 100/(1+rs)
}
