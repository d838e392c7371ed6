// Package market holds static per-pair exchange metadata.
package market

import "math"

type Pair struct {
	Name  string
	Base  string
	Quote string

	// MinLot is the smallest order size the venue accepts, in base units.
	MinLot float64
	// LotStep is the size increment orders must be rounded to.
	LotStep float64
	// PricePrecision is the number of decimal places in quoted prices.
	PricePrecision int
	// FeeRate is the taker fee charged per fill, as a fraction of notional.
	FeeRate float64
}

var Pairs = map[string]Pair{
	"BTC/USDT": {
		Name:           "BTC/USDT",
		Base:           "BTC",
		Quote:          "USDT",
		MinLot:         0.0001,
		LotStep:        0.0001,
		PricePrecision: 2,
		FeeRate:        0.001,
	},
	"ETH/USDT": {
		Name:           "ETH/USDT",
		Base:           "ETH",
		Quote:          "USDT",
		MinLot:         0.001,
		LotStep:        0.001,
		PricePrecision: 2,
		FeeRate:        0.001,
	},
	"SOL/USDT": {
		Name:           "SOL/USDT",
		Base:           "SOL",
		Quote:          "USDT",
		MinLot:         0.01,
		LotStep:        0.01,
		PricePrecision: 3,
		FeeRate:        0.001,
	},
}

func Lookup(name string) (Pair, bool) {
	p, ok := Pairs[name]
	return p, ok
}

// RoundLot rounds units down to the pair's lot step. Sizes that round to
// less than the minimum lot come back as 0.
func (p Pair) RoundLot(units float64) float64 {
	if p.LotStep <= 0 {
		return units
	}
	// The small epsilon keeps sizes that are an exact multiple of the step
	// from rounding down a whole step due to float division.
	units = math.Floor(units/p.LotStep+1e-9) * p.LotStep
	if units < p.MinLot {
		return 0
	}
	return units
}
