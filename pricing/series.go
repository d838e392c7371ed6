package pricing

// Series is an append-only, timestamp-ordered candle history for one pair.
// Feeds are at-least-once, so Append deduplicates by timestamp and drops
// anything older than the newest candle already held. The series retains at
// most max candles; older ones fall off the front.
//
// A Series is owned by a single pair loop and is not safe for concurrent use.
type Series struct {
	pair    string
	max     int
	candles []Candle
}

func NewSeries(pair string, max int) *Series {
	if max <= 0 {
		max = 500
	}
	return &Series{
		pair:    pair,
		max:     max,
		candles: make([]Candle, 0, max),
	}
}

func (s *Series) Pair() string { return s.pair }

func (s *Series) Len() int { return len(s.candles) }

// Append adds c to the series. It reports whether the candle was accepted:
// duplicates (same timestamp as the newest candle) and out-of-order candles
// are dropped, keeping timestamps strictly increasing.
func (s *Series) Append(c Candle) bool {
	if n := len(s.candles); n > 0 && !c.Time.After(s.candles[n-1].Time) {
		return false
	}
	s.candles = append(s.candles, c)
	if len(s.candles) > s.max {
		s.candles = s.candles[1:]
	}
	return true
}

// Merge appends every candle in cs in order and returns how many were new.
func (s *Series) Merge(cs []Candle) int {
	added := 0
	for _, c := range cs {
		if s.Append(c) {
			added++
		}
	}
	return added
}

// Candles returns the retained history, oldest first. The slice is shared
// with the series; callers must not mutate it.
func (s *Series) Candles() []Candle {
	return s.candles
}

func (s *Series) Last() (Candle, bool) {
	if len(s.candles) == 0 {
		return Candle{}, false
	}
	return s.candles[len(s.candles)-1], true
}
