package pricing

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"
)

// LoadCSV reads candles from a CSV file with the header
// time,open,high,low,close,volume where time is RFC3339.
func LoadCSV(path, pair string) ([]Candle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)

	// Header row.
	if _, err := r.Read(); err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	var out []Candle
	for line := 2; ; line++ {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv line %d: %w", line, err)
		}
		if len(rec) < 6 {
			return nil, fmt.Errorf("csv line %d: want 6 fields, got %d", line, len(rec))
		}

		ts, err := time.Parse(time.RFC3339, rec[0])
		if err != nil {
			return nil, fmt.Errorf("csv line %d: bad time %q: %w", line, rec[0], err)
		}

		vals := make([]float64, 5)
		for i := 0; i < 5; i++ {
			v, err := strconv.ParseFloat(rec[i+1], 64)
			if err != nil {
				return nil, fmt.Errorf("csv line %d: bad number %q: %w", line, rec[i+1], err)
			}
			vals[i] = v
		}

		out = append(out, Candle{
			Pair:   pair,
			Time:   ts,
			Open:   vals[0],
			High:   vals[1],
			Low:    vals[2],
			Close:  vals[3],
			Volume: vals[4],
		})
	}
	return out, nil
}
