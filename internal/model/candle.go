package model

import (
	"sort"
	"time"
)

// Candle is one OHLCV bar for a watched token, decoded from the upstream
// string tuple form.
type Candle struct {
	TS        time.Time `json:"ts"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Vol       float64   `json:"vol"`
	VolUSD    float64   `json:"vol_usd"`
	Confirmed bool      `json:"confirmed"`
}

// Series is a run of candles for a single token and bar size.
type Series []Candle

// Normalize sorts the series oldest first and drops rows that repeat a
// timestamp, keeping the first of the duplicates. The market API returns
// candles newest first; indicator math wants chronological order with one
// row per bar.
func (s Series) Normalize() Series {
	sort.SliceStable(s, func(i, j int) bool { return s[i].TS.Before(s[j].TS) })
	out := s[:0]
	for _, c := range s {
		if n := len(out); n > 0 && out[n-1].TS.Equal(c.TS) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Closes returns the close prices in series order.
func (s Series) Closes() []float64 {
	out := make([]float64, len(s))
	for i, c := range s {
		out[i] = c.Close
	}
	return out
}

// Last returns the most recent candle. ok is false for an empty series.
func (s Series) Last() (Candle, bool) {
	if len(s) == 0 {
		return Candle{}, false
	}
	return s[len(s)-1], true
}
