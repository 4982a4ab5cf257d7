package model

import "time"

// SignalEvent records one detection for one token: every bar inside the
// lookback where the fast EMA closed above the slow EMA after sitting at
// or below it, plus the newest close and EMA values at detection time.
type SignalEvent struct {
	ID         string `json:"id"`
	Token      string `json:"token"`
	Contract   string `json:"contract"`
	ChainIndex int    `json:"chain_index"`
	Bar        string `json:"bar"`
	FastWindow int    `json:"fast_window"`
	SlowWindow int    `json:"slow_window"`

	// Offsets lists the crossing bars oldest first, counted back from the
	// end of the series, -1 being the newest bar.
	Offsets []int `json:"offsets"`

	Price      float64   `json:"price"`
	FastEMA    float64   `json:"fast_ema"`
	SlowEMA    float64   `json:"slow_ema"`
	Cycle      int64     `json:"cycle"`
	DetectedAt time.Time `json:"detected_at"`
}

// Key returns the "token:bar" identity used in Redis keys and stream names.
func (e SignalEvent) Key() string {
	return e.Token + ":" + e.Bar
}
