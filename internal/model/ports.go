package model

import "context"

// ── Port Interfaces ──
// These interfaces decouple the poll loop and the gateway from concrete
// implementations (HTTP market client, SQLite journal).

// CandleFetcher retrieves recent history for one watched token.
type CandleFetcher interface {
	// Candles fetches up to limit bars for the token, oldest first.
	Candles(ctx context.Context, tok TokenConfig, limit int) (Series, error)
}

// SignalReader serves stored signal events to API consumers.
type SignalReader interface {
	// Recent returns up to limit events, newest first.
	Recent(ctx context.Context, limit int) ([]SignalEvent, error)
}
