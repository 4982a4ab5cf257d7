package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"crosswatch/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

// JournalConfig configures the SQLite signal journal.
type JournalConfig struct {
	DBPath string // path to SQLite database file, e.g. "data/signals.db"
}

// Journal is a single-writer SQLite store for detected signal events.
// Signals arrive minutes to days apart, so rows are written one at a time.
type Journal struct {
	db *sql.DB
}

// DB returns the underlying sql.DB for health checks.
func (j *Journal) DB() *sql.DB { return j.db }

// New opens the journal, initializing the database with WAL mode and schema.
func New(cfg JournalConfig) (*Journal, error) {
	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Set connection pool for single-writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[sqlite] opened signal journal at %s", cfg.DBPath)
	return &Journal{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS signal_events (
			id          TEXT    PRIMARY KEY,
			token       TEXT    NOT NULL,
			contract    TEXT    NOT NULL,
			chain_index INTEGER NOT NULL,
			bar         TEXT    NOT NULL,
			fast_window INTEGER NOT NULL,
			slow_window INTEGER NOT NULL,
			offsets     TEXT    NOT NULL,
			price       REAL    NOT NULL,
			fast_ema    REAL    NOT NULL,
			slow_ema    REAL    NOT NULL,
			cycle       INTEGER NOT NULL,
			detected_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_signal_events_token_time
			ON signal_events (token, detected_at);
	`)
	return err
}

// offsetsToCSV renders crossing offsets as "-3,-1" for the offsets column.
func offsetsToCSV(offsets []int) string {
	parts := make([]string, len(offsets))
	for i, off := range offsets {
		parts[i] = strconv.Itoa(off)
	}
	return strings.Join(parts, ",")
}

func csvToOffsets(csv string) ([]int, error) {
	if csv == "" {
		return nil, nil
	}
	parts := strings.Split(csv, ",")
	out := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("offsets column %q: %w", csv, err)
		}
		out[i] = n
	}
	return out, nil
}

// Insert writes one signal event.
func (j *Journal) Insert(ctx context.Context, ev model.SignalEvent) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO signal_events
			(id, token, contract, chain_index, bar, fast_window, slow_window,
			 offsets, price, fast_ema, slow_ema, cycle, detected_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		ev.ID, ev.Token, ev.Contract, ev.ChainIndex, ev.Bar, ev.FastWindow, ev.SlowWindow,
		offsetsToCSV(ev.Offsets), ev.Price, ev.FastEMA, ev.SlowEMA, ev.Cycle, ev.DetectedAt.UnixMilli(),
	)
	return err
}

// Recent returns up to limit events, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]model.SignalEvent, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, token, contract, chain_index, bar, fast_window, slow_window,
		       offsets, price, fast_ema, slow_ema, cycle, detected_at
		FROM signal_events
		ORDER BY detected_at DESC, id
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.SignalEvent
	for rows.Next() {
		var ev model.SignalEvent
		var offsetsCSV string
		var detectedAt int64
		if err := rows.Scan(
			&ev.ID, &ev.Token, &ev.Contract, &ev.ChainIndex, &ev.Bar,
			&ev.FastWindow, &ev.SlowWindow, &offsetsCSV, &ev.Price,
			&ev.FastEMA, &ev.SlowEMA, &ev.Cycle, &detectedAt,
		); err != nil {
			return nil, err
		}
		if ev.Offsets, err = csvToOffsets(offsetsCSV); err != nil {
			return nil, err
		}
		ev.DetectedAt = time.UnixMilli(detectedAt).UTC()
		out = append(out, ev)
	}
	return out, rows.Err()
}

// LastSignal returns the most recently journaled event. ok is false when
// the journal is empty.
func (j *Journal) LastSignal(ctx context.Context) (model.SignalEvent, bool, error) {
	events, err := j.Recent(ctx, 1)
	if err != nil || len(events) == 0 {
		return model.SignalEvent{}, false, err
	}
	return events[0], true, nil
}

// Run reads events from eventCh and journals them one by one.
// Blocks until ctx is cancelled or eventCh is closed. Insert failures are
// logged and skipped.
func (j *Journal) Run(ctx context.Context, eventCh <-chan model.SignalEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-eventCh:
			if !ok {
				return
			}
			if err := j.Insert(ctx, ev); err != nil {
				log.Printf("[sqlite] insert signal %s: %v", ev.Key(), err)
				continue
			}
			log.Printf("[sqlite] journaled signal %s offsets=%v", ev.Key(), ev.Offsets)
		}
	}
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}
