package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crosswatch/internal/model"
)

func testJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := New(JournalConfig{DBPath: filepath.Join(t.TempDir(), "signals.db")})
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func testEvent(id string, detectedAt time.Time) model.SignalEvent {
	return model.SignalEvent{
		ID:         id,
		Token:      "pepe",
		Contract:   "0xabc",
		ChainIndex: 1,
		Bar:        "15m",
		FastWindow: 144,
		SlowWindow: 576,
		Offsets:    []int{-3, -1},
		Price:      0.000012,
		FastEMA:    0.0000119,
		SlowEMA:    0.0000118,
		Cycle:      7,
		DetectedAt: detectedAt,
	}
}

func TestJournal_InsertAndRecent(t *testing.T) {
	j := testJournal(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, j.Insert(ctx, testEvent("a", base)))
	require.NoError(t, j.Insert(ctx, testEvent("b", base.Add(time.Minute))))
	require.NoError(t, j.Insert(ctx, testEvent("c", base.Add(2*time.Minute))))

	got, err := j.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)

	// Newest first.
	assert.Equal(t, "c", got[0].ID)
	assert.Equal(t, "b", got[1].ID)

	// Round-trip of the full row.
	assert.Equal(t, "pepe", got[0].Token)
	assert.Equal(t, "0xabc", got[0].Contract)
	assert.Equal(t, 1, got[0].ChainIndex)
	assert.Equal(t, "15m", got[0].Bar)
	assert.Equal(t, 144, got[0].FastWindow)
	assert.Equal(t, 576, got[0].SlowWindow)
	assert.Equal(t, []int{-3, -1}, got[0].Offsets)
	assert.InDelta(t, 0.000012, got[0].Price, 1e-12)
	assert.Equal(t, int64(7), got[0].Cycle)
	assert.True(t, got[0].DetectedAt.Equal(base.Add(2*time.Minute)))
}

func TestJournal_LastSignal(t *testing.T) {
	j := testJournal(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	_, ok, err := j.LastSignal(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "empty journal should report no last signal")

	require.NoError(t, j.Insert(ctx, testEvent("a", base)))
	require.NoError(t, j.Insert(ctx, testEvent("b", base.Add(time.Minute))))

	last, ok, err := j.LastSignal(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "b", last.ID)
	assert.True(t, last.DetectedAt.Equal(base.Add(time.Minute)))
}

func TestJournal_RecentOnEmptyJournal(t *testing.T) {
	j := testJournal(t)

	got, err := j.Recent(context.Background(), 50)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestJournal_DuplicateIDRejected(t *testing.T) {
	j := testJournal(t)
	ctx := context.Background()
	ev := testEvent("dup", time.Now().UTC())

	require.NoError(t, j.Insert(ctx, ev))
	assert.Error(t, j.Insert(ctx, ev))
}

func TestJournal_RunDrainsChannel(t *testing.T) {
	j := testJournal(t)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	eventCh := make(chan model.SignalEvent, 2)
	eventCh <- testEvent("a", base)
	eventCh <- testEvent("b", base.Add(time.Minute))
	close(eventCh)

	done := make(chan struct{})
	go func() {
		j.Run(context.Background(), eventCh)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after channel closed")
	}

	got, err := j.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}
