package gateway

import "sync"

// ReplayBuffer is a fixed-size ring of the most recent broadcast frames.
// A client connecting mid-stream gets the backlog replayed so it does not
// start with an empty dashboard.
type ReplayBuffer struct {
	mu      sync.RWMutex
	entries [][]byte
	pos     int // next write slot
	full    bool
}

func NewReplayBuffer(size int) *ReplayBuffer {
	if size <= 0 {
		size = 64
	}
	return &ReplayBuffer{entries: make([][]byte, size)}
}

// Push stores a copy of frame, evicting the oldest entry once the ring
// is full.
func (rb *ReplayBuffer) Push(frame []byte) {
	cp := make([]byte, len(frame))
	copy(cp, frame)

	rb.mu.Lock()
	rb.entries[rb.pos] = cp
	rb.pos = (rb.pos + 1) % len(rb.entries)
	if rb.pos == 0 {
		rb.full = true
	}
	rb.mu.Unlock()
}

// Snapshot returns the buffered frames oldest-first.
func (rb *ReplayBuffer) Snapshot() [][]byte {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	n := rb.len()
	out := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, rb.entries[rb.index(i)])
	}
	return out
}

// Len returns the number of buffered frames.
func (rb *ReplayBuffer) Len() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.len()
}

// len returns the entry count. Caller must hold mu.
func (rb *ReplayBuffer) len() int {
	if rb.full {
		return len(rb.entries)
	}
	return rb.pos
}

// index maps logical position i (0 = oldest) to a ring slot. Caller must
// hold mu.
func (rb *ReplayBuffer) index(i int) int {
	if rb.full {
		return (rb.pos + i) % len(rb.entries)
	}
	return i
}
