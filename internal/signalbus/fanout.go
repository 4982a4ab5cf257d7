// Package signalbus broadcasts signal events from the poll loop to every
// interested sink (journal, Redis publisher, WebSocket gateway).
package signalbus

import (
	"context"
	"log"
	"sync"

	"crosswatch/internal/model"
)

// FanOut broadcasts signal events from a single input channel to N output
// channels. If an output channel is full, the event is dropped for that
// consumer so a slow sink cannot stall the poll loop.
type FanOut struct {
	mu      sync.RWMutex
	outputs []chan model.SignalEvent
	bufSize int

	// OnDrop is called when an event is dropped for a subscriber.
	// subscriberIdx is the 0-based index of the slow consumer.
	OnDrop func(subscriberIdx int)
}

// New creates a FanOut with the given buffer size for output channels.
func New(outputBufferSize int) *FanOut {
	return &FanOut{
		bufSize: outputBufferSize,
	}
}

// Subscribe creates and returns a new output channel.
func (f *FanOut) Subscribe() <-chan model.SignalEvent {
	ch := make(chan model.SignalEvent, f.bufSize)
	f.mu.Lock()
	f.outputs = append(f.outputs, ch)
	f.mu.Unlock()
	return ch
}

// Run reads from the input channel and fans out to all subscribers.
// Blocks until ctx is cancelled or input is closed, then closes every
// output channel.
func (f *FanOut) Run(ctx context.Context, input <-chan model.SignalEvent) {
	defer func() {
		f.mu.RLock()
		for _, ch := range f.outputs {
			close(ch)
		}
		f.mu.RUnlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-input:
			if !ok {
				return
			}
			f.mu.RLock()
			for i, ch := range f.outputs {
				select {
				case ch <- ev:
				default:
					if f.OnDrop != nil {
						f.OnDrop(i)
					} else {
						log.Printf("[signalbus] output channel %d full, dropping event %s", i, ev.Key())
					}
				}
			}
			f.mu.RUnlock()
		}
	}
}
