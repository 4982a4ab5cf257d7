package redis

import (
	"context"
	"fmt"
	"io"
	"log"
	"testing"
	"time"

	"crosswatch/internal/model"
)

// The buffering tests run against a Publisher with no Redis connection.
// They keep the breaker open so publish and flush never reach the client.

func bufferedPublisher(t *testing.T) *Publisher {
	t.Helper()
	p := &Publisher{cb: NewCircuitBreaker(1, time.Hour)}
	if err := p.cb.Execute(func() error { return errBackend }); err != errBackend {
		t.Fatalf("tripping breaker: %v", err)
	}
	return p
}

func signalEvent(token string) model.SignalEvent {
	return model.SignalEvent{
		ID:      token + "-ev",
		Token:   token,
		Bar:     "15m",
		Offsets: []int{-1},
	}
}

func TestPublisher_PublishBuffersWhileCircuitOpen(t *testing.T) {
	p := bufferedPublisher(t)

	p.publish(context.Background(), signalEvent("PEPE"))
	p.publish(context.Background(), signalEvent("WIF"))

	if got := p.PendingCount(); got != 2 {
		t.Fatalf("expected 2 pending, got %d", got)
	}
	if p.pending[0].Token != "PEPE" || p.pending[1].Token != "WIF" {
		t.Errorf("pending out of order: %s, %s", p.pending[0].Token, p.pending[1].Token)
	}
}

func TestPublisher_BufferCapDropsOldest(t *testing.T) {
	prevOut := log.Writer()
	log.SetOutput(io.Discard)
	defer log.SetOutput(prevOut)

	p := bufferedPublisher(t)
	for i := 0; i <= maxPending; i++ {
		p.bufferEvent(signalEvent(fmt.Sprintf("tok-%d", i)))
	}

	if got := p.PendingCount(); got != maxPending {
		t.Fatalf("expected %d pending, got %d", maxPending, got)
	}
	if p.pending[0].Token != "tok-1" {
		t.Errorf("expected oldest entry dropped, head is %s", p.pending[0].Token)
	}
	if last := p.pending[maxPending-1].Token; last != fmt.Sprintf("tok-%d", maxPending) {
		t.Errorf("expected newest entry kept, tail is %s", last)
	}
}

func TestPublisher_FlushRebuffersWhileCircuitOpen(t *testing.T) {
	p := bufferedPublisher(t)
	p.bufferEvent(signalEvent("PEPE"))
	p.bufferEvent(signalEvent("WIF"))

	p.flush(context.Background())

	if got := p.PendingCount(); got != 2 {
		t.Fatalf("expected 2 pending after rejected flush, got %d", got)
	}
	if p.pending[0].Token != "PEPE" {
		t.Errorf("replay order lost, head is %s", p.pending[0].Token)
	}
}

func TestPublisher_FlushEmptyIsNoop(t *testing.T) {
	p := &Publisher{cb: NewCircuitBreaker(1, time.Hour)}
	p.flush(context.Background())
	if got := p.PendingCount(); got != 0 {
		t.Fatalf("expected 0 pending, got %d", got)
	}
}
