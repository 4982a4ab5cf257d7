package signalbus

import (
	"context"
	"testing"
	"time"

	"crosswatch/internal/model"
)

func event(id string) model.SignalEvent {
	return model.SignalEvent{ID: id, Token: "pepe", Bar: "15m", Offsets: []int{-1}}
}

func TestFanOut_BroadcastsToAllSubscribers(t *testing.T) {
	f := New(4)
	a := f.Subscribe()
	b := f.Subscribe()

	in := make(chan model.SignalEvent, 2)
	in <- event("e1")
	in <- event("e2")
	close(in)

	done := make(chan struct{})
	go func() {
		f.Run(context.Background(), in)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after input closed")
	}

	for name, ch := range map[string]<-chan model.SignalEvent{"a": a, "b": b} {
		var ids []string
		for ev := range ch {
			ids = append(ids, ev.ID)
		}
		if len(ids) != 2 || ids[0] != "e1" || ids[1] != "e2" {
			t.Errorf("subscriber %s got %v, want [e1 e2] in order", name, ids)
		}
	}
}

func TestFanOut_DropsForSlowSubscriber(t *testing.T) {
	f := New(1)
	slow := f.Subscribe()

	var dropped []int
	f.OnDrop = func(idx int) { dropped = append(dropped, idx) }

	in := make(chan model.SignalEvent, 3)
	in <- event("e1")
	in <- event("e2")
	in <- event("e3")
	close(in)

	f.Run(context.Background(), in)

	// Buffer held one event; the other two were dropped for subscriber 0.
	if len(dropped) != 2 {
		t.Fatalf("dropped %d events, want 2", len(dropped))
	}
	for _, idx := range dropped {
		if idx != 0 {
			t.Errorf("drop reported for subscriber %d, want 0", idx)
		}
	}

	var got []string
	for ev := range slow {
		got = append(got, ev.ID)
	}
	if len(got) != 1 || got[0] != "e1" {
		t.Errorf("slow subscriber got %v, want [e1]", got)
	}
}

func TestFanOut_ClosesOutputsOnCancel(t *testing.T) {
	f := New(1)
	out := f.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	in := make(chan model.SignalEvent)

	done := make(chan struct{})
	go func() {
		f.Run(ctx, in)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	if _, ok := <-out; ok {
		t.Fatal("output channel should be closed after Run returns")
	}
}
