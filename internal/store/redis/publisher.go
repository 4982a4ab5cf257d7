package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"crosswatch/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

const (
	// Stream trimming: signals are rare, ~1k covers months of history.
	signalStreamMaxLen = 1024

	// Cap on signals held in memory while Redis is unreachable.
	maxPending = 1024

	// How often buffered signals are retried after an outage.
	flushInterval = 30 * time.Second
)

// PublisherConfig configures the Redis publisher.
type PublisherConfig struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int
}

// Publisher writes signal events to Redis for downstream consumers:
// a capped stream per token, a latest-value key, and a pubsub channel.
//
// Writes go through a circuit breaker. When Redis is down, events are
// buffered in memory and replayed once the connection recovers, so an
// outage delays signals instead of losing them.
type Publisher struct {
	client *goredis.Client
	cb     *CircuitBreaker

	mu      sync.Mutex
	pending []model.SignalEvent
}

// Client returns the underlying Redis client for health checks.
func (p *Publisher) Client() *goredis.Client { return p.client }

// New creates a new Publisher and pings the server.
func New(cfg PublisherConfig) (*Publisher, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	p := &Publisher{
		client: client,
		cb:     NewCircuitBreaker(5, 10*time.Second),
	}
	p.cb.OnStateChange = func(from, to State) {
		log.Printf("[redis] circuit breaker %s -> %s", from, to)
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return p, nil
}

// Run reads signal events from eventCh and publishes them.
// Blocks until ctx is cancelled or eventCh is closed.
func (p *Publisher) Run(ctx context.Context, eventCh <-chan model.SignalEvent) {
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-eventCh:
			if !ok {
				return
			}
			p.publish(ctx, ev)
		case <-ticker.C:
			if p.PendingCount() > 0 {
				p.flush(ctx)
			}
		}
	}
}

// publish writes one signal event, buffering it if Redis is unavailable.
func (p *Publisher) publish(ctx context.Context, ev model.SignalEvent) {
	err := p.cb.Execute(func() error {
		return p.write(ctx, ev)
	})
	if err == nil {
		return
	}
	if err != ErrCircuitOpen {
		log.Printf("[redis] publish failed: %v (buffering signal %s)", err, ev.Key())
	}
	p.bufferEvent(ev)
}

// write performs the pipelined writes for one signal event.
func (p *Publisher) write(ctx context.Context, ev model.SignalEvent) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal signal %s: %w", ev.Key(), err)
	}
	jsonData := string(raw)

	streamKey := "signals:" + ev.Key()
	latestKey := "latest:signal:" + ev.Key()
	pubsubCh := "pub:signal:" + ev.Key()

	pipe := p.client.Pipeline()

	// XADD to the per-token stream with auto-trimming
	pipe.XAdd(ctx, &goredis.XAddArgs{
		Stream: streamKey,
		MaxLen: signalStreamMaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"data": jsonData,
		},
	})

	// SET latest signal; kept until the next cross replaces it
	pipe.Set(ctx, latestKey, jsonData, 0)

	// PUBLISH for real-time subscribers
	pipe.Publish(ctx, pubsubCh, jsonData)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("pipeline for %s: %w", ev.Key(), err)
	}
	log.Printf("[redis] published signal %s offsets=%v", ev.Key(), ev.Offsets)
	return nil
}

// bufferEvent queues a signal for later replay, dropping the oldest
// entry once the buffer is full.
func (p *Publisher) bufferEvent(ev model.SignalEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.pending) >= maxPending {
		log.Printf("[redis] pending buffer full, dropping oldest signal %s", p.pending[0].Key())
		p.pending = p.pending[1:]
	}
	p.pending = append(p.pending, ev)
	log.Printf("[redis] buffered signal %s (%d pending)", ev.Key(), len(p.pending))
}

// flush replays buffered signals in order. The first failed write
// stops the replay and returns the remainder to the buffer; the
// breaker's half-open probe decides when to try again.
func (p *Publisher) flush(ctx context.Context) {
	p.mu.Lock()
	queued := p.pending
	p.pending = nil
	p.mu.Unlock()

	if len(queued) == 0 {
		return
	}

	flushed := 0
	for i, ev := range queued {
		err := p.cb.Execute(func() error {
			return p.write(ctx, ev)
		})
		if err != nil {
			p.mu.Lock()
			p.pending = append(queued[i:], p.pending...)
			p.mu.Unlock()
			break
		}
		flushed++
	}
	if flushed > 0 {
		log.Printf("[redis] flushed %d buffered signals", flushed)
	}
}

// PendingCount returns the number of signals awaiting replay.
func (p *Publisher) PendingCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

// Close closes the Redis connection.
func (p *Publisher) Close() error {
	if n := p.PendingCount(); n > 0 {
		log.Printf("[redis] closing with %d unflushed signals", n)
	}
	return p.client.Close()
}
