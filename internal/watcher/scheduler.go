package watcher

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"crosswatch/internal/indicator"
	"crosswatch/internal/logger"
	"crosswatch/internal/metrics"
	"crosswatch/internal/model"
	"crosswatch/internal/notification"
	"crosswatch/pkg/okx"
)

// crossLookback is how many of the newest bars are examined for a fresh
// cross each cycle. Three bars tolerate a missed poll or a late candle
// without losing a signal.
const crossLookback = 3

// SchedulerConfig carries the derived settings the polling loop needs.
type SchedulerConfig struct {
	Tokens       []model.TokenConfig
	FastWindow   int
	SlowWindow   int
	PollInterval time.Duration
	RequestDelay time.Duration
	MinCandles   int
}

// Scheduler drives the poll → compute → alert cycle. It holds no state
// between cycles; every cycle recomputes from a fresh candle fetch.
type Scheduler struct {
	cfg      SchedulerConfig
	fetcher  model.CandleFetcher
	notifier notification.Notifier
	events   chan<- model.SignalEvent
	prom     *metrics.Metrics
	health   *metrics.HealthStatus
}

func NewScheduler(cfg SchedulerConfig, fetcher model.CandleFetcher, notifier notification.Notifier,
	events chan<- model.SignalEvent, prom *metrics.Metrics, health *metrics.HealthStatus) *Scheduler {
	return &Scheduler{
		cfg:      cfg,
		fetcher:  fetcher,
		notifier: notifier,
		events:   events,
		prom:     prom,
		health:   health,
	}
}

// Run polls until ctx is cancelled. Cancellation is only observed at
// cycle boundaries; a cycle that has started always finishes.
func (s *Scheduler) Run(ctx context.Context) {
	for cycle := int64(1); ctx.Err() == nil; cycle++ {
		s.RunCycle(ctx, cycle)
		if ctx.Err() != nil {
			break
		}
		time.Sleep(s.cfg.PollInterval)
	}
}

// RunCycle fetches, recomputes and alerts for every token once. Each
// cycle gets a trace ID that tags all of its log lines.
func (s *Scheduler) RunCycle(ctx context.Context, cycle int64) {
	start := time.Now()
	ctx = logger.WithTraceID(ctx, logger.GenerateTraceID("cycle", start))

	slog.Info("cycle started", append([]any{
		slog.Int64("cycle", cycle),
		slog.Int("tokens", len(s.cfg.Tokens)),
	}, logger.LogWithTrace(ctx)...)...)

	signals := 0
	for _, tok := range s.cfg.Tokens {
		signals += s.pollToken(ctx, tok, cycle)

		// Unconditional pause, even after the last token: it keeps the
		// request rate flat from OKX's point of view.
		time.Sleep(s.cfg.RequestDelay)
	}

	elapsed := time.Since(start)
	s.prom.CyclesTotal.Inc()
	s.prom.CycleDuration.Observe(elapsed.Seconds())
	s.prom.LastCycleUnix.Set(float64(time.Now().Unix()))
	s.health.MarkCycle()

	slog.Info("cycle complete", append([]any{
		slog.Int64("cycle", cycle),
		slog.Int("signals", signals),
		slog.Duration("elapsed", elapsed.Round(time.Millisecond)),
	}, logger.LogWithTrace(ctx)...)...)
}

// pollToken runs one token through fetch → EMA → cross scan and returns
// the number of fresh crosses. Every failure is contained here; a bad
// token never takes the cycle down.
func (s *Scheduler) pollToken(ctx context.Context, tok model.TokenConfig, cycle int64) int {
	limit := s.cfg.MinCandles
	if floor := s.cfg.SlowWindow + 10; floor > limit {
		limit = floor
	}

	s.prom.FetchesTotal.WithLabelValues(tok.Name).Inc()
	fetchStart := time.Now()
	series, err := s.fetcher.Candles(ctx, tok, limit)
	s.prom.FetchDuration.Observe(time.Since(fetchStart).Seconds())
	if err != nil {
		kind := "unknown"
		var apiErr *okx.APIError
		if errors.As(err, &apiErr) {
			kind = apiErr.Kind.String()
		}
		s.prom.FetchErrors.WithLabelValues(tok.Name, kind).Inc()
		slog.Error("candle fetch failed", append([]any{
			slog.String("token", tok.Name),
			slog.String("kind", kind),
			slog.String("error", err.Error()),
		}, logger.LogWithTrace(ctx)...)...)
		return 0
	}

	if len(series) < s.cfg.SlowWindow {
		s.prom.TokensSkipped.WithLabelValues("insufficient_history").Inc()
		slog.Warn("insufficient history", append([]any{
			slog.String("token", tok.Name),
			slog.Int("got", len(series)),
			slog.Int("need", s.cfg.SlowWindow),
		}, logger.LogWithTrace(ctx)...)...)
		return 0
	}

	closes := series.Closes()
	fast := indicator.EMA(closes, s.cfg.FastWindow)
	slow := indicator.EMA(closes, s.cfg.SlowWindow)
	offsets := indicator.GoldenCrosses(fast, slow, crossLookback)
	if len(offsets) == 0 {
		slog.Debug("no fresh cross", append([]any{
			slog.String("token", tok.Name),
			slog.Int("candles", len(series)),
		}, logger.LogWithTrace(ctx)...)...)
		return 0
	}

	last, _ := series.Last()
	fastEMA := fast[len(fast)-1]
	slowEMA := slow[len(slow)-1]

	ev := model.SignalEvent{
		ID:         uuid.New().String(),
		Token:      tok.Name,
		Contract:   tok.Contract,
		ChainIndex: tok.ChainIndex,
		Bar:        tok.Bar,
		FastWindow: s.cfg.FastWindow,
		SlowWindow: s.cfg.SlowWindow,
		Offsets:    offsets,
		Price:      last.Close,
		FastEMA:    fastEMA,
		SlowEMA:    slowEMA,
		Cycle:      cycle,
		DetectedAt: time.Now().UTC(),
	}
	select {
	case s.events <- ev:
	default:
		s.prom.EventsDropped.WithLabelValues("scheduler").Inc()
	}
	s.prom.SignalsTotal.WithLabelValues(tok.Name).Add(float64(len(offsets)))

	slog.Info("golden cross detected", append([]any{
		slog.String("token", tok.Name),
		slog.Int("crosses", len(offsets)),
		slog.Int("newest_offset", offsets[len(offsets)-1]),
		slog.Float64("price", last.Close),
	}, logger.LogWithTrace(ctx)...)...)

	if err := s.notifier.Send(ctx, alertFor(tok, s.cfg.FastWindow, s.cfg.SlowWindow, offsets, last.Close, fastEMA, slowEMA)); err != nil {
		s.prom.AlertErrors.Inc()
		slog.Error("alert delivery failed", append([]any{
			slog.String("token", tok.Name),
			slog.String("error", err.Error()),
		}, logger.LogWithTrace(ctx)...)...)
	}

	return len(offsets)
}
