package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the watcher.
type Metrics struct {
	CyclesTotal   prometheus.Counter
	CycleDuration prometheus.Histogram
	LastCycleUnix prometheus.Gauge

	// Per-token fetch metrics
	FetchesTotal  *prometheus.CounterVec // labels: token
	FetchErrors   *prometheus.CounterVec // labels: token, kind
	FetchDuration prometheus.Histogram

	// Tokens skipped within a cycle
	TokensSkipped *prometheus.CounterVec // labels: reason

	// Signal + alert outcomes
	SignalsTotal *prometheus.CounterVec // labels: token
	AlertErrors  prometheus.Counter

	// Backpressure on the event bus
	EventsDropped *prometheus.CounterVec // labels: subscriber

	reg *prometheus.Registry
}

// NewMetrics registers and returns all Prometheus metrics. Each instance
// carries its own registry so constructing more than one is safe.
func NewMetrics() *Metrics {
	m := &Metrics{
		CyclesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crosswatch_cycles_total",
			Help: "Total polling cycles completed",
		}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "crosswatch_cycle_duration_seconds",
			Help:    "Wall time per polling cycle, including per-token delays",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		LastCycleUnix: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "crosswatch_last_cycle_timestamp_seconds",
			Help: "Unix time of the last completed polling cycle",
		}),

		// Fetch metrics
		FetchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crosswatch_fetches_total",
			Help: "Candle fetches attempted per token",
		}, []string{"token"}),
		FetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crosswatch_fetch_errors_total",
			Help: "Candle fetch failures per token and error kind",
		}, []string{"token", "kind"}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "crosswatch_fetch_duration_seconds",
			Help:    "Candle fetch latency",
			Buckets: prometheus.DefBuckets,
		}),

		// Skips
		TokensSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crosswatch_tokens_skipped_total",
			Help: "Tokens skipped within a cycle, by reason",
		}, []string{"reason"}),

		// Signals + alerts
		SignalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crosswatch_signals_total",
			Help: "Golden cross signals detected per token",
		}, []string{"token"}),
		AlertErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crosswatch_alert_errors_total",
			Help: "Alert deliveries that failed",
		}),

		// Backpressure
		EventsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crosswatch_events_dropped_total",
			Help: "Signal events dropped by the fan-out bus per subscriber",
		}, []string{"subscriber"}),

		reg: prometheus.NewRegistry(),
	}

	m.reg.MustRegister(
		m.CyclesTotal,
		m.CycleDuration,
		m.LastCycleUnix,
		m.FetchesTotal,
		m.FetchErrors,
		m.FetchDuration,
		m.TokensSkipped,
		m.SignalsTotal,
		m.AlertErrors,
		m.EventsDropped,
	)

	return m
}

// Handler exposes the metrics in Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// HealthStatus represents the watcher's health.
type HealthStatus struct {
	mu sync.RWMutex

	LastCycleAt     time.Time `json:"last_cycle_at"`
	CyclesCompleted int64     `json:"cycles_completed"`
	TokensWatched   int       `json:"tokens_watched"`

	RedisEnabled   bool `json:"redis_enabled"`
	RedisConnected bool `json:"redis_connected"`
	JournalEnabled bool `json:"journal_enabled"`
	JournalOK      bool `json:"journal_ok"`

	// Liveness probe results
	RedisLatencyMs  float64   `json:"redis_latency_ms"`
	SQLiteLatencyMs float64   `json:"sqlite_latency_ms"`
	LastCheckAt     time.Time `json:"last_check_at"`
	StartedAt       time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{
		StartedAt: time.Now(),
	}
}

func (h *HealthStatus) SetTokensWatched(n int) {
	h.mu.Lock()
	h.TokensWatched = n
	h.mu.Unlock()
}

func (h *HealthStatus) SetRedisEnabled(v bool) {
	h.mu.Lock()
	h.RedisEnabled = v
	h.RedisConnected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetJournalEnabled(v bool) {
	h.mu.Lock()
	h.JournalEnabled = v
	h.JournalOK = v
	h.mu.Unlock()
}

// MarkCycle records a completed polling cycle.
func (h *HealthStatus) MarkCycle() {
	h.mu.Lock()
	h.LastCycleAt = time.Now()
	h.CyclesCompleted++
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckSQLite runs a trivial query and records latency + health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.JournalOK = err == nil
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if rdb != nil {
					h.CheckRedis(probeCtx, rdb)
				}
				if sqlDB != nil {
					h.CheckSQLite(probeCtx, sqlDB)
				}
				cancel()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint. Disabled backends never count
// against health.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	redisDown := h.RedisEnabled && !h.RedisConnected
	journalDown := h.JournalEnabled && !h.JournalOK

	overallStatus := "healthy"
	httpCode := http.StatusOK
	if redisDown || journalDown {
		overallStatus = "degraded"
		httpCode = http.StatusServiceUnavailable
	}
	if redisDown && journalDown {
		overallStatus = "unhealthy"
	}

	cycleAge := ""
	if !h.LastCycleAt.IsZero() {
		cycleAge = time.Since(h.LastCycleAt).Round(time.Millisecond).String()
	}

	status := struct {
		Status          string  `json:"status"`
		Uptime          string  `json:"uptime"`
		CyclesCompleted int64   `json:"cycles_completed"`
		LastCycleAt     string  `json:"last_cycle_at"`
		CycleAge        string  `json:"cycle_age"`
		TokensWatched   int     `json:"tokens_watched"`
		RedisEnabled    bool    `json:"redis_enabled"`
		RedisConnected  bool    `json:"redis_connected"`
		RedisLatencyMs  float64 `json:"redis_latency_ms"`
		JournalEnabled  bool    `json:"journal_enabled"`
		JournalOK       bool    `json:"journal_ok"`
		SQLiteLatencyMs float64 `json:"sqlite_latency_ms"`
		LastCheckAt     string  `json:"last_check_at"`
	}{
		Status:          overallStatus,
		Uptime:          time.Since(h.StartedAt).Round(time.Second).String(),
		CyclesCompleted: h.CyclesCompleted,
		LastCycleAt:     h.LastCycleAt.Format(time.RFC3339),
		CycleAge:        cycleAge,
		TokensWatched:   h.TokensWatched,
		RedisEnabled:    h.RedisEnabled,
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		JournalEnabled:  h.JournalEnabled,
		JournalOK:       h.JournalOK,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
		LastCheckAt:     h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	health *HealthStatus
	addr   string
	srv    *http.Server
}

// NewServer creates a metrics and health server.
func NewServer(addr string, m *Metrics, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", health.ServeHTTP)

	return &Server{
		health: health,
		addr:   addr,
		srv: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[metrics] server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
