// Package watcher polls OKX DEX candles for a configured token
// watchlist, computes fast/slow EMAs over the closes and raises one
// aggregated alert per token whenever the fast line crosses above the
// slow line. Detected signals also fan out to an optional SQLite
// journal, Redis streams and a websocket gateway.
package watcher

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"crosswatch/config"
	"crosswatch/internal/gateway"
	"crosswatch/internal/metrics"
	"crosswatch/internal/model"
	"crosswatch/internal/notification"
	"crosswatch/internal/signalbus"
	redisstore "crosswatch/internal/store/redis"
	sqlitestore "crosswatch/internal/store/sqlite"
	"crosswatch/pkg/okx"
)

// Service is the top-level orchestrator for the watcher.
// It wires all dependencies, manages lifecycle, and coordinates goroutines.
type Service struct {
	cfg *config.Config

	tokens []model.TokenConfig
	fastW  int
	slowW  int

	client    *okx.Client
	notifier  notification.Notifier
	journal   *sqlitestore.Journal
	publisher *redisstore.Publisher
	gw        *gateway.Server
	prom      *metrics.Metrics
	health    *metrics.HealthStatus
	promSrv   *metrics.Server

	sched  *Scheduler
	bus    *signalbus.FanOut
	events chan model.SignalEvent
}

// New creates a new Service from the given Config. Alert backends,
// journal, Redis and gateway are all optional; only the watchlist and
// the OKX client are hard requirements.
func New(cfg *config.Config) (*Service, error) {
	svc := &Service{
		cfg:    cfg,
		prom:   metrics.NewMetrics(),
		health: metrics.NewHealthStatus(),
		events: make(chan model.SignalEvent, 256),
	}

	// ---- Watchlist ----
	svc.tokens = cfg.ParseTokens()
	if len(svc.tokens) == 0 {
		return nil, fmt.Errorf(`no tokens configured, set TOKENS ("name,contract,chainIndex[,bar];...")`)
	}
	svc.fastW, svc.slowW = cfg.Windows()
	svc.health.SetTokensWatched(len(svc.tokens))

	// ---- OKX client ----
	if !cfg.HasOKXCreds() {
		log.Println("[watcher] WARNING: OKX credentials missing, requests will be unsigned and may be rejected")
	}
	var err error
	svc.client, err = okx.New(okx.Config{
		APIKey:     cfg.OKXAPIKey,
		SecretKey:  cfg.OKXSecretKey,
		Passphrase: cfg.OKXPassphrase,
		BaseURL:    cfg.OKXBaseURL,
		ProxyURL:   cfg.ProxyURL,
	})
	if err != nil {
		return nil, err
	}

	// ---- Alert backends ----
	var backends []notification.Notifier
	if cfg.TGBotToken != "" && cfg.TGChatID != "" {
		backends = append(backends, notification.NewTelegramNotifier(cfg.TGBotToken, cfg.TGChatID))
		log.Println("[watcher] telegram alerts enabled")
	}
	if cfg.WebhookURL != "" {
		backends = append(backends, notification.NewWebhookNotifier(cfg.WebhookURL))
		log.Println("[watcher] webhook alerts enabled")
	}
	if len(backends) == 0 {
		log.Println("[watcher] WARNING: no alert backend configured, signals go to the log only")
	}
	svc.notifier = notification.NewMulti(backends...)

	// ---- Signal journal (optional) ----
	if cfg.SQLitePath != "" {
		os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755)
		svc.journal, err = sqlitestore.New(sqlitestore.JournalConfig{DBPath: cfg.SQLitePath})
		if err != nil {
			log.Printf("[watcher] WARNING: signal journal init failed: %v (continuing without history)", err)
			svc.journal = nil
		} else {
			svc.health.SetJournalEnabled(true)
			if last, ok, err := svc.journal.LastSignal(context.Background()); err != nil {
				log.Printf("[watcher] WARNING: journal read failed: %v", err)
			} else if ok {
				log.Printf("[watcher] last journaled signal: %s at %s", last.Key(), last.DetectedAt.Format(time.RFC3339))
			}
		}
	}

	// ---- Redis publisher (optional) ----
	if cfg.RedisAddr != "" {
		svc.publisher, err = redisstore.New(redisstore.PublisherConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			log.Printf("[watcher] WARNING: redis publisher init failed: %v (continuing without stream fan-out)", err)
			svc.publisher = nil
		} else {
			svc.health.SetRedisEnabled(true)
		}
	}

	// ---- Gateway (optional) ----
	if cfg.GatewayAddr != "" {
		var reader model.SignalReader
		if svc.journal != nil {
			reader = svc.journal
		}
		svc.gw = gateway.NewServer(
			gateway.Config{Addr: cfg.GatewayAddr, ReplaySize: 64},
			reader,
			gateway.ConfigInfo{
				Tokens:          svc.tokens,
				FastWindow:      svc.fastW,
				SlowWindow:      svc.slowW,
				PollIntervalSec: int(cfg.PollInterval() / time.Second),
			},
		)
	}

	// ---- Metrics, bus, scheduler ----
	svc.promSrv = metrics.NewServer(cfg.MetricsAddr, svc.prom, svc.health)
	svc.bus = signalbus.New(64)
	svc.sched = NewScheduler(SchedulerConfig{
		Tokens:       svc.tokens,
		FastWindow:   svc.fastW,
		SlowWindow:   svc.slowW,
		PollInterval: cfg.PollInterval(),
		RequestDelay: cfg.RequestDelay(),
		MinCandles:   cfg.MinCandleCount(),
	}, svc.client, svc.notifier, svc.events, svc.prom, svc.health)

	return svc, nil
}

// Run starts all subsystems and blocks until ctx is cancelled and the
// current polling cycle has finished.
func (svc *Service) Run(ctx context.Context) error {
	cfg := svc.cfg
	log.Println("[watcher] starting EMA golden cross watcher...")

	// ---- Metrics + health server ----
	svc.promSrv.Start()

	// ---- Sinks (subscribed before the bus starts) ----
	var wg sync.WaitGroup
	var sinkNames []string

	if svc.journal != nil {
		ch := svc.bus.Subscribe()
		sinkNames = append(sinkNames, "journal")
		wg.Add(1)
		go func() {
			defer wg.Done()
			svc.journal.Run(ctx, ch)
		}()
	}
	if svc.publisher != nil {
		ch := svc.bus.Subscribe()
		sinkNames = append(sinkNames, "redis")
		wg.Add(1)
		go func() {
			defer wg.Done()
			svc.publisher.Run(ctx, ch)
		}()
	}
	if svc.gw != nil {
		ch := svc.bus.Subscribe()
		sinkNames = append(sinkNames, "gateway")
		svc.gw.Start()
		wg.Add(1)
		go func() {
			defer wg.Done()
			svc.gw.Run(ctx, ch)
		}()
	}

	names := sinkNames
	svc.bus.OnDrop = func(i int) {
		name := "unknown"
		if i >= 0 && i < len(names) {
			name = names[i]
		}
		svc.prom.EventsDropped.WithLabelValues(name).Inc()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		svc.bus.Run(ctx, svc.events)
	}()

	// ---- Liveness probes ----
	var rdb *goredis.Client
	if svc.publisher != nil {
		rdb = svc.publisher.Client()
	}
	var db *sql.DB
	if svc.journal != nil {
		db = svc.journal.DB()
	}
	if rdb != nil || db != nil {
		svc.health.StartLivenessChecker(ctx, rdb, db, 10*time.Second)
	}

	// ---- Startup banner ----
	log.Println("[watcher] ╔════════════════════════════════════════════════════════╗")
	log.Println("[watcher] ║  EMA Golden Cross Watcher Active                       ║")
	log.Println("[watcher] ║                                                        ║")
	log.Println("[watcher] ║  [OKX DEX Candles] → [EMA fast/slow] → [Alerts]        ║")
	log.Printf("[watcher] ║  Tokens: %d   EMA: %d/%d   Poll: %s", len(svc.tokens), svc.fastW, svc.slowW, cfg.PollInterval())
	log.Println("[watcher] ╚════════════════════════════════════════════════════════╝")
	log.Println("[watcher] ✅ all systems running. Press Ctrl+C to stop.")

	// ---- Poll loop (foreground) ----
	svc.sched.Run(ctx)

	// ---- Graceful shutdown ----
	svc.shutdown(&wg)
	return nil
}

// shutdown drains the pipeline and closes every sink. Called after the
// polling loop has already returned, so nothing writes to events anymore.
func (svc *Service) shutdown(wg *sync.WaitGroup) {
	log.Println("[watcher] shutdown signal received, draining pipeline...")

	close(svc.events)

	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if svc.gw != nil {
		svc.gw.Stop(shutCtx)
	}
	svc.promSrv.Stop(shutCtx)

	wg.Wait()

	if svc.journal != nil {
		svc.journal.Close()
	}
	if svc.publisher != nil {
		svc.publisher.Close()
	}

	log.Println("[watcher] shutdown complete.")
}
