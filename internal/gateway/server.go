// Package gateway serves the watcher's read surface: live signal events
// over a websocket feed with replay, plus small REST endpoints for recent
// history and the running configuration.
package gateway

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"crosswatch/internal/model"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // dashboards connect from arbitrary origins
	},
	EnableCompression: true,
}

// SetCORS applies permissive CORS headers for browser clients.
func SetCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

// Config holds the gateway settings.
type Config struct {
	Addr       string
	ReplaySize int
}

// ConfigInfo is the static watcher setup served on /api/config, so a
// dashboard can label its panels without hardcoding the token list.
type ConfigInfo struct {
	Tokens          []model.TokenConfig `json:"tokens"`
	FastWindow      int                 `json:"fast_window"`
	SlowWindow      int                 `json:"slow_window"`
	PollIntervalSec int                 `json:"poll_interval_sec"`
}

// Server owns the HTTP listener and the websocket hub.
type Server struct {
	hub     *Hub
	reader  model.SignalReader // nil when the journal is disabled
	info    ConfigInfo
	srv     *http.Server
	started time.Time
}

func NewServer(cfg Config, reader model.SignalReader, info ConfigInfo) *Server {
	s := &Server{
		hub:     NewHub(cfg.ReplaySize),
		reader:  reader,
		info:    info,
		started: time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/api/signals/recent", s.handleRecent)
	mux.HandleFunc("/api/config", s.handleConfig)
	mux.HandleFunc("/health", s.handleHealth)

	s.srv = &http.Server{Addr: cfg.Addr, Handler: mux}
	return s
}

// Handler exposes the route mux.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Run consumes signal events until the channel closes or ctx is
// cancelled, wrapping each one in a typed envelope:
//
//	{"type":"signal","data":{...},"ts":"2026-08-25T10:00:01.5Z"}
func (s *Server) Run(ctx context.Context, events <-chan model.SignalEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				log.Printf("[gateway] marshal signal %s: %v", ev.ID, err)
				continue
			}
			s.hub.Broadcast(buildEnvelope("signal", data, time.Now().UTC()))
		}
	}
}

// buildEnvelope wraps an already-marshalled payload without a second
// json.Marshal pass.
func buildEnvelope(typ string, data []byte, now time.Time) []byte {
	buf := make([]byte, 0, len(typ)+len(data)+64)
	buf = append(buf, `{"type":"`...)
	buf = append(buf, typ...)
	buf = append(buf, `","data":`...)
	buf = append(buf, data...)
	buf = append(buf, `,"ts":"`...)
	buf = now.AppendFormat(buf, time.RFC3339Nano)
	buf = append(buf, `"}`...)
	return buf
}

// Start begins serving in the background.
func (s *Server) Start() {
	go func() {
		log.Printf("[gateway] listening on %s", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("[gateway] server error: %v", err)
		}
	}()
}

// Stop shuts the HTTP listener down gracefully. Connected websocket
// clients are dropped when their connections close.
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[gateway] ws upgrade error: %v", err)
		return
	}
	s.hub.Register(conn)
}

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	SetCORS(w)
	if r.Method == http.MethodOptions {
		return
	}
	w.Header().Set("Content-Type", "application/json")

	if s.reader == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"error": "signal journal disabled"})
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"error": "limit must be a positive integer"})
			return
		}
		if n > 500 {
			n = 500
		}
		limit = n
	}

	events, err := s.reader.Recent(r.Context(), limit)
	if err != nil {
		log.Printf("[gateway] recent signals query failed: %v", err)
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": "query failed"})
		return
	}
	if events == nil {
		events = []model.SignalEvent{}
	}
	json.NewEncoder(w).Encode(events)
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	SetCORS(w)
	if r.Method == http.MethodOptions {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.info)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	SetCORS(w)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":     "ok",
		"uptime_sec": int(time.Since(s.started).Seconds()),
		"clients":    s.hub.ClientCount(),
	})
}
