package metrics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func healthProbe(t *testing.T, h *HealthStatus) (int, string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode health body: %v", err)
	}
	return rec.Code, body.Status
}

func TestHealthStatus_NoBackendsIsHealthy(t *testing.T) {
	h := NewHealthStatus()

	code, status := healthProbe(t, h)
	if code != http.StatusOK || status != "healthy" {
		t.Fatalf("got %d/%s, want 200/healthy", code, status)
	}
}

func TestHealthStatus_EnabledBackendDownIsDegraded(t *testing.T) {
	h := NewHealthStatus()
	h.RedisEnabled = true
	h.RedisConnected = false

	code, status := healthProbe(t, h)
	if code != http.StatusServiceUnavailable || status != "degraded" {
		t.Fatalf("got %d/%s, want 503/degraded", code, status)
	}
}

func TestHealthStatus_BothBackendsDownIsUnhealthy(t *testing.T) {
	h := NewHealthStatus()
	h.RedisEnabled = true
	h.JournalEnabled = true

	code, status := healthProbe(t, h)
	if code != http.StatusServiceUnavailable || status != "unhealthy" {
		t.Fatalf("got %d/%s, want 503/unhealthy", code, status)
	}
}

func TestHealthStatus_EnabledBackendsUp(t *testing.T) {
	h := NewHealthStatus()
	h.SetRedisEnabled(true)
	h.SetJournalEnabled(true)
	h.MarkCycle()

	code, status := healthProbe(t, h)
	if code != http.StatusOK || status != "healthy" {
		t.Fatalf("got %d/%s, want 200/healthy", code, status)
	}
}

func TestNewMetrics_MultipleInstances(t *testing.T) {
	// Two instances must not fight over metric registration.
	a := NewMetrics()
	b := NewMetrics()

	a.CyclesTotal.Inc()
	b.CyclesTotal.Inc()
	a.FetchErrors.WithLabelValues("PEPE", "transport").Inc()
	b.TokensSkipped.WithLabelValues("insufficient_history").Inc()
}

func TestMetricsHandler_Exposition(t *testing.T) {
	m := NewMetrics()
	m.CyclesTotal.Inc()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "crosswatch_cycles_total 1") {
		t.Errorf("exposition missing crosswatch_cycles_total:\n%s", rec.Body.String())
	}
}
