package notification

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestEscapeMarkdown(t *testing.T) {
	cases := []struct{ in, want string }{
		{"plain words", "plain words"},
		{"a_b*c", `a\_b\*c`},
		{"[-2]", `\[\-2\]`},
		{"price=0.000012", `price\=0\.000012`},
		{"EMA144/576 cross@15m", "EMA144/576 cross@15m"},
	}
	for _, tc := range cases {
		if got := escapeMarkdown(tc.in); got != tc.want {
			t.Errorf("escapeMarkdown(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestTelegramNotifier_Send(t *testing.T) {
	var got struct {
		ChatID    string `json:"chat_id"`
		Text      string `json:"text"`
		ParseMode string `json:"parse_mode"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/bot123:abc/sendMessage") {
			t.Errorf("path = %q", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	n := NewTelegramNotifier("123:abc", "-100200")
	n.apiBase = srv.URL

	err := n.Send(context.Background(), Alert{Level: AlertInfo, Title: "Golden cross: pepe", Message: "cross@15m[-2]"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got.ChatID != "-100200" {
		t.Errorf("chat_id = %q", got.ChatID)
	}
	if got.ParseMode != "MarkdownV2" {
		t.Errorf("parse_mode = %q", got.ParseMode)
	}
	if !strings.HasPrefix(got.Text, "📈 *") {
		t.Errorf("info alert text should open with the signal emoji and bold title, got %q", got.Text)
	}
	if !strings.Contains(got.Text, `\[\-2\]`) {
		t.Errorf("message should be MarkdownV2-escaped, got %q", got.Text)
	}
}

func TestTelegramNotifier_SendErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"ok":false,"description":"Bad Request"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	n := NewTelegramNotifier("123:abc", "-100200")
	n.apiBase = srv.URL

	if err := n.Send(context.Background(), Alert{Level: AlertInfo, Title: "x", Message: "y"}); err == nil {
		t.Fatal("want error on non-200 status")
	}
}

func TestWebhookNotifier_Send(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	err := NewWebhookNotifier(srv.URL).Send(context.Background(), Alert{
		Level: AlertWarning, Title: "t", Message: "m",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got["source"] != "crosswatch" || got["level"] != "WARNING" || got["title"] != "t" || got["message"] != "m" {
		t.Errorf("payload = %v", got)
	}
	if _, ok := got["ts"].(string); !ok {
		t.Errorf("payload missing ts: %v", got)
	}
}

func TestWebhookNotifier_SendErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	if err := NewWebhookNotifier(srv.URL).Send(context.Background(), Alert{Title: "t"}); err == nil {
		t.Fatal("want error on 500 status")
	}
}

type stubNotifier struct {
	calls int
	err   error
}

func (s *stubNotifier) Send(ctx context.Context, alert Alert) error {
	s.calls++
	return s.err
}

func TestMulti_TriesEveryBackend(t *testing.T) {
	ok := &stubNotifier{}
	bad := &stubNotifier{err: errors.New("boom")}
	after := &stubNotifier{}

	err := NewMulti(ok, bad, after).Send(context.Background(), Alert{Title: "t"})
	if err == nil {
		t.Fatal("want joined error from failing backend")
	}
	if ok.calls != 1 || bad.calls != 1 || after.calls != 1 {
		t.Errorf("calls = %d, %d, %d; every backend should be tried once", ok.calls, bad.calls, after.calls)
	}
}

func TestMulti_EmptyFallsBackToLog(t *testing.T) {
	if _, isLog := NewMulti().(*LogNotifier); !isLog {
		t.Fatal("empty Multi should degrade to LogNotifier")
	}
}
