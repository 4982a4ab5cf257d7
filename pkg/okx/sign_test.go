package okx

import (
	"encoding/base64"
	"testing"
	"time"
)

func TestTimestamp_MillisecondPrecision(t *testing.T) {
	got := Timestamp(time.Date(2024, 5, 1, 12, 30, 45, 123_000_000, time.UTC))
	want := "1714566645.123"
	if got != want {
		t.Fatalf("Timestamp = %q, want %q", got, want)
	}
}

func TestTimestamp_ZoneAgnostic(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	got := Timestamp(time.Date(2024, 5, 1, 18, 0, 45, 0, ist))
	want := "1714566645.000"
	if got != want {
		t.Fatalf("Timestamp = %q, want %q", got, want)
	}
}

func TestSign_Deterministic(t *testing.T) {
	const (
		secret = "mysecret"
		ts     = "1714566645.123"
		path   = "/api/v5/dex/market/candles?bar=15m&limit=600"
	)
	a := Sign(secret, ts, "GET", path, "")
	b := Sign(secret, ts, "GET", path, "")
	if a == "" {
		t.Fatal("Sign returned empty string")
	}
	if a != b {
		t.Fatalf("same inputs produced different signatures: %q vs %q", a, b)
	}
}

func TestSign_UppercasesMethod(t *testing.T) {
	const (
		secret = "mysecret"
		ts     = "1714566645.123"
		path   = "/api/v5/dex/market/candles"
	)
	if Sign(secret, ts, "get", path, "") != Sign(secret, ts, "GET", path, "") {
		t.Fatal("lowercase method should sign identically to uppercase")
	}
}

func TestSign_SensitiveToEveryInput(t *testing.T) {
	const (
		secret = "mysecret"
		ts     = "1714566645.123"
		path   = "/api/v5/dex/market/candles?bar=15m"
	)
	base := Sign(secret, ts, "GET", path, "")

	variants := map[string]string{
		"secret":    Sign("othersecret", ts, "GET", path, ""),
		"timestamp": Sign(secret, "1714566645.124", "GET", path, ""),
		"method":    Sign(secret, ts, "POST", path, ""),
		"path":      Sign(secret, ts, "GET", path+"&limit=1", ""),
		"body":      Sign(secret, ts, "GET", path, "{}"),
	}
	for input, sig := range variants {
		if sig == base {
			t.Errorf("changing %s did not change the signature", input)
		}
	}
}

func TestSign_DecodesToSHA256Digest(t *testing.T) {
	sig := Sign("mysecret", "1714566645.123", "GET", "/api/v5/dex/market/candles", "")
	raw, err := base64.StdEncoding.DecodeString(sig)
	if err != nil {
		t.Fatalf("signature is not valid base64: %v", err)
	}
	if len(raw) != 32 {
		t.Fatalf("decoded signature is %d bytes, want 32", len(raw))
	}
}
