// Package okx is a small client for the OKX web3 DEX market API. It signs
// every request the way the exchange expects (HMAC-SHA256 over
// timestamp+method+path+body) and decodes candle history into model types.
package okx

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"crosswatch/internal/model"
)

const (
	defaultBaseURL = "https://web3.okx.com"
	defaultTimeout = 15 * time.Second

	candlesPath = "/api/v5/dex/market/candles"
)

// Config carries credentials and connection settings for the market client.
type Config struct {
	APIKey     string
	SecretKey  string
	Passphrase string

	BaseURL  string        // default: https://web3.okx.com
	Timeout  time.Duration // default: 15s
	ProxyURL string        // optional HTTP(S) proxy for all requests
}

// Client talks to the DEX market endpoints.
type Client struct {
	cfg        Config
	baseURL    string
	httpClient *http.Client
}

// New builds a Client, applying defaults for anything unset.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}

	tr := &http.Transport{
		TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12},
	}
	if cfg.ProxyURL != "" {
		purl, err := url.Parse(cfg.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("okx: bad proxy url: %w", err)
		}
		tr.Proxy = http.ProxyURL(purl)
	}

	return &Client{
		cfg:        cfg,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Transport: tr, Timeout: cfg.Timeout},
	}, nil
}

// candlesResponse is the upstream envelope. Candle rows arrive as arrays of
// strings: [ts-ms, open, high, low, close, vol, volUsd, confirm].
type candlesResponse struct {
	Code string     `json:"code"`
	Msg  string     `json:"msg"`
	Data [][]string `json:"data"`
}

// Candles fetches up to limit bars for the token, oldest first. The upstream
// returns newest first; the series is normalized before returning.
func (c *Client) Candles(ctx context.Context, tok model.TokenConfig, limit int) (model.Series, error) {
	q := url.Values{}
	q.Set("chainIndex", strconv.Itoa(tok.ChainIndex))
	q.Set("tokenContractAddress", strings.ToLower(tok.Contract))
	q.Set("bar", tok.Bar)
	q.Set("limit", strconv.Itoa(limit))
	requestPath := candlesPath + "?" + q.Encode()

	// One timestamp string serves both the header and the signature.
	ts := Timestamp(time.Now())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+requestPath, nil)
	if err != nil {
		return nil, &APIError{Kind: KindTransport, Op: "candles", Err: err}
	}
	c.setAuthHeaders(req, ts, http.MethodGet, requestPath, "")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &APIError{Kind: KindTransport, Op: "candles", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &APIError{Kind: KindTransport, Op: "candles", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{
			Kind: KindUpstream,
			Op:   "candles",
			Msg:  fmt.Sprintf("http %d: %s", resp.StatusCode, truncate(raw, 200)),
		}
	}

	var envelope candlesResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, &APIError{Kind: KindData, Op: "candles", Err: err}
	}
	if envelope.Code != "0" {
		return nil, &APIError{Kind: KindUpstream, Op: "candles", Code: envelope.Code, Msg: envelope.Msg}
	}

	series := make(model.Series, 0, len(envelope.Data))
	for _, row := range envelope.Data {
		candle, err := parseCandle(row)
		if err != nil {
			return nil, &APIError{Kind: KindData, Op: "candles", Err: err}
		}
		series = append(series, candle)
	}
	return series.Normalize(), nil
}

// setAuthHeaders attaches the signed authentication headers. ts must be the
// exact string the signature was computed over.
func (c *Client) setAuthHeaders(req *http.Request, ts, method, path, body string) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("OK-ACCESS-KEY", c.cfg.APIKey)
	req.Header.Set("OK-ACCESS-SIGN", Sign(c.cfg.SecretKey, ts, method, path, body))
	req.Header.Set("OK-ACCESS-TIMESTAMP", ts)
	req.Header.Set("OK-ACCESS-PASSPHRASE", c.cfg.Passphrase)
}

func parseCandle(row []string) (model.Candle, error) {
	if len(row) < 8 {
		return model.Candle{}, fmt.Errorf("candle row has %d fields, want 8", len(row))
	}
	ms, err := strconv.ParseInt(row[0], 10, 64)
	if err != nil {
		return model.Candle{}, fmt.Errorf("candle ts %q: %w", row[0], err)
	}
	vals := make([]float64, 6)
	for i := range vals {
		v, err := strconv.ParseFloat(row[i+1], 64)
		if err != nil {
			return model.Candle{}, fmt.Errorf("candle field %d %q: %w", i+1, row[i+1], err)
		}
		vals[i] = v
	}
	return model.Candle{
		TS:        time.UnixMilli(ms).UTC(),
		Open:      vals[0],
		High:      vals[1],
		Low:       vals[2],
		Close:     vals[3],
		Vol:       vals[4],
		VolUSD:    vals[5],
		Confirmed: row[7] == "1",
	}, nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return string(b)
}
