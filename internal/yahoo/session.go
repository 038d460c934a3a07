// Package yahoo fetches historical OHLCV chart data and instrument metadata
// for exchange-listed symbols from the Yahoo Finance chart API, with cookie
// warm-up, bounded retry, and host failover.
package yahoo

import (
	"io"
	"net/http"
	"net/http/cookiejar"
	"time"
)

// defaultHeaders is the static header profile applied to every request
// issued through a session, resembling a browser-originated request.
var defaultHeaders = map[string]string{
	"User-Agent": "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/124.0 Safari/537.36",
	"Accept":          "application/json, text/plain, */*",
	"Accept-Language": "en-US,en;q=0.9",
	"Connection":      "keep-alive",
	"Pragma":          "no-cache",
	"Cache-Control":   "no-cache",
}

// retryStatus is the set of HTTP status codes retried at the session level.
var retryStatus = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// SessionOptions configure the retrying HTTP session.
type SessionOptions struct {
	MaxRetries    int           // attempts per request (default 5)
	BackoffFactor float64       // base backoff in seconds, doubled per attempt (default 1.25)
	Timeout       time.Duration // per-request timeout (default 20s)
	Transport     http.RoundTripper
}

// NewSession builds a connection-pooled *http.Client with a cookie jar, a
// bounded retry policy on transient failures (429/5xx and connection
// errors, GET only), and the static browser header profile. No network I/O
// happens at construction time.
func NewSession(opts SessionOptions) *http.Client {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 5
	}
	if opts.BackoffFactor <= 0 {
		opts.BackoffFactor = 1.25
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}

	base := opts.Transport
	if base == nil {
		base = &http.Transport{
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		}
	}

	jar, _ := cookiejar.New(nil)

	return &http.Client{
		Timeout: opts.Timeout,
		Jar:     jar,
		Transport: &retryTransport{
			base:        base,
			maxAttempts: opts.MaxRetries,
			baseDelay:   time.Duration(opts.BackoffFactor * float64(time.Second)),
		},
	}
}

// retryTransport retries idempotent GET requests on transient status codes
// and connection-level failures, with exponential backoff between attempts.
// Non-GET requests and non-transient statuses pass through untouched.
type retryTransport struct {
	base        http.RoundTripper
	maxAttempts int
	baseDelay   time.Duration
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	for k, v := range defaultHeaders {
		if req.Header.Get(k) == "" {
			req.Header.Set(k, v)
		}
	}

	if req.Method != http.MethodGet {
		return t.base.RoundTrip(req)
	}

	var resp *http.Response
	var err error
	delay := t.baseDelay

	for attempt := 0; attempt < t.maxAttempts; attempt++ {
		resp, err = t.base.RoundTrip(req)
		if err == nil && !retryStatus[resp.StatusCode] {
			return resp, nil
		}
		if attempt == t.maxAttempts-1 {
			break
		}
		if resp != nil {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}
		select {
		case <-req.Context().Done():
			return nil, req.Context().Err()
		case <-time.After(delay):
		}
		delay *= 2
	}

	// Out of budget: hand the caller whatever the last attempt produced.
	return resp, err
}
