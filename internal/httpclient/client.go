// Package httpclient is the shared outbound HTTP client of every source:
// per-host rate limiting, a request timeout and a fixed user agent.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/specials/internal/common"
	"github.com/ternarybob/specials/internal/models"
)

// maxBodyBytes caps response bodies read into memory
const maxBodyBytes = 32 << 20

// StatusError is a non-2xx response. It matches models.ErrNetwork.
type StatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.StatusCode)
}

// Is makes errors.Is(err, models.ErrNetwork) hold for status errors
func (e *StatusError) Is(target error) bool {
	return target == models.ErrNetwork
}

// Client performs rate-limited GET requests
type Client struct {
	httpClient *http.Client
	userAgent  string
	interval   time.Duration
	burst      int
	logger     arbor.ILogger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// New creates a client from the [http] configuration section
func New(config *common.HTTPConfig, logger arbor.ILogger) *Client {
	burst := config.Burst
	if burst < 1 {
		burst = 1
	}
	return &Client{
		httpClient: &http.Client{Timeout: common.ParseDurationOr(config.Timeout, 30*time.Second)},
		userAgent:  config.UserAgent,
		interval:   common.ParseDurationOr(config.RateLimit, 300*time.Millisecond),
		burst:      burst,
		logger:     logger,
		limiters:   make(map[string]*rate.Limiter),
	}
}

// HTTPClient exposes the underlying client for SDKs that take one
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// limiter returns the limiter of one host, creating it on first use
func (c *Client) limiter(host string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()

	l, ok := c.limiters[host]
	if !ok {
		l = rate.NewLimiter(rate.Every(c.interval), c.burst)
		c.limiters[host] = l
	}
	return l
}

// Get fetches rawURL with optional query parameters and headers and returns
// the body. Transport failures and non-2xx statuses wrap models.ErrNetwork.
func (c *Client) Get(ctx context.Context, rawURL string, params url.Values, headers map[string]string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", rawURL, err)
	}
	if len(params) > 0 {
		q := u.Query()
		for k, vs := range params {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	// Wait for rate limiter
	if err := c.limiter(u.Host).Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait for %s: %w", u.Host, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("GET %s: %w", u.Host, ctx.Err())
		}
		return nil, fmt.Errorf("GET %s: %v: %w", u.Host, err, models.ErrNetwork)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body from %s: %v: %w", u.Host, err, models.ErrNetwork)
	}

	c.logger.Debug().
		Str("url", u.String()).
		Int("status", resp.StatusCode).
		Int("bytes", len(body)).
		Dur("duration", time.Since(start)).
		Msg("HTTP GET")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := body
		if len(snippet) > 512 {
			snippet = snippet[:512]
		}
		return nil, &StatusError{StatusCode: resp.StatusCode, URL: u.String(), Body: string(snippet)}
	}

	return body, nil
}

// GetJSON fetches rawURL and decodes a JSON body into result. Decode
// failures wrap models.ErrParse.
func (c *Client) GetJSON(ctx context.Context, rawURL string, params url.Values, result interface{}) error {
	body, err := c.Get(ctx, rawURL, params, map[string]string{"Accept": "application/json"})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("decode %s: %v: %w", rawURL, err, models.ErrParse)
	}
	return nil
}

// GetDocument fetches rawURL and parses the body as HTML
func (c *Client) GetDocument(ctx context.Context, rawURL string, params url.Values) (*goquery.Document, error) {
	body, err := c.Get(ctx, rawURL, params, map[string]string{"Accept": "text/html"})
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html from %s: %v: %w", rawURL, err, models.ErrParse)
	}
	return doc, nil
}
