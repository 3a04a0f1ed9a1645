package nasa

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/five82/skylens/internal/cache"
	"github.com/five82/skylens/internal/metrics"
	"github.com/five82/skylens/internal/retry"
)

// Fetcher is the read side of the pipeline. It is implemented by *Client and
// consumed by batch dispatching and prefetching.
type Fetcher interface {
	Get(ctx context.Context, endpoint string, params url.Values) ([]byte, error)
}

// Ensure Client implements Fetcher at compile time.
var _ Fetcher = (*Client)(nil)

const (
	// CredentialParam is the query parameter carrying the API key.
	CredentialParam = "api_key"

	defaultBaseURL       = "http://127.0.0.1:5000/api"
	defaultAPIKey        = "DEMO_KEY"
	defaultUserAgent     = "skylens/0.1"
	defaultTimeout       = 10 * time.Second
	defaultSlowThreshold = 2 * time.Second
	maxBodyBytes         = 10 << 20
)

// Client talks to the upstream API through the caching request pipeline.
// It is safe for concurrent use.
type Client struct {
	baseURL       *url.URL
	http          *http.Client
	apiKey        string
	userAgent     string
	cache         *cache.Store
	metrics       *metrics.Collector
	logger        *slog.Logger
	slowThreshold time.Duration
	retry         *retry.Policy
	now           func() time.Time
	flight        singleflight.Group
}

// Option configures a Client.
type Option func(*Client)

// WithAPIKey sets the credential appended to every request.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		if k := strings.TrimSpace(key); k != "" {
			c.apiKey = k
		}
	}
}

// WithCache injects the response cache. Without one every GET goes upstream.
func WithCache(store *cache.Store) Option {
	return func(c *Client) {
		c.cache = store
	}
}

// WithHTTPClient replaces the transport client. Its Timeout is left as given.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout bounds each upstream call. The transport client is copied
// first, so a client passed to WithHTTPClient is never modified.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			hc := *c.http
			hc.Timeout = d
			c.http = &hc
		}
	}
}

// WithRetry applies p to every typed endpoint call. Get, Fetch and Refresh
// still make a single attempt.
func WithRetry(p retry.Policy) Option {
	return func(c *Client) {
		c.retry = &p
	}
}

// WithSlowThreshold sets the duration above which a request is logged as slow.
func WithSlowThreshold(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.slowThreshold = d
		}
	}
}

// WithMetrics records pipeline activity on m.
func WithMetrics(m *metrics.Collector) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithLogger sets the diagnostic logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// withClock replaces time.Now for elapsed-time measurements in tests.
func withClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// NewClient builds a Client for the API rooted at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	base, err := parseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	c := &Client{
		baseURL:       base,
		http:          &http.Client{Timeout: defaultTimeout},
		apiKey:        defaultAPIKey,
		userAgent:     defaultUserAgent,
		logger:        slog.New(slog.DiscardHandler),
		slowThreshold: defaultSlowThreshold,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Get returns the payload for a GET request, from cache when a valid entry exists.
func (c *Client) Get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	resp, err := c.Fetch(ctx, endpoint, params)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// Fetch runs a GET through the full pipeline and reports how it was served.
func (c *Client) Fetch(ctx context.Context, endpoint string, params url.Values) (*Response, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	return c.run(ctx, newExchange(http.MethodGet, endpoint, params, nil), c.getStages())
}

// Refresh fetches endpoint upstream even when a valid entry is cached, and
// stores the new payload. Concurrent Gets for the same key share its result.
func (c *Client) Refresh(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	resp, err := c.run(ctx, newExchange(http.MethodGet, endpoint, params, nil), c.refreshStages())
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// Do runs a request of any method. Non-GET requests bypass the cache but are
// still credentialed and classified.
func (c *Client) Do(ctx context.Context, method, endpoint string, params url.Values, body []byte) (*Response, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" || method == http.MethodGet {
		return c.Fetch(ctx, endpoint, params)
	}
	return c.run(ctx, newExchange(method, endpoint, params, body), c.directStages())
}

// GetWithRetry wraps Get in a bounded fixed-delay retry loop.
func (c *Client) GetWithRetry(ctx context.Context, endpoint string, params url.Values, policy retry.Policy) ([]byte, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	route := routeOf(endpoint)
	hook := policy.OnRetry
	policy.OnRetry = func(next int, err error) {
		c.metrics.RecordRetry(route, next)
		c.logger.Info("retrying request", "endpoint", endpoint, "attempt", next, "max_retries", policy.MaxRetries, "delay", policy.Delay, "error", err)
		if hook != nil {
			hook(next, err)
		}
	}
	return retry.Do(ctx, policy, func(ctx context.Context) ([]byte, error) {
		return c.Get(ctx, endpoint, params)
	})
}

// ClearCache drops every cached response.
func (c *Client) ClearCache() {
	if c == nil || c.cache == nil {
		return
	}
	c.cache.Clear()
	c.logger.Info("cache cleared")
}

// SweepCache drops expired cache entries and returns how many were removed.
func (c *Client) SweepCache() int {
	if c == nil || c.cache == nil {
		return 0
	}
	removed := c.cache.Sweep()
	c.logger.Debug("cache swept", "removed", removed, "remaining", c.cache.Len())
	return removed
}

// CacheStats reports the cache contents for diagnostics.
func (c *Client) CacheStats() cache.Stats {
	if c == nil || c.cache == nil {
		return cache.Stats{}
	}
	return c.cache.Stats()
}

func parseBaseURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		trimmed = defaultBaseURL
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse api_url %q: %w", raw, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("parse api_url %q: missing host", raw)
	}
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
