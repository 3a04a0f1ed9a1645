package nasa

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/five82/skylens/internal/apierr"
	"github.com/five82/skylens/internal/cache"
)

// Response is a successful pipeline result.
type Response struct {
	Body       []byte
	StatusCode int
	// FromCache is set when no network call was made. Diagnostics only.
	FromCache bool
	// UpstreamCacheHit mirrors the proxy's X-Cache: HIT header. Diagnostics only.
	UpstreamCacheHit bool
	Elapsed          time.Duration
}

// exchange carries one logical request through the stages.
type exchange struct {
	method   string
	endpoint string
	route    string
	params   url.Values
	body     []byte
	key      string
	started  time.Time

	status int
	header http.Header
	data   []byte
	cached bool
	done   bool
}

// stage is one step of the pipeline. Setting x.done ends the run early.
type stage func(ctx context.Context, x *exchange) error

func newExchange(method, endpoint string, params url.Values, body []byte) *exchange {
	endpoint = "/" + strings.Trim(strings.TrimSpace(endpoint), "/")
	return &exchange{
		method:   method,
		endpoint: endpoint,
		route:    routeOf(endpoint),
		params:   params,
		body:     body,
	}
}

// getStages: credential injection, key, cache check, then one collapsed
// upstream round trip (transport, classification, cache write).
func (c *Client) getStages() []stage {
	return []stage{
		c.injectCredential,
		c.computeKey,
		c.lookupCache,
		c.collapse(c.send, c.classify, c.storeCache),
	}
}

// refreshStages skip the cache lookup but still collapse and store.
func (c *Client) refreshStages() []stage {
	return []stage{
		c.injectCredential,
		c.computeKey,
		c.collapse(c.send, c.classify, c.storeCache),
	}
}

func (c *Client) directStages() []stage {
	return []stage{
		c.injectCredential,
		c.send,
		c.classify,
	}
}

func (c *Client) run(ctx context.Context, x *exchange, stages []stage) (*Response, error) {
	x.started = c.now()

	var err error
	for _, s := range stages {
		if err = s(ctx, x); err != nil || x.done {
			break
		}
	}

	elapsed := c.now().Sub(x.started)
	if elapsed > c.slowThreshold {
		c.metrics.RecordSlow(x.route)
		c.logger.Warn("slow request", "method", x.method, "endpoint", x.endpoint, "elapsed", elapsed, "threshold", c.slowThreshold)
	}

	if err != nil {
		var classified *apierr.Error
		if errors.As(err, &classified) {
			c.metrics.RecordError(classified.Kind.String(), x.route)
		}
		c.metrics.RecordRequest(x.method, x.route, "error")
		c.logger.Debug("request failed", "method", x.method, "endpoint", x.endpoint, "elapsed", elapsed, "error", err)
		return nil, err
	}

	outcome := "ok"
	if x.cached {
		outcome = "cached"
	}
	c.metrics.RecordRequest(x.method, x.route, outcome)

	return &Response{
		Body:             bytes.Clone(x.data),
		StatusCode:       x.status,
		FromCache:        x.cached,
		UpstreamCacheHit: strings.EqualFold(x.header.Get("X-Cache"), "HIT"),
		Elapsed:          elapsed,
	}, nil
}

// injectCredential copies the caller's params and adds the API key.
func (c *Client) injectCredential(_ context.Context, x *exchange) error {
	augmented := make(url.Values, len(x.params)+1)
	for name, values := range x.params {
		augmented[name] = append([]string(nil), values...)
	}
	augmented.Set(CredentialParam, c.apiKey)
	x.params = augmented
	return nil
}

func (c *Client) computeKey(_ context.Context, x *exchange) error {
	x.key = cache.Key(x.endpoint, x.params, CredentialParam)
	return nil
}

func (c *Client) lookupCache(_ context.Context, x *exchange) error {
	if c.cache == nil {
		return nil
	}
	entry, ok := c.cache.Lookup(x.key)
	if !ok {
		c.metrics.RecordCacheMiss(x.route)
		return nil
	}
	c.metrics.RecordCacheHit(x.route)
	c.logger.Debug("served from cache", "key", x.key, "age", entry.Age(c.now()))
	x.data = entry.Payload
	x.status = http.StatusOK
	x.cached = true
	x.done = true
	return nil
}

// upstreamResult is what collapsed callers share.
type upstreamResult struct {
	status int
	header http.Header
	data   []byte
}

// collapse runs stages once per cache key no matter how many callers miss
// concurrently; every caller receives the same outcome.
func (c *Client) collapse(stages ...stage) stage {
	return func(ctx context.Context, x *exchange) error {
		v, err, shared := c.flight.Do(x.key, func() (any, error) {
			for _, s := range stages {
				if err := s(ctx, x); err != nil {
					return nil, err
				}
			}
			return upstreamResult{status: x.status, header: x.header, data: x.data}, nil
		})
		if shared {
			c.metrics.RecordCollapsed(x.route)
		}
		if err != nil {
			return err
		}
		res := v.(upstreamResult)
		x.status, x.header, x.data = res.status, res.header, res.data
		return nil
	}
}

// send performs the HTTP round trip. Failing to build the request is a
// configuration error; failing to get a response is a network error.
func (c *Client) send(ctx context.Context, x *exchange) error {
	reqURL := c.baseURL.JoinPath(x.endpoint)
	reqURL.RawQuery = x.params.Encode()

	var body io.Reader
	if len(x.body) > 0 {
		body = bytes.NewReader(x.body)
	}
	req, err := http.NewRequestWithContext(ctx, x.method, reqURL.String(), body)
	if err != nil {
		return apierr.FromRequest(err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	started := c.now()
	resp, err := c.http.Do(req)
	if err != nil {
		return apierr.FromTransport(err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	c.metrics.ObserveUpstream(x.method, x.route, resp.StatusCode, c.now().Sub(started))
	if err != nil {
		return apierr.FromTransport(err)
	}
	if len(data) > maxBodyBytes {
		return apierr.FromTransport(fmt.Errorf("response body exceeds %d bytes", maxBodyBytes))
	}

	x.status = resp.StatusCode
	x.header = resp.Header
	x.data = data
	return nil
}

func (c *Client) classify(_ context.Context, x *exchange) error {
	if x.status >= 200 && x.status < 300 {
		return nil
	}
	return apierr.FromStatus(x.status, x.data)
}

// storeCache runs only after classify let a 2xx through, so failures are never cached.
func (c *Client) storeCache(_ context.Context, x *exchange) error {
	if c.cache != nil {
		c.cache.Set(x.key, x.data)
	}
	return nil
}

// routeOf reduces an endpoint to a low-cardinality label: identifiers in
// /neo/{id}, /resources/{id} and /resources/asset/{id} are replaced.
func routeOf(endpoint string) string {
	parts := strings.Split(strings.Trim(endpoint, "/"), "/")
	switch {
	case len(parts) == 2 && parts[0] == "neo" && parts[1] != "feed" && parts[1] != "browse":
		return "/neo/{id}"
	case len(parts) == 2 && parts[0] == "resources" && parts[1] != "featured" && parts[1] != "search":
		return "/resources/{id}"
	case len(parts) == 3 && parts[0] == "resources" && parts[1] == "asset":
		return "/resources/asset/{id}"
	}
	return "/" + strings.Join(parts, "/")
}
