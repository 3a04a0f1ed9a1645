package nasa

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/five82/skylens/internal/apierr"
	"github.com/five82/skylens/internal/cache"
	"github.com/five82/skylens/internal/metrics"
	"github.com/five82/skylens/internal/retry"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// upstream is a scripted test server that counts every request it sees.
type upstream struct {
	*httptest.Server
	hits    atomic.Int32
	mu      sync.Mutex
	queries []url.Values
	methods []string
}

func newUpstream(t *testing.T, handler http.HandlerFunc) *upstream {
	t.Helper()
	u := &upstream{}
	u.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.hits.Add(1)
		u.mu.Lock()
		u.queries = append(u.queries, r.URL.Query())
		u.methods = append(u.methods, r.Method)
		u.mu.Unlock()
		handler(w, r)
	}))
	t.Cleanup(u.Close)
	return u
}

func (u *upstream) lastQuery() url.Values {
	u.mu.Lock()
	defer u.mu.Unlock()
	if len(u.queries) == 0 {
		return nil
	}
	return u.queries[len(u.queries)-1]
}

func okJSON(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}
}

func newTestClient(t *testing.T, baseURL string, opts ...Option) *Client {
	t.Helper()
	c, err := NewClient(baseURL, opts...)
	require.NoError(t, err)
	return c
}

func TestParseBaseURL_DefaultsAndNormalizes(t *testing.T) {
	u, err := parseBaseURL("")
	require.NoError(t, err)
	assert.Equal(t, "http", u.Scheme)
	assert.Equal(t, "127.0.0.1:5000", u.Host)
	assert.Equal(t, "/api", u.Path)

	u, err = parseBaseURL("example.com:8080/api/?x=1#frag")
	require.NoError(t, err)
	assert.Equal(t, "http://example.com:8080/api", u.String())

	_, err = parseBaseURL("http://")
	assert.Error(t, err)
}

func TestGet_CacheHitMakesNoNetworkCall(t *testing.T) {
	srv := newUpstream(t, okJSON(`{"title":"Horsehead"}`))
	c := newTestClient(t, srv.URL, WithCache(cache.New()))
	ctx := context.Background()

	first, err := c.Fetch(ctx, "/apod", url.Values{"date": {"2024-01-01"}})
	require.NoError(t, err)
	assert.False(t, first.FromCache)

	second, err := c.Fetch(ctx, "/apod", url.Values{"date": {"2024-01-01"}})
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, first.Body, second.Body)
	assert.Equal(t, int32(1), srv.hits.Load())
}

func TestGet_ExpiredEntryGoesUpstream(t *testing.T) {
	srv := newUpstream(t, okJSON(`{}`))
	clock := &manualClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := newTestClient(t, srv.URL, WithCache(cache.New(cache.WithClock(clock.Now))))
	ctx := context.Background()

	_, err := c.Get(ctx, "/apod", nil)
	require.NoError(t, err)

	clock.Advance(cache.DefaultTTL - time.Second)
	_, err = c.Get(ctx, "/apod", nil)
	require.NoError(t, err)
	assert.Equal(t, int32(1), srv.hits.Load())

	clock.Advance(time.Second)
	_, err = c.Get(ctx, "/apod", nil)
	require.NoError(t, err)
	assert.Equal(t, int32(2), srv.hits.Load())
}

func TestGet_InjectsCredentialWithoutMutatingParams(t *testing.T) {
	srv := newUpstream(t, okJSON(`{}`))
	store := cache.New()
	c := newTestClient(t, srv.URL, WithAPIKey("secret"), WithCache(store))

	params := url.Values{"b": {"2"}, "a": {"1"}}
	_, err := c.Get(context.Background(), "apod", params)
	require.NoError(t, err)

	assert.Equal(t, "secret", srv.lastQuery().Get(CredentialParam))
	assert.Equal(t, "1", srv.lastQuery().Get("a"))
	_, present := params[CredentialParam]
	assert.False(t, present, "caller params must not gain the credential")

	stats := store.Stats()
	require.Equal(t, 1, stats.Count)
	assert.Equal(t, "/apod?a=1&b=2", stats.Entries[0].Key)
}

func TestGet_ParamOrderSharesCacheEntry(t *testing.T) {
	srv := newUpstream(t, okJSON(`{}`))
	c := newTestClient(t, srv.URL, WithCache(cache.New()))
	ctx := context.Background()

	params := url.Values{}
	params.Add("start_date", "2024-01-01")
	params.Add("end_date", "2024-01-07")
	_, err := c.Get(ctx, "/neo/feed", params)
	require.NoError(t, err)

	reordered := url.Values{"end_date": {"2024-01-07"}, "start_date": {"2024-01-01"}}
	_, err = c.Get(ctx, "/neo/feed", reordered)
	require.NoError(t, err)
	assert.Equal(t, int32(1), srv.hits.Load())
}

func TestGet_ClassifiesFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
		msg    string
	}{
		{"unauthorized", http.StatusUnauthorized, "", apierr.ErrAuth, "Invalid API key"},
		{"forbidden", http.StatusForbidden, "", apierr.ErrForbidden, "API access forbidden"},
		{"rate limited", http.StatusTooManyRequests, "", apierr.ErrRateLimit, "rate limit exceeded"},
		{"server", http.StatusInternalServerError, "", apierr.ErrServer, "server error"},
		{"unavailable", http.StatusServiceUnavailable, "", apierr.ErrServer, "temporarily unavailable"},
		{"upstream message", http.StatusBadRequest, `{"error":{"message":"bad date"}}`, apierr.ErrUnknownStatus, "bad date"},
		{"bare status", http.StatusTeapot, "", apierr.ErrUnknownStatus, "API error: 418"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newUpstream(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})
			store := cache.New()
			c := newTestClient(t, srv.URL, WithCache(store))

			_, err := c.Get(context.Background(), "/apod", nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)

			var classified *apierr.Error
			require.ErrorAs(t, err, &classified)
			assert.Equal(t, tt.status, classified.Status)
			assert.Equal(t, tt.msg, classified.Message)
			assert.Equal(t, 0, store.Len(), "failures must not be cached")
		})
	}
}

func TestGet_FailureThenSuccessIsFetchedAgain(t *testing.T) {
	var calls atomic.Int32
	srv := newUpstream(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = io.WriteString(w, `{"ok":true}`)
	})
	c := newTestClient(t, srv.URL, WithCache(cache.New()))
	ctx := context.Background()

	_, err := c.Get(ctx, "/apod", nil)
	require.ErrorIs(t, err, apierr.ErrRateLimit)

	body, err := c.Get(ctx, "/apod", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))
	assert.Equal(t, int32(2), srv.hits.Load())
}

func TestGet_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c := newTestClient(t, base, WithTimeout(time.Second))
	_, err := c.Get(context.Background(), "/apod", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, apierr.ErrNetwork)
	assert.Equal(t, "unable to reach API", err.(*apierr.Error).Message)
}

func TestGet_InvalidMethodIsConfigError(t *testing.T) {
	srv := newUpstream(t, okJSON(`{}`))
	c := newTestClient(t, srv.URL)

	_, err := c.Do(context.Background(), "BAD METHOD", "/apod", nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, apierr.ErrConfig)
	assert.Equal(t, int32(0), srv.hits.Load())
}

func TestDo_NonGetBypassesCache(t *testing.T) {
	srv := newUpstream(t, okJSON(`{"saved":true}`))
	store := cache.New()
	c := newTestClient(t, srv.URL, WithAPIKey("k"), WithCache(store))
	ctx := context.Background()

	for range 2 {
		resp, err := c.Do(ctx, http.MethodPost, "/favorites", nil, []byte(`{"id":"1"}`))
		require.NoError(t, err)
		assert.False(t, resp.FromCache)
	}
	assert.Equal(t, int32(2), srv.hits.Load())
	assert.Equal(t, 0, store.Len())
	assert.Equal(t, "k", srv.lastQuery().Get(CredentialParam))
	assert.Equal(t, http.MethodPost, srv.methods[1])
}

func TestFetch_ReportsUpstreamCacheHeader(t *testing.T) {
	srv := newUpstream(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("X-Cache", "HIT")
		_, _ = io.WriteString(w, `{}`)
	})
	c := newTestClient(t, srv.URL)

	resp, err := c.Fetch(context.Background(), "/apod", nil)
	require.NoError(t, err)
	assert.True(t, resp.UpstreamCacheHit)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGet_ConcurrentMissesShareOneCall(t *testing.T) {
	release := make(chan struct{})
	srv := newUpstream(t, func(w http.ResponseWriter, _ *http.Request) {
		<-release
		_, _ = io.WriteString(w, `{"n":1}`)
	})
	reg := prometheus.NewRegistry()
	c := newTestClient(t, srv.URL, WithCache(cache.New()), WithMetrics(metrics.New(reg)))

	const callers = 8
	var wg sync.WaitGroup
	results := make([][]byte, callers)
	errs := make([]error, callers)
	for i := range callers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.Get(context.Background(), "/neo/browse", nil)
		}(i)
	}
	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()

	for i := range callers {
		require.NoError(t, errs[i])
		assert.JSONEq(t, `{"n":1}`, string(results[i]))
	}
	assert.Equal(t, int32(1), srv.hits.Load())
}

func TestRun_LogsSlowRequests(t *testing.T) {
	srv := newUpstream(t, okJSON(`{}`))
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))

	var mu sync.Mutex
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	c := newTestClient(t, srv.URL, WithLogger(logger), WithMetrics(m), withClock(clock))

	_, err := c.Get(context.Background(), "/neo/3542519", nil)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "slow request")
	assert.Contains(t, buf.String(), "endpoint=/neo/3542519")

	expected := `
# HELP skylens_slow_requests_total Requests that exceeded the slow-request threshold.
# TYPE skylens_slow_requests_total counter
skylens_slow_requests_total{endpoint="/neo/{id}"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "skylens_slow_requests_total"))
}

func TestRun_FastRequestsAreNotLogged(t *testing.T) {
	srv := newUpstream(t, okJSON(`{}`))
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
	c := newTestClient(t, srv.URL, WithLogger(logger))

	_, err := c.Get(context.Background(), "/apod", nil)
	require.NoError(t, err)
	assert.Empty(t, buf.String())
}

func TestGetWithRetry_StopsAfterMaxRetries(t *testing.T) {
	srv := newUpstream(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	c := newTestClient(t, srv.URL, WithMetrics(m))

	var retries []int
	_, err := c.GetWithRetry(context.Background(), "/apod", nil, retry.Policy{
		MaxRetries: 2,
		Delay:      10 * time.Millisecond,
		OnRetry:    func(next int, _ error) { retries = append(retries, next) },
	})
	require.ErrorIs(t, err, apierr.ErrServer)
	assert.Equal(t, int32(3), srv.hits.Load())
	assert.Equal(t, []int{1, 2}, retries)

	expected := `
# HELP skylens_retries_total Retry attempts, by endpoint and attempt number.
# TYPE skylens_retries_total counter
skylens_retries_total{attempt="1",endpoint="/apod"} 1
skylens_retries_total{attempt="2",endpoint="/apod"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "skylens_retries_total"))
}

func TestGetWithRetry_RecoversOnLaterAttempt(t *testing.T) {
	var calls atomic.Int32
	srv := newUpstream(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = io.WriteString(w, `{"ok":1}`)
	})
	c := newTestClient(t, srv.URL)

	body, err := c.GetWithRetry(context.Background(), "/apod", nil, retry.Policy{MaxRetries: 2, Delay: time.Millisecond})
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":1}`, string(body))
}

func TestClearCacheAndStats(t *testing.T) {
	srv := newUpstream(t, okJSON(`{}`))
	c := newTestClient(t, srv.URL, WithCache(cache.New()))
	ctx := context.Background()

	_, err := c.Get(ctx, "/apod", nil)
	require.NoError(t, err)
	_, err = c.Get(ctx, "/resources/featured", nil)
	require.NoError(t, err)

	stats := c.CacheStats()
	assert.Equal(t, 2, stats.Count)
	for _, e := range stats.Entries {
		assert.True(t, e.Valid)
	}

	c.ClearCache()
	assert.Equal(t, 0, c.CacheStats().Count)
	_, err = c.Get(ctx, "/apod", nil)
	require.NoError(t, err)
	assert.Equal(t, int32(3), srv.hits.Load())
}

func TestSweepCache_DropsOnlyExpiredEntries(t *testing.T) {
	srv := newUpstream(t, okJSON(`{}`))
	clock := &manualClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := newTestClient(t, srv.URL, WithCache(cache.New(cache.WithClock(clock.Now))))
	ctx := context.Background()

	_, err := c.Get(ctx, "/apod", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, c.SweepCache())

	clock.Advance(cache.DefaultTTL)
	_, err = c.Get(ctx, "/resources/featured", nil)
	require.NoError(t, err)

	assert.Equal(t, 1, c.SweepCache())
	stats := c.CacheStats()
	require.Len(t, stats.Entries, 1)
	assert.Equal(t, "/resources/featured", stats.Entries[0].Key)
}

func TestNilClient(t *testing.T) {
	var c *Client
	_, err := c.Get(context.Background(), "/apod", nil)
	assert.Error(t, err)
	assert.NotPanics(t, c.ClearCache)
	assert.Equal(t, 0, c.SweepCache())
	assert.Equal(t, 0, c.CacheStats().Count)
}

func TestRouteOf(t *testing.T) {
	tests := map[string]string{
		"/apod":                     "/apod",
		"/neo/feed":                 "/neo/feed",
		"/neo/browse":               "/neo/browse",
		"/neo/3542519":              "/neo/{id}",
		"/resources/featured":       "/resources/featured",
		"/resources/search":         "/resources/search",
		"/resources/PIA12235":       "/resources/{id}",
		"/resources/asset/PIA12235": "/resources/asset/{id}",
	}
	for in, want := range tests {
		if got := routeOf(in); got != want {
			t.Fatalf("routeOf(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestGet_ContextCanceled(t *testing.T) {
	srv := newUpstream(t, okJSON(`{}`))
	c := newTestClient(t, srv.URL)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Get(ctx, "/apod", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.ErrorIs(t, err, apierr.ErrNetwork)
}

func TestRefresh_BypassesValidEntry(t *testing.T) {
	var n atomic.Int32
	srv := newUpstream(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"v":`+strconv.Itoa(int(n.Add(1)))+`}`)
	})
	store := cache.New()
	c := newTestClient(t, srv.URL, WithCache(store))
	ctx := context.Background()

	_, err := c.Get(ctx, "/apod", nil)
	require.NoError(t, err)

	fresh, err := c.Refresh(ctx, "/apod", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":2}`, string(fresh))
	assert.Equal(t, int32(2), srv.hits.Load())

	got, err := c.Get(ctx, "/apod", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":2}`, string(got), "refresh should replace the cached payload")
	assert.Equal(t, int32(2), srv.hits.Load())
}

func TestRefresh_FailureKeepsPreviousEntry(t *testing.T) {
	var fail atomic.Bool
	srv := newUpstream(t, func(w http.ResponseWriter, _ *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, `{"ok":true}`)
	})
	store := cache.New()
	c := newTestClient(t, srv.URL, WithCache(store))
	ctx := context.Background()

	_, err := c.Get(ctx, "/apod", nil)
	require.NoError(t, err)

	fail.Store(true)
	_, err = c.Refresh(ctx, "/apod", nil)
	assert.ErrorIs(t, err, apierr.ErrServer)

	entry, ok := store.Lookup("/apod")
	require.True(t, ok)
	assert.JSONEq(t, `{"ok":true}`, string(entry.Payload))
}

func TestGet_OversizedBodyIsRejectedAndNotCached(t *testing.T) {
	srv := newUpstream(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(bytes.Repeat([]byte("a"), maxBodyBytes+1))
	})
	store := cache.New()
	c := newTestClient(t, srv.URL, WithCache(store))

	body, err := c.Get(context.Background(), "/apod", nil)
	require.ErrorIs(t, err, apierr.ErrNetwork)
	assert.Nil(t, body)
	assert.Equal(t, 0, store.Len())
}

func TestGet_BodyAtLimitIsAccepted(t *testing.T) {
	srv := newUpstream(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(bytes.Repeat([]byte("a"), maxBodyBytes))
	})
	c := newTestClient(t, srv.URL)

	body, err := c.Get(context.Background(), "/apod", nil)
	require.NoError(t, err)
	assert.Len(t, body, maxBodyBytes)
}

func TestWithRetry_TypedEndpointsRetry(t *testing.T) {
	var calls atomic.Int32
	srv := newUpstream(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, `{"title":"Pillars"}`)
	})
	c := newTestClient(t, srv.URL, WithRetry(retry.Policy{MaxRetries: 2, Delay: time.Millisecond}))

	apod, err := c.APOD(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "Pillars", apod.Title)
	assert.Equal(t, int32(3), srv.hits.Load())
}

func TestWithRetry_GetStaysSingleAttempt(t *testing.T) {
	srv := newUpstream(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	c := newTestClient(t, srv.URL, WithRetry(retry.Policy{MaxRetries: 2, Delay: time.Millisecond}))

	_, err := c.Get(context.Background(), "/apod", nil)
	require.ErrorIs(t, err, apierr.ErrServer)
	assert.Equal(t, int32(1), srv.hits.Load())
}

func TestWithTimeout_LeavesSharedClientUntouched(t *testing.T) {
	shared := &http.Client{}
	c := newTestClient(t, "http://127.0.0.1:1", WithHTTPClient(shared), WithTimeout(time.Second))

	assert.Zero(t, shared.Timeout)
	assert.Equal(t, time.Second, c.http.Timeout)
	assert.NotSame(t, shared, c.http)
}
