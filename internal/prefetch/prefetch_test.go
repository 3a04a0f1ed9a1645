package prefetch

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/five82/skylens/internal/cache"
	"github.com/five82/skylens/internal/metrics"
	"github.com/five82/skylens/internal/nasa"
)

// syncBuffer guards a bytes.Buffer shared with background goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newClient(t *testing.T, handler http.HandlerFunc) (*nasa.Client, *cache.Store) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	store := cache.New()
	c, err := nasa.NewClient(srv.URL, nasa.WithCache(store))
	require.NoError(t, err)
	return c, store
}

func TestPrefetch_WarmsCache(t *testing.T) {
	var hits atomic.Int32
	client, store := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = io.WriteString(w, `{"title":"warm"}`)
	})

	s := New(client)
	s.Prefetch("/apod", url.Values{"date": {"2024-05-05"}})
	s.Wait()

	entry, ok := store.Lookup(cache.Key("/apod", url.Values{"date": {"2024-05-05"}, nasa.CredentialParam: {"DEMO_KEY"}}, nasa.CredentialParam))
	require.True(t, ok)
	assert.JSONEq(t, `{"title":"warm"}`, string(entry.Payload))

	_, err := client.Get(context.Background(), "/apod", url.Values{"date": {"2024-05-05"}})
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestPrefetch_FailureIsSilent(t *testing.T) {
	client, store := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	var logs syncBuffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	reg := prometheus.NewRegistry()

	s := New(client, WithLogger(logger), WithMetrics(metrics.New(reg)))
	assert.NotPanics(t, func() {
		s.Prefetch("/neo/feed", nil)
		s.Wait()
	})

	assert.Equal(t, 0, store.Len())
	assert.Contains(t, logs.String(), "prefetch failed")
	assert.Contains(t, logs.String(), "level=WARN")
}

type blockingFetcher struct {
	release chan struct{}
	done    atomic.Bool
}

func (b *blockingFetcher) Get(ctx context.Context, _ string, _ url.Values) ([]byte, error) {
	select {
	case <-b.release:
		b.done.Store(true)
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestPrefetch_ReturnsImmediately(t *testing.T) {
	f := &blockingFetcher{release: make(chan struct{})}
	s := New(f)

	start := time.Now()
	s.Prefetch("/resources/featured", nil)
	assert.Less(t, time.Since(start), 50*time.Millisecond)
	assert.False(t, f.done.Load())

	close(f.release)
	s.Wait()
	assert.True(t, f.done.Load())
}

type ctxFetcher struct {
	err atomic.Value
}

func (c *ctxFetcher) Get(ctx context.Context, _ string, _ url.Values) ([]byte, error) {
	<-ctx.Done()
	c.err.Store(ctx.Err())
	return nil, ctx.Err()
}

func TestPrefetch_TimeoutBoundsFetch(t *testing.T) {
	f := &ctxFetcher{}
	s := New(f, WithTimeout(20*time.Millisecond))

	s.Prefetch("/neo/browse", nil)
	s.Wait()

	err, _ := f.err.Load().(error)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestPrefetch_NilService(t *testing.T) {
	var s *Service
	assert.NotPanics(t, func() {
		s.Prefetch("/apod", nil)
		s.Wait()
	})
}
