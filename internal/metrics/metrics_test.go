package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/five82/skylens/internal/cache"
)

var _ cache.Observer = (*Collector)(nil)

func TestNilCollectorIsNoop(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.RecordRequest("GET", "/apod", "ok")
		c.ObserveUpstream("GET", "/apod", 200, time.Second)
		c.RecordSlow("/apod")
		c.RecordCacheHit("/apod")
		c.RecordCacheMiss("/apod")
		c.RecordCollapsed("/apod")
		c.RecordRetry("/apod", 1)
		c.RecordError("NetworkError", "/apod")
		c.RecordBatchItem(true)
		c.RecordPrefetch(false)
		c.EntryStored(3)
		c.Swept(1, 2)
		c.Cleared()
	})
}

func TestCollectorCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	c.RecordRequest("GET", "/apod", "cached")
	c.RecordRequest("GET", "/apod", "cached")
	c.RecordCacheHit("/apod")
	c.RecordCacheMiss("/neo/feed")
	c.RecordRetry("/apod", 1)
	c.RecordBatchItem(true)
	c.RecordBatchItem(false)
	c.RecordPrefetch(false)
	c.RecordError("RateLimitError", "/apod")

	assert.Equal(t, 2.0, testutil.ToFloat64(c.requestsTotal.WithLabelValues("GET", "/apod", "cached")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.cacheHits.WithLabelValues("/apod")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.cacheMisses.WithLabelValues("/neo/feed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.retriesTotal.WithLabelValues("/apod", "1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.batchItems.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.batchItems.WithLabelValues("failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.prefetchTotal.WithLabelValues("failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.errorsTotal.WithLabelValues("RateLimitError", "/apod")))
}

func TestCollectorObservesCache(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	store := cache.New(cache.WithObserver(c), cache.WithSweepThreshold(1), cache.WithTTL(time.Nanosecond))
	store.Set("a", nil)
	time.Sleep(time.Millisecond)
	store.Set("b", nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.cacheSwept))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.cacheEntries))

	store.Clear()
	assert.Equal(t, 0.0, testutil.ToFloat64(c.cacheEntries))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.cacheClears))
}

func TestCollectorExposition(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)
	c.RecordSlow("/neo/browse")

	expected := `
# HELP skylens_slow_requests_total Requests that exceeded the slow-request threshold.
# TYPE skylens_slow_requests_total counter
skylens_slow_requests_total{endpoint="/neo/browse"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "skylens_slow_requests_total"))
}
