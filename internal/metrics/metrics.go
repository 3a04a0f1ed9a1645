package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "skylens"

// Collector records request, cache, retry, batch and prefetch activity.
type Collector struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	slowRequests    *prometheus.CounterVec

	cacheHits    *prometheus.CounterVec
	cacheMisses  *prometheus.CounterVec
	cacheEntries prometheus.Gauge
	cacheSwept   prometheus.Counter
	cacheClears  prometheus.Counter
	collapsed    *prometheus.CounterVec

	retriesTotal *prometheus.CounterVec

	batchItems *prometheus.CounterVec

	prefetchTotal *prometheus.CounterVec

	errorsTotal *prometheus.CounterVec
}

// New registers the collector's metrics on reg.
func New(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Requests handled by the pipeline, by endpoint and outcome.",
			},
			[]string{"method", "endpoint", "outcome"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "Wall-clock duration of upstream requests.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "endpoint", "status_code"},
		),
		slowRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "slow_requests_total",
				Help:      "Requests that exceeded the slow-request threshold.",
			},
			[]string{"endpoint"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_hits_total",
				Help:      "Requests served from the response cache.",
			},
			[]string{"endpoint"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_misses_total",
				Help:      "Cacheable requests that went upstream.",
			},
			[]string{"endpoint"},
		),
		cacheEntries: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "cache_entries",
				Help:      "Entries currently held by the response cache, expired ones included.",
			},
		),
		cacheSwept: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_swept_entries_total",
				Help:      "Expired entries removed by write-triggered sweeps.",
			},
		),
		cacheClears: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_clears_total",
				Help:      "Explicit cache clears.",
			},
		),
		collapsed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "collapsed_requests_total",
				Help:      "Cache misses that shared an identical in-flight upstream call.",
			},
			[]string{"endpoint"},
		),
		retriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "retries_total",
				Help:      "Retry attempts, by endpoint and attempt number.",
			},
			[]string{"endpoint", "attempt"},
		),
		batchItems: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "batch_items_total",
				Help:      "Batch items dispatched, by outcome.",
			},
			[]string{"outcome"},
		),
		prefetchTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "prefetch_total",
				Help:      "Background prefetches, by outcome.",
			},
			[]string{"outcome"},
		),
		errorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Classified request failures, by kind.",
			},
			[]string{"kind", "endpoint"},
		),
	}
}

// RecordRequest counts a finished pipeline call. outcome is "ok", "cached" or "error".
func (c *Collector) RecordRequest(method, endpoint, outcome string) {
	if c == nil {
		return
	}
	c.requestsTotal.WithLabelValues(method, endpoint, outcome).Inc()
}

// ObserveUpstream records the duration of one upstream round trip.
func (c *Collector) ObserveUpstream(method, endpoint string, statusCode int, d time.Duration) {
	if c == nil {
		return
	}
	c.requestDuration.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Observe(d.Seconds())
}

// RecordSlow counts a request over the slow threshold.
func (c *Collector) RecordSlow(endpoint string) {
	if c == nil {
		return
	}
	c.slowRequests.WithLabelValues(endpoint).Inc()
}

// RecordCacheHit counts a cache hit.
func (c *Collector) RecordCacheHit(endpoint string) {
	if c == nil {
		return
	}
	c.cacheHits.WithLabelValues(endpoint).Inc()
}

// RecordCacheMiss counts a cache miss.
func (c *Collector) RecordCacheMiss(endpoint string) {
	if c == nil {
		return
	}
	c.cacheMisses.WithLabelValues(endpoint).Inc()
}

// RecordCollapsed counts a miss that joined an in-flight call.
func (c *Collector) RecordCollapsed(endpoint string) {
	if c == nil {
		return
	}
	c.collapsed.WithLabelValues(endpoint).Inc()
}

// RecordRetry counts a retry attempt.
func (c *Collector) RecordRetry(endpoint string, attempt int) {
	if c == nil {
		return
	}
	c.retriesTotal.WithLabelValues(endpoint, strconv.Itoa(attempt)).Inc()
}

// RecordError counts a classified failure.
func (c *Collector) RecordError(kind, endpoint string) {
	if c == nil {
		return
	}
	c.errorsTotal.WithLabelValues(kind, endpoint).Inc()
}

// RecordBatchItem counts one batch item outcome.
func (c *Collector) RecordBatchItem(success bool) {
	if c == nil {
		return
	}
	c.batchItems.WithLabelValues(outcome(success)).Inc()
}

// RecordPrefetch counts one prefetch outcome.
func (c *Collector) RecordPrefetch(success bool) {
	if c == nil {
		return
	}
	c.prefetchTotal.WithLabelValues(outcome(success)).Inc()
}

// EntryStored implements cache.Observer.
func (c *Collector) EntryStored(size int) {
	if c == nil {
		return
	}
	c.cacheEntries.Set(float64(size))
}

// Swept implements cache.Observer.
func (c *Collector) Swept(removed, remaining int) {
	if c == nil {
		return
	}
	c.cacheSwept.Add(float64(removed))
	c.cacheEntries.Set(float64(remaining))
}

// Cleared implements cache.Observer.
func (c *Collector) Cleared() {
	if c == nil {
		return
	}
	c.cacheClears.Inc()
	c.cacheEntries.Set(0)
}

func outcome(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
