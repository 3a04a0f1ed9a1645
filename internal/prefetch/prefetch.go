package prefetch

import (
	"context"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/five82/skylens/internal/metrics"
	"github.com/five82/skylens/internal/nasa"
)

const defaultTimeout = 10 * time.Second

// Service issues background fetches through a nasa.Fetcher.
type Service struct {
	fetcher nasa.Fetcher
	logger  *slog.Logger
	metrics *metrics.Collector
	timeout time.Duration
	wg      sync.WaitGroup
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets where prefetch failures are reported.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics counts prefetch outcomes on m.
func WithMetrics(m *metrics.Collector) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithTimeout bounds each background fetch.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// New returns a Service that warms through f.
func New(f nasa.Fetcher, opts ...Option) *Service {
	s := &Service{
		fetcher: f,
		logger:  slog.New(slog.DiscardHandler),
		timeout: defaultTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Prefetch starts a background fetch of endpoint and returns immediately.
// The fetch is not tied to any caller context.
func (s *Service) Prefetch(endpoint string, params url.Values) {
	if s == nil || s.fetcher == nil {
		return
	}
	params = cloneValues(params)
	s.wg.Go(func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		_, err := s.fetcher.Get(ctx, endpoint, params)
		s.metrics.RecordPrefetch(err == nil)
		if err != nil {
			s.logger.Warn("prefetch failed", "endpoint", endpoint, "error", err)
			return
		}
		s.logger.Debug("prefetched", "endpoint", endpoint)
	})
}

// Wait blocks until every started prefetch has finished.
func (s *Service) Wait() {
	if s == nil {
		return
	}
	s.wg.Wait()
}

func cloneValues(v url.Values) url.Values {
	if v == nil {
		return nil
	}
	out := make(url.Values, len(v))
	for k, vals := range v {
		out[k] = append([]string(nil), vals...)
	}
	return out
}
