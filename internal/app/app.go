package app

import (
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/five82/skylens/internal/batch"
	"github.com/five82/skylens/internal/cache"
	"github.com/five82/skylens/internal/config"
	"github.com/five82/skylens/internal/metrics"
	"github.com/five82/skylens/internal/nasa"
	"github.com/five82/skylens/internal/prefetch"
)

// App wires the request layer together. Every command builds exactly one.
type App struct {
	Config   config.Config
	Logger   *slog.Logger
	Cache    *cache.Store
	Metrics  *metrics.Collector
	Client   *nasa.Client
	Batch    *batch.Dispatcher
	Prefetch *prefetch.Service
}

// New builds the cache, client, dispatcher and prefetcher from cfg. A nil
// registry disables metrics; a nil logger discards diagnostics.
func New(cfg config.Config, logger *slog.Logger, reg prometheus.Registerer) (*App, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	var m *metrics.Collector
	cacheOpts := []cache.Option{}
	if reg != nil {
		m = metrics.New(reg)
		cacheOpts = append(cacheOpts, cache.WithObserver(m))
	}
	store := cache.New(cacheOpts...)

	client, err := nasa.NewClient(cfg.APIURL,
		nasa.WithAPIKey(cfg.APIKey),
		nasa.WithCache(store),
		nasa.WithTimeout(cfg.Timeout),
		nasa.WithSlowThreshold(cfg.SlowThreshold),
		nasa.WithRetry(cfg.RetryPolicy()),
		nasa.WithMetrics(m),
		nasa.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("init api client: %w", err)
	}

	return &App{
		Config:  cfg,
		Logger:  logger,
		Cache:   store,
		Metrics: m,
		Client:  client,
		Batch: batch.New(client,
			batch.WithConcurrency(cfg.BatchConcurrency),
			batch.WithMetrics(m),
			batch.WithLogger(logger),
		),
		Prefetch: prefetch.New(client,
			prefetch.WithTimeout(cfg.Timeout),
			prefetch.WithMetrics(m),
			prefetch.WithLogger(logger),
		),
	}, nil
}

// Close waits for background prefetches to finish.
func (a *App) Close() {
	if a == nil {
		return
	}
	a.Prefetch.Wait()
}
