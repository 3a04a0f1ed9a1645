package app

import (
	"context"
	"log/slog"
	"net/url"
	"time"

	"github.com/five82/skylens/internal/metrics"
	"github.com/five82/skylens/internal/nasa"
)

const (
	defaultWarmInterval = 4 * time.Minute
	maxBackoff          = 30 * time.Minute
)

// refresher is satisfied by *nasa.Client.
type refresher interface {
	Refresh(ctx context.Context, endpoint string, params url.Values) ([]byte, error)
}

// Target is one request kept warm in the cache.
type Target struct {
	Endpoint string
	Params   url.Values
}

// DefaultTargets are warmed when no targets are configured.
func DefaultTargets() []Target {
	return []Target{
		{Endpoint: "/apod"},
		{Endpoint: "/resources/featured"},
		{Endpoint: nasa.BrowseEndpoint, Params: nasa.BrowseParams(0, 0)},
	}
}

// StartWarmer launches a background goroutine that re-fetches targets at a
// fixed cadence so their cache entries stay fresh. When every target fails
// the next cycle is pushed back exponentially, up to maxBackoff. It returns
// immediately; the goroutine exits when ctx is done.
func (a *App) StartWarmer(ctx context.Context, targets []Target, interval time.Duration) {
	if len(targets) == 0 {
		targets = DefaultTargets()
	}
	go runWarmer(ctx, a.Client, a.Metrics, a.Logger, targets, interval)
}

func runWarmer(ctx context.Context, f refresher, m *metrics.Collector, logger *slog.Logger, targets []Target, interval time.Duration) {
	if interval <= 0 {
		interval = defaultWarmInterval
	}
	failures := 0
	for {
		if warm(ctx, f, m, logger, targets) {
			failures = 0
		} else {
			failures++
		}
		wait := calculateBackoff(failures, interval)
		if failures > 0 {
			logger.Warn("cache warm failed", "consecutive_failures", failures, "next_attempt_in", wait)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// warm fetches every target once and reports whether at least one succeeded.
func warm(ctx context.Context, f refresher, m *metrics.Collector, logger *slog.Logger, targets []Target) bool {
	ok := false
	for _, t := range targets {
		if ctx.Err() != nil {
			return ok
		}
		_, err := f.Refresh(ctx, t.Endpoint, t.Params)
		m.RecordPrefetch(err == nil)
		if err != nil {
			logger.Warn("warm target failed", "endpoint", t.Endpoint, "error", err)
			continue
		}
		ok = true
	}
	return ok
}

// calculateBackoff doubles base once per consecutive failure, capped at maxBackoff.
func calculateBackoff(failures int, base time.Duration) time.Duration {
	if failures <= 0 {
		return base
	}
	d := base
	for range failures {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return d
}
