// Package app is the composition root for skylens.
//
// # Overview
//
// This package wires the response cache, the API client, the batch dispatcher
// and the prefetch service together from a loaded config.Config. Commands
// build one App and use its fields; nothing else constructs these pieces.
//
// # Components
//
//   - app.go: New, which builds and connects every component, and Close
//   - warmer.go: Background goroutine that keeps selected responses cached
//
// # Data Flow
//
//	┌──────────────┐
//	│   New()      │ Initialize everything
//	└──────┬───────┘
//	       │
//	       ├─────> metrics.New(reg)     Prometheus collector (optional)
//	       ├─────> cache.New()          Shared response cache
//	       ├─────> nasa.NewClient()     Request pipeline over the cache
//	       ├─────> batch.New(client)    Concurrent fan-out
//	       └─────> prefetch.New(client) Fire-and-forget warming
//
//	Background Warmer Loop:
//	┌─────────────────────────────────────────┐
//	│ StartWarmer() goroutine                 │
//	│  ├─> client.Refresh(target) per target  │
//	│  │    └─> cache refreshed on success    │
//	│  └─> wait interval, or back off         │
//	└─────────────────────────────────────────┘
//
// # Warming Behavior
//
// The warmer re-fetches its targets every interval (default 4 minutes, just
// under the cache TTL). A cycle counts as failed only when every target
// fails; after consecutive failed cycles the wait doubles each time, capped
// at 30 minutes, and resets on the first success. Failures are logged at
// Warn level and never stop the loop.
//
// # Error Handling
//
// New fails only if the configured api_url cannot be parsed. Everything the
// warmer and the prefetcher encounter is logged and counted, not returned.
//
// # Usage Example
//
//	a, err := app.New(cfg, logger, prometheus.DefaultRegisterer)
//	if err != nil {
//		return err
//	}
//	defer a.Close()
//
//	a.StartWarmer(ctx, app.DefaultTargets(), cfg.WarmInterval)
//	apod, err := a.Client.APOD(ctx, "")
package app
