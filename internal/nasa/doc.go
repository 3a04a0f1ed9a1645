// Package nasa provides the caching, credentialed HTTP client for the
// upstream astronomy API.
//
// # Overview
//
// Every call to the upstream goes through a fixed request pipeline. The
// pipeline adds the API key, consults the response cache, performs the
// round trip, classifies failures and stores successful payloads. Typed
// endpoint methods sit on top and decode JSON into the structs in types.go.
//
// # Architecture
//
// The package is split into four files:
//
//   - client.go: Client construction, options, Get/Fetch/Refresh/Do and retry
//   - pipeline.go: The ordered request stages and the Response type
//   - endpoints.go: Typed wrappers for each upstream endpoint
//   - types.go: Data structures mirroring the upstream payloads
//
// # Client Usage
//
//	store := cache.New()
//	client, err := nasa.NewClient("http://127.0.0.1:5000/api",
//		nasa.WithAPIKey(cfg.APIKey),
//		nasa.WithCache(store),
//		nasa.WithLogger(logger),
//	)
//	if err != nil {
//		return err
//	}
//
//	apod, err := client.APOD(ctx, "")
//	if errors.Is(err, apierr.ErrRateLimit) {
//		// back off
//	}
//
// # Request Pipeline
//
// GET requests run these stages in order:
//
//  1. Copy the caller's params and set api_key. The caller's map is never mutated.
//  2. Compute the cache key from the endpoint and the sorted params, excluding api_key.
//  3. Return a valid cache entry without any network call.
//  4. Perform the round trip. Concurrent misses on the same key share one call.
//  5. Classify non-2xx responses into an *apierr.Error.
//  6. Store the 2xx payload in the cache.
//
// Failed responses are never cached. Other methods skip steps 2, 3 and 6.
// Refresh skips step 3 only, replacing a still-valid entry.
//
// Requests slower than the slow threshold (2s by default) are logged at
// Warn level and counted, whether they succeed or not.
//
// # API Endpoints
//
//   - GET /apod: Astronomy picture of the day, optional date
//   - GET /neo/feed: Near-earth objects by approach date, optional start_date/end_date
//   - GET /neo/{id}: One near-earth object
//   - GET /neo/browse: Paged catalogue, page (default 0) and size (default 20)
//   - GET /resources/featured: Curated media collection
//   - GET /resources/search: Media search, q required, media_type, limit (default 20)
//   - GET /resources/{id}: One media entry
//   - GET /resources/asset/{id}: File manifest for one media entry
//
// # Error Handling
//
// Transport and status failures surface as *apierr.Error values and can be
// matched with errors.Is against the apierr sentinels. Missing required
// arguments (an empty id, date or search term) fail before any network call
// with a ConfigError. JSON decode failures are wrapped with the endpoint:
//
//	decode /apod: unexpected end of JSON input
//
// # Retries
//
// The pipeline itself never retries. GetWithRetry wraps Get in a bounded
// fixed-delay loop from the retry package; every retry is logged and counted.
// WithRetry makes every typed endpoint method go through GetWithRetry.
//
// # Thread Safety
//
// Client is safe for concurrent use. The cache and the in-flight call group
// carry their own locking.
package nasa
