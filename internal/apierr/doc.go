// Package apierr maps raw transport outcomes onto the errors callers act on.
//
// # Overview
//
// Every failed request ends up as an *Error with exactly one Kind. Successful
// (2xx) responses never pass through this package. The constructors split
// failures by where they happened:
//
//   - FromStatus classifies a non-2xx response by status code and extracts an
//     upstream message from common JSON error bodies.
//   - FromTransport covers requests that never produced a usable response.
//   - FromRequest covers requests that could not be built at all.
//
// # Matching
//
// The Err* sentinels match on Kind only, so callers can write
//
//	if errors.Is(err, apierr.ErrRateLimit) { ... }
//
// without caring about the status code or message. KindOf extracts the Kind
// directly, and Transient reports whether another attempt may succeed.
package apierr
