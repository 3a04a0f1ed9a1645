// Package prefetch warms the response cache in the background.
//
// A prefetch is fire and forget: the payload is dropped and a failure is
// only logged and counted. Callers never see prefetch errors. Wait blocks
// until every prefetch started so far has finished.
package prefetch
