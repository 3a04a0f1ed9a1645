// Package batch fans a set of independent GET requests out concurrently and
// collects one result per request.
//
// # Overview
//
// A failing item never affects its siblings: its error is recorded in its own
// Result and the other items run to completion. Dispatch itself fails only
// when the input is malformed, that is an empty or duplicated ID.
//
// Results come back in input order. Items go through the same client pipeline
// as single requests, so they share its cache and in-flight collapsing.
//
// # Retries
//
// Items are attempted once unless the Dispatcher is built WithRetry. The
// retry policy is applied per item.
package batch
