// Package metrics exposes Prometheus instrumentation for the request layer.
// Every method is safe to call on a nil *Collector, which records nothing.
package metrics
