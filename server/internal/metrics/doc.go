// Package metrics counts relay activity per channel and exposes it in the
// Prometheus exposition format at /metrics.
//
// Every counter is updated atomically; Channel values are shared between the
// hub that records events and the HTTP handler that renders them.
package metrics
