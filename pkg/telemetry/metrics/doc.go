// Package metrics provides Prometheus instrumentation for the controller.
//
// A single Collector owns the registry and pre-registers every metric the
// controller records: provisioning operation counters, proxy reload
// outcomes and durations, redirect-table lookup counters and size gauges,
// and cache purge totals. The Collector's Handler method exposes the
// registry in Prometheus exposition format, typically mounted at
// /metrics on the controller listener.
package metrics
