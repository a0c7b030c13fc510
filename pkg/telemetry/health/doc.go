// Package health aggregates named readiness checks into a single
// readiness probe for the management server. The controller registers a
// check per supervised dependency, such as the proxy process, and the
// /readyz endpoint reports degraded with 503 when any check fails.
package health
