package health

import (
	"encoding/json"
	"net/http"
)

// ReadinessHandler returns the /readyz handler. It runs all registered
// checks and answers 200 with the aggregated status when every component
// is ready, or 503 when any check fails.
func (c *Checker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := c.CheckReadiness(r.Context())

		w.Header().Set("Content-Type", "application/json")
		if status.Status != "ready" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		if r.Method != http.MethodHead {
			_ = json.NewEncoder(w).Encode(status)
		}
	}
}
