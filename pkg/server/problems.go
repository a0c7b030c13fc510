package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"mercator-hq/ganymede/pkg/hosting"
)

// Problem is an RFC 7807 problem details document.
type Problem struct {
	// Type is a URI reference identifying the problem type.
	Type string `json:"type,omitempty"`

	// Title is a short human-readable summary of the problem type.
	Title string `json:"title"`

	// Status is the HTTP status code.
	Status int `json:"status"`

	// Detail is a human-readable explanation of this occurrence.
	Detail string `json:"detail,omitempty"`

	// Instance is a URI reference identifying this occurrence.
	Instance string `json:"instance,omitempty"`
}

// writeProblem renders a problem details response.
func writeProblem(w http.ResponseWriter, r *http.Request, status int, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Problem{
		Title:    http.StatusText(status),
		Status:   status,
		Detail:   detail,
		Instance: r.URL.Path,
	})
}

// writeStoreError maps provisioning store errors onto the API's status
// codes: unknown IDs are 404, malformed records 415, blocked
// certificate deletions 409, and proxy failures 500.
func writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, hosting.ErrNotFound):
		writeProblem(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, hosting.ErrValidation):
		writeProblem(w, r, http.StatusUnsupportedMediaType, err.Error())
	case errors.Is(err, hosting.ErrCertificateInUse):
		writeProblem(w, r, http.StatusConflict, err.Error())
	default:
		writeProblem(w, r, http.StatusInternalServerError, err.Error())
	}
}

// writeJSON renders a JSON response body.
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
