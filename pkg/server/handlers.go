package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"mercator-hq/ganymede/pkg/hosting"
	"mercator-hq/ganymede/pkg/redirect"
	"mercator-hq/ganymede/pkg/telemetry/metrics"
)

// pemMediaType is the required media type for certificate uploads.
const pemMediaType = "application/x-pem-file"

// maxBodyBytes bounds provisioning request bodies.
const maxBodyBytes = 1 << 20

// Handlers implements the management API endpoints over the
// provisioning store and the redirect table.
type Handlers struct {
	store     *hosting.Store
	table     *redirect.Table
	resolver  *redirect.Resolver
	collector *metrics.Collector
	logger    *slog.Logger
}

// NewHandlers creates the endpoint set. collector may be nil.
func NewHandlers(store *hosting.Store, table *redirect.Table, resolver *redirect.Resolver,
	collector *metrics.Collector, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		store:     store,
		table:     table,
		resolver:  resolver,
		collector: collector,
		logger:    logger.With("component", "server"),
	}
}

// createSession handles POST of a new content hosting configuration.
// An already-provisioned session ID is rejected with 405.
func (h *Handlers) createSession(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("sessionID")
	if _, err := h.store.Get(sessionID); err == nil {
		w.Header().Set("Allow", "PUT, DELETE")
		writeProblem(w, r, http.StatusMethodNotAllowed,
			"content hosting configuration already exists; use PUT to update")
		return
	}

	session, ok := h.decodeSession(w, r)
	if !ok {
		return
	}
	if _, err := h.store.Put(r.Context(), sessionID, session); err != nil {
		writeStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// updateSession handles PUT of a content hosting configuration,
// creating or replacing it.
func (h *Handlers) updateSession(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("sessionID")
	session, ok := h.decodeSession(w, r)
	if !ok {
		return
	}

	created, err := h.store.Put(r.Context(), sessionID, session)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	if created {
		w.WriteHeader(http.StatusCreated)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) getSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.store.Get(r.PathValue("sessionID"))
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *Handlers) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Delete(r.Context(), r.PathValue("sessionID")); err != nil {
		writeStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) listSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.store.List())
}

// purgeSession handles a cache purge request. The body, when present,
// is a URL-encoded regular expression restricting the purge to matching
// URL paths; an empty body purges everything under the session.
func (h *Handlers) purgeSession(w http.ResponseWriter, r *http.Request) {
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mediaType, _, err := mime.ParseMediaType(ct)
		if err != nil || mediaType != "application/x-www-form-urlencoded" {
			writeProblem(w, r, http.StatusUnsupportedMediaType,
				"purge body must be application/x-www-form-urlencoded")
			return
		}
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeProblem(w, r, http.StatusBadRequest, "failed to read request body")
		return
	}
	pattern, err := url.QueryUnescape(strings.TrimSpace(string(body)))
	if err != nil {
		writeProblem(w, r, http.StatusBadRequest, "malformed URL encoding in purge pattern")
		return
	}
	if pattern != "" {
		if _, err := regexp.Compile(pattern); err != nil {
			writeProblem(w, r, http.StatusUnprocessableEntity,
				"invalid purge pattern: "+err.Error())
			return
		}
	}

	purged, err := h.store.Purge(r.Context(), r.PathValue("sessionID"), pattern)
	if err != nil {
		if errors.Is(err, hosting.ErrValidation) {
			writeProblem(w, r, http.StatusUnprocessableEntity, err.Error())
			return
		}
		writeStoreError(w, r, err)
		return
	}
	if purged == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"purged": purged})
}

// putCertificate stores certificate PEM material under the given ID.
// Responds 201 on creation, 204 on update or identical re-upload.
func (h *Handlers) putCertificate(w http.ResponseWriter, r *http.Request) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != pemMediaType {
		writeProblem(w, r, http.StatusUnsupportedMediaType,
			"certificate body must be "+pemMediaType)
		return
	}

	material, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeProblem(w, r, http.StatusBadRequest, "failed to read request body")
		return
	}

	certificateID := r.PathValue("certificateID")
	existed := h.store.HasCertificate(certificateID)
	if _, err := h.store.PutCertificate(r.Context(), certificateID, material); err != nil {
		writeStoreError(w, r, err)
		return
	}
	if existed {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (h *Handlers) deleteCertificate(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteCertificate(r.Context(), r.PathValue("certificateID")); err != nil {
		writeStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) listCertificates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.store.ListCertificates())
}

// allocateRedirectRequest is the body of an internal redirect
// allocation.
type allocateRedirectRequest struct {
	// SessionPrefix scopes the entry to a provisioned distribution.
	SessionPrefix string `json:"sessionPrefix"`

	// UpstreamPrefix is the target the entry maps to.
	UpstreamPrefix string `json:"upstreamPrefix"`
}

// allocateRedirect mints an ephemeral redirect path for the data path.
func (h *Handlers) allocateRedirect(w http.ResponseWriter, r *http.Request) {
	var req allocateRedirectRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeProblem(w, r, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	path, err := h.table.Allocate(req.SessionPrefix, req.UpstreamPrefix)
	if err != nil {
		writeProblem(w, r, http.StatusBadRequest, err.Error())
		return
	}
	h.collector.SetRedirectEntries(h.table.Len())
	writeJSON(w, http.StatusCreated, map[string]string{"path": path})
}

// resolveRedirect resolves a request path against the redirect table
// and the static routes, renewing a matched entry's lifetime.
func (h *Handlers) resolveRedirect(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeProblem(w, r, http.StatusBadRequest, "missing path query parameter")
		return
	}

	upstream, remainder, redirected, ok := h.resolver.Resolve(path)
	switch {
	case !ok:
		h.collector.RecordRedirectLookup("miss")
		writeProblem(w, r, http.StatusNotFound, "no route for path")
		return
	case redirected:
		h.collector.RecordRedirectLookup("hit")
	default:
		h.collector.RecordRedirectLookup("static")
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"upstream":   upstream,
		"remainder":  remainder,
		"redirected": redirected,
	})
}

// healthz reports controller liveness.
func (h *Handlers) healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

// decodeSession parses a content hosting configuration body.
func (h *Handlers) decodeSession(w http.ResponseWriter, r *http.Request) (*hosting.ProvisioningSession, bool) {
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mediaType, _, err := mime.ParseMediaType(ct)
		if err != nil || mediaType != "application/json" {
			writeProblem(w, r, http.StatusUnsupportedMediaType,
				"content hosting configuration body must be application/json")
			return nil, false
		}
	}

	var session hosting.ProvisioningSession
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&session); err != nil {
		writeProblem(w, r, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return nil, false
	}
	return &session, true
}
