package hosting

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"sync"

	"mercator-hq/ganymede/pkg/redirect"
	"mercator-hq/ganymede/pkg/telemetry/metrics"
)

// ConfigGenerator renders the complete proxy configuration artifact from
// a snapshot of all provisioning sessions. Generation is pure: identical
// input must yield byte-identical output.
type ConfigGenerator interface {
	Generate(sessions []*ProvisioningSession, certFiles map[string]string) ([]byte, error)
}

// ConfigApplier applies a generated artifact to the supervised proxy,
// starting it if necessary or reloading it in place.
type ConfigApplier interface {
	Apply(ctx context.Context, artifact []byte) error
}

// CachePurger forwards a cached-content purge for one provisioning
// session to the supervised proxy. A nil pattern purges everything under
// the session; otherwise only URL paths matching the pattern. Returns the
// number of purged cache entries.
type CachePurger interface {
	PurgeCache(ctx context.Context, sessionID string, pattern *regexp.Regexp) (int, error)
}

// StoreConfig configures a Store.
type StoreConfig struct {
	// CertificateDir is the directory certificate PEM material is cached
	// in, one file per certificate ID, for the proxy to read.
	CertificateDir string
}

// Store is the authoritative in-memory provisioning state. All mutating
// operations are serialized under one mutex so at most one
// regenerate-and-reload sequence is in flight at a time; an operation
// that has started applying an artifact runs to completion before the
// lock is released.
type Store struct {
	mu sync.Mutex

	cfg       StoreConfig
	sessions  map[string]*ProvisioningSession
	certs     map[string]string // certificate ID -> cached PEM filename
	generator ConfigGenerator
	applier   ConfigApplier
	purger    CachePurger
	redirects *redirect.Table
	logger    *slog.Logger
	collector *metrics.Collector
}

// NewStore creates a provisioning store. collector may be nil.
func NewStore(cfg StoreConfig, generator ConfigGenerator, applier ConfigApplier, purger CachePurger,
	redirects *redirect.Table, logger *slog.Logger, collector *metrics.Collector) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		cfg:       cfg,
		sessions:  make(map[string]*ProvisioningSession),
		certs:     make(map[string]string),
		generator: generator,
		applier:   applier,
		purger:    purger,
		redirects: redirects,
		logger:    logger.With("component", "hosting.store"),
		collector: collector,
	}
}

// Put validates the record and stores it under sessionID, replacing any
// prior record, then regenerates the artifact from all sessions and
// triggers a supervised reload. On a validation failure nothing is
// mutated; on a reload failure the prior record (or absence) is restored
// so visible state always reflects the last successfully-applied version.
// The returned boolean reports whether the session was newly created.
func (s *Store) Put(ctx context.Context, sessionID string, session *ProvisioningSession) (created bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() { s.record("put", err) }()

	if sessionID == "" {
		return false, &ValidationError{Field: "provisioningSessionId", Message: "must not be empty"}
	}
	record := session.Clone()
	if record != nil {
		record.ID = sessionID
	}
	if err := validateSession(record, s.haveCertificateLocked, s.sessions); err != nil {
		return false, err
	}

	prev, existed := s.sessions[sessionID]
	s.sessions[sessionID] = record
	if err := s.applyLocked(ctx); err != nil {
		if existed {
			s.sessions[sessionID] = prev
		} else {
			delete(s.sessions, sessionID)
		}
		return false, err
	}

	s.logger.Info("provisioning session applied", "session_id", sessionID, "replaced", existed)
	s.updateGauges()
	return !existed, nil
}

// Delete removes the record for sessionID, regenerates and reloads, and
// flushes all redirect entries scoped under the session's path prefixes.
func (s *Store) Delete(ctx context.Context, sessionID string) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() { s.record("delete", err) }()

	prev, ok := s.sessions[sessionID]
	if !ok {
		return &NotFoundError{Kind: "session", ID: sessionID}
	}
	delete(s.sessions, sessionID)
	if err := s.applyLocked(ctx); err != nil {
		s.sessions[sessionID] = prev
		return err
	}

	if s.redirects != nil {
		for _, prefix := range prev.PathPrefixes() {
			if n := s.redirects.Flush(prefix); n > 0 {
				s.logger.Debug("flushed redirect entries", "session_id", sessionID,
					"prefix", prefix, "count", n)
			}
		}
	}

	s.logger.Info("provisioning session deleted", "session_id", sessionID)
	s.updateGauges()
	return nil
}

// Purge forwards a cached-content purge for the session to the proxy.
// pattern optionally restricts the purge to matching URL paths; an
// unparsable pattern is a validation error. Provisioning state is never
// changed. Returns the number of purged cache entries.
func (s *Store) Purge(ctx context.Context, sessionID, pattern string) (purged int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() { s.record("purge", err) }()

	if _, ok := s.sessions[sessionID]; !ok {
		return 0, &NotFoundError{Kind: "session", ID: sessionID}
	}

	var re *regexp.Regexp
	if pattern != "" {
		re, err = regexp.Compile(pattern)
		if err != nil {
			return 0, &ValidationError{Field: "pattern", Message: fmt.Sprintf("invalid pattern: %v", err)}
		}
	}

	purged, err = s.purger.PurgeCache(ctx, sessionID, re)
	if err != nil {
		return 0, &UpstreamError{Op: "purge", Cause: err}
	}
	s.logger.Info("cache purge complete", "session_id", sessionID, "purged", purged)
	if s.collector != nil {
		s.collector.AddPurgedEntries(purged)
	}
	return purged, nil
}

// Get returns a copy of the session, or a NotFoundError.
func (s *Store) Get(sessionID string) (*ProvisioningSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, &NotFoundError{Kind: "session", ID: sessionID}
	}
	return sess.Clone(), nil
}

// List returns the provisioned session IDs in sorted order.
func (s *Store) List() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// applyLocked regenerates the artifact from the full current state and
// hands it to the applier. Caller holds s.mu.
func (s *Store) applyLocked(ctx context.Context) error {
	artifact, err := s.generator.Generate(s.sessionSliceLocked(), s.certFilesLocked())
	if err != nil {
		return fmt.Errorf("failed to generate proxy configuration: %w", err)
	}
	return s.applier.Apply(ctx, artifact)
}

// sessionSliceLocked snapshots the sessions sorted by ID so generation
// input ordering is deterministic.
func (s *Store) sessionSliceLocked() []*ProvisioningSession {
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]*ProvisioningSession, len(ids))
	for i, id := range ids {
		out[i] = s.sessions[id]
	}
	return out
}

func (s *Store) certFilesLocked() map[string]string {
	out := make(map[string]string, len(s.certs))
	for id, file := range s.certs {
		out[id] = file
	}
	return out
}

func (s *Store) record(op string, err error) {
	if s.collector == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	s.collector.RecordOperation(op, outcome)
}

func (s *Store) updateGauges() {
	if s.collector == nil {
		return
	}
	s.collector.SetSessions(len(s.sessions))
	s.collector.SetCertificates(len(s.certs))
}
