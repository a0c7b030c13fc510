package hosting

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// PutCertificate stores PEM material (public certificate, key and chain)
// under the given ID, writing it to the certificate cache directory where
// the proxy reads it. Returns changed == false when identical material is
// already cached, so the adapter can answer "unchanged". When material
// for a certificate referenced by an active distribution changes, the
// configuration is regenerated and the proxy reloaded to pick it up.
func (s *Store) PutCertificate(ctx context.Context, certificateID string, material []byte) (changed bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() { s.record("put_certificate", err) }()

	if certificateID == "" {
		return false, &ValidationError{Field: "afUniqueCertificateId", Message: "must not be empty"}
	}
	if len(material) == 0 {
		return false, &ValidationError{Field: "body", Message: "certificate material must not be empty"}
	}
	if certificateID != filepath.Base(certificateID) {
		return false, &ValidationError{Field: "afUniqueCertificateId", Message: "must not contain path separators"}
	}

	filename := filepath.Join(s.cfg.CertificateDir, certificateID)
	if existing, readErr := os.ReadFile(filename); readErr == nil && bytes.Equal(existing, material) {
		s.certs[certificateID] = filename
		return false, nil
	}

	if err := os.MkdirAll(s.cfg.CertificateDir, 0o755); err != nil {
		return false, fmt.Errorf("failed to create certificate cache: %w", err)
	}
	if err := os.WriteFile(filename, material, 0o600); err != nil {
		return false, fmt.Errorf("failed to cache certificate %q: %w", certificateID, err)
	}
	_, known := s.certs[certificateID]
	s.certs[certificateID] = filename

	// An updated certificate that is already referenced must reach the
	// running proxy.
	if known && len(s.referencingSessionsLocked(certificateID)) > 0 {
		if err := s.applyLocked(ctx); err != nil {
			return true, err
		}
	}

	s.logger.Info("certificate cached", "certificate_id", certificateID, "updated", known)
	s.updateGauges()
	return true, nil
}

// DeleteCertificate removes the certificate and its cached file. It fails
// with an InUseError while any active distribution still references the
// certificate, and with a NotFoundError for unknown IDs.
func (s *Store) DeleteCertificate(ctx context.Context, certificateID string) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() { s.record("delete_certificate", err) }()

	filename, ok := s.certs[certificateID]
	if !ok {
		return &NotFoundError{Kind: "certificate", ID: certificateID}
	}
	if users := s.referencingSessionsLocked(certificateID); len(users) > 0 {
		return &InUseError{CertificateID: certificateID, SessionIDs: users}
	}

	delete(s.certs, certificateID)
	if err := os.Remove(filename); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove cached certificate %q: %w", certificateID, err)
	}
	s.logger.Info("certificate deleted", "certificate_id", certificateID)
	s.updateGauges()
	return nil
}

// ListCertificates returns the known certificate IDs in sorted order.
func (s *Store) ListCertificates() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.certs))
	for id := range s.certs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// HasCertificate reports whether a certificate ID is known.
func (s *Store) HasCertificate(certificateID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.haveCertificateLocked(certificateID)
}

// ReloadCertificates rescans the certificate cache directory, replacing
// the in-memory ID map with whatever is on disk. If the set changed and
// sessions are provisioned, the configuration is regenerated and the
// proxy reloaded. A referenced certificate disappearing from disk is an
// error and leaves the previous map in place.
func (s *Store) ReloadCertificates(ctx context.Context) (changed bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	found := make(map[string]string)
	entries, err := os.ReadDir(s.cfg.CertificateDir)
	if err != nil {
		if os.IsNotExist(err) {
			entries = nil
		} else {
			return false, fmt.Errorf("failed to scan certificate cache: %w", err)
		}
	}
	for _, de := range entries {
		if de.Type().IsRegular() {
			found[de.Name()] = filepath.Join(s.cfg.CertificateDir, de.Name())
		}
	}

	if certMapsEqual(found, s.certs) {
		return false, nil
	}

	for _, sess := range s.sessions {
		for _, dc := range sess.DistributionConfigurations {
			if dc.CertificateID != "" {
				if _, ok := found[dc.CertificateID]; !ok {
					return false, fmt.Errorf("certificate %q referenced by session %q vanished from cache",
						dc.CertificateID, sess.ID)
				}
			}
		}
	}

	s.certs = found
	if len(s.sessions) > 0 {
		if err := s.applyLocked(ctx); err != nil {
			return true, err
		}
	}
	s.logger.Info("certificate cache reloaded", "count", len(found))
	s.updateGauges()
	return true, nil
}

// referencingSessionsLocked returns the IDs of sessions with a
// distribution referencing the certificate. Caller holds s.mu.
func (s *Store) referencingSessionsLocked(certificateID string) []string {
	var users []string
	for id, sess := range s.sessions {
		for _, dc := range sess.DistributionConfigurations {
			if dc.CertificateID == certificateID {
				users = append(users, id)
				break
			}
		}
	}
	sort.Strings(users)
	return users
}

func (s *Store) haveCertificateLocked(certificateID string) bool {
	_, ok := s.certs[certificateID]
	return ok
}

func certMapsEqual(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}
