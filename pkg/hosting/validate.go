package hosting

import (
	"fmt"
	"net/url"
	"regexp"
)

// validateSession checks a provisioning record before it is admitted to
// the store. haveCert reports whether a certificate ID is known; others
// holds every other session currently provisioned, for cross-session
// prefix checks. Returns a *ValidationError describing the first problem
// found, or nil.
func validateSession(s *ProvisioningSession, haveCert func(string) bool, others map[string]*ProvisioningSession) error {
	if s == nil {
		return &ValidationError{Message: "record is empty"}
	}

	ing := &s.IngestConfiguration
	if !ing.Pull {
		return &ValidationError{Field: "ingestConfiguration.pull", Message: "only pull ingest is supported"}
	}
	if ing.Protocol != ProtocolHTTPPullIngest {
		return &ValidationError{
			Field:   "ingestConfiguration.protocol",
			Message: fmt.Sprintf("unsupported protocol %q, want %q", ing.Protocol, ProtocolHTTPPullIngest),
		}
	}
	if err := validateOriginURL(ing.BaseURL); err != nil {
		return &ValidationError{Field: "ingestConfiguration.baseURL", Message: err.Error()}
	}

	seen := make(map[string]bool, len(s.DistributionConfigurations))
	for i, dc := range s.DistributionConfigurations {
		field := func(name string) string {
			return fmt.Sprintf("distributionConfigurations[%d].%s", i, name)
		}

		u, err := url.Parse(dc.BaseURL)
		if err != nil || dc.BaseURL == "" {
			return &ValidationError{Field: field("baseURL"), Message: "must be a valid URL"}
		}
		prefix := NormalizePathPrefix(u.Path)
		if prefix == "/" {
			return &ValidationError{Field: field("baseURL"), Message: "must carry a non-root path prefix"}
		}
		if seen[prefix] {
			return &ValidationError{
				Field:   field("baseURL"),
				Message: fmt.Sprintf("path prefix %q duplicated within session", prefix),
			}
		}
		seen[prefix] = true

		if dc.CertificateID != "" && !haveCert(dc.CertificateID) {
			return &ValidationError{
				Field:   field("certificateId"),
				Message: fmt.Sprintf("certificate %q not found", dc.CertificateID),
			}
		}

		for j, rr := range dc.PathRewriteRules {
			if _, err := regexp.Compile(rr.RequestPattern); err != nil {
				return &ValidationError{
					Field:   field(fmt.Sprintf("pathRewriteRules[%d].requestPattern", j)),
					Message: fmt.Sprintf("invalid pattern: %v", err),
				}
			}
			if rr.MappedPath == "" {
				return &ValidationError{
					Field:   field(fmt.Sprintf("pathRewriteRules[%d].mappedPath", j)),
					Message: "must not be empty",
				}
			}
		}

		// Identical prefixes across sessions would make longest-prefix
		// routing ambiguous, so they are rejected here rather than
		// silently resolved at generation time.
		for otherID, other := range others {
			if otherID == s.ID {
				continue
			}
			for _, op := range other.PathPrefixes() {
				if op == prefix {
					return &ValidationError{
						Field: field("baseURL"),
						Message: fmt.Sprintf("path prefix %q already provisioned by session %q",
							prefix, otherID),
					}
				}
			}
		}
	}

	return nil
}

// validateOriginURL accepts absolute http/https URLs only.
func validateOriginURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("must not be empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("must be a valid URL: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("must carry a host")
	}
	return nil
}
