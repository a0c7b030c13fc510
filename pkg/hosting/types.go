package hosting

import (
	"net/url"
	"strings"
)

// ProtocolHTTPPullIngest is the only ingest protocol the controller
// accepts: the proxy pulls content over HTTP from the origin.
const ProtocolHTTPPullIngest = "urn:3gpp:5gms:content-protocol:http-pull-ingest"

// ProvisioningSession is one declarative content-hosting record, keyed by
// an opaque session ID. The store owns the session graph exclusively;
// distributions never point back at the session except by prefix string.
type ProvisioningSession struct {
	// ID is the opaque provisioning session identifier.
	ID string `json:"-"`

	// Name is an optional human-readable label.
	Name string `json:"name,omitempty"`

	// IngestConfiguration describes the upstream origin content is
	// pulled from for ingest-backed distributions.
	IngestConfiguration IngestConfiguration `json:"ingestConfiguration"`

	// DistributionConfigurations are the distribution points served by
	// the proxy for this session. Path prefixes must be unique within
	// the session and unambiguous across all sessions.
	DistributionConfigurations []DistributionConfiguration `json:"distributionConfigurations"`
}

// Clone returns a deep copy of the session.
func (s *ProvisioningSession) Clone() *ProvisioningSession {
	if s == nil {
		return nil
	}
	out := *s
	out.DistributionConfigurations = make([]DistributionConfiguration, len(s.DistributionConfigurations))
	for i, dc := range s.DistributionConfigurations {
		out.DistributionConfigurations[i] = dc
		if dc.PathRewriteRules != nil {
			rules := make([]PathRewriteRule, len(dc.PathRewriteRules))
			copy(rules, dc.PathRewriteRules)
			out.DistributionConfigurations[i].PathRewriteRules = rules
		}
	}
	return &out
}

// PathPrefixes returns the normalized path prefixes of all distributions.
func (s *ProvisioningSession) PathPrefixes() []string {
	prefixes := make([]string, 0, len(s.DistributionConfigurations))
	for _, dc := range s.DistributionConfigurations {
		if p := dc.PathPrefix(); p != "" {
			prefixes = append(prefixes, p)
		}
	}
	return prefixes
}

// IngestConfiguration describes how the proxy obtains content from the
// origin server.
type IngestConfiguration struct {
	// Pull must be true; push ingest is not supported.
	Pull bool `json:"pull"`

	// Protocol identifies the ingest protocol. Only
	// ProtocolHTTPPullIngest is accepted.
	Protocol string `json:"protocol"`

	// BaseURL is the origin base URL content is pulled from.
	BaseURL string `json:"baseURL"`
}

// Origin returns the ingest base URL with any trailing slash removed, the
// form embedded into generated reverse-proxy rules.
func (c *IngestConfiguration) Origin() string {
	return strings.TrimSuffix(c.BaseURL, "/")
}

// DistributionConfiguration is one distribution point within a session:
// either ingest-backed (reverse-proxied to the session origin) or static
// (served from a document root).
type DistributionConfiguration struct {
	// BaseURL determines the distribution's path prefix (its URL path
	// component) and, when CanonicalDomainName is empty, its host name.
	BaseURL string `json:"baseURL"`

	// CanonicalDomainName is the primary server name for the virtual
	// server. Defaults to the BaseURL host.
	CanonicalDomainName string `json:"canonicalDomainName,omitempty"`

	// DomainNameAlias is an optional additional server name.
	DomainNameAlias string `json:"domainNameAlias,omitempty"`

	// CertificateID references a certificate held by the store. A
	// non-empty value makes this a TLS-enabled distribution.
	CertificateID string `json:"certificateId,omitempty"`

	// DocRoot, when non-empty, makes this a static distribution served
	// from the given document root instead of the session origin.
	DocRoot string `json:"docRoot,omitempty"`

	// PathRewriteRules are applied to the request path before it is
	// forwarded upstream.
	PathRewriteRules []PathRewriteRule `json:"pathRewriteRules,omitempty"`
}

// PathPrefix returns the distribution's normalized path prefix: the URL
// path of BaseURL with leading and trailing "/" enforced. It returns ""
// if BaseURL does not parse; validation rejects such records before they
// reach the store.
func (dc *DistributionConfiguration) PathPrefix() string {
	u, err := url.Parse(dc.BaseURL)
	if err != nil {
		return ""
	}
	return NormalizePathPrefix(u.Path)
}

// ServerNames returns the distribution's server names, canonical first.
func (dc *DistributionConfiguration) ServerNames() []string {
	canonical := dc.CanonicalDomainName
	if canonical == "" {
		if u, err := url.Parse(dc.BaseURL); err == nil {
			canonical = u.Hostname()
		}
	}
	names := []string{}
	if canonical != "" {
		names = append(names, canonical)
	}
	if dc.DomainNameAlias != "" && dc.DomainNameAlias != canonical {
		names = append(names, dc.DomainNameAlias)
	}
	return names
}

// Static reports whether the distribution serves from a document root.
func (dc *DistributionConfiguration) Static() bool {
	return dc.DocRoot != ""
}

// PathRewriteRule rewrites a matching request-path segment before the
// request is forwarded upstream.
type PathRewriteRule struct {
	// RequestPattern is a regular expression matched against the
	// request path.
	RequestPattern string `json:"requestPattern"`

	// MappedPath replaces the matched segment.
	MappedPath string `json:"mappedPath"`
}

// NormalizePathPrefix forces leading and trailing "/" on a path prefix.
// An empty path becomes "/".
func NormalizePathPrefix(path string) string {
	if path == "" {
		return "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}
	return path
}
