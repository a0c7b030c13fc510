package hosting

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateSession(t *testing.T) {
	haveCert := func(id string) bool { return id == "cert-1" }

	base := func() *ProvisioningSession {
		return &ProvisioningSession{
			ID: "S1",
			IngestConfiguration: IngestConfiguration{
				Pull:     true,
				Protocol: ProtocolHTTPPullIngest,
				BaseURL:  "http://origin.example.com/",
			},
			DistributionConfigurations: []DistributionConfiguration{
				{BaseURL: "http://cdn.example.com/m4d/S1/"},
			},
		}
	}

	tests := []struct {
		name      string
		mutate    func(*ProvisioningSession)
		wantField string
	}{
		{
			name:   "valid record",
			mutate: func(*ProvisioningSession) {},
		},
		{
			name:      "push ingest rejected",
			mutate:    func(s *ProvisioningSession) { s.IngestConfiguration.Pull = false },
			wantField: "ingestConfiguration.pull",
		},
		{
			name:      "unsupported protocol",
			mutate:    func(s *ProvisioningSession) { s.IngestConfiguration.Protocol = "urn:example:push" },
			wantField: "ingestConfiguration.protocol",
		},
		{
			name:      "empty origin",
			mutate:    func(s *ProvisioningSession) { s.IngestConfiguration.BaseURL = "" },
			wantField: "ingestConfiguration.baseURL",
		},
		{
			name:      "origin without scheme",
			mutate:    func(s *ProvisioningSession) { s.IngestConfiguration.BaseURL = "origin.example.com/path" },
			wantField: "ingestConfiguration.baseURL",
		},
		{
			name:      "origin with bad scheme",
			mutate:    func(s *ProvisioningSession) { s.IngestConfiguration.BaseURL = "ftp://origin.example.com/" },
			wantField: "ingestConfiguration.baseURL",
		},
		{
			name: "root path prefix",
			mutate: func(s *ProvisioningSession) {
				s.DistributionConfigurations[0].BaseURL = "http://cdn.example.com/"
			},
			wantField: "distributionConfigurations[0].baseURL",
		},
		{
			name: "duplicate prefix within session",
			mutate: func(s *ProvisioningSession) {
				s.DistributionConfigurations = append(s.DistributionConfigurations,
					DistributionConfiguration{BaseURL: "https://cdn.example.com/m4d/S1/"})
			},
			wantField: "distributionConfigurations[1].baseURL",
		},
		{
			name: "unknown certificate",
			mutate: func(s *ProvisioningSession) {
				s.DistributionConfigurations[0].CertificateID = "absent"
			},
			wantField: "distributionConfigurations[0].certificateId",
		},
		{
			name: "known certificate accepted",
			mutate: func(s *ProvisioningSession) {
				s.DistributionConfigurations[0].CertificateID = "cert-1"
			},
		},
		{
			name: "invalid rewrite pattern",
			mutate: func(s *ProvisioningSession) {
				s.DistributionConfigurations[0].PathRewriteRules = []PathRewriteRule{
					{RequestPattern: "[unclosed", MappedPath: "/low-latency/"},
				}
			},
			wantField: "distributionConfigurations[0].pathRewriteRules[0].requestPattern",
		},
		{
			name: "empty mapped path",
			mutate: func(s *ProvisioningSession) {
				s.DistributionConfigurations[0].PathRewriteRules = []PathRewriteRule{
					{RequestPattern: "^/m4d/S1/hd/", MappedPath: ""},
				}
			},
			wantField: "distributionConfigurations[0].pathRewriteRules[0].mappedPath",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := base()
			tt.mutate(s)

			err := validateSession(s, haveCert, nil)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("validateSession() error = %v, want nil", err)
				}
				return
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("validateSession() error = %v, want *ValidationError", err)
			}
			if verr.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", verr.Field, tt.wantField)
			}
		})
	}
}

func TestValidateSessionNil(t *testing.T) {
	if err := validateSession(nil, nil, nil); !errors.Is(err, ErrValidation) {
		t.Errorf("validateSession(nil) error = %v, want ErrValidation", err)
	}
}

func TestValidateSessionCrossSessionPrefix(t *testing.T) {
	other := &ProvisioningSession{
		ID: "S2",
		DistributionConfigurations: []DistributionConfiguration{
			{BaseURL: "http://cdn.example.com/m4d/shared/"},
		},
	}
	s := &ProvisioningSession{
		ID: "S1",
		IngestConfiguration: IngestConfiguration{
			Pull:     true,
			Protocol: ProtocolHTTPPullIngest,
			BaseURL:  "http://origin.example.com/",
		},
		DistributionConfigurations: []DistributionConfiguration{
			{BaseURL: "http://cdn.example.com/m4d/shared/"},
		},
	}

	err := validateSession(s, func(string) bool { return false },
		map[string]*ProvisioningSession{"S2": other})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("validateSession() error = %v, want *ValidationError", err)
	}
	if !strings.Contains(verr.Message, `session "S2"`) {
		t.Errorf("Message = %q, want mention of the owning session", verr.Message)
	}

	// The same prefix under the session's own ID is not a conflict; a
	// replacement record may keep its prefixes.
	err = validateSession(s, func(string) bool { return false },
		map[string]*ProvisioningSession{"S1": other})
	if err != nil {
		t.Errorf("validateSession() error = %v for self-owned prefix, want nil", err)
	}
}

func TestNormalizePathPrefix(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", "/"},
		{"/", "/"},
		{"m4d/S1", "/m4d/S1/"},
		{"/m4d/S1", "/m4d/S1/"},
		{"/m4d/S1/", "/m4d/S1/"},
	}
	for _, tt := range tests {
		if got := NormalizePathPrefix(tt.in); got != tt.want {
			t.Errorf("NormalizePathPrefix(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
