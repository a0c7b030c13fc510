package nginx

import (
	"bytes"
	"strings"
	"testing"

	"mercator-hq/ganymede/pkg/hosting"
)

func testSession(id, baseURL, prefix string) *hosting.ProvisioningSession {
	return &hosting.ProvisioningSession{
		ID: id,
		IngestConfiguration: hosting.IngestConfiguration{
			Pull:     true,
			Protocol: hosting.ProtocolHTTPPullIngest,
			BaseURL:  baseURL,
		},
		DistributionConfigurations: []hosting.DistributionConfiguration{
			{BaseURL: "http://cdn.example.com" + prefix},
		},
	}
}

func TestGenerateDeterministic(t *testing.T) {
	g := NewGenerator(GeneratorConfig{CacheDir: "/var/cache/ganymede/proxy"})
	sessions := []*hosting.ProvisioningSession{
		testSession("S2", "http://origin-b.example.com/", "/m4d/S2/"),
		testSession("S1", "http://origin-a.example.com/", "/m4d/S1/"),
	}

	first, err := g.Generate(sessions, nil)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	// Reversed input order must not change the output.
	reversed := []*hosting.ProvisioningSession{sessions[1], sessions[0]}
	second, err := g.Generate(reversed, nil)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Error("output differs across input orderings")
	}
}

func TestGenerateRoutesAndCacheKeys(t *testing.T) {
	g := NewGenerator(GeneratorConfig{CacheDir: "/var/cache/ganymede/proxy"})
	out, err := g.Generate([]*hosting.ProvisioningSession{
		testSession("S1", "http://origin.example.com/", "/m4d/S1/"),
	}, nil)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	conf := string(out)
	for _, want := range []string{
		"location /m4d/S1/ {",
		"proxy_pass http://origin.example.com/;",
		`proxy_cache_key "S1:u=$uri";`,
		"proxy_cache cacheone;",
	} {
		if !strings.Contains(conf, want) {
			t.Errorf("output missing %q:\n%s", want, conf)
		}
	}
}

func TestGenerateLocationOrdering(t *testing.T) {
	sess := testSession("S1", "http://origin.example.com/", "/m4d/S1/")
	sess.DistributionConfigurations = append(sess.DistributionConfigurations,
		hosting.DistributionConfiguration{BaseURL: "http://cdn.example.com/m4d/S1/low-latency/"})

	g := NewGenerator(GeneratorConfig{})
	out, err := g.Generate([]*hosting.ProvisioningSession{sess}, nil)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	conf := string(out)
	long := strings.Index(conf, "location /m4d/S1/low-latency/ {")
	short := strings.Index(conf, "location /m4d/S1/ {")
	if long < 0 || short < 0 {
		t.Fatalf("expected both locations in output:\n%s", conf)
	}
	if long > short {
		t.Error("longer prefix emitted after shorter prefix")
	}
}

func TestGenerateTLSServer(t *testing.T) {
	sess := testSession("S1", "http://origin.example.com/", "/m4d/S1/")
	sess.DistributionConfigurations[0].CertificateID = "cert-1"
	sess.DistributionConfigurations[0].CanonicalDomainName = "media.example.com"

	g := NewGenerator(GeneratorConfig{})
	out, err := g.Generate([]*hosting.ProvisioningSession{sess},
		map[string]string{"cert-1": "/var/cache/ganymede/certs/cert-1.pem"})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	conf := string(out)
	for _, want := range []string{
		"listen 0.0.0.0:443 ssl;",
		"server_name media.example.com;",
		"ssl_certificate /var/cache/ganymede/certs/cert-1.pem;",
	} {
		if !strings.Contains(conf, want) {
			t.Errorf("output missing %q:\n%s", want, conf)
		}
	}
}

func TestGenerateMissingCertificateMaterial(t *testing.T) {
	sess := testSession("S1", "http://origin.example.com/", "/m4d/S1/")
	sess.DistributionConfigurations[0].CertificateID = "cert-1"

	g := NewGenerator(GeneratorConfig{})
	if _, err := g.Generate([]*hosting.ProvisioningSession{sess}, nil); err == nil {
		t.Error("Generate() error = nil for missing certificate material, want error")
	}
}

func TestGenerateEmptyStateKeepsStatusServer(t *testing.T) {
	g := NewGenerator(GeneratorConfig{StatusPort: 7778})
	out, err := g.Generate(nil, nil)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	conf := string(out)
	if !strings.Contains(conf, "listen 127.0.0.1:7778;") {
		t.Errorf("status server missing:\n%s", conf)
	}
	if !strings.Contains(conf, "location = /healthz {") {
		t.Errorf("health endpoint missing:\n%s", conf)
	}
}

func TestGenerateStaticDistribution(t *testing.T) {
	sess := testSession("S1", "http://origin.example.com/", "/m4d/S1/")
	sess.DistributionConfigurations[0].DocRoot = "/srv/static"

	g := NewGenerator(GeneratorConfig{CacheDir: "/var/cache/ganymede/proxy"})
	out, err := g.Generate([]*hosting.ProvisioningSession{sess}, nil)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	conf := string(out)
	if !strings.Contains(conf, "root /srv/static;") {
		t.Errorf("static root missing:\n%s", conf)
	}
	if strings.Contains(conf, "proxy_pass") {
		t.Errorf("static distribution must not proxy upstream:\n%s", conf)
	}
}

func TestGenerateRewriteRules(t *testing.T) {
	sess := testSession("S1", "http://origin.example.com/", "/m4d/S1/")
	sess.DistributionConfigurations[0].PathRewriteRules = []hosting.PathRewriteRule{
		{RequestPattern: "^/m4d/S1/hd/", MappedPath: "/content/high/"},
	}

	g := NewGenerator(GeneratorConfig{})
	out, err := g.Generate([]*hosting.ProvisioningSession{sess}, nil)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if !strings.Contains(string(out), `rewrite "^/m4d/S1/hd/" "/content/high/" break;`) {
		t.Errorf("rewrite rule missing:\n%s", out)
	}
}

func TestStaticRoutes(t *testing.T) {
	ingest := testSession("S1", "http://origin.example.com", "/m4d/S1/")
	static := testSession("S2", "http://ignored.example.com", "/files/")
	static.DistributionConfigurations[0].DocRoot = "/srv/static"

	routes := StaticRoutes([]*hosting.ProvisioningSession{ingest, static})
	if len(routes) != 2 {
		t.Fatalf("len(routes) = %d, want 2", len(routes))
	}
	if routes[0].Prefix != "/m4d/S1/" || routes[0].Upstream != "http://origin.example.com/" {
		t.Errorf("ingest route = %+v", routes[0])
	}
	if routes[1].Prefix != "/files/" || routes[1].Upstream != "/srv/static/" {
		t.Errorf("static route = %+v", routes[1])
	}
}
