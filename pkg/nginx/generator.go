package nginx

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"mercator-hq/ganymede/pkg/hosting"
	"mercator-hq/ganymede/pkg/redirect"
)

// GeneratorConfig fixes the deployment-wide parts of the generated
// configuration: listen addresses, log and cache locations, and the
// redirect shared-dictionary declaration.
type GeneratorConfig struct {
	// ListenAddress is the address virtual servers bind to.
	ListenAddress string

	// HTTPPort and HTTPSPort are the ports for plain and TLS-enabled
	// distributions respectively.
	HTTPPort  int
	HTTPSPort int

	// StatusPort serves the local health endpoint the supervisor probes.
	StatusPort int

	// AccessLog, ErrorLog and PIDPath locate the proxy's own files.
	AccessLog string
	ErrorLog  string
	PIDPath   string

	// CacheDir is the proxy disk cache; empty disables caching.
	CacheDir string

	// Temp directories required by nginx.
	ClientBodyTemp string
	ProxyTemp      string
	FastCGITemp    string
	UWSGITemp      string
	SCGITemp       string

	// RedirectZoneName, RedirectZoneSize and RedirectTTL declare the
	// shared redirect table the request path consults. Fixing them in
	// the artifact keeps table behavior identical across restarts.
	RedirectZoneName string
	RedirectZoneSize string
	RedirectTTL      time.Duration
}

// Generator renders provisioning sessions into one complete nginx
// configuration artifact. It is stateless; all variation comes from its
// configuration and the session set.
type Generator struct {
	cfg GeneratorConfig
}

// NewGenerator creates a generator. Zero-valued fields of cfg fall back
// to conservative defaults.
func NewGenerator(cfg GeneratorConfig) *Generator {
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = "0.0.0.0"
	}
	if cfg.HTTPPort == 0 {
		cfg.HTTPPort = 80
	}
	if cfg.HTTPSPort == 0 {
		cfg.HTTPSPort = 443
	}
	if cfg.StatusPort == 0 {
		cfg.StatusPort = 7778
	}
	if cfg.RedirectZoneName == "" {
		cfg.RedirectZoneName = "redirects"
	}
	if cfg.RedirectZoneSize == "" {
		cfg.RedirectZoneSize = "1m"
	}
	if cfg.RedirectTTL <= 0 {
		cfg.RedirectTTL = redirect.DefaultTTL
	}
	return &Generator{cfg: cfg}
}

// location is one routing rule inside a virtual server.
type location struct {
	prefix    string
	sessionID string
	origin    string // reverse-proxy target; empty for static distributions
	docRoot   string
	rewrites  []hosting.PathRewriteRule
}

// serverBlock is one virtual server: a distinct listening configuration
// (port and TLS bundle) plus its routing rules.
type serverBlock struct {
	port     int
	certFile string // empty for plain servers
	names    map[string]bool
	routes   []location
}

// Generate implements hosting.ConfigGenerator. The artifact is complete
// and self-contained, never a diff.
func (g *Generator) Generate(sessions []*hosting.ProvisioningSession, certFiles map[string]string) ([]byte, error) {
	servers := make(map[string]*serverBlock)

	sorted := make([]*hosting.ProvisioningSession, len(sessions))
	copy(sorted, sessions)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	for _, sess := range sorted {
		origin := sess.IngestConfiguration.Origin()
		for _, dc := range sess.DistributionConfigurations {
			prefix := dc.PathPrefix()
			if prefix == "" || prefix == "/" {
				return nil, fmt.Errorf("session %q: distribution %q has no usable path prefix", sess.ID, dc.BaseURL)
			}

			port := g.cfg.HTTPPort
			certFile := ""
			if dc.CertificateID != "" {
				file, ok := certFiles[dc.CertificateID]
				if !ok {
					return nil, fmt.Errorf("session %q: certificate %q has no cached material", sess.ID, dc.CertificateID)
				}
				port = g.cfg.HTTPSPort
				certFile = file
			}

			key := fmt.Sprintf("%d\x00%s", port, certFile)
			sb, ok := servers[key]
			if !ok {
				sb = &serverBlock{port: port, certFile: certFile, names: make(map[string]bool)}
				servers[key] = sb
			}
			for _, name := range dc.ServerNames() {
				sb.names[name] = true
			}

			loc := location{
				prefix:    prefix,
				sessionID: sess.ID,
				rewrites:  dc.PathRewriteRules,
			}
			if dc.Static() {
				loc.docRoot = dc.DocRoot
			} else {
				loc.origin = origin
			}
			sb.routes = append(sb.routes, loc)
		}
	}

	var b strings.Builder
	b.WriteString("# Configuration generated by ganymede; do not edit.\n")
	fmt.Fprintf(&b, "daemon off;\n")
	if g.cfg.PIDPath != "" {
		fmt.Fprintf(&b, "pid %s;\n", g.cfg.PIDPath)
	}
	if g.cfg.ErrorLog != "" {
		fmt.Fprintf(&b, "error_log %s error;\n", g.cfg.ErrorLog)
	}
	b.WriteString("\nevents {\n    worker_connections 1024;\n}\n\nhttp {\n")
	if g.cfg.AccessLog != "" {
		fmt.Fprintf(&b, "    access_log %s;\n", g.cfg.AccessLog)
	}
	if g.cfg.CacheDir != "" {
		fmt.Fprintf(&b, "    proxy_cache_path %s levels=1:2 use_temp_path=on keys_zone=cacheone:10m;\n", g.cfg.CacheDir)
	}
	writeTemp(&b, "client_body_temp_path", g.cfg.ClientBodyTemp)
	writeTemp(&b, "proxy_temp_path", g.cfg.ProxyTemp)
	writeTemp(&b, "fastcgi_temp_path", g.cfg.FastCGITemp)
	writeTemp(&b, "uwsgi_temp_path", g.cfg.UWSGITemp)
	writeTemp(&b, "scgi_temp_path", g.cfg.SCGITemp)

	fmt.Fprintf(&b, "\n    # Shared redirect table consulted on the request path.\n")
	fmt.Fprintf(&b, "    js_shared_dict_zone zone=%s:%s timeout=%ds evict;\n",
		g.cfg.RedirectZoneName, g.cfg.RedirectZoneSize, int(g.cfg.RedirectTTL.Seconds()))

	// Local status server for the supervisor's readiness and health
	// probes; present even with zero provisioned sessions.
	fmt.Fprintf(&b, "\n    server {\n        listen 127.0.0.1:%d;\n        server_name _;\n\n", g.cfg.StatusPort)
	b.WriteString("        location = /healthz {\n            return 204;\n        }\n    }\n")

	for _, sb := range sortedServers(servers) {
		b.WriteString("\n    server {\n")
		if sb.certFile != "" {
			fmt.Fprintf(&b, "        listen %s:%d ssl;\n", g.cfg.ListenAddress, sb.port)
		} else {
			fmt.Fprintf(&b, "        listen %s:%d;\n", g.cfg.ListenAddress, sb.port)
		}
		fmt.Fprintf(&b, "        server_name %s;\n", strings.Join(sortedNames(sb.names), " "))
		if sb.certFile != "" {
			fmt.Fprintf(&b, "        ssl_certificate %s;\n", sb.certFile)
			fmt.Fprintf(&b, "        ssl_certificate_key %s;\n", sb.certFile)
		}

		// Longest prefix first so match order is deterministic regardless
		// of declaration order. Equal-length duplicates are rejected at
		// put time and cannot occur here.
		sort.Slice(sb.routes, func(i, j int) bool {
			if len(sb.routes[i].prefix) != len(sb.routes[j].prefix) {
				return len(sb.routes[i].prefix) > len(sb.routes[j].prefix)
			}
			return sb.routes[i].prefix < sb.routes[j].prefix
		})

		for _, loc := range sb.routes {
			fmt.Fprintf(&b, "\n        location %s {\n", loc.prefix)
			for _, rr := range loc.rewrites {
				fmt.Fprintf(&b, "            rewrite \"%s\" \"%s\" break;\n", rr.RequestPattern, rr.MappedPath)
			}
			if loc.docRoot != "" {
				fmt.Fprintf(&b, "            root %s;\n", loc.docRoot)
			} else {
				fmt.Fprintf(&b, "            proxy_pass %s/;\n", loc.origin)
				if g.cfg.CacheDir != "" {
					b.WriteString("            proxy_cache cacheone;\n")
					fmt.Fprintf(&b, "            proxy_cache_key \"%s:u=$uri\";\n", loc.sessionID)
				}
			}
			b.WriteString("        }\n")
		}
		b.WriteString("    }\n")
	}

	b.WriteString("}\n")
	return []byte(b.String()), nil
}

// StaticRoutes derives the resolver's static fallback routes from the
// same session set the artifact is generated from: ingest-backed
// distributions route to the session origin, static ones to their
// document root.
func StaticRoutes(sessions []*hosting.ProvisioningSession) []redirect.StaticRoute {
	var routes []redirect.StaticRoute
	for _, sess := range sessions {
		origin := sess.IngestConfiguration.Origin()
		for _, dc := range sess.DistributionConfigurations {
			prefix := dc.PathPrefix()
			if prefix == "" || prefix == "/" {
				continue
			}
			upstream := origin + "/"
			if dc.Static() {
				upstream = hosting.NormalizePathPrefix(dc.DocRoot)
			}
			routes = append(routes, redirect.StaticRoute{Prefix: prefix, Upstream: upstream})
		}
	}
	return routes
}

func writeTemp(b *strings.Builder, directive, path string) {
	if path != "" {
		fmt.Fprintf(b, "    %s %s;\n", directive, path)
	}
}

func sortedServers(servers map[string]*serverBlock) []*serverBlock {
	keys := make([]string, 0, len(servers))
	for k := range servers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]*serverBlock, len(keys))
	for i, k := range keys {
		out[i] = servers[k]
	}
	return out
}

func sortedNames(names map[string]bool) []string {
	out := make([]string, 0, len(names))
	for n := range names {
		out = append(out, n)
	}
	sort.Strings(out)
	if len(out) == 0 {
		out = append(out, "_")
	}
	return out
}
