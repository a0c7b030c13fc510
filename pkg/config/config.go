package config

import "time"

// Config is the root configuration structure for the Ganymede
// controller. It covers the management API, the supervised proxy, the
// supervisor's lifecycle policy, the redirect table, background
// maintenance, and telemetry.
type Config struct {
	// Server contains the controller's own HTTP API configuration.
	Server ServerConfig `yaml:"server"`

	// Proxy contains the supervised reverse-proxy configuration: the
	// binary, the ports and directories baked into generated artifacts.
	Proxy ProxyConfig `yaml:"proxy"`

	// Supervisor contains the proxy lifecycle policy: artifact
	// locations, retry budget, and health probing.
	Supervisor SupervisorConfig `yaml:"supervisor"`

	// Redirect contains the redirect table configuration.
	Redirect RedirectConfig `yaml:"redirect"`

	// Maintenance contains background job schedules and the certificate
	// watcher settings.
	Maintenance MaintenanceConfig `yaml:"maintenance"`

	// Telemetry contains logging and metrics configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains the controller's management API configuration.
type ServerConfig struct {
	// ListenAddress is the address and port the management API listens
	// on. The API carries provisioning state and is normally bound to
	// loopback.
	// Default: "127.0.0.1:7777"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading an entire
	// request, including the body.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of
	// the response.
	// Default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the maximum time to wait for the next request on a
	// kept-alive connection.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful
	// shutdown before in-flight requests are dropped.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxHeaderBytes bounds request header parsing. It does not limit
	// body size.
	// Default: 1048576 (1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`
}

// ProxyConfig describes the supervised reverse proxy and the
// deployment-wide values baked into every generated artifact.
type ProxyConfig struct {
	// Binary is the proxy executable.
	// Default: "nginx"
	Binary string `yaml:"binary"`

	// ListenAddress is the address distribution virtual servers bind to.
	// Default: "0.0.0.0"
	ListenAddress string `yaml:"listen_address"`

	// HTTPPort serves plain distributions.
	// Default: 80
	HTTPPort int `yaml:"http_port"`

	// HTTPSPort serves TLS-enabled distributions.
	// Default: 443
	HTTPSPort int `yaml:"https_port"`

	// StatusPort serves the loopback health endpoint the supervisor
	// probes.
	// Default: 7778
	StatusPort int `yaml:"status_port"`

	// CacheDir is the proxy's disk cache; purge operations scan it.
	// Empty disables caching.
	// Default: "/var/cache/ganymede/cache"
	CacheDir string `yaml:"cache_dir"`

	// CertificateDir is where certificate PEM material is cached for
	// the proxy to read, one file per certificate ID.
	// Default: "/var/cache/ganymede/certificates"
	CertificateDir string `yaml:"certificate_dir"`

	// AccessLog and ErrorLog locate the proxy's own log files.
	// Defaults: "/var/log/ganymede/access.log", "/var/log/ganymede/error.log"
	AccessLog string `yaml:"access_log"`
	ErrorLog  string `yaml:"error_log"`

	// PIDPath is the proxy's PID file.
	// Default: "/run/ganymede/nginx.pid"
	PIDPath string `yaml:"pid_path"`

	// TempDir holds the proxy's temp directories (client body, proxy,
	// fastcgi, uwsgi, scgi subtrees are created beneath it).
	// Default: "/var/cache/ganymede/tmp"
	TempDir string `yaml:"temp_dir"`
}

// SupervisorConfig contains the proxy lifecycle policy.
type SupervisorConfig struct {
	// ArtifactDir holds the live configuration artifact and its
	// candidate and rollback siblings.
	// Default: "/run/ganymede"
	ArtifactDir string `yaml:"artifact_dir"`

	// StartAttempts is the proxy launch retry budget.
	// Default: 3
	StartAttempts int `yaml:"start_attempts"`

	// RetryBackoff is the delay before the first launch retry; it
	// doubles per attempt.
	// Default: 1s
	RetryBackoff time.Duration `yaml:"retry_backoff"`

	// HealthTimeout bounds how long a launch or reload may take to
	// become healthy.
	// Default: 10s
	HealthTimeout time.Duration `yaml:"health_timeout"`

	// HealthInterval is the probe spacing while waiting for health.
	// Default: 250ms
	HealthInterval time.Duration `yaml:"health_interval"`

	// StopTimeout bounds graceful shutdown before the proxy is killed.
	// Default: 10s
	StopTimeout time.Duration `yaml:"stop_timeout"`
}

// RedirectConfig contains the redirect table configuration.
type RedirectConfig struct {
	// TTL is the sliding idle lifetime of redirect entries; each
	// successful resolution renews it.
	// Default: 120s
	TTL time.Duration `yaml:"ttl"`

	// ZoneName and ZoneSize declare the proxy-side shared dictionary
	// the generated artifact provisions for redirect lookups.
	// Defaults: "redirects", "1m"
	ZoneName string `yaml:"zone_name"`
	ZoneSize string `yaml:"zone_size"`
}

// MaintenanceConfig contains background job schedules. Schedules use
// cron syntax, including the "@every <duration>" form.
type MaintenanceConfig struct {
	// SweepSchedule runs the redirect table sweep.
	// Default: "@every 30s"
	SweepSchedule string `yaml:"sweep_schedule"`

	// HealthSchedule runs the supervised proxy health check.
	// Default: "@every 15s"
	HealthSchedule string `yaml:"health_schedule"`

	// CertificateWatch enables the filesystem watcher over the
	// certificate cache directory.
	// Default: true
	CertificateWatch bool `yaml:"certificate_watch"`

	// CertificateDebounce coalesces bursts of filesystem events before
	// certificates are re-read.
	// Default: 500ms
	CertificateDebounce time.Duration `yaml:"certificate_debounce"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	// Logging contains structured logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains Prometheus metrics configuration.
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig contains structured logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level ("debug", "info", "warn", "error").
	// Default: "info"
	Level string `yaml:"level"`

	// Format is the output format ("json", "text").
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line information in log records.
	// Default: false
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	// Enabled controls whether the metrics endpoint is served.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the metrics endpoint path on the management API.
	// Default: "/metrics"
	Path string `yaml:"path"`
}
