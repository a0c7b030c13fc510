package config

import "time"

// Default values applied to zero-valued configuration fields.
const (
	DefaultServerListenAddress = "127.0.0.1:7777"
	DefaultReadTimeout         = 30 * time.Second
	DefaultWriteTimeout        = 30 * time.Second
	DefaultIdleTimeout         = 120 * time.Second
	DefaultShutdownTimeout     = 30 * time.Second
	DefaultMaxHeaderBytes      = 1 << 20

	DefaultProxyBinary        = "nginx"
	DefaultProxyListenAddress = "0.0.0.0"
	DefaultHTTPPort           = 80
	DefaultHTTPSPort          = 443
	DefaultStatusPort         = 7778
	DefaultCacheDir           = "/var/cache/ganymede/cache"
	DefaultCertificateDir     = "/var/cache/ganymede/certificates"
	DefaultAccessLog          = "/var/log/ganymede/access.log"
	DefaultErrorLog           = "/var/log/ganymede/error.log"
	DefaultPIDPath            = "/run/ganymede/nginx.pid"
	DefaultTempDir            = "/var/cache/ganymede/tmp"

	DefaultArtifactDir    = "/run/ganymede"
	DefaultStartAttempts  = 3
	DefaultRetryBackoff   = time.Second
	DefaultHealthTimeout  = 10 * time.Second
	DefaultHealthInterval = 250 * time.Millisecond
	DefaultStopTimeout    = 10 * time.Second

	DefaultRedirectTTL      = 120 * time.Second
	DefaultRedirectZoneName = "redirects"
	DefaultRedirectZoneSize = "1m"

	DefaultSweepSchedule       = "@every 30s"
	DefaultHealthSchedule      = "@every 15s"
	DefaultCertificateDebounce = 500 * time.Millisecond

	DefaultLogLevel    = "info"
	DefaultLogFormat   = "json"
	DefaultMetricsPath = "/metrics"
)

// DefaultConfig returns a configuration with every field set to its
// default value. Boolean defaults that are true are set here because
// ApplyDefaults cannot tell an explicit false from an omitted field.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.Maintenance.CertificateWatch = true
	cfg.Telemetry.Metrics.Enabled = true
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills zero-valued fields with defaults. Explicitly
// configured values are never touched.
func ApplyDefaults(cfg *Config) {
	applyServerDefaults(&cfg.Server)
	applyProxyDefaults(&cfg.Proxy)
	applySupervisorDefaults(&cfg.Supervisor)
	applyRedirectDefaults(&cfg.Redirect)
	applyMaintenanceDefaults(&cfg.Maintenance)
	applyTelemetryDefaults(&cfg.Telemetry)
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = DefaultServerListenAddress
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.MaxHeaderBytes == 0 {
		cfg.MaxHeaderBytes = DefaultMaxHeaderBytes
	}
}

func applyProxyDefaults(cfg *ProxyConfig) {
	if cfg.Binary == "" {
		cfg.Binary = DefaultProxyBinary
	}
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = DefaultProxyListenAddress
	}
	if cfg.HTTPPort == 0 {
		cfg.HTTPPort = DefaultHTTPPort
	}
	if cfg.HTTPSPort == 0 {
		cfg.HTTPSPort = DefaultHTTPSPort
	}
	if cfg.StatusPort == 0 {
		cfg.StatusPort = DefaultStatusPort
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = DefaultCacheDir
	}
	if cfg.CertificateDir == "" {
		cfg.CertificateDir = DefaultCertificateDir
	}
	if cfg.AccessLog == "" {
		cfg.AccessLog = DefaultAccessLog
	}
	if cfg.ErrorLog == "" {
		cfg.ErrorLog = DefaultErrorLog
	}
	if cfg.PIDPath == "" {
		cfg.PIDPath = DefaultPIDPath
	}
	if cfg.TempDir == "" {
		cfg.TempDir = DefaultTempDir
	}
}

func applySupervisorDefaults(cfg *SupervisorConfig) {
	if cfg.ArtifactDir == "" {
		cfg.ArtifactDir = DefaultArtifactDir
	}
	if cfg.StartAttempts == 0 {
		cfg.StartAttempts = DefaultStartAttempts
	}
	if cfg.RetryBackoff == 0 {
		cfg.RetryBackoff = DefaultRetryBackoff
	}
	if cfg.HealthTimeout == 0 {
		cfg.HealthTimeout = DefaultHealthTimeout
	}
	if cfg.HealthInterval == 0 {
		cfg.HealthInterval = DefaultHealthInterval
	}
	if cfg.StopTimeout == 0 {
		cfg.StopTimeout = DefaultStopTimeout
	}
}

func applyRedirectDefaults(cfg *RedirectConfig) {
	if cfg.TTL == 0 {
		cfg.TTL = DefaultRedirectTTL
	}
	if cfg.ZoneName == "" {
		cfg.ZoneName = DefaultRedirectZoneName
	}
	if cfg.ZoneSize == "" {
		cfg.ZoneSize = DefaultRedirectZoneSize
	}
}

func applyMaintenanceDefaults(cfg *MaintenanceConfig) {
	if cfg.SweepSchedule == "" {
		cfg.SweepSchedule = DefaultSweepSchedule
	}
	if cfg.HealthSchedule == "" {
		cfg.HealthSchedule = DefaultHealthSchedule
	}
	if cfg.CertificateDebounce == 0 {
		cfg.CertificateDebounce = DefaultCertificateDebounce
	}
}

func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLogLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLogFormat
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}
}
