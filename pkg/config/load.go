package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file. The file is
// unmarshalled over a fully-defaulted configuration, so omitted fields
// keep their defaults while explicit values, including explicit false,
// always win. The result is validated before it is returned.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	// A file that clears a field back to zero still gets the default.
	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and
// applies environment variable overrides. Variables follow the naming
// convention GANYMEDE_SECTION_FIELD (e.g. GANYMEDE_SERVER_LISTEN_ADDRESS)
// and always take precedence over file-based configuration.
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides applies GANYMEDE_SECTION_FIELD environment variable
// overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	// Server overrides
	envString("GANYMEDE_SERVER_LISTEN_ADDRESS", &cfg.Server.ListenAddress)
	envDuration("GANYMEDE_SERVER_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	envDuration("GANYMEDE_SERVER_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	envDuration("GANYMEDE_SERVER_IDLE_TIMEOUT", &cfg.Server.IdleTimeout)
	envDuration("GANYMEDE_SERVER_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)
	envInt("GANYMEDE_SERVER_MAX_HEADER_BYTES", &cfg.Server.MaxHeaderBytes)

	// Proxy overrides
	envString("GANYMEDE_PROXY_BINARY", &cfg.Proxy.Binary)
	envString("GANYMEDE_PROXY_LISTEN_ADDRESS", &cfg.Proxy.ListenAddress)
	envInt("GANYMEDE_PROXY_HTTP_PORT", &cfg.Proxy.HTTPPort)
	envInt("GANYMEDE_PROXY_HTTPS_PORT", &cfg.Proxy.HTTPSPort)
	envInt("GANYMEDE_PROXY_STATUS_PORT", &cfg.Proxy.StatusPort)
	envString("GANYMEDE_PROXY_CACHE_DIR", &cfg.Proxy.CacheDir)
	envString("GANYMEDE_PROXY_CERTIFICATE_DIR", &cfg.Proxy.CertificateDir)
	envString("GANYMEDE_PROXY_ACCESS_LOG", &cfg.Proxy.AccessLog)
	envString("GANYMEDE_PROXY_ERROR_LOG", &cfg.Proxy.ErrorLog)
	envString("GANYMEDE_PROXY_PID_PATH", &cfg.Proxy.PIDPath)
	envString("GANYMEDE_PROXY_TEMP_DIR", &cfg.Proxy.TempDir)

	// Supervisor overrides
	envString("GANYMEDE_SUPERVISOR_ARTIFACT_DIR", &cfg.Supervisor.ArtifactDir)
	envInt("GANYMEDE_SUPERVISOR_START_ATTEMPTS", &cfg.Supervisor.StartAttempts)
	envDuration("GANYMEDE_SUPERVISOR_RETRY_BACKOFF", &cfg.Supervisor.RetryBackoff)
	envDuration("GANYMEDE_SUPERVISOR_HEALTH_TIMEOUT", &cfg.Supervisor.HealthTimeout)
	envDuration("GANYMEDE_SUPERVISOR_HEALTH_INTERVAL", &cfg.Supervisor.HealthInterval)
	envDuration("GANYMEDE_SUPERVISOR_STOP_TIMEOUT", &cfg.Supervisor.StopTimeout)

	// Redirect overrides
	envDuration("GANYMEDE_REDIRECT_TTL", &cfg.Redirect.TTL)
	envString("GANYMEDE_REDIRECT_ZONE_NAME", &cfg.Redirect.ZoneName)
	envString("GANYMEDE_REDIRECT_ZONE_SIZE", &cfg.Redirect.ZoneSize)

	// Maintenance overrides
	envString("GANYMEDE_MAINTENANCE_SWEEP_SCHEDULE", &cfg.Maintenance.SweepSchedule)
	envString("GANYMEDE_MAINTENANCE_HEALTH_SCHEDULE", &cfg.Maintenance.HealthSchedule)
	envBool("GANYMEDE_MAINTENANCE_CERTIFICATE_WATCH", &cfg.Maintenance.CertificateWatch)
	envDuration("GANYMEDE_MAINTENANCE_CERTIFICATE_DEBOUNCE", &cfg.Maintenance.CertificateDebounce)

	// Telemetry overrides
	envString("GANYMEDE_TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	envString("GANYMEDE_TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	envBool("GANYMEDE_TELEMETRY_LOGGING_ADD_SOURCE", &cfg.Telemetry.Logging.AddSource)
	envBool("GANYMEDE_TELEMETRY_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)
	envString("GANYMEDE_TELEMETRY_METRICS_PATH", &cfg.Telemetry.Metrics.Path)
}

func envString(name string, dst *string) {
	if val := os.Getenv(name); val != "" {
		*dst = val
	}
}

func envInt(name string, dst *int) {
	if val := os.Getenv(name); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			*dst = i
		}
	}
}

func envBool(name string, dst *bool) {
	if val := os.Getenv(name); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = b
		}
	}
}

func envDuration(name string, dst *time.Duration) {
	if val := os.Getenv(name); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}
