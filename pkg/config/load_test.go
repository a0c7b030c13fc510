package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	path := writeConfigFile(t, "server:\n  listen_address: \"127.0.0.1:9999\"\n")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Server.ListenAddress != "127.0.0.1:9999" {
		t.Errorf("Server.ListenAddress = %q, want configured value", cfg.Server.ListenAddress)
	}
	if cfg.Server.ReadTimeout != DefaultReadTimeout {
		t.Errorf("Server.ReadTimeout = %v, want default %v", cfg.Server.ReadTimeout, DefaultReadTimeout)
	}
	if cfg.Proxy.Binary != DefaultProxyBinary {
		t.Errorf("Proxy.Binary = %q, want default %q", cfg.Proxy.Binary, DefaultProxyBinary)
	}
	if cfg.Redirect.TTL != DefaultRedirectTTL {
		t.Errorf("Redirect.TTL = %v, want default %v", cfg.Redirect.TTL, DefaultRedirectTTL)
	}
	if !cfg.Telemetry.Metrics.Enabled {
		t.Error("Telemetry.Metrics.Enabled = false, want default true")
	}
	if !cfg.Maintenance.CertificateWatch {
		t.Error("Maintenance.CertificateWatch = false, want default true")
	}
}

func TestLoadConfigExplicitFalseWins(t *testing.T) {
	path := writeConfigFile(t, "telemetry:\n  metrics:\n    enabled: false\n")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Telemetry.Metrics.Enabled {
		t.Error("Telemetry.Metrics.Enabled = true, want explicit false from file")
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("LoadConfig() error = nil for missing file, want error")
	}
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	path := writeConfigFile(t, "server: [not a mapping\n")
	if _, err := LoadConfig(path); err == nil {
		t.Error("LoadConfig() error = nil for invalid YAML, want error")
	}
}

func TestLoadConfigValidationFailure(t *testing.T) {
	path := writeConfigFile(t, "proxy:\n  http_port: 99999\n")
	if _, err := LoadConfig(path); err == nil {
		t.Error("LoadConfig() error = nil for invalid port, want error")
	}
}

func TestLoadConfigWithEnvOverrides(t *testing.T) {
	path := writeConfigFile(t, "server:\n  listen_address: \"127.0.0.1:9999\"\n")

	t.Setenv("GANYMEDE_SERVER_LISTEN_ADDRESS", "127.0.0.1:8888")
	t.Setenv("GANYMEDE_SUPERVISOR_HEALTH_TIMEOUT", "42s")
	t.Setenv("GANYMEDE_PROXY_HTTP_PORT", "8080")
	t.Setenv("GANYMEDE_TELEMETRY_METRICS_ENABLED", "false")

	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("LoadConfigWithEnvOverrides() error = %v", err)
	}

	if cfg.Server.ListenAddress != "127.0.0.1:8888" {
		t.Errorf("Server.ListenAddress = %q, want env override", cfg.Server.ListenAddress)
	}
	if cfg.Supervisor.HealthTimeout != 42*time.Second {
		t.Errorf("Supervisor.HealthTimeout = %v, want 42s", cfg.Supervisor.HealthTimeout)
	}
	if cfg.Proxy.HTTPPort != 8080 {
		t.Errorf("Proxy.HTTPPort = %d, want 8080", cfg.Proxy.HTTPPort)
	}
	if cfg.Telemetry.Metrics.Enabled {
		t.Error("Telemetry.Metrics.Enabled = true, want env override false")
	}
}

func TestLoadConfigWithEnvOverridesInvalidResult(t *testing.T) {
	path := writeConfigFile(t, "")

	t.Setenv("GANYMEDE_PROXY_HTTPS_PORT", "80")

	if _, err := LoadConfigWithEnvOverrides(path); err == nil {
		t.Error("error = nil for colliding http/https ports, want error")
	}
}

func TestDefaultConfigIsValid(t *testing.T) {
	if err := Validate(DefaultConfig()); err != nil {
		t.Errorf("Validate(DefaultConfig()) = %v, want nil", err)
	}
}
