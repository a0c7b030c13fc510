package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration
// field.
type FieldError struct {
	// Field is the dotted path to the configuration field
	// (e.g. "server.listen_address").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a
// configuration. All field errors are collected before it is returned.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration. It returns a
// ValidationError carrying every failed rule, or nil when the
// configuration is valid.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateProxy(&cfg.Proxy)...)
	errs = append(errs, validateSupervisor(&cfg.Supervisor)...)
	errs = append(errs, validateRedirect(&cfg.Redirect)...)
	errs = append(errs, validateMaintenance(&cfg.Maintenance)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: "listen address is required",
		})
	} else if _, _, err := net.SplitHostPort(cfg.ListenAddress); err != nil {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: fmt.Sprintf("must be host:port: %v", err),
		})
	}
	if cfg.ReadTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.read_timeout",
			Message: "read timeout must be positive",
		})
	}
	if cfg.WriteTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.write_timeout",
			Message: "write timeout must be positive",
		})
	}
	if cfg.IdleTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.idle_timeout",
			Message: "idle timeout must be positive",
		})
	}
	if cfg.MaxHeaderBytes < 0 {
		errs = append(errs, FieldError{
			Field:   "server.max_header_bytes",
			Message: "max header bytes must be non-negative",
		})
	}
	return errs
}

func validateProxy(cfg *ProxyConfig) []FieldError {
	var errs []FieldError

	if cfg.Binary == "" {
		errs = append(errs, FieldError{
			Field:   "proxy.binary",
			Message: "proxy binary is required",
		})
	}
	for field, port := range map[string]int{
		"proxy.http_port":   cfg.HTTPPort,
		"proxy.https_port":  cfg.HTTPSPort,
		"proxy.status_port": cfg.StatusPort,
	} {
		if port < 1 || port > 65535 {
			errs = append(errs, FieldError{
				Field:   field,
				Message: fmt.Sprintf("port %d out of range 1-65535", port),
			})
		}
	}
	if cfg.HTTPPort == cfg.HTTPSPort {
		errs = append(errs, FieldError{
			Field:   "proxy.https_port",
			Message: "http and https ports must differ",
		})
	}
	if cfg.CertificateDir == "" {
		errs = append(errs, FieldError{
			Field:   "proxy.certificate_dir",
			Message: "certificate directory is required",
		})
	}
	return errs
}

func validateSupervisor(cfg *SupervisorConfig) []FieldError {
	var errs []FieldError

	if cfg.ArtifactDir == "" {
		errs = append(errs, FieldError{
			Field:   "supervisor.artifact_dir",
			Message: "artifact directory is required",
		})
	}
	if cfg.StartAttempts < 1 {
		errs = append(errs, FieldError{
			Field:   "supervisor.start_attempts",
			Message: "start attempts must be at least 1",
		})
	}
	if cfg.RetryBackoff < 0 {
		errs = append(errs, FieldError{
			Field:   "supervisor.retry_backoff",
			Message: "retry backoff must be positive",
		})
	}
	if cfg.HealthTimeout <= 0 {
		errs = append(errs, FieldError{
			Field:   "supervisor.health_timeout",
			Message: "health timeout must be positive",
		})
	}
	if cfg.HealthInterval <= 0 {
		errs = append(errs, FieldError{
			Field:   "supervisor.health_interval",
			Message: "health interval must be positive",
		})
	}
	return errs
}

func validateRedirect(cfg *RedirectConfig) []FieldError {
	var errs []FieldError

	if cfg.TTL <= 0 {
		errs = append(errs, FieldError{
			Field:   "redirect.ttl",
			Message: "ttl must be positive",
		})
	}
	if cfg.ZoneName == "" {
		errs = append(errs, FieldError{
			Field:   "redirect.zone_name",
			Message: "zone name is required",
		})
	}
	return errs
}

func validateMaintenance(cfg *MaintenanceConfig) []FieldError {
	var errs []FieldError

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	for field, schedule := range map[string]string{
		"maintenance.sweep_schedule":  cfg.SweepSchedule,
		"maintenance.health_schedule": cfg.HealthSchedule,
	} {
		if schedule == "" {
			continue
		}
		if _, err := parser.Parse(schedule); err != nil {
			errs = append(errs, FieldError{
				Field:   field,
				Message: fmt.Sprintf("invalid cron schedule: %v", err),
			})
		}
	}
	if cfg.CertificateDebounce < 0 {
		errs = append(errs, FieldError{
			Field:   "maintenance.certificate_debounce",
			Message: "debounce must be positive",
		})
	}
	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "warning", "error", "":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid level %q (valid: debug, info, warn, error)", cfg.Logging.Level),
		})
	}
	switch strings.ToLower(cfg.Logging.Format) {
	case "json", "text", "":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid format %q (valid: json, text)", cfg.Logging.Format),
		})
	}
	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{
			Field:   "telemetry.metrics.path",
			Message: "metrics path must start with /",
		})
	}
	return errs
}
