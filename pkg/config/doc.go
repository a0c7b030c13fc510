// Package config defines the controller's configuration model and its
// loading pipeline.
//
// Configuration is read from a YAML file, filled in with defaults,
// optionally overridden by GANYMEDE_* environment variables, and
// validated as a whole. Validation collects every field error instead
// of stopping at the first one.
package config
