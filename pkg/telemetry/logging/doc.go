// Package logging configures the controller's structured logging.
//
// It builds a log/slog logger from configuration (level, output format,
// optional source locations) and installs it as the process default.
// Components receive their own *slog.Logger handles scoped with a
// "component" attribute.
package logging
