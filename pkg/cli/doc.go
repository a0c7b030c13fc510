// Package cli provides error types shared by the ganymede command:
// configuration errors that point at the offending field and command
// errors that name the failed subcommand while preserving the
// underlying cause for errors.Is checks.
package cli
