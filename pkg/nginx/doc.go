// Package nginx renders the proxy configuration artifact and drives the
// external nginx process.
//
// # Generator
//
// Generator is a pure transform from the full set of provisioning
// sessions to one self-contained nginx configuration. Output ordering is
// fully determined by the input (sessions sorted by ID, routing rules by
// descending prefix length), so regenerating from identical state yields
// byte-identical output.
//
// # Controller
//
// Controller implements the supervisor's ProcessController capability
// set for nginx: launching the daemon in the foreground, validating a
// candidate configuration with "nginx -t" without touching the running
// one, reloading via SIGHUP, graceful shutdown via SIGQUIT with forceful
// escalation, and an HTTP liveness probe against the generated status
// server. It also scans nginx's on-disk cache to purge entries for a
// provisioning session.
package nginx
