// Package supervisor owns the external proxy process lifecycle and the
// on-disk configuration artifact.
//
// The supervisor is a small state machine (stopped, starting, running,
// reloading, failed). Applying a new artifact always follows
// validate-then-promote: the candidate is written beside the live
// configuration, checked by the proxy's own validator, and only then
// promoted and signalled. A reload that leaves the proxy unhealthy is
// rolled back once to the previous artifact; a rollback that also fails
// parks the supervisor in the failed state, which only an explicit
// restart leaves.
package supervisor
