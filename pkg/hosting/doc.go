// Package hosting holds the content-hosting data model and the
// provisioning store, the authoritative in-memory mapping from session
// identifiers to provisioning records and certificate references.
//
// # Overview
//
// The store validates incoming records, regenerates the full proxy
// configuration artifact from all current sessions, and hands it to the
// process supervisor for a zero-downtime reload:
//
//	store := hosting.NewStore(hosting.StoreConfig{CertificateDir: dir},
//		generator, applier, purger, table, logger, collector)
//	err := store.Put(ctx, "S1", session)
//
// All mutating operations are serialized: at most one
// regenerate-and-reload sequence is in flight at a time, and a failed
// reload rolls the store back to the last successfully-applied state.
//
// Provisioning state lives for the process lifetime only; the sole
// on-disk artifacts are the certificate PEM files cached for the proxy.
package hosting
