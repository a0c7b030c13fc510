// Package redirect provides the shared redirect table used to reroute a
// provisioning session's path prefix to a dynamically chosen upstream
// without a proxy reload.
//
// # Overview
//
// The table maps path-prefix keys to upstream path prefixes with a sliding
// TTL: any successful lookup renews the entry for a full TTL window
// (default 120s). Entries are logically invisible the instant they expire,
// even before a sweep physically removes them.
//
//	table := redirect.NewTable(redirect.DefaultTTL)
//	key, _ := table.Allocate("/m4d/S1/", "/origin-b/")
//	upstream, rest, ok := table.Resolve(key + "manifest.mpd")
//
// Allocation is idempotent: re-allocating the same (session prefix,
// upstream prefix) pair before expiry renews and returns the existing key
// instead of minting a new one.
//
// # Thread Safety
//
// The table is sharded (FNV-1a over the key) with one RWMutex per shard so
// that Resolve, which runs on the per-request hot path, contends per shard
// rather than globally. All operations are safe for concurrent use.
package redirect
