package redirect

import (
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultTTL is the sliding time-to-live applied to redirect entries
	// when no explicit TTL is configured.
	DefaultTTL = 120 * time.Second

	// KeyInfix separates the session path prefix from the opaque unique
	// suffix in allocated keys.
	KeyInfix = "redir-"

	// shardCount is the number of lock shards. Must be a power of two.
	shardCount = 16
)

// entry is a single redirect mapping. Key and value are both path-prefix
// strings ending in "/". An entry is treated as absent once expiresAt has
// passed, even before a sweep removes it.
type entry struct {
	value     string
	expiresAt time.Time
}

// shard holds a slice of the key space under its own lock.
type shard struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// Table is a concurrent, expiring mapping from path-prefix keys to
// upstream path prefixes. The zero value is not usable; use NewTable.
type Table struct {
	shards [shardCount]*shard

	// ttl is the sliding TTL window applied on allocation and renewal.
	ttl time.Duration

	// now is the clock source, replaceable in tests.
	now func() time.Time
}

// NewTable creates a redirect table with the given sliding TTL.
// A non-positive ttl falls back to DefaultTTL.
func NewTable(ttl time.Duration) *Table {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	t := &Table{
		ttl: ttl,
		now: time.Now,
	}
	for i := range t.shards {
		t.shards[i] = &shard{entries: make(map[string]*entry)}
	}
	return t
}

// TTL returns the configured sliding TTL window.
func (t *Table) TTL() time.Duration {
	return t.ttl
}

// Resolve scans live entries for the longest key that is a prefix of
// requestedPath. On a hit it renews the entry's expiry by a full TTL
// window and returns the upstream prefix together with the remainder of
// the path after the matched key. On a miss it returns ok == false; the
// caller falls back to the statically generated routing (see Resolver).
func (t *Table) Resolve(requestedPath string) (upstream, remainder string, ok bool) {
	t.Sweep()

	now := t.now()
	var bestKey, bestValue string
	for _, sh := range t.shards {
		sh.mu.RLock()
		for key, e := range sh.entries {
			if now.After(e.expiresAt) {
				continue
			}
			if len(key) > len(bestKey) && strings.HasPrefix(requestedPath, key) {
				bestKey, bestValue = key, e.value
			}
		}
		sh.mu.RUnlock()
	}
	if bestKey == "" {
		return "", "", false
	}

	// Renewal re-inserts unconditionally so that a renewal racing an
	// expiry sweep still wins even if the sweep already removed the entry.
	sh := t.shardFor(bestKey)
	sh.mu.Lock()
	sh.entries[bestKey] = &entry{value: bestValue, expiresAt: t.now().Add(t.ttl)}
	sh.mu.Unlock()

	return bestValue, requestedPath[len(bestKey):], true
}

// Allocate returns a redirect key under sessionPrefix mapping to
// upstreamPrefix. If an unexpired entry with exactly that mapping already
// exists it is renewed and its key returned, so repeated identical
// requests do not grow the key space. Otherwise a new globally-unique key
// of the form "<sessionPrefix>redir-<suffix>/" is minted with a fresh TTL.
//
// Both prefixes must be path-prefix strings ending in "/".
func (t *Table) Allocate(sessionPrefix, upstreamPrefix string) (string, error) {
	if !strings.HasPrefix(sessionPrefix, "/") || !strings.HasSuffix(sessionPrefix, "/") {
		return "", fmt.Errorf("session prefix %q must start and end with %q", sessionPrefix, "/")
	}
	if !strings.HasSuffix(upstreamPrefix, "/") {
		return "", fmt.Errorf("upstream prefix %q must end with %q", upstreamPrefix, "/")
	}

	t.Sweep()

	// Idempotent reuse: look for a live identical mapping first.
	now := t.now()
	for _, sh := range t.shards {
		sh.mu.Lock()
		for key, e := range sh.entries {
			if now.After(e.expiresAt) {
				continue
			}
			if e.value == upstreamPrefix && strings.HasPrefix(key, sessionPrefix) {
				e.expiresAt = t.now().Add(t.ttl)
				sh.mu.Unlock()
				return key, nil
			}
		}
		sh.mu.Unlock()
	}

	key := sessionPrefix + KeyInfix + uuid.NewString() + "/"
	sh := t.shardFor(key)
	sh.mu.Lock()
	sh.entries[key] = &entry{value: upstreamPrefix, expiresAt: t.now().Add(t.ttl)}
	sh.mu.Unlock()
	return key, nil
}

// Flush removes every entry whose key starts with sessionPrefix. It is
// called on session deletion and returns the number of removed entries.
func (t *Table) Flush(sessionPrefix string) int {
	removed := 0
	for _, sh := range t.shards {
		sh.mu.Lock()
		for key := range sh.entries {
			if strings.HasPrefix(key, sessionPrefix) {
				delete(sh.entries, key)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed
}

// Sweep physically removes expired entries from all shards and returns
// the number reclaimed. It runs at the start of every Resolve and
// Allocate call and may additionally be driven on a schedule.
func (t *Table) Sweep() int {
	now := t.now()
	removed := 0
	for _, sh := range t.shards {
		sh.mu.Lock()
		for key, e := range sh.entries {
			if now.After(e.expiresAt) {
				delete(sh.entries, key)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed
}

// Len returns the number of physically present entries, expired or not.
func (t *Table) Len() int {
	n := 0
	for _, sh := range t.shards {
		sh.mu.RLock()
		n += len(sh.entries)
		sh.mu.RUnlock()
	}
	return n
}

// shardFor selects the lock shard for a key using FNV-1a.
func (t *Table) shardFor(key string) *shard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return t.shards[h.Sum32()&(shardCount-1)]
}
