package redirect

import (
	"sort"
	"strings"
	"sync"
)

// StaticRoute is one statically-provisioned prefix route as emitted into
// the generated proxy configuration.
type StaticRoute struct {
	// Prefix is the path prefix, starting and ending with "/".
	Prefix string

	// Upstream is the routing target for the prefix: an origin base URL
	// for ingest-backed distributions or a document root for static ones.
	Upstream string
}

// Resolver combines the redirect table with the static prefix routes from
// the current configuration artifact. A table hit wins; on a miss the
// longest matching static route is returned unchanged, with no renewal
// side effects.
type Resolver struct {
	table *Table

	mu sync.RWMutex

	// routes is kept sorted by descending prefix length so the first
	// match is the longest.
	routes []StaticRoute
}

// NewResolver creates a resolver over the given table and static routes.
func NewResolver(table *Table, routes []StaticRoute) *Resolver {
	sorted := make([]StaticRoute, len(routes))
	copy(sorted, routes)
	sort.Slice(sorted, func(i, j int) bool {
		if len(sorted[i].Prefix) != len(sorted[j].Prefix) {
			return len(sorted[i].Prefix) > len(sorted[j].Prefix)
		}
		return sorted[i].Prefix < sorted[j].Prefix
	})
	return &Resolver{table: table, routes: sorted}
}

// SetRoutes replaces the static routes, typically after a regeneration.
func (r *Resolver) SetRoutes(routes []StaticRoute) {
	nr := NewResolver(r.table, routes)
	r.mu.Lock()
	r.routes = nr.routes
	r.mu.Unlock()
}

// Resolve returns the routing decision for requestedPath. The boolean
// reports whether any route (dynamic or static) matched; redirected
// reports whether the decision came from the redirect table.
func (r *Resolver) Resolve(requestedPath string) (upstream, remainder string, redirected, ok bool) {
	if upstream, remainder, ok := r.table.Resolve(requestedPath); ok {
		return upstream, remainder, true, true
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, route := range r.routes {
		if strings.HasPrefix(requestedPath, route.Prefix) {
			return route.Upstream, requestedPath[len(route.Prefix):], false, true
		}
	}
	return "", "", false, false
}
