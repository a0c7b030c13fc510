package redirect

import (
	"testing"
	"time"
)

func TestResolverPrefersTableHit(t *testing.T) {
	table, _ := newTestTable(DefaultTTL)
	resolver := NewResolver(table, []StaticRoute{
		{Prefix: "/m4d/S1/", Upstream: "https://origin.example/"},
	})

	key, _ := table.Allocate("/m4d/S1/", "/alt-origin/")
	upstream, remainder, redirected, ok := resolver.Resolve(key + "seg.m4s")
	if !ok || !redirected {
		t.Fatalf("Resolve() = (%v, %v), want redirected hit", ok, redirected)
	}
	if upstream != "/alt-origin/" || remainder != "seg.m4s" {
		t.Errorf("Resolve() = (%q, %q), want (%q, %q)", upstream, remainder, "/alt-origin/", "seg.m4s")
	}
}

func TestResolverFallsBackToStaticDefault(t *testing.T) {
	table, clock := newTestTable(DefaultTTL)
	resolver := NewResolver(table, []StaticRoute{
		{Prefix: "/m4d/S1/", Upstream: "https://origin.example/"},
	})

	key, _ := table.Allocate("/m4d/S1/", "/alt-origin/")
	clock.Advance(DefaultTTL + time.Second)

	upstream, remainder, redirected, ok := resolver.Resolve(key + "seg.m4s")
	if !ok {
		t.Fatal("Resolve() ok = false, want static fallback")
	}
	if redirected {
		t.Error("Resolve() redirected = true for an expired entry")
	}
	if upstream != "https://origin.example/" {
		t.Errorf("upstream = %q, want static default", upstream)
	}
	if want := "redir-"; len(remainder) == 0 || remainder[:len(want)] != want {
		t.Errorf("remainder = %q, want the path after the static prefix", remainder)
	}
}

func TestResolverLongestStaticPrefix(t *testing.T) {
	table, _ := newTestTable(DefaultTTL)
	resolver := NewResolver(table, []StaticRoute{
		{Prefix: "/a/", Upstream: "https://a.example/"},
		{Prefix: "/a/b/", Upstream: "https://ab.example/"},
	})

	upstream, remainder, _, ok := resolver.Resolve("/a/b/c")
	if !ok {
		t.Fatal("Resolve() ok = false, want static hit")
	}
	if upstream != "https://ab.example/" {
		t.Errorf("upstream = %q, want longest static prefix target", upstream)
	}
	if remainder != "c" {
		t.Errorf("remainder = %q, want %q", remainder, "c")
	}
}

func TestResolverNoMatch(t *testing.T) {
	table, _ := newTestTable(DefaultTTL)
	resolver := NewResolver(table, nil)

	if _, _, _, ok := resolver.Resolve("/nowhere/x"); ok {
		t.Error("Resolve() ok = true, want no match")
	}
}
