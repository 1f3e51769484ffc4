package bbolt

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/imageflow/cascade/internal/cache"
)

func openTestProvider(t *testing.T, compress bool) *Provider {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cascade.db")
	p, err := Open("disk", path, compress)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { p.Close() })
	return p
}

func TestStoreFetchRoundTrip(t *testing.T) {
	for _, compress := range []bool{false, true} {
		p := openTestProvider(t, compress)
		ctx := context.Background()
		key := cache.NewCacheKey("src", "v1")

		if err := p.Store(ctx, key, []byte("hello disk"), cache.NewEntryMetadata("text/plain", time.Now(), 10)); err != nil {
			t.Fatal(err)
		}
		fr, err := p.Fetch(ctx, key)
		if err != nil {
			t.Fatal(err)
		}
		if fr == nil || string(fr.Buffer) != "hello disk" {
			t.Fatalf("unexpected fetch result %+v", fr)
		}
		if fr.Metadata.ContentType != "text/plain" {
			t.Fatalf("metadata not preserved: %+v", fr.Metadata)
		}
	}
}

func TestFetchMiss(t *testing.T) {
	p := openTestProvider(t, false)
	fr, err := p.Fetch(context.Background(), cache.NewCacheKey("nope", ""))
	if err != nil || fr != nil {
		t.Fatalf("expected a clean miss, got %+v, %v", fr, err)
	}
}

func TestInvalidate(t *testing.T) {
	p := openTestProvider(t, false)
	ctx := context.Background()
	key := cache.NewCacheKey("src", "v1")
	_ = p.Store(ctx, key, []byte("x"), cache.EntryMetadata{})

	ok, err := p.Invalidate(ctx, key)
	if err != nil || !ok {
		t.Fatalf("expected invalidate true, got %v %v", ok, err)
	}
	if fr, _ := p.Fetch(ctx, key); fr != nil {
		t.Fatal("expected entry gone")
	}
}

func TestPurgeBySource(t *testing.T) {
	p := openTestProvider(t, false)
	ctx := context.Background()
	k1 := cache.NewCacheKey("shared-source", "a")
	k2 := cache.NewCacheKey("shared-source", "b")
	k3 := cache.NewCacheKey("other-source", "a")
	for _, k := range []cache.CacheKey{k1, k2, k3} {
		_ = p.Store(ctx, k, []byte("x"), cache.EntryMetadata{})
	}

	n, err := p.PurgeBySource(ctx, k1.SourceHash())
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("expected 2 purged, got %d", n)
	}
	if fr, _ := p.Fetch(ctx, k3); fr == nil {
		t.Fatal("expected unrelated entry to survive")
	}
}

func TestHealthCheck(t *testing.T) {
	p := openTestProvider(t, false)
	if !p.HealthCheck(context.Background()) {
		t.Fatal("expected health check to pass on an open database")
	}
}
