// Package memory implements an in-process cache.Provider backed by a
// sync.Map, intended as the innermost, always-local, inline-execution tier
// of a cascade.
package memory

import (
	"context"
	"encoding/hex"
	"sync"
	"sync/atomic"

	"github.com/imageflow/cascade/internal/cache"
)

type entry struct {
	data     []byte
	metadata cache.EntryMetadata
}

// Provider is a bounded, in-process CacheProvider. A MaxEntries of zero
// means unbounded.
type Provider struct {
	name       string
	maxEntries int

	store sync.Map // CacheKey string -> *entry
	count int64

	// order tracks insertion for eviction once MaxEntries is exceeded; it is
	// a best-effort FIFO, not a true LRU, kept under mu since sync.Map has no
	// ordered iteration of its own.
	mu    sync.Mutex
	order []string
}

// New returns a memory provider named name, evicting oldest-inserted
// entries once more than maxEntries are held (0 means unbounded).
func New(name string, maxEntries int) *Provider {
	return &Provider{name: name, maxEntries: maxEntries}
}

func (p *Provider) Name() string { return p.name }

func (p *Provider) Capabilities() cache.Capabilities {
	return cache.Capabilities{RequiresInlineExecution: true, LatencyZone: "local"}
}

func (p *Provider) Fetch(_ context.Context, key cache.CacheKey) (*cache.FetchResult, error) {
	v, ok := p.store.Load(key.String())
	if !ok {
		return nil, nil
	}
	e := v.(*entry)
	return &cache.FetchResult{Buffer: e.data, HasBuffer: true, Metadata: e.metadata}, nil
}

func (p *Provider) Store(_ context.Context, key cache.CacheKey, data []byte, metadata cache.EntryMetadata) error {
	k := key.String()
	cp := make([]byte, len(data))
	copy(cp, data)

	_, existed := p.store.Load(k)
	p.store.Store(k, &entry{data: cp, metadata: metadata})
	if !existed {
		atomic.AddInt64(&p.count, 1)
		p.trackInsert(k)
	}
	return nil
}

func (p *Provider) trackInsert(k string) {
	if p.maxEntries <= 0 {
		return
	}
	p.mu.Lock()
	p.order = append(p.order, k)
	var evicted []string
	for int64(len(p.order)) > int64(p.maxEntries) {
		evicted = append(evicted, p.order[0])
		p.order = p.order[1:]
	}
	p.mu.Unlock()

	for _, victim := range evicted {
		if _, ok := p.store.Load(victim); ok {
			p.store.Delete(victim)
			atomic.AddInt64(&p.count, -1)
		}
	}
}

func (p *Provider) WantsToStore(_ cache.CacheKey, _ int64, _ cache.StoreReason) bool {
	return true
}

func (p *Provider) Invalidate(_ context.Context, key cache.CacheKey) (bool, error) {
	k := key.String()
	_, existed := p.store.Load(k)
	p.store.Delete(k)
	if existed {
		atomic.AddInt64(&p.count, -1)
	}
	return existed, nil
}

func (p *Provider) PurgeBySource(_ context.Context, sourceHash [16]byte) (uint32, error) {
	prefix := hex.EncodeToString(sourceHash[:])
	var purged uint32
	p.store.Range(func(k, _ interface{}) bool {
		ks := k.(string)
		if len(ks) >= 32 && ks[:32] == prefix {
			p.store.Delete(ks)
			atomic.AddInt64(&p.count, -1)
			purged++
		}
		return true
	})
	return purged, nil
}

func (p *Provider) HealthCheck(_ context.Context) bool { return true }

// Len returns the current number of entries held, for tests and metrics.
func (p *Provider) Len() int64 { return atomic.LoadInt64(&p.count) }
