/**
* Copyright 2018 Comcast Cable Communications Management, LLC
* Licensed under the Apache License, Version 2.0 (the "License");
* you may not use this file except in compliance with the License.
* You may obtain a copy of the License at
* http://www.apache.org/licenses/LICENSE-2.0
* Unless required by applicable law or agreed to in writing, software
* distributed under the License is distributed on an "AS IS" BASIS,
* WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
* See the License for the specific language governing permissions and
* limitations under the License.
 */

// Package cache implements the multi-tier cache cascade: a sequential
// read-through/write-behind orchestrator over an ordered list of Provider
// tiers, gated on the remote tiers by a rotating bloom filter, with request
// coalescing on miss and a byte-bounded asynchronous upload queue for
// write-behind replication.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/imageflow/cascade/internal/cache/bloom"
	"github.com/imageflow/cascade/internal/cache/coalesce"
	"github.com/imageflow/cascade/internal/cache/upload"
)

// bloomMetaSource/bloomMetaVariant are the well-known key components under
// which the bloom filter image is checkpointed and loaded.
const (
	bloomMetaSource  = "__meta/bloom"
	bloomMetaVariant = "__meta/bloom/state"
	bloomContentType = "application/x-bloom-filter"
)

// Factory produces a cache entry on a miss.
type Factory func(ctx context.Context) (data []byte, metadata EntryMetadata, err error)

// CascadeConfig configures a Cascade.
type CascadeConfig struct {
	EnableRequestCoalescing bool
	CoalescingTimeout       time.Duration

	BloomEstimatedItems     int
	BloomFalsePositiveRate  float64
	BloomSlots              int

	MaxUploadQueueBytes int64

	Observers []Observer
}

// Cascade is the orchestrator that fans a request across an ordered list of
// cache tiers, coalescing misses and replicating hits/creates to interested
// subscribers.
type Cascade struct {
	providers []Provider

	bloom       *bloom.Filter
	coalescer   *coalesce.Coalescer
	uploadQueue *upload.Queue

	enableCoalescing  bool
	coalescingTimeout time.Duration

	observers []Observer

	inlineWG sync.WaitGroup
}

// NewCascade builds a Cascade over providers in the given, fixed probe order.
// Registration is not concurrency-safe and must complete before any call to
// GetOrCreate.
func NewCascade(providers []Provider, cfg CascadeConfig) *Cascade {
	if cfg.BloomEstimatedItems <= 0 {
		cfg.BloomEstimatedItems = 10000
	}
	if cfg.BloomFalsePositiveRate <= 0 {
		cfg.BloomFalsePositiveRate = 0.01
	}
	if cfg.BloomSlots <= 0 {
		cfg.BloomSlots = 4
	}
	if cfg.MaxUploadQueueBytes <= 0 {
		cfg.MaxUploadQueueBytes = 256 << 20
	}

	return &Cascade{
		providers:         append([]Provider(nil), providers...),
		bloom:             bloom.New(cfg.BloomEstimatedItems, cfg.BloomFalsePositiveRate, cfg.BloomSlots),
		coalescer:         coalesce.New(),
		uploadQueue:       upload.New(cfg.MaxUploadQueueBytes),
		enableCoalescing:  cfg.EnableRequestCoalescing,
		coalescingTimeout: cfg.CoalescingTimeout,
		observers:         append([]Observer(nil), cfg.Observers...),
	}
}

func (c *Cascade) emit(evt Event) {
	emit(c.observers, evt)
}

// foundHit is the internal record of where a hit was found during the
// sequential probe, used both to build the returned Result and to drive
// subscriber distribution.
type foundHit struct {
	providerName string // "" for an upload-queue hit found via the bare key
	status       Status
	buffer       []byte
	hasBuffer    bool
	metadata     EntryMetadata
}

// probe runs the sequential, single-pass fetch algorithm across every
// provider, returning the first hit found (if any) and the set of providers
// that missed along the way, whether checked directly or ruled out by the
// bloom gate.
func (c *Cascade) probe(ctx context.Context, key CacheKey) (*foundHit, map[string]bool) {
	stringKey := key.String()
	missed := make(map[string]bool, len(c.providers))

	for _, p := range c.providers {
		qKey := stringKey + ":" + p.Name()

		if data, meta, ok := c.uploadQueue.TryGet(qKey); ok {
			em, _ := meta.(EntryMetadata)
			return &foundHit{providerName: p.Name(), status: StatusQueueHit, buffer: data, hasBuffer: true, metadata: em}, missed
		}

		caps := p.Capabilities()
		if !caps.IsLocal() && !c.bloom.ProbablyContains(qKey) {
			missed[p.Name()] = true
			continue
		}

		fr, err := p.Fetch(ctx, key)
		if err != nil {
			c.emit(Event{Kind: EventError, Key: stringKey, ProviderName: p.Name(), Detail: err.Error()})
			missed[p.Name()] = true
			continue
		}
		if fr == nil {
			missed[p.Name()] = true
			continue
		}

		status := StatusDiskHit
		switch {
		case caps.RequiresInlineExecution:
			status = StatusMemoryHit
		case !caps.IsLocal():
			status = StatusCloudHit
			// Record the provider's confirmed membership so a peer cascade
			// merging this filter, or this cascade after a restart, knows
			// the tier holds the entry without re-probing it.
			c.bloom.Insert(qKey)
		}

		return &foundHit{
			providerName: p.Name(),
			status:       status,
			buffer:       fr.Buffer,
			hasBuffer:    fr.HasBuffer,
			metadata:     fr.Metadata,
		}, missed
	}

	if data, meta, ok := c.uploadQueue.TryGet(stringKey); ok {
		em, _ := meta.(EntryMetadata)
		return &foundHit{providerName: "", status: StatusQueueHit, buffer: data, hasBuffer: true, metadata: em}, missed
	}

	return nil, missed
}

// distribute offers data to every subscriber other than the hit's source
// provider (if any), replicating inline for providers that require it and
// deferring to the upload queue for everyone else. When missed is nil, every
// candidate provider is offered with reasonForFresh (the FreshlyCreated
// path); otherwise each provider's reason is derived from whether the
// sequential probe checked it (Missed) or never reached it (NotQueried).
func (c *Cascade) distribute(key CacheKey, skipProvider string, missed map[string]bool, data []byte, metadata EntryMetadata, reasonForFresh StoreReason) {
	stringKey := key.String()
	size := int64(len(data))

	for _, p := range c.providers {
		if skipProvider != "" && p.Name() == skipProvider {
			continue
		}

		reason := reasonForFresh
		if missed != nil {
			if missed[p.Name()] {
				reason = ReasonMissed
			} else {
				reason = ReasonNotQueried
			}
		}

		if !p.WantsToStore(key, size, reason) {
			continue
		}

		caps := p.Capabilities()
		if caps.RequiresInlineExecution {
			c.storeInline(p, key, data, metadata)
			continue
		}

		qKey := stringKey + ":" + p.Name()
		outcome := c.uploadQueue.TryEnqueue(qKey, data, metadata, func(ctx context.Context, data []byte, metadata interface{}) error {
			em, _ := metadata.(EntryMetadata)
			return p.Store(ctx, key, data, em)
		})
		if !caps.IsLocal() {
			c.bloom.Insert(qKey)
		}
		if outcome == upload.QueueFull {
			c.emit(Event{Kind: EventStoreDropped, Key: stringKey, ProviderName: p.Name(), Detail: "Upload queue full"})
		} else if outcome == upload.Enqueued {
			c.emit(Event{Kind: EventStore, Key: stringKey, ProviderName: p.Name()})
		}
	}
}

func (c *Cascade) storeInline(p Provider, key CacheKey, data []byte, metadata EntryMetadata) {
	c.inlineWG.Add(1)
	go func() {
		defer c.inlineWG.Done()
		defer func() {
			if r := recover(); r != nil {
				c.emit(Event{Kind: EventError, Key: key.String(), ProviderName: p.Name(), Detail: "panic during inline store"})
			}
		}()
		if err := p.Store(context.Background(), key, data, metadata); err != nil {
			c.emit(Event{Kind: EventError, Key: key.String(), ProviderName: p.Name(), Detail: err.Error()})
			return
		}
		c.emit(Event{Kind: EventStore, Key: key.String(), ProviderName: p.Name()})
	}()
}

// GetOrCreate fetches key from the cascade, creating it via factory on a
// miss. At most one factory invocation is observable per in-flight string
// key when coalescing is enabled.
func (c *Cascade) GetOrCreate(ctx context.Context, key CacheKey, factory Factory) Result {
	start := time.Now()
	stringKey := key.String()

	if hit, missed := c.probe(ctx, key); hit != nil {
		c.emit(Event{Kind: EventHit, Key: stringKey, ProviderName: hit.providerName, Latency: time.Since(start)})
		if hit.hasBuffer {
			c.distribute(key, hit.providerName, missed, hit.buffer, hit.metadata, ReasonMissed)
		}
		return Result{
			Status:      hit.status,
			Buffer:      hit.buffer,
			HasBuffer:   hit.hasBuffer,
			ContentType: hit.metadata.ContentType,
			Provider:    hit.providerName,
			Latency:     int64(time.Since(start)),
		}
	}

	c.emit(Event{Kind: EventMiss, Key: stringKey, Latency: time.Since(start)})

	leaderFn := func() (interface{}, error) {
		// Double-check: another leader may have populated a tier between
		// this request's initial probe and winning the coalescer race.
		if hit, missed := c.probe(ctx, key); hit != nil {
			if hit.hasBuffer {
				c.distribute(key, hit.providerName, missed, hit.buffer, hit.metadata, ReasonMissed)
			}
			return &Result{
				Status:      hit.status,
				Buffer:      hit.buffer,
				HasBuffer:   hit.hasBuffer,
				ContentType: hit.metadata.ContentType,
				Provider:    hit.providerName,
			}, nil
		}

		data, metadata, err := factory(ctx)
		if err != nil {
			return &Result{Status: StatusError, ErrorDetail: err.Error()}, nil
		}
		if data == nil {
			return &Result{Status: StatusError, ErrorDetail: "Factory returned null"}, nil
		}

		c.distribute(key, "", nil, data, metadata, ReasonFreshlyCreated)

		return &Result{
			Status:      StatusCreated,
			Buffer:      data,
			HasBuffer:   true,
			ContentType: metadata.ContentType,
			WasCreated:  true,
		}, nil
	}

	var res *Result
	if c.enableCoalescing {
		ok, raw, _ := c.coalescer.TryExecute(stringKey, c.coalescingTimeout, leaderFn)
		if !ok {
			return Result{Status: StatusTimeout}
		}
		res, _ = raw.(*Result)
	} else {
		raw, _ := leaderFn()
		res, _ = raw.(*Result)
	}
	if res == nil {
		res = &Result{Status: StatusError, ErrorDetail: "internal coalescer error"}
	}
	res.Latency = int64(time.Since(start))
	return *res
}

// Invalidate removes key from every provider on a best-effort basis;
// per-provider errors are swallowed and reported as Error events.
func (c *Cascade) Invalidate(ctx context.Context, key CacheKey) {
	for _, p := range c.providers {
		ok, err := p.Invalidate(ctx, key)
		if err != nil {
			c.emit(Event{Kind: EventError, Key: key.String(), ProviderName: p.Name(), Detail: err.Error()})
			continue
		}
		if ok {
			c.emit(Event{Kind: EventStore, Key: key.String(), ProviderName: p.Name(), Detail: "invalidated"})
		}
	}
}

// PurgeBySource purges every entry sharing sourceHash across all providers,
// returning the summed count. Per-provider errors are swallowed.
func (c *Cascade) PurgeBySource(ctx context.Context, sourceHash [16]byte) uint32 {
	var total uint32
	for _, p := range c.providers {
		n, err := p.PurgeBySource(ctx, sourceHash)
		if err != nil {
			c.emit(Event{Kind: EventError, ProviderName: p.Name(), Detail: err.Error()})
			continue
		}
		total += n
	}
	return total
}

// firstCheckpointProvider returns the first registered local, non-inline
// provider, which is where the bloom filter's own state is checkpointed.
func (c *Cascade) firstCheckpointProvider() Provider {
	for _, p := range c.providers {
		caps := p.Capabilities()
		if caps.IsLocal() && !caps.RequiresInlineExecution {
			return p
		}
	}
	return nil
}

func bloomMetaKey() CacheKey {
	return NewCacheKey(bloomMetaSource, bloomMetaVariant)
}

// CheckpointBloom persists the bloom filter's current image to the first
// local, non-inline provider. Absence of such a provider is not an error.
func (c *Cascade) CheckpointBloom(ctx context.Context) {
	p := c.firstCheckpointProvider()
	if p == nil {
		return
	}
	key := bloomMetaKey()
	img := c.bloom.ToBytes()
	if err := p.Store(ctx, key, img, NewEntryMetadata(bloomContentType, time.Now(), int64(len(img)))); err != nil {
		c.emit(Event{Kind: EventError, Key: key.String(), ProviderName: p.Name(), Detail: err.Error()})
	}
}

// LoadBloom restores the bloom filter's image from the first local,
// non-inline provider. A missing checkpoint is not an error; the filter
// simply stays empty and re-warms from traffic.
func (c *Cascade) LoadBloom(ctx context.Context) {
	p := c.firstCheckpointProvider()
	if p == nil {
		return
	}
	key := bloomMetaKey()
	fr, err := p.Fetch(ctx, key)
	if err != nil {
		c.emit(Event{Kind: EventError, Key: key.String(), ProviderName: p.Name(), Detail: err.Error()})
		return
	}
	if fr == nil || !fr.HasBuffer {
		return
	}
	if err := c.bloom.LoadFromBytes(fr.Buffer); err != nil {
		c.emit(Event{Kind: EventError, Key: key.String(), ProviderName: p.Name(), Detail: err.Error()})
	}
}

// MergeBloomFromPeer OR-merges a peer's bloom image into this cascade's
// filter, slot-wise.
func (c *Cascade) MergeBloomFromPeer(data []byte) error {
	return c.bloom.MergeFromBytes(data)
}

// Close cancels and best-effort drains the upload queue and joins any
// outstanding inline stores.
func (c *Cascade) Close() {
	c.uploadQueue.Close()
	c.inlineWG.Wait()
}
