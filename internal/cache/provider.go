package cache

import "context"

// Capabilities describes what a provider requires and how far away it is.
type Capabilities struct {
	// RequiresInlineExecution means stores against this provider are started
	// directly from the request rather than through the upload queue (e.g.
	// an in-process memory tier); the cascade runs them on its own goroutines
	// and joins them in Close.
	RequiresInlineExecution bool
	// LatencyZone is "local" for same-host tiers, or an opaque identifier
	// such as "s3:us-east-1:bkt" for remote tiers.
	LatencyZone string
}

// IsLocal reports whether this provider can be treated as same-host, either
// because its latency zone says so or because it must run inline anyway.
func (c Capabilities) IsLocal() bool {
	return c.LatencyZone == "local" || c.RequiresInlineExecution
}

// StoreReason explains, from the subscriber's point of view, why it is being
// offered a chance to store an entry discovered or produced elsewhere.
type StoreReason int

const (
	// ReasonFreshlyCreated means the factory just produced this entry; no
	// tier is known to already have it.
	ReasonFreshlyCreated StoreReason = iota
	// ReasonMissed means this provider was queried directly (and missed) or
	// was ruled out ahead of time by the bloom filter.
	ReasonMissed
	// ReasonNotQueried means a faster tier already hit before this provider
	// was ever consulted, so its state is unknown.
	ReasonNotQueried
)

func (r StoreReason) String() string {
	switch r {
	case ReasonFreshlyCreated:
		return "FreshlyCreated"
	case ReasonMissed:
		return "Missed"
	case ReasonNotQueried:
		return "NotQueried"
	default:
		return "Unknown"
	}
}

// Provider is the capability set an external cache backend must implement to
// participate in a CacheCascade. Implementations live outside this package
// (see internal/providers/*); the cascade only ever depends on this
// interface.
//
// Obligations:
//   - Store must not mutate the passed buffer.
//   - Fetch must return either (nil, nil) for a clean miss, or a fully
//     formed *FetchResult with either a buffer or a readable stream.
//   - Any error returned from Fetch is treated by the cascade as a miss; it
//     is never propagated to the caller of GetOrCreate.
type Provider interface {
	Name() string
	Capabilities() Capabilities

	Fetch(ctx context.Context, key CacheKey) (*FetchResult, error)
	Store(ctx context.Context, key CacheKey, data []byte, metadata EntryMetadata) error
	WantsToStore(key CacheKey, sizeBytes int64, reason StoreReason) bool
	Invalidate(ctx context.Context, key CacheKey) (bool, error)
	PurgeBySource(ctx context.Context, sourceHash [16]byte) (uint32, error)
	HealthCheck(ctx context.Context) bool
}
