// Package redis implements a cache.Provider backed by a redis server,
// intended as a shared, non-local tier of a cascade.
package redis

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/go-redis/redis"

	"github.com/imageflow/cascade/internal/cache"
	"github.com/imageflow/cascade/internal/cache/wire"
)

// Provider is a remote CacheProvider backed by a single redis instance.
type Provider struct {
	name        string
	client      *redis.Client
	latencyZone string
	compress    bool
	ttl         int64 // seconds; 0 means no expiry
}

// Config configures a redis Provider.
type Config struct {
	Endpoint    string
	Password    string
	DB          int
	LatencyZone string
	Compress    bool
	TTLSeconds  int64
}

// New dials endpoint and returns a provider named name. It does not block
// on connectivity; use HealthCheck to verify the server is reachable.
func New(name string, cfg Config) *Provider {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Endpoint,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	zone := cfg.LatencyZone
	if zone == "" {
		zone = "redis:" + cfg.Endpoint
	}
	return &Provider{name: name, client: client, latencyZone: zone, compress: cfg.Compress, ttl: cfg.TTLSeconds}
}

// NewWithClient wraps an already-constructed redis client, letting tests
// point a provider at a miniredis instance.
func NewWithClient(name string, client *redis.Client, compress bool) *Provider {
	return &Provider{name: name, client: client, latencyZone: "redis:injected", compress: compress}
}

func (p *Provider) Name() string { return p.name }

func (p *Provider) Capabilities() cache.Capabilities {
	return cache.Capabilities{RequiresInlineExecution: false, LatencyZone: p.latencyZone}
}

func (p *Provider) Fetch(_ context.Context, key cache.CacheKey) (*cache.FetchResult, error) {
	blob, err := p.client.Get(key.String()).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis: get: %w", err)
	}

	metadata, payload, err := wire.Decode(blob)
	if err != nil {
		return nil, fmt.Errorf("redis: decode envelope: %w", err)
	}
	return &cache.FetchResult{Buffer: payload, HasBuffer: true, Metadata: metadata}, nil
}

func (p *Provider) Store(_ context.Context, key cache.CacheKey, data []byte, metadata cache.EntryMetadata) error {
	blob, err := wire.Encode(metadata, data, p.compress)
	if err != nil {
		return fmt.Errorf("redis: encode envelope: %w", err)
	}
	var ttl time.Duration
	if p.ttl > 0 {
		ttl = time.Duration(p.ttl) * time.Second
	}
	return p.client.Set(key.String(), blob, ttl).Err()
}

func (p *Provider) WantsToStore(_ cache.CacheKey, _ int64, _ cache.StoreReason) bool {
	return true
}

func (p *Provider) Invalidate(_ context.Context, key cache.CacheKey) (bool, error) {
	n, err := p.client.Del(key.String()).Result()
	if err != nil {
		return false, fmt.Errorf("redis: del: %w", err)
	}
	return n > 0, nil
}

// PurgeBySource scans for keys under sourceHash's prefix and deletes them.
// redis has no native prefix-delete; this uses SCAN to avoid blocking the
// server the way KEYS would on a large keyspace.
func (p *Provider) PurgeBySource(_ context.Context, sourceHash [16]byte) (uint32, error) {
	prefix := hex.EncodeToString(sourceHash[:]) + ":*"
	var purged uint32
	var cursor uint64
	for {
		keys, next, err := p.client.Scan(cursor, prefix, 100).Result()
		if err != nil {
			return purged, fmt.Errorf("redis: scan: %w", err)
		}
		if len(keys) > 0 {
			n, err := p.client.Del(keys...).Result()
			if err != nil {
				return purged, fmt.Errorf("redis: del: %w", err)
			}
			purged += uint32(n)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return purged, nil
}

func (p *Provider) HealthCheck(_ context.Context) bool {
	return p.client.Ping().Err() == nil
}

// Close releases the underlying client's connection pool.
func (p *Provider) Close() error { return p.client.Close() }
