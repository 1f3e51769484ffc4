// Package bbolt implements a cache.Provider backed by a single bbolt
// database file, intended as the local-disk tier of a cascade.
package bbolt

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	bolt "github.com/coreos/bbolt"

	"github.com/imageflow/cascade/internal/cache"
	"github.com/imageflow/cascade/internal/cache/wire"
)

var bucketName = []byte("cascade")

// Provider is a disk-backed CacheProvider over a bbolt database file.
type Provider struct {
	name     string
	db       *bolt.DB
	compress bool
}

// Open opens (creating if necessary) the bbolt database at path and returns
// a provider named name. compress controls whether stored envelopes are
// snappy-compressed.
func Open(name, path string, compress bool) (*Provider, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("bbolt: open %s: %w", path, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("bbolt: create bucket: %w", err)
	}
	return &Provider{name: name, db: db, compress: compress}, nil
}

func (p *Provider) Name() string { return p.name }

func (p *Provider) Capabilities() cache.Capabilities {
	return cache.Capabilities{RequiresInlineExecution: false, LatencyZone: "local"}
}

func (p *Provider) Fetch(_ context.Context, key cache.CacheKey) (*cache.FetchResult, error) {
	var blob []byte
	err := p.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketName).Get([]byte(key.String()))
		if v == nil {
			return nil
		}
		blob = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("bbolt: view: %w", err)
	}
	if blob == nil {
		return nil, nil
	}

	metadata, payload, err := wire.Decode(blob)
	if err != nil {
		return nil, fmt.Errorf("bbolt: decode envelope: %w", err)
	}
	return &cache.FetchResult{Buffer: payload, HasBuffer: true, Metadata: metadata}, nil
}

func (p *Provider) Store(_ context.Context, key cache.CacheKey, data []byte, metadata cache.EntryMetadata) error {
	blob, err := wire.Encode(metadata, data, p.compress)
	if err != nil {
		return fmt.Errorf("bbolt: encode envelope: %w", err)
	}
	return p.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Put([]byte(key.String()), blob)
	})
}

func (p *Provider) WantsToStore(_ cache.CacheKey, _ int64, _ cache.StoreReason) bool {
	return true
}

func (p *Provider) Invalidate(_ context.Context, key cache.CacheKey) (bool, error) {
	existed := false
	err := p.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		if b.Get([]byte(key.String())) != nil {
			existed = true
		}
		return b.Delete([]byte(key.String()))
	})
	return existed, err
}

func (p *Provider) PurgeBySource(_ context.Context, sourceHash [16]byte) (uint32, error) {
	prefix := hex.EncodeToString(sourceHash[:])
	var purged uint32
	err := p.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		c := b.Cursor()
		var victims [][]byte
		for k, _ := c.Seek([]byte(prefix)); k != nil && strings.HasPrefix(string(k), prefix); k, _ = c.Next() {
			victims = append(victims, append([]byte(nil), k...))
		}
		for _, k := range victims {
			if err := b.Delete(k); err != nil {
				return err
			}
			purged++
		}
		return nil
	})
	return purged, err
}

func (p *Provider) HealthCheck(_ context.Context) bool {
	return p.db.View(func(*bolt.Tx) error { return nil }) == nil
}

// Close releases the underlying database file.
func (p *Provider) Close() error { return p.db.Close() }
