// Package badger implements a cache.Provider backed by a badger LSM-tree
// key/value store, an alternative local-disk tier to bbolt.
package badger

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/dgraph-io/badger"

	"github.com/imageflow/cascade/internal/cache"
	"github.com/imageflow/cascade/internal/cache/wire"
)

// Provider is a disk-backed CacheProvider over a badger database directory.
type Provider struct {
	name     string
	db       *badger.DB
	compress bool
}

// Open opens (creating if necessary) the badger database at dir and returns
// a provider named name.
func Open(name, dir string, compress bool) (*Provider, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger: open %s: %w", dir, err)
	}
	return &Provider{name: name, db: db, compress: compress}, nil
}

func (p *Provider) Name() string { return p.name }

func (p *Provider) Capabilities() cache.Capabilities {
	return cache.Capabilities{RequiresInlineExecution: false, LatencyZone: "local"}
}

func (p *Provider) Fetch(_ context.Context, key cache.CacheKey) (*cache.FetchResult, error) {
	var blob []byte
	err := p.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key.String()))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			blob = append([]byte(nil), val...)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("badger: view: %w", err)
	}
	if blob == nil {
		return nil, nil
	}

	metadata, payload, err := wire.Decode(blob)
	if err != nil {
		return nil, fmt.Errorf("badger: decode envelope: %w", err)
	}
	return &cache.FetchResult{Buffer: payload, HasBuffer: true, Metadata: metadata}, nil
}

func (p *Provider) Store(_ context.Context, key cache.CacheKey, data []byte, metadata cache.EntryMetadata) error {
	blob, err := wire.Encode(metadata, data, p.compress)
	if err != nil {
		return fmt.Errorf("badger: encode envelope: %w", err)
	}
	return p.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key.String()), blob)
	})
}

func (p *Provider) WantsToStore(_ cache.CacheKey, _ int64, _ cache.StoreReason) bool {
	return true
}

func (p *Provider) Invalidate(_ context.Context, key cache.CacheKey) (bool, error) {
	existed := false
	err := p.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(key.String())); err == nil {
			existed = true
		}
		return txn.Delete([]byte(key.String()))
	})
	return existed, err
}

func (p *Provider) PurgeBySource(_ context.Context, sourceHash [16]byte) (uint32, error) {
	prefix := []byte(hex.EncodeToString(sourceHash[:]))
	var purged uint32

	err := p.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		var victims [][]byte
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			victims = append(victims, it.Item().KeyCopy(nil))
		}
		for _, k := range victims {
			if err := txn.Delete(k); err != nil {
				return err
			}
			purged++
		}
		return nil
	})
	return purged, err
}

func (p *Provider) HealthCheck(_ context.Context) bool {
	return p.db.View(func(*badger.Txn) error { return nil }) == nil
}

// Close releases the underlying database directory.
func (p *Provider) Close() error { return p.db.Close() }
