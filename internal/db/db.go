// Package db defines the storage facade the repositories are written
// against. The only implementation is Redis (internal/db/redis); the
// interfaces exist so repository tests run without a server.
package db

import (
	"context"
	"time"
)

// Store combines all storage capabilities. Consumers depend on the narrow
// sub-interfaces, never on Store itself; only the composition root sees
// the whole thing.
type Store interface {
	Pinger
	HashStore
	KVStore
	IndexManager
	Searcher
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HashSetItem is one key with its field map, for pipelined hash writes.
type HashSetItem struct {
	Key    string
	Fields map[string]string
}

// HashStore stores chunk records and collection metadata as hashes.
type HashStore interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HSetMulti(ctx context.Context, items []HashSetItem) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
}

// KVStore stores plain values; the embedding cache lives here.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// IndexManager manages the vector index lifecycle.
type IndexManager interface {
	CreateIndex(ctx context.Context, def *IndexDefinition) error
	DropIndex(ctx context.Context, name string, deleteDocs bool) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// Searcher runs queries over the vector index.
type Searcher interface {
	SearchKNN(ctx context.Context, q *KNNQuery) (*SearchResult, error)
	SearchCount(ctx context.Context, index, query string) (int, error)
}
