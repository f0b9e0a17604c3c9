// Package collection manages the vector index lifecycle for the chunk store.
package collection

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/calder-labs/ragserve/internal/db"
	"github.com/calder-labs/ragserve/internal/domain"
)

// store is the consumer interface for collection management (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	DropIndex(ctx context.Context, name string, deleteDocs bool) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchCount(ctx context.Context, index, query string) (int, error)
}

// HNSWConfig HNSW index parameters.
type HNSWConfig struct {
	M           int
	EFConstruct int
}

// Repo owns the single chunk collection: its FT index and metadata hash.
type Repo struct {
	store     store
	name      string
	vectorDim int
	model     string
	hnsw      HNSWConfig
}

// New creates a collection repository for the named collection.
func New(s store, name string, vectorDim int, model string) *Repo {
	return &Repo{
		store:     s,
		name:      name,
		vectorDim: vectorDim,
		model:     model,
		hnsw:      HNSWConfig{M: 16, EFConstruct: 200},
	}
}

// WithHNSW configures HNSW index parameters.
func (r *Repo) WithHNSW(cfg HNSWConfig) *Repo {
	if cfg.M > 0 {
		r.hnsw.M = cfg.M
	}
	if cfg.EFConstruct > 0 {
		r.hnsw.EFConstruct = cfg.EFConstruct
	}
	return r
}

// Name returns the collection name.
func (r *Repo) Name() string { return r.name }

// Ensure creates the index and metadata hash if they do not exist yet.
// Safe to call concurrently and repeatedly.
func (r *Repo) Ensure(ctx context.Context) error {
	exists, err := r.store.IndexExists(ctx, r.indexName())
	if err != nil {
		return fmt.Errorf("check index %s: %w", r.name, err)
	}
	if exists {
		return nil
	}

	if err := r.create(ctx); err != nil {
		return err
	}
	return nil
}

// Reset drops the index together with every indexed chunk hash, then
// recreates an empty index. The caller must hold the exclusive guard.
func (r *Repo) Reset(ctx context.Context) error {
	err := r.store.DropIndex(ctx, r.indexName(), true)
	if err != nil && !errors.Is(err, db.ErrIndexNotFound) {
		return fmt.Errorf("drop index %s: %w", r.name, err)
	}

	if err := r.create(ctx); err != nil {
		return err
	}
	return nil
}

// Count returns the number of chunks currently indexed. A missing index
// counts as zero.
func (r *Repo) Count(ctx context.Context) (int, error) {
	count, err := r.store.SearchCount(ctx, r.indexName(), "*")
	if err != nil {
		if errors.Is(err, db.ErrIndexNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("count %s: %w", r.name, err)
	}
	return count, nil
}

// Info returns the collection metadata hash, or nil when absent.
func (r *Repo) Info(ctx context.Context) (map[string]string, error) {
	meta, err := r.store.HGetAll(ctx, r.metaKey())
	if err != nil {
		return nil, fmt.Errorf("info %s: %w", r.name, err)
	}
	if len(meta) == 0 {
		return nil, nil
	}
	return meta, nil
}

func (r *Repo) create(ctx context.Context) error {
	def := buildIndex(r.name, r.vectorDim, r.hnsw)

	if err := r.store.CreateIndex(ctx, def); err != nil {
		// concurrent Ensure may have won the race
		if !errors.Is(err, db.ErrIndexExists) {
			return fmt.Errorf("create index %s: %w", r.name, err)
		}
	}

	meta := map[string]string{
		"name":       r.name,
		"vector_dim": strconv.Itoa(r.vectorDim),
		"model":      r.model,
		"created_at": time.Now().UTC().Format(time.RFC3339),
	}
	if err := r.store.HSet(ctx, r.metaKey(), meta); err != nil {
		return fmt.Errorf("hset collection meta %s: %w", r.name, err)
	}
	return nil
}

func (r *Repo) indexName() string {
	return fmt.Sprintf("%s%s:idx", domain.KeyPrefix, r.name)
}

func (r *Repo) metaKey() string {
	return fmt.Sprintf("%s%s:meta", domain.KeyPrefix, r.name)
}
