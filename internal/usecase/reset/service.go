// Package reset clears the chunk store under an exclusive guard.
package reset

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/calder-labs/ragserve/internal/domain"
)

// defaultStoreTimeout bounds each store call when none is configured.
const defaultStoreTimeout = 5 * time.Second

// Service performs store resets. While a reset runs, no ingestion or
// retrieval may observe the store half-cleared; the guard blocks them until
// the reset finishes.
type Service struct {
	colls        CollectionRepository
	guard        *domain.Guard
	storeTimeout time.Duration
	logger       *zap.Logger
}

// New creates a reset service.
func New(colls CollectionRepository, guard *domain.Guard, logger *zap.Logger) *Service {
	return &Service{colls: colls, guard: guard, storeTimeout: defaultStoreTimeout, logger: logger}
}

// WithStoreTimeout overrides the per-call store timeout.
func (s *Service) WithStoreTimeout(d time.Duration) *Service {
	if d > 0 {
		s.storeTimeout = d
	}
	return s
}

// Reset removes every stored chunk and leaves an empty, usable collection.
// Resetting an empty store succeeds. On failure the store state is
// unspecified and the error says so.
func (s *Service) Reset(ctx context.Context) (removed int, err error) {
	s.guard.AcquireExclusive()
	defer s.guard.ReleaseExclusive()

	count, err := s.count(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: counting before reset: %s", domain.ErrResetFailed, err.Error())
	}

	rctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	if err := s.colls.Reset(rctx); err != nil {
		return 0, fmt.Errorf("%w: store state unspecified: %s", domain.ErrResetFailed, err.Error())
	}

	s.logger.Info("Store reset", zap.Int("chunks_removed", count))
	return count, nil
}

// Stats describes the current state of the chunk store.
type Stats struct {
	ChunkCount int
	VectorDim  int
	Model      string
	CreatedAt  string
}

// Stats reports the chunk count together with the collection metadata
// written at creation time. A store that was never ingested into reports
// a zero count and empty metadata.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	s.guard.Acquire()
	defer s.guard.Release()

	count, err := s.count(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("%w: counting chunks: %s", domain.ErrStoreQueryFailed, err.Error())
	}
	info, err := s.info(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("%w: reading collection meta: %s", domain.ErrStoreQueryFailed, err.Error())
	}

	st := Stats{ChunkCount: count, Model: info["model"], CreatedAt: info["created_at"]}
	if v := info["vector_dim"]; v != "" {
		st.VectorDim, _ = strconv.Atoi(v)
	}
	return st, nil
}

func (s *Service) count(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	return s.colls.Count(ctx)
}

func (s *Service) info(ctx context.Context) (map[string]string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	return s.colls.Info(ctx)
}
