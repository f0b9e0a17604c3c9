// Package retrieve coordinates query answering: embed, search, filter.
package retrieve

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/calder-labs/ragserve/internal/domain"
)

// Query is one retrieval request.
type Query struct {
	Text     string
	TopK     int
	MinScore float64
}

// defaultStoreTimeout bounds each KNN query when none is configured.
const defaultStoreTimeout = 5 * time.Second

// Service answers retrieval queries. Multiple queries run concurrently; the
// guard only excludes them during a reset.
type Service struct {
	embed        Embedder
	search       SearchRepository
	guard        *domain.Guard
	defaultTopK  int
	maxTopK      int
	storeTimeout time.Duration
	logger       *zap.Logger
}

// New creates a retrieval service.
func New(embed Embedder, search SearchRepository, guard *domain.Guard, logger *zap.Logger) *Service {
	return &Service{
		embed:        embed,
		search:       search,
		guard:        guard,
		defaultTopK:  5,
		maxTopK:      50,
		storeTimeout: defaultStoreTimeout,
		logger:       logger,
	}
}

// WithStoreTimeout overrides the per-query store timeout.
func (s *Service) WithStoreTimeout(d time.Duration) *Service {
	if d > 0 {
		s.storeTimeout = d
	}
	return s
}

// WithTopK configures default and maximum result counts.
func (s *Service) WithTopK(def, max int) *Service {
	if def > 0 {
		s.defaultTopK = def
	}
	if max > 0 {
		s.maxTopK = max
	}
	return s
}

// Retrieve embeds the query and returns the most similar chunks, best first.
// TopK 0 uses the default; values above the maximum are clamped. Records
// scoring below MinScore are dropped after the search.
func (s *Service) Retrieve(ctx context.Context, q Query) ([]domain.ScoredRecord, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, fmt.Errorf("%w: empty query", domain.ErrRetrievalFailed)
	}
	if q.MinScore < 0 || q.MinScore > 1 {
		return nil, fmt.Errorf("%w: min score %f out of range", domain.ErrRetrievalFailed, q.MinScore)
	}

	topK := q.TopK
	switch {
	case topK <= 0:
		topK = s.defaultTopK
	case topK > s.maxTopK:
		topK = s.maxTopK
	}

	s.guard.Acquire()
	defer s.guard.Release()

	result, err := s.embed.Embed(ctx, q.Text)
	if err != nil {
		return nil, s.fail(domain.StageEmbedding, err)
	}

	records, err := s.searchWithRetry(ctx, result.Embedding, topK)
	if err != nil {
		return nil, s.fail(domain.StageStore, err)
	}

	if q.MinScore > 0 {
		records = filterByScore(records, q.MinScore)
	}

	s.logger.Debug("Query answered",
		zap.Int("top_k", topK),
		zap.Int("hits", len(records)),
		zap.Int("tokens", result.TotalTokens))

	return records, nil
}

// searchWithRetry tries the KNN query a second time on a transient store
// failure before giving up. Each attempt gets a fresh timeout.
func (s *Service) searchWithRetry(ctx context.Context, vector []float32, topK int) ([]domain.ScoredRecord, error) {
	records, err := s.searchOnce(ctx, vector, topK)
	if err == nil || !domain.IsTransient(err) || ctx.Err() != nil {
		return records, err
	}

	s.logger.Warn("Retrying knn search", zap.Error(err))
	return s.searchOnce(ctx, vector, topK)
}

func (s *Service) searchOnce(ctx context.Context, vector []float32, topK int) ([]domain.ScoredRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	return s.search.SearchKNN(ctx, vector, topK)
}

func (s *Service) fail(stage string, err error) error {
	return fmt.Errorf("%w: %w", domain.ErrRetrievalFailed, domain.NewStageError(stage, err))
}

func filterByScore(records []domain.ScoredRecord, minScore float64) []domain.ScoredRecord {
	filtered := records[:0]
	for _, rec := range records {
		if rec.Score >= minScore {
			filtered = append(filtered, rec)
		}
	}
	return filtered
}
