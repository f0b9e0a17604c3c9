package retrieve

import (
	"context"

	"github.com/calder-labs/ragserve/internal/domain"
)

// Embedder vectorizes the query text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// SearchRepository runs KNN queries against the chunk store.
type SearchRepository interface {
	SearchKNN(ctx context.Context, vector []float32, topK int) ([]domain.ScoredRecord, error)
}
