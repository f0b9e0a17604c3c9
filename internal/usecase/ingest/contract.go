package ingest

import (
	"context"

	"github.com/calder-labs/ragserve/internal/domain"
)

// Chunker splits document text into offset-addressed chunks.
type Chunker interface {
	Split(documentID, text string) []domain.Chunk
}

// Embedder vectorizes chunk texts in provider-sized batches.
type Embedder interface {
	BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error)
}

// CollectionRepository manages the index lifecycle.
type CollectionRepository interface {
	Ensure(ctx context.Context) error
}

// RecordRepository persists embedded chunks.
type RecordRepository interface {
	BatchUpsert(ctx context.Context, records []domain.StoredRecord) error
}
