package record

import (
	"context"
	"time"

	"github.com/calder-labs/ragserve/internal/db"
	"github.com/calder-labs/ragserve/internal/domain"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	hsetMultiFn func(ctx context.Context, items []db.HashSetItem) error
}

func (m *mockStore) HSetMulti(ctx context.Context, items []db.HashSetItem) error {
	if m.hsetMultiFn != nil {
		return m.hsetMultiFn(ctx, items)
	}
	return nil
}

func testRecord(id string, seq int) domain.StoredRecord {
	return domain.StoredRecord{
		ID:     id,
		Text:   "chunk text",
		Vector: []float32{0.1, 0.2, 0.3},
		Metadata: domain.RecordMetadata{
			DocumentID:    "doc1234567890abc",
			Filename:      "notes.txt",
			SequenceIndex: seq,
			StartOffset:   seq * 450,
			EndOffset:     seq*450 + 500,
			UploadedAt:    time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		},
	}
}
