package search

import (
	"context"

	"github.com/calder-labs/ragserve/internal/db"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	searchKNNFn func(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

func (m *mockStore) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if m.searchKNNFn != nil {
		return m.searchKNNFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func entry(key string, distance float64, fields map[string]string) db.SearchEntry {
	if fields == nil {
		fields = map[string]string{}
	}
	return db.SearchEntry{Key: key, Score: distance, Fields: fields}
}
