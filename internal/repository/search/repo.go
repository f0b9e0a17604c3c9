// Package search runs KNN queries against the chunk collection.
package search

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/calder-labs/ragserve/internal/db"
	"github.com/calder-labs/ragserve/internal/domain"
)

// store is the consumer interface for search operations (ISP).
type store interface {
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

// Repo implements KNN retrieval for one collection.
type Repo struct {
	store      store
	collection string
}

// New creates a search repository.
func New(s store, collection string) *Repo {
	return &Repo{store: s, collection: collection}
}

// returnFields are the hash fields fetched for each hit.
var returnFields = []string{
	"__content", "__vector_score",
	"document_id", "filename", "sequence_index", "start_offset", "end_offset", "uploaded_at",
}

// SearchKNN returns the topK nearest chunks for the query vector, ordered by
// descending similarity. Equal scores order by ascending chunk ID so results
// are deterministic. An empty store yields an empty slice, not an error.
func (r *Repo) SearchKNN(ctx context.Context, vector []float32, topK int) ([]domain.ScoredRecord, error) {
	q := &db.KNNQuery{
		IndexName:    r.indexName(),
		Vector:       vector,
		K:            topK,
		ReturnFields: returnFields,
	}

	sr, err := r.store.SearchKNN(ctx, q)
	if err != nil {
		// nothing ingested yet, so no index: that is an empty result
		if errors.Is(err, db.ErrIndexNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: knn %s: %s", domain.ErrStoreQueryFailed, r.collection, err.Error())
	}

	return r.parseResults(sr), nil
}

func (r *Repo) parseResults(sr *db.SearchResult) []domain.ScoredRecord {
	if sr == nil || sr.Total == 0 {
		return nil
	}

	prefix := fmt.Sprintf("%s%s:", domain.KeyPrefix, r.collection)
	records := make([]domain.ScoredRecord, 0, len(sr.Entries))

	for _, entry := range sr.Entries {
		records = append(records, domain.ScoredRecord{
			ID:       strings.TrimPrefix(entry.Key, prefix),
			Text:     entry.Fields["__content"],
			Score:    similarity(entry.Score),
			Metadata: parseMetadata(entry.Fields),
		})
	}

	// redis orders by distance; re-sort to break score ties by chunk ID
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Score != records[j].Score {
			return records[i].Score > records[j].Score
		}
		return records[i].ID < records[j].ID
	})

	return records
}

// similarity maps a cosine distance onto [0,1], higher = more similar.
func similarity(distance float64) float64 {
	s := 1.0 - distance
	if s < 0 {
		return 0
	}
	return s
}

func parseMetadata(fields map[string]string) domain.RecordMetadata {
	meta := domain.RecordMetadata{
		DocumentID: fields["document_id"],
		Filename:   fields["filename"],
	}
	meta.SequenceIndex, _ = strconv.Atoi(fields["sequence_index"])
	meta.StartOffset, _ = strconv.Atoi(fields["start_offset"])
	meta.EndOffset, _ = strconv.Atoi(fields["end_offset"])
	if v := fields["uploaded_at"]; v != "" {
		meta.UploadedAt, _ = time.Parse(time.RFC3339, v)
	}
	return meta
}

func (r *Repo) indexName() string {
	return fmt.Sprintf("%s%s:idx", domain.KeyPrefix, r.collection)
}
