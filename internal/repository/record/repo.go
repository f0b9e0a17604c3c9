// Package record persists embedded chunks as Redis hashes.
package record

import (
	"context"
	"fmt"

	"github.com/calder-labs/ragserve/internal/db"
	"github.com/calder-labs/ragserve/internal/domain"
)

// store is the consumer interface for record writes (ISP).
type store interface {
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
}

// Repo implements chunk record persistence for one collection.
type Repo struct {
	store      store
	collection string
}

// New creates a record repository.
func New(s store, collection string) *Repo {
	return &Repo{store: s, collection: collection}
}

// BatchUpsert writes all records in a single pipelined round-trip. Keys are
// derived from deterministic chunk IDs, so re-upserting a document overwrites
// its previous chunks in place.
func (r *Repo) BatchUpsert(ctx context.Context, records []domain.StoredRecord) error {
	if len(records) == 0 {
		return nil
	}

	items := make([]db.HashSetItem, len(records))
	for i := range records {
		items[i] = db.HashSetItem{
			Key:    r.key(records[i].ID),
			Fields: recordToHash(&records[i]),
		}
	}

	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("%w: upsert %d records: %s", domain.ErrStoreWriteFailed, len(records), err.Error())
	}
	return nil
}

func (r *Repo) key(chunkID string) string {
	return fmt.Sprintf("%s%s:%s", domain.KeyPrefix, r.collection, chunkID)
}
