package redis

import (
	"context"
	"time"

	"github.com/redis/rueidis"

	"github.com/calder-labs/ragserve/internal/db"
)

// Get reads a plain value. Absent keys return db.ErrKeyNotFound so the
// embedding cache can treat a miss as a non-error.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	cmd := s.b().Get().Key(key).Build()
	data, err := s.do(ctx, cmd).AsBytes()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, db.ErrKeyNotFound
		}
		return nil, &db.Error{Op: db.OpGet, Err: err}
	}
	return data, nil
}

// SetWithTTL writes a value that expires after ttl. Cached query embeddings
// use this so a stale cache ages out on its own.
func (s *Store) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	cmd := s.b().Set().Key(key).Value(rueidis.BinaryString(value)).Ex(ttl).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpSet, Err: err}
	}
	return nil
}
