package reset

import "context"

// CollectionRepository drops and recreates the chunk collection, and
// reports its size and metadata.
type CollectionRepository interface {
	Reset(ctx context.Context) error
	Count(ctx context.Context) (int, error)
	Info(ctx context.Context) (map[string]string, error)
}
