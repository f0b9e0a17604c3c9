package collection

import (
	"fmt"

	"github.com/calder-labs/ragserve/internal/db"
	"github.com/calder-labs/ragserve/internal/domain"
)

// buildIndex creates the IndexDefinition for a chunk collection: tag and
// numeric fields for metadata filtering plus an HNSW/COSINE vector field.
func buildIndex(name string, vectorDim int, hnsw HNSWConfig) *db.IndexDefinition {
	return &db.IndexDefinition{
		Name:     fmt.Sprintf("%s%s:idx", domain.KeyPrefix, name),
		Prefixes: []string{fmt.Sprintf("%s%s:", domain.KeyPrefix, name)},
		Fields: []db.IndexField{
			{Name: "document_id", Type: db.IndexFieldTag},
			{Name: "filename", Type: db.IndexFieldTag},
			{Name: "sequence_index", Type: db.IndexFieldNumeric},
			{
				Name:              "__vector",
				Alias:             "vector",
				Type:              db.IndexFieldVector,
				VectorAlgo:        db.VectorHNSW,
				VectorDim:         vectorDim,
				VectorDistance:    db.DistanceCosine,
				VectorM:           hnsw.M,
				VectorEFConstruct: hnsw.EFConstruct,
			},
		},
	}
}
