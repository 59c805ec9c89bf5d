package vectorindex

import (
	"context"

	"github.com/unichat-ai/unichat/internal/model"
)

// Hit is one k-NN match, ordered by descending similarity.
type Hit struct {
	ChunkID string
	Score   float32
	Payload map[string]string
}

type Stats struct {
	Total  int64 `json:"total"`
	Active int64 `json:"active"`
}

// QueryOptions narrows a similarity search. An empty Namespace matches
// every namespace; Filters are ANDed payload equality conditions. Only
// active points are ever returned.
type QueryOptions struct {
	Namespace      string
	TopK           int
	ScoreThreshold float32
	Filters        map[string]string
}

// Index is the vector search backend. Implementations: the qdrant service
// backend and the in-process scan backend.
type Index interface {
	Upsert(ctx context.Context, records []*model.VectorRecord) error
	Query(ctx context.Context, vector []float32, opts QueryOptions) ([]Hit, error)
	SoftDelete(ctx context.Context, pointIDs []string) error
	Restore(ctx context.Context, pointIDs []string) error
	Delete(ctx context.Context, pointIDs []string) error
	Stats(ctx context.Context, namespace string) (*Stats, error)
}

const (
	payloadChunkID   = "chunk_id"
	payloadNamespace = "namespace"
	payloadActive    = "active"
)
