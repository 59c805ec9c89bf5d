package service

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/unichat-ai/unichat/internal/model"
	"github.com/unichat-ai/unichat/internal/vectorindex"
)

const (
	taskTypeQuery    = "retrieval_query"
	taskTypeDocument = "retrieval_document"

	DefaultTopK           = 5
	DefaultScoreThreshold = 0.35
)

type ChunkStore interface {
	FindByIDs(ctx context.Context, chunkIDs []string) ([]*model.Chunk, error)
}

type DocumentStore interface {
	GetBatch(ctx context.Context, docIDs []string) (map[string]*model.Document, error)
}

type QueryEmbedder interface {
	Embed(ctx context.Context, text string, taskType string) ([]float32, error)
}

type RetrieveOptions struct {
	TopK           int
	ScoreThreshold float32
	// DedupeByDocument keeps only the best hit per source document.
	DedupeByDocument bool
}

func (o RetrieveOptions) withDefaults() RetrieveOptions {
	if o.TopK <= 0 {
		o.TopK = DefaultTopK
	}
	if o.ScoreThreshold <= 0 {
		o.ScoreThreshold = DefaultScoreThreshold
	}
	return o
}

// RetrieverService turns a routed question into hydrated, ranked hits.
type RetrieverService struct {
	index    vectorindex.Index
	embedder QueryEmbedder
	chunks   ChunkStore
	docs     DocumentStore
}

func NewRetrieverService(index vectorindex.Index, embedder QueryEmbedder, chunks ChunkStore, docs DocumentStore) *RetrieverService {
	return &RetrieverService{
		index:    index,
		embedder: embedder,
		chunks:   chunks,
		docs:     docs,
	}
}

// Retrieve embeds the (already preprocessed) question, queries the index
// within the domain's namespace and filters, and hydrates the hits. An
// empty result is a valid answer, never an error.
func (r *RetrieverService) Retrieve(ctx context.Context, question string, domain *Domain, opts RetrieveOptions) ([]model.RetrievalHit, error) {
	opts = opts.withDefaults()
	vector, err := r.embedder.Embed(ctx, question, taskTypeQuery)
	if err != nil {
		return nil, err
	}
	queryOpts := vectorindex.QueryOptions{
		Namespace:      domain.Namespace,
		TopK:           opts.TopK,
		ScoreThreshold: opts.ScoreThreshold,
	}
	if domain.Filters != nil {
		queryOpts.Filters = domain.Filters(nowFunc())
	}
	rawHits, err := r.index.Query(ctx, vector, queryOpts)
	if err != nil {
		return nil, err
	}
	if len(rawHits) == 0 {
		return []model.RetrievalHit{}, nil
	}
	hits, err := r.hydrate(ctx, rawHits)
	if err != nil {
		return nil, err
	}
	if opts.DedupeByDocument {
		hits = dedupeByDocument(hits)
	}
	logutil.GetLogger(ctx).Debug("retrieval done",
		zap.String("domain", domain.Name),
		zap.Int("raw_hits", len(rawHits)),
		zap.Int("hits", len(hits)),
	)
	return hits, nil
}

// hydrate loads chunk and document rows, preserving index rank order.
// Hits whose chunk row has vanished are dropped.
func (r *RetrieverService) hydrate(ctx context.Context, rawHits []vectorindex.Hit) ([]model.RetrievalHit, error) {
	chunkIDs := make([]string, 0, len(rawHits))
	scores := make(map[string]float32, len(rawHits))
	for _, hit := range rawHits {
		chunkIDs = append(chunkIDs, hit.ChunkID)
		scores[hit.ChunkID] = hit.Score
	}
	chunks, err := r.chunks.FindByIDs(ctx, chunkIDs)
	if err != nil {
		return nil, err
	}
	chunkByID := make(map[string]*model.Chunk, len(chunks))
	docIDs := make([]string, 0, len(chunks))
	seenDocs := make(map[string]bool, len(chunks))
	for _, chunk := range chunks {
		chunkByID[chunk.ID] = chunk
		if !seenDocs[chunk.DocumentID] {
			seenDocs[chunk.DocumentID] = true
			docIDs = append(docIDs, chunk.DocumentID)
		}
	}
	docs, err := r.docs.GetBatch(ctx, docIDs)
	if err != nil {
		return nil, err
	}
	hits := make([]model.RetrievalHit, 0, len(rawHits))
	for _, raw := range rawHits {
		chunk, ok := chunkByID[raw.ChunkID]
		if !ok {
			logutil.GetLogger(ctx).Warn("hit references missing chunk", zap.String("chunk_id", raw.ChunkID))
			continue
		}
		hits = append(hits, model.RetrievalHit{
			ChunkID:  raw.ChunkID,
			Score:    scores[raw.ChunkID],
			Chunk:    chunk,
			Document: docs[chunk.DocumentID],
		})
	}
	return hits, nil
}

// dedupeByDocument keeps the first (highest ranked) hit per document.
func dedupeByDocument(hits []model.RetrievalHit) []model.RetrievalHit {
	seen := make(map[string]bool, len(hits))
	out := make([]model.RetrievalHit, 0, len(hits))
	for _, hit := range hits {
		docID := ""
		if hit.Chunk != nil {
			docID = hit.Chunk.DocumentID
		}
		if docID != "" && seen[docID] {
			continue
		}
		if docID != "" {
			seen[docID] = true
		}
		out = append(out, hit)
	}
	return out
}
