package vectorindex

import (
	"context"
	"math"
	"runtime"
	"sort"
	"sync"

	"github.com/unichat-ai/unichat/internal/model"
)

// Storage is the persistence surface the in-process backend scans over.
// *repo.VectorRecordRepo satisfies it.
type Storage interface {
	Upsert(ctx context.Context, records []*model.VectorRecord) error
	ListByNamespace(ctx context.Context, namespace string, activeOnly bool) ([]*model.VectorRecord, error)
	SetActive(ctx context.Context, pointIDs []string, active bool) (int64, error)
	Delete(ctx context.Context, pointIDs []string) (int64, error)
	Stats(ctx context.Context, namespace string) (total int64, active int64, err error)
}

// NaiveIndex ranks by brute-force cosine similarity over stored records.
// Fine for small corpora and tests; swap in QdrantIndex beyond that.
type NaiveIndex struct {
	storage Storage
	workers int
}

func NewNaiveIndex(storage Storage) *NaiveIndex {
	return &NaiveIndex{
		storage: storage,
		workers: runtime.GOMAXPROCS(0),
	}
}

func (n *NaiveIndex) Upsert(ctx context.Context, records []*model.VectorRecord) error {
	return n.storage.Upsert(ctx, records)
}

func (n *NaiveIndex) Query(ctx context.Context, vector []float32, opts QueryOptions) ([]Hit, error) {
	topK := opts.TopK
	if topK <= 0 {
		topK = 5
	}
	records, err := n.storage.ListByNamespace(ctx, opts.Namespace, true)
	if err != nil {
		return nil, err
	}
	candidates := records[:0]
	for _, record := range records {
		if matchesFilters(record, opts.Filters) {
			candidates = append(candidates, record)
		}
	}
	scores := n.scoreAll(vector, candidates)

	hits := make([]Hit, 0, len(candidates))
	for i, record := range candidates {
		if opts.ScoreThreshold > 0 && scores[i] < opts.ScoreThreshold {
			continue
		}
		hits = append(hits, Hit{
			ChunkID: record.ChunkID,
			Score:   scores[i],
			Payload: record.Payload,
		})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// scoreAll fans the cosine math out over a bounded worker pool.
func (n *NaiveIndex) scoreAll(query []float32, records []*model.VectorRecord) []float32 {
	scores := make([]float32, len(records))
	workers := n.workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(records) {
		workers = len(records)
	}
	if workers <= 1 {
		for i, record := range records {
			scores[i] = cosineSimilarity(query, record.Embedding)
		}
		return scores
	}
	var wg sync.WaitGroup
	chunkSize := (len(records) + workers - 1) / workers
	for start := 0; start < len(records); start += chunkSize {
		end := start + chunkSize
		if end > len(records) {
			end = len(records)
		}
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for i := start; i < end; i++ {
				scores[i] = cosineSimilarity(query, records[i].Embedding)
			}
		}(start, end)
	}
	wg.Wait()
	return scores
}

func (n *NaiveIndex) SoftDelete(ctx context.Context, pointIDs []string) error {
	_, err := n.storage.SetActive(ctx, pointIDs, false)
	return err
}

func (n *NaiveIndex) Restore(ctx context.Context, pointIDs []string) error {
	_, err := n.storage.SetActive(ctx, pointIDs, true)
	return err
}

func (n *NaiveIndex) Delete(ctx context.Context, pointIDs []string) error {
	_, err := n.storage.Delete(ctx, pointIDs)
	return err
}

func (n *NaiveIndex) Stats(ctx context.Context, namespace string) (*Stats, error) {
	total, active, err := n.storage.Stats(ctx, namespace)
	if err != nil {
		return nil, err
	}
	return &Stats{Total: total, Active: active}, nil
}

func matchesFilters(record *model.VectorRecord, filters map[string]string) bool {
	for key, want := range filters {
		if record.Payload[key] != want {
			return false
		}
	}
	return true
}

// cosineSimilarity returns 0 for mismatched lengths or zero vectors.
func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
