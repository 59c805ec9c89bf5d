package vectorindex

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/unichat-ai/unichat/internal/model"
)

type memStorage struct {
	records map[string]*model.VectorRecord
}

func newMemStorage() *memStorage {
	return &memStorage{records: map[string]*model.VectorRecord{}}
}

func (m *memStorage) Upsert(ctx context.Context, records []*model.VectorRecord) error {
	for _, record := range records {
		clone := *record
		m.records[record.PointID] = &clone
	}
	return nil
}

func (m *memStorage) ListByNamespace(ctx context.Context, namespace string, activeOnly bool) ([]*model.VectorRecord, error) {
	var out []*model.VectorRecord
	for _, record := range m.records {
		if namespace != "" && record.Namespace != namespace {
			continue
		}
		if activeOnly && !record.Active {
			continue
		}
		out = append(out, record)
	}
	return out, nil
}

func (m *memStorage) SetActive(ctx context.Context, pointIDs []string, active bool) (int64, error) {
	var affected int64
	for _, id := range pointIDs {
		if record, ok := m.records[id]; ok {
			record.Active = active
			affected++
		}
	}
	return affected, nil
}

func (m *memStorage) Delete(ctx context.Context, pointIDs []string) (int64, error) {
	var affected int64
	for _, id := range pointIDs {
		if _, ok := m.records[id]; ok {
			delete(m.records, id)
			affected++
		}
	}
	return affected, nil
}

func (m *memStorage) Stats(ctx context.Context, namespace string) (int64, int64, error) {
	var total, active int64
	for _, record := range m.records {
		if namespace != "" && record.Namespace != namespace {
			continue
		}
		total++
		if record.Active {
			active++
		}
	}
	return total, active, nil
}

func seedIndex(t *testing.T) (*NaiveIndex, *memStorage) {
	t.Helper()
	storage := newMemStorage()
	index := NewNaiveIndex(storage)
	records := []*model.VectorRecord{
		{PointID: "p1", ChunkID: "c1", Namespace: "tuition", Embedding: []float32{1, 0, 0}, Active: true, Payload: map[string]string{"category": "fees"}},
		{PointID: "p2", ChunkID: "c2", Namespace: "tuition", Embedding: []float32{0.9, 0.1, 0}, Active: true, Payload: map[string]string{"category": "fees"}},
		{PointID: "p3", ChunkID: "c3", Namespace: "admission", Embedding: []float32{0, 1, 0}, Active: true, Payload: map[string]string{"category": "deadlines"}},
		{PointID: "p4", ChunkID: "c4", Namespace: "tuition", Embedding: []float32{0, 0, 1}, Active: true, Payload: map[string]string{"category": "aid"}},
	}
	require.NoError(t, index.Upsert(context.Background(), records))
	return index, storage
}

func TestNaiveQueryRanksByCosine(t *testing.T) {
	index, _ := seedIndex(t)
	hits, err := index.Query(context.Background(), []float32{1, 0, 0}, QueryOptions{TopK: 10})
	require.NoError(t, err)
	require.Len(t, hits, 4)
	require.Equal(t, "c1", hits[0].ChunkID)
	require.Equal(t, "c2", hits[1].ChunkID)
	require.InDelta(t, 1.0, hits[0].Score, 1e-6)
}

func TestNaiveQueryNamespaceFilter(t *testing.T) {
	index, _ := seedIndex(t)
	hits, err := index.Query(context.Background(), []float32{1, 0, 0}, QueryOptions{Namespace: "admission", TopK: 10})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, "c3", hits[0].ChunkID)
}

func TestNaiveQueryMetadataFilters(t *testing.T) {
	index, _ := seedIndex(t)
	hits, err := index.Query(context.Background(), []float32{1, 0, 0}, QueryOptions{
		Namespace: "tuition",
		TopK:      10,
		Filters:   map[string]string{"category": "fees"},
	})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	for _, hit := range hits {
		require.Equal(t, "fees", hit.Payload["category"])
	}
}

func TestNaiveQueryScoreThresholdAndTopK(t *testing.T) {
	index, _ := seedIndex(t)
	hits, err := index.Query(context.Background(), []float32{1, 0, 0}, QueryOptions{TopK: 10, ScoreThreshold: 0.5})
	require.NoError(t, err)
	require.Len(t, hits, 2)

	hits, err = index.Query(context.Background(), []float32{1, 0, 0}, QueryOptions{TopK: 1})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, "c1", hits[0].ChunkID)
}

func TestNaiveSoftDeleteHidesAndRestoreReveals(t *testing.T) {
	index, _ := seedIndex(t)
	ctx := context.Background()

	require.NoError(t, index.SoftDelete(ctx, []string{"p1"}))
	hits, err := index.Query(ctx, []float32{1, 0, 0}, QueryOptions{TopK: 10})
	require.NoError(t, err)
	for _, hit := range hits {
		require.NotEqual(t, "c1", hit.ChunkID)
	}

	// soft delete is idempotent
	require.NoError(t, index.SoftDelete(ctx, []string{"p1"}))

	require.NoError(t, index.Restore(ctx, []string{"p1"}))
	hits, err = index.Query(ctx, []float32{1, 0, 0}, QueryOptions{TopK: 10})
	require.NoError(t, err)
	require.Equal(t, "c1", hits[0].ChunkID)

	stats, err := index.Stats(ctx, "")
	require.NoError(t, err)
	require.Equal(t, int64(4), stats.Total)
	require.Equal(t, int64(4), stats.Active)
}

func TestNaiveStatsCountsInactive(t *testing.T) {
	index, _ := seedIndex(t)
	ctx := context.Background()
	require.NoError(t, index.SoftDelete(ctx, []string{"p2", "p4"}))

	stats, err := index.Stats(ctx, "tuition")
	require.NoError(t, err)
	require.Equal(t, int64(3), stats.Total)
	require.Equal(t, int64(1), stats.Active)
}

func TestNaiveHardDeleteRemoves(t *testing.T) {
	index, storage := seedIndex(t)
	ctx := context.Background()
	require.NoError(t, index.Delete(ctx, []string{"p3"}))
	require.NotContains(t, storage.records, "p3")

	stats, err := index.Stats(ctx, "")
	require.NoError(t, err)
	require.Equal(t, int64(3), stats.Total)
}

func TestCosineSimilarityEdgeCases(t *testing.T) {
	require.Equal(t, float32(0), cosineSimilarity([]float32{1, 0}, []float32{1, 0, 0}))
	require.Equal(t, float32(0), cosineSimilarity([]float32{0, 0}, []float32{1, 0}))
	require.Equal(t, float32(0), cosineSimilarity(nil, nil))
	require.InDelta(t, -1.0, cosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-6)
}
