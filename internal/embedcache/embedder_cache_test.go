package embedcache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/unichat-ai/unichat/internal/model"
)

type countingEmbedder struct {
	calls     int
	embedded  []string
	dimension int
}

func (c *countingEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	vectors, err := c.EmbedBatch(ctx, []string{text}, taskType)
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	c.calls++
	c.embedded = append(c.embedded, texts...)
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, c.dimension)
		vec[0] = float32(len(text))
		out[i] = vec
	}
	return out, nil
}

func (c *countingEmbedder) ProviderName() string { return "fake" }
func (c *countingEmbedder) ModelName() string    { return "fake-model" }
func (c *countingEmbedder) Dimension() int       { return c.dimension }

type memStore struct {
	entries map[string]*model.EmbeddingCache
	getErr  error
	saveErr error
	gets    int
	saves   int
}

func newMemStore() *memStore {
	return &memStore{entries: map[string]*model.EmbeddingCache{}}
}

func (m *memStore) key(provider, modelName, taskType, hash string) string {
	return provider + "|" + modelName + "|" + taskType + "|" + hash
}

func (m *memStore) Get(ctx context.Context, provider, modelName, taskType, contentHash string) ([]float32, bool, error) {
	m.gets++
	if m.getErr != nil {
		return nil, false, m.getErr
	}
	entry, ok := m.entries[m.key(provider, modelName, taskType, contentHash)]
	if !ok {
		return nil, false, nil
	}
	return entry.Embedding, true, nil
}

func (m *memStore) Save(ctx context.Context, entry *model.EmbeddingCache) error {
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.entries[m.key(entry.Provider, entry.ModelName, entry.TaskType, entry.ContentHash)] = entry
	return nil
}

func TestLruCacheSecondCallHits(t *testing.T) {
	inner := &countingEmbedder{dimension: 4}
	emb := WrapLruCacheToEmbedder(inner, 16, time.Minute)

	first, err := emb.Embed(context.Background(), "hello world", "retrieval_query")
	require.NoError(t, err)
	second, err := emb.Embed(context.Background(), "hello world", "retrieval_query")
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, 1, inner.calls)
}

func TestLruCacheBatchOnlyEmbedsMisses(t *testing.T) {
	inner := &countingEmbedder{dimension: 4}
	emb := WrapLruCacheToEmbedder(inner, 16, time.Minute)

	_, err := emb.Embed(context.Background(), "alpha", "d")
	require.NoError(t, err)

	vectors, err := emb.EmbedBatch(context.Background(), []string{"alpha", "beta", "gamma"}, "d")
	require.NoError(t, err)
	require.Len(t, vectors, 3)
	require.Equal(t, float32(5), vectors[0][0])
	// only beta and gamma reached the provider
	require.Equal(t, []string{"alpha", "beta", "gamma"}, inner.embedded)
	require.Equal(t, 2, inner.calls)
}

func TestLruCacheKeyedByTaskType(t *testing.T) {
	inner := &countingEmbedder{dimension: 4}
	emb := WrapLruCacheToEmbedder(inner, 16, time.Minute)

	_, err := emb.Embed(context.Background(), "same text", "retrieval_query")
	require.NoError(t, err)
	_, err = emb.Embed(context.Background(), "same text", "retrieval_document")
	require.NoError(t, err)
	require.Equal(t, 2, inner.calls)
}

func TestDBCacheRoundTrip(t *testing.T) {
	inner := &countingEmbedder{dimension: 4}
	store := newMemStore()
	emb := WrapDBCacheToEmbedder(inner, store)

	first, err := emb.Embed(context.Background(), "persisted text", "d")
	require.NoError(t, err)
	require.Equal(t, 1, store.saves)

	second, err := emb.Embed(context.Background(), "persisted text", "d")
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, 1, inner.calls)
}

func TestDBCacheFailsOpenOnLookupError(t *testing.T) {
	inner := &countingEmbedder{dimension: 4}
	store := newMemStore()
	store.getErr = fmt.Errorf("connection refused")
	emb := WrapDBCacheToEmbedder(inner, store)

	vec, err := emb.Embed(context.Background(), "some text", "d")
	require.NoError(t, err)
	require.Len(t, vec, 4)
	require.Equal(t, 1, inner.calls)
}

func TestDBCacheFailsOpenOnSaveError(t *testing.T) {
	inner := &countingEmbedder{dimension: 4}
	store := newMemStore()
	store.saveErr = fmt.Errorf("disk full")
	emb := WrapDBCacheToEmbedder(inner, store)

	_, err := emb.Embed(context.Background(), "some text", "d")
	require.NoError(t, err)
	// save failed, so the next call embeds again
	_, err = emb.Embed(context.Background(), "some text", "d")
	require.NoError(t, err)
	require.Equal(t, 2, inner.calls)
}

func TestDBCacheBatchSavesMissesOnly(t *testing.T) {
	inner := &countingEmbedder{dimension: 4}
	store := newMemStore()
	emb := WrapDBCacheToEmbedder(inner, store)

	_, err := emb.Embed(context.Background(), "cached", "d")
	require.NoError(t, err)
	require.Equal(t, 1, store.saves)

	vectors, err := emb.EmbedBatch(context.Background(), []string{"cached", "fresh"}, "d")
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	require.Equal(t, 2, store.saves)
	require.Equal(t, []string{"cached", "fresh"}, inner.embedded)
	require.Equal(t, 2, inner.calls)
}
