package ai

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeEmbedProvider struct {
	calls      int
	batchSizes []int
	fail       bool
}

func (f *fakeEmbedProvider) Name() string { return "fake" }

func (f *fakeEmbedProvider) Embed(ctx context.Context, model string, text string, taskType string) ([]float32, error) {
	vectors, err := f.EmbedBatch(ctx, model, []string{text}, taskType)
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (f *fakeEmbedProvider) EmbedBatch(ctx context.Context, model string, texts []string, taskType string) ([][]float32, error) {
	f.calls++
	f.batchSizes = append(f.batchSizes, len(texts))
	if f.fail {
		return nil, fmt.Errorf("backend down: %w", ErrUnavailable)
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = []float32{float32(len(text)), 1, 0}
	}
	return out, nil
}

func TestEmbedderZeroVectorForBlankText(t *testing.T) {
	provider := &fakeEmbedProvider{}
	emb := NewEmbedder(provider, "test-model", 3)

	vec, err := emb.Embed(context.Background(), "   ", "retrieval_query")
	require.NoError(t, err)
	require.Equal(t, []float32{0, 0, 0}, vec)
	require.Zero(t, provider.calls)
}

func TestEmbedderBatchSkipsBlanksAndPreservesOrder(t *testing.T) {
	provider := &fakeEmbedProvider{}
	emb := NewEmbedder(provider, "test-model", 3)

	vectors, err := emb.EmbedBatch(context.Background(), []string{"ab", "", "abcd"}, "retrieval_document")
	require.NoError(t, err)
	require.Len(t, vectors, 3)
	require.Equal(t, []float32{2, 1, 0}, vectors[0])
	require.Equal(t, []float32{0, 0, 0}, vectors[1])
	require.Equal(t, []float32{4, 1, 0}, vectors[2])
	require.Equal(t, 1, provider.calls)
	require.Equal(t, []int{2}, provider.batchSizes)
}

func TestEmbedderBatchSplitsLargeInput(t *testing.T) {
	provider := &fakeEmbedProvider{}
	emb := NewEmbedder(provider, "test-model", 3, WithBatchSize(4))

	texts := make([]string, 10)
	for i := range texts {
		texts[i] = fmt.Sprintf("text-%d", i)
	}
	vectors, err := emb.EmbedBatch(context.Background(), texts, "")
	require.NoError(t, err)
	require.Len(t, vectors, 10)
	require.Equal(t, []int{4, 4, 2}, provider.batchSizes)
}

func TestEmbedderBatchSurfacesProviderError(t *testing.T) {
	provider := &fakeEmbedProvider{fail: true}
	emb := NewEmbedder(provider, "test-model", 3)

	_, err := emb.EmbedBatch(context.Background(), []string{"a"}, "")
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestGroupEmbedderFallsBack(t *testing.T) {
	broken := &fakeEmbedProvider{fail: true}
	healthy := &fakeEmbedProvider{}
	group := NewGroupEmbedder([]EmbedderEntry{
		{Name: "broken", Embedder: NewEmbedder(broken, "m1", 3)},
		{Name: "healthy", Embedder: NewEmbedder(healthy, "m2", 3)},
	})

	vec, err := group.Embed(context.Background(), "hello", "")
	require.NoError(t, err)
	require.Len(t, vec, 3)
	require.Equal(t, 1, broken.calls)
	require.Equal(t, 1, healthy.calls)
	require.Equal(t, 3, group.Dimension())
}
