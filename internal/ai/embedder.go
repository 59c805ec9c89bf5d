package ai

import (
	"context"
	"strings"

	"golang.org/x/time/rate"
)

type IEmbedder interface {
	Embed(ctx context.Context, text string, taskType string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string, taskType string) ([][]float32, error)
	ProviderName() string
	ModelName() string
	Dimension() int
}

type embedder struct {
	provider  IEmbedProvider
	model     string
	dimension int
	batchSize int
	limiter   *rate.Limiter
}

type EmbedderOption func(*embedder)

// WithBatchSize caps how many texts go to the provider per request.
func WithBatchSize(n int) EmbedderOption {
	return func(e *embedder) {
		if n > 0 {
			e.batchSize = n
		}
	}
}

// WithRateLimit paces provider calls to rps requests per second with the
// given burst. Zero rps disables pacing.
func WithRateLimit(rps float64, burst int) EmbedderOption {
	return func(e *embedder) {
		if rps > 0 {
			if burst < 1 {
				burst = 1
			}
			e.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		}
	}
}

func NewEmbedder(p IEmbedProvider, model string, dimension int, opts ...EmbedderOption) IEmbedder {
	e := &embedder{
		provider:  p,
		model:     model,
		dimension: dimension,
		batchSize: 64,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *embedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return make([]float32, e.dimension), nil
	}
	if err := e.wait(ctx); err != nil {
		return nil, err
	}
	return e.provider.Embed(ctx, e.model, text, taskType)
}

func (e *embedder) EmbedBatch(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	// indexes of texts that actually need a provider call
	pending := make([]int, 0, len(texts))
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			out[i] = make([]float32, e.dimension)
			continue
		}
		pending = append(pending, i)
	}
	for start := 0; start < len(pending); start += e.batchSize {
		end := start + e.batchSize
		if end > len(pending) {
			end = len(pending)
		}
		batch := pending[start:end]
		inputs := make([]string, 0, len(batch))
		for _, idx := range batch {
			inputs = append(inputs, texts[idx])
		}
		if err := e.wait(ctx); err != nil {
			return nil, err
		}
		vectors, err := e.provider.EmbedBatch(ctx, e.model, inputs, taskType)
		if err != nil {
			return nil, err
		}
		if len(vectors) != len(batch) {
			return nil, ErrUnavailable
		}
		for j, idx := range batch {
			out[idx] = vectors[j]
		}
	}
	return out, nil
}

func (e *embedder) wait(ctx context.Context) error {
	if e.limiter == nil {
		return nil
	}
	return e.limiter.Wait(ctx)
}

func (e *embedder) ProviderName() string {
	return e.provider.Name()
}

func (e *embedder) ModelName() string {
	return e.model
}

func (e *embedder) Dimension() int {
	return e.dimension
}
