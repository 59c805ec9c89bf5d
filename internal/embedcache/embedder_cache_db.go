package embedcache

import (
	"context"
	"time"

	"github.com/unichat-ai/unichat/internal/ai"
	"github.com/unichat-ai/unichat/internal/model"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

// Store is the persistence surface the DB-backed cache needs. Lookups and
// saves fail open; a broken store degrades to a pass-through.
type Store interface {
	Get(ctx context.Context, provider, modelName, taskType, contentHash string) ([]float32, bool, error)
	Save(ctx context.Context, entry *model.EmbeddingCache) error
}

func WrapDBCacheToEmbedder(e ai.IEmbedder, store Store) ai.IEmbedder {
	if e == nil || store == nil {
		return e
	}
	return &dbEmbedder{next: e, store: store}
}

type dbEmbedder struct {
	next  ai.IEmbedder
	store Store
}

func (d *dbEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	provider, modelName := d.next.ProviderName(), d.next.ModelName()
	_, contentHash := buildCacheKey(provider, modelName, taskType, text)
	if values, ok := d.lookup(ctx, provider, modelName, taskType, contentHash); ok {
		return values, nil
	}
	res, err := d.next.Embed(ctx, text, taskType)
	if err != nil {
		return nil, err
	}
	d.save(ctx, provider, modelName, taskType, contentHash, res)
	return res, nil
}

func (d *dbEmbedder) EmbedBatch(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	provider, modelName := d.next.ProviderName(), d.next.ModelName()
	out := make([][]float32, len(texts))
	hashes := make([]string, len(texts))
	missIdx := make([]int, 0, len(texts))
	missTexts := make([]string, 0, len(texts))
	for i, text := range texts {
		_, hashes[i] = buildCacheKey(provider, modelName, taskType, text)
		if values, ok := d.lookup(ctx, provider, modelName, taskType, hashes[i]); ok {
			out[i] = values
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}
	if len(missIdx) == 0 {
		return out, nil
	}
	logutil.GetLogger(ctx).Debug("embedding cache partial hit (db)",
		zap.Int("total", len(texts)),
		zap.Int("misses", len(missIdx)),
	)
	fresh, err := d.next.EmbedBatch(ctx, missTexts, taskType)
	if err != nil {
		return nil, err
	}
	for j, i := range missIdx {
		out[i] = fresh[j]
		d.save(ctx, provider, modelName, taskType, hashes[i], fresh[j])
	}
	return out, nil
}

func (d *dbEmbedder) lookup(ctx context.Context, provider, modelName, taskType, contentHash string) ([]float32, bool) {
	values, ok, err := d.store.Get(ctx, provider, modelName, taskType, contentHash)
	if err != nil {
		// fail open: a cache outage must not block embedding
		logutil.GetLogger(ctx).Warn("embedding cache lookup failed", zap.Error(err))
		return nil, false
	}
	if ok {
		logutil.GetLogger(ctx).Debug("embedding cache hit (db)", zap.String("task_type", taskType))
	}
	return values, ok
}

func (d *dbEmbedder) save(ctx context.Context, provider, modelName, taskType, contentHash string, values []float32) {
	err := d.store.Save(ctx, &model.EmbeddingCache{
		Provider:    provider,
		ModelName:   modelName,
		TaskType:    taskType,
		ContentHash: contentHash,
		Embedding:   values,
		Ctime:       time.Now().Unix(),
	})
	if err != nil {
		logutil.GetLogger(ctx).Warn("failed to cache embedding", zap.Error(err))
	}
}

func (d *dbEmbedder) ProviderName() string {
	return d.next.ProviderName()
}

func (d *dbEmbedder) ModelName() string {
	return d.next.ModelName()
}

func (d *dbEmbedder) Dimension() int {
	return d.next.Dimension()
}
