package job

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/unichat-ai/unichat/internal/repo"
)

// EmbeddingCacheCleanupJob purges persisted embedding rows older than the
// retention window so the cache table does not grow without bound.
type EmbeddingCacheCleanupJob struct {
	repo       *repo.EmbeddingCacheRepo
	retainDays int
}

func NewEmbeddingCacheCleanupJob(repo *repo.EmbeddingCacheRepo, retainDays int) *EmbeddingCacheCleanupJob {
	return &EmbeddingCacheCleanupJob{repo: repo, retainDays: retainDays}
}

func (j *EmbeddingCacheCleanupJob) Name() string {
	return "embedding_cache_cleanup"
}

func (j *EmbeddingCacheCleanupJob) Run(ctx context.Context) error {
	if j.repo == nil {
		return nil
	}
	retainDays := j.retainDays
	if retainDays <= 0 {
		retainDays = 30
	}
	cutoff := time.Now().Add(-time.Duration(retainDays) * 24 * time.Hour).Unix()
	deleted, err := j.repo.DeleteBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	if deleted > 0 {
		logutil.GetLogger(ctx).Info("purged stale embeddings",
			zap.Int64("deleted", deleted), zap.Int("retain_days", retainDays))
	}
	return nil
}
