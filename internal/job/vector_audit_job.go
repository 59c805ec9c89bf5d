package job

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/unichat-ai/unichat/internal/repo"
	"github.com/unichat-ai/unichat/internal/vectorindex"
)

const auditBatchSize = 500

// VectorAuditJob removes vector rows whose chunk no longer exists. Such
// rows appear when a reindex or delete was interrupted part way.
type VectorAuditJob struct {
	records *repo.VectorRecordRepo
	index   vectorindex.Index
}

func NewVectorAuditJob(records *repo.VectorRecordRepo, index vectorindex.Index) *VectorAuditJob {
	return &VectorAuditJob{records: records, index: index}
}

func (j *VectorAuditJob) Name() string {
	return "vector_audit"
}

func (j *VectorAuditJob) Run(ctx context.Context) error {
	if j.records == nil || j.index == nil {
		return nil
	}
	total := 0
	for {
		pointIDs, err := j.records.ListDangling(ctx, auditBatchSize)
		if err != nil {
			return err
		}
		if len(pointIDs) == 0 {
			break
		}
		if err := j.index.Delete(ctx, pointIDs); err != nil {
			return err
		}
		// the qdrant backend only removes points, so clear the rows too
		if _, err := j.records.Delete(ctx, pointIDs); err != nil {
			return err
		}
		total += len(pointIDs)
		if len(pointIDs) < auditBatchSize {
			break
		}
	}
	if total > 0 {
		logutil.GetLogger(ctx).Info("dangling vectors removed", zap.Int("count", total))
	}
	return nil
}
