package service

import (
	"context"
	"fmt"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	appErr "github.com/unichat-ai/unichat/internal/pkg/errors"
	"github.com/unichat-ai/unichat/internal/vectorindex"
)

// VectorService exposes index lifecycle operations to the API: soft
// delete, restore, hard delete, stats.
type VectorService struct {
	index vectorindex.Index
}

func NewVectorService(index vectorindex.Index) *VectorService {
	return &VectorService{index: index}
}

func (s *VectorService) SoftDelete(ctx context.Context, pointIDs []string) error {
	if len(pointIDs) == 0 {
		return fmt.Errorf("no point ids given: %w", appErr.ErrInvalid)
	}
	if err := s.index.SoftDelete(ctx, pointIDs); err != nil {
		return err
	}
	logutil.GetLogger(ctx).Info("vectors soft-deleted", zap.Int("count", len(pointIDs)))
	return nil
}

func (s *VectorService) Restore(ctx context.Context, pointIDs []string) error {
	if len(pointIDs) == 0 {
		return fmt.Errorf("no point ids given: %w", appErr.ErrInvalid)
	}
	if err := s.index.Restore(ctx, pointIDs); err != nil {
		return err
	}
	logutil.GetLogger(ctx).Info("vectors restored", zap.Int("count", len(pointIDs)))
	return nil
}

func (s *VectorService) Delete(ctx context.Context, pointIDs []string) error {
	if len(pointIDs) == 0 {
		return fmt.Errorf("no point ids given: %w", appErr.ErrInvalid)
	}
	if err := s.index.Delete(ctx, pointIDs); err != nil {
		return err
	}
	logutil.GetLogger(ctx).Info("vectors deleted", zap.Int("count", len(pointIDs)))
	return nil
}

func (s *VectorService) Stats(ctx context.Context, namespace string) (*vectorindex.Stats, error) {
	return s.index.Stats(ctx, namespace)
}
