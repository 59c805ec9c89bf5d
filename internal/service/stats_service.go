package service

import (
	"context"

	"github.com/unichat-ai/unichat/internal/vectorindex"
)

type counter interface {
	Count(ctx context.Context) (int64, error)
}

type SystemStats struct {
	Documents    int64                        `json:"documents"`
	Chunks       int64                        `json:"chunks"`
	CacheEntries int64                        `json:"cache_entries"`
	Namespaces   map[string]vectorindex.Stats `json:"namespaces"`
}

// StatsService aggregates corpus counters for the stats endpoint.
type StatsService struct {
	docs   counter
	chunks counter
	cache  counter
	index  vectorindex.Index
	router *RouterService
}

func NewStatsService(docs, chunks, cache counter, index vectorindex.Index, router *RouterService) *StatsService {
	return &StatsService{
		docs:   docs,
		chunks: chunks,
		cache:  cache,
		index:  index,
		router: router,
	}
}

func (s *StatsService) Collect(ctx context.Context) (*SystemStats, error) {
	stats := &SystemStats{Namespaces: map[string]vectorindex.Stats{}}
	var err error
	if stats.Documents, err = s.docs.Count(ctx); err != nil {
		return nil, err
	}
	if stats.Chunks, err = s.chunks.Count(ctx); err != nil {
		return nil, err
	}
	if stats.CacheEntries, err = s.cache.Count(ctx); err != nil {
		return nil, err
	}
	for _, domain := range s.router.Domains() {
		if domain.Namespace == "" {
			continue
		}
		nsStats, err := s.index.Stats(ctx, domain.Namespace)
		if err != nil {
			return nil, err
		}
		stats.Namespaces[domain.Namespace] = *nsStats
	}
	return stats, nil
}
