package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/unichat-ai/unichat/internal/ai"
	"github.com/unichat-ai/unichat/internal/chunk"
	"github.com/unichat-ai/unichat/internal/model"
)

const DefaultTokenBudget = 2000

type AnswerOptions struct {
	// Domain forces a domain by name and skips routing when set.
	Domain         string
	TopK           int
	ScoreThreshold float32
	TokenBudget    int
	Language       string
	History        []model.ConversationTurn
	Params         *ai.SamplingParams
}

func (o AnswerOptions) withDefaults() AnswerOptions {
	if o.TokenBudget <= 0 {
		o.TokenBudget = DefaultTokenBudget
	}
	return o
}

// AnswerService runs the question pipeline: route, preprocess, retrieve,
// budget, generate, postprocess. Completed answers are cached unless the
// caller supplied conversation history, which makes answers turn-specific.
type AnswerService struct {
	router    *RouterService
	retriever *RetrieverService
	generator *GeneratorService
	cache     *expirable.LRU[string, *model.AnswerResult]
}

func NewAnswerService(router *RouterService, retriever *RetrieverService, generator *GeneratorService, cacheSize int, cacheTTL time.Duration) *AnswerService {
	var cache *expirable.LRU[string, *model.AnswerResult]
	if cacheSize > 0 && cacheTTL > 0 {
		cache = expirable.NewLRU[string, *model.AnswerResult](cacheSize, nil, cacheTTL)
	}
	return &AnswerService{
		router:    router,
		retriever: retriever,
		generator: generator,
		cache:     cache,
	}
}

func (s *AnswerService) Answer(ctx context.Context, question string, opts AnswerOptions) (*model.AnswerResult, error) {
	opts = opts.withDefaults()
	domain, err := s.resolveDomain(ctx, question, opts)
	if err != nil {
		return nil, err
	}

	cacheKey := answerCacheKey(question, domain.Name, opts)
	if s.cache != nil && len(opts.History) == 0 {
		if cached, ok := s.cache.Get(cacheKey); ok {
			logutil.GetLogger(ctx).Debug("answer cache hit", zap.String("domain", domain.Name))
			return cached, nil
		}
	}

	processed := domain.Preprocess(question, nowFunc())
	hits, err := s.retriever.Retrieve(ctx, processed, domain, RetrieveOptions{
		TopK:           opts.TopK,
		ScoreThreshold: opts.ScoreThreshold,
	})
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return &model.AnswerResult{
			Answer:    domain.NoResultsMessage,
			Citations: []model.RetrievalHit{},
			Domain:    domain.Name,
			Namespace: domain.Namespace,
		}, nil
	}

	contexts := chunk.FitBudget(hitTexts(hits), opts.TokenBudget)
	raw, err := s.generator.Generate(ctx, domain, processed, contexts, GenerateOptions{
		Language: opts.Language,
		History:  opts.History,
		Params:   opts.Params,
	})
	if err != nil {
		return nil, err
	}
	result := &model.AnswerResult{
		Answer:    domain.Postprocess(raw),
		Citations: hits,
		Domain:    domain.Name,
		Namespace: domain.Namespace,
	}
	if s.cache != nil && len(opts.History) == 0 {
		s.cache.Add(cacheKey, result)
	}
	return result, nil
}

// AnswerStream runs the same pipeline but streams the raw answer deltas.
// Streamed output skips postprocessing and the cache.
func (s *AnswerService) AnswerStream(ctx context.Context, question string, opts AnswerOptions) (<-chan string, *model.AnswerResult, error) {
	opts = opts.withDefaults()
	domain, err := s.resolveDomain(ctx, question, opts)
	if err != nil {
		return nil, nil, err
	}
	processed := domain.Preprocess(question, nowFunc())
	hits, err := s.retriever.Retrieve(ctx, processed, domain, RetrieveOptions{
		TopK:           opts.TopK,
		ScoreThreshold: opts.ScoreThreshold,
	})
	if err != nil {
		return nil, nil, err
	}
	meta := &model.AnswerResult{
		Citations: hits,
		Domain:    domain.Name,
		Namespace: domain.Namespace,
	}
	if len(hits) == 0 {
		ch := make(chan string, 1)
		ch <- domain.NoResultsMessage
		close(ch)
		return ch, meta, nil
	}
	contexts := chunk.FitBudget(hitTexts(hits), opts.TokenBudget)
	stream, err := s.generator.Stream(ctx, domain, processed, contexts, GenerateOptions{
		Language: opts.Language,
		History:  opts.History,
		Params:   opts.Params,
	})
	if err != nil {
		return nil, nil, err
	}
	return stream, meta, nil
}

func (s *AnswerService) resolveDomain(ctx context.Context, question string, opts AnswerOptions) (*Domain, error) {
	if opts.Domain != "" {
		domain := s.router.DomainByName(opts.Domain)
		if domain == nil {
			return nil, fmt.Errorf("unknown domain: %s", opts.Domain)
		}
		return domain, nil
	}
	return s.router.Route(ctx, question), nil
}

func hitTexts(hits []model.RetrievalHit) []string {
	texts := make([]string, 0, len(hits))
	for _, hit := range hits {
		if hit.Chunk != nil {
			texts = append(texts, hit.Chunk.Text)
		}
	}
	return texts
}

// answerCacheKey folds in every knob that changes the produced answer,
// so the same question asked with different retrieval settings misses.
func answerCacheKey(question, domain string, opts AnswerOptions) string {
	model := ""
	if opts.Params != nil {
		model = opts.Params.Model
	}
	raw := fmt.Sprintf("%s|%s|%d|%g|%d|%s|%s",
		domain, opts.Language, opts.TopK, opts.ScoreThreshold, opts.TokenBudget, model, question)
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
