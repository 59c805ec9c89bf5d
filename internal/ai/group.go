package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type ChatEntry struct {
	Name string
	Chat IChat
}

type EmbedderEntry struct {
	Name     string
	Embedder IEmbedder
}

type groupChat struct {
	items []ChatEntry
}

// NewGroupChat tries each chat in order and returns the first success.
func NewGroupChat(items []ChatEntry) IChat {
	if len(items) == 0 {
		return nil
	}
	return &groupChat{items: items}
}

func (g *groupChat) Complete(ctx context.Context, msgs []Message, params *SamplingParams) (string, error) {
	var lastErr error
	for i, item := range g.items {
		if item.Chat == nil {
			continue
		}
		res, err := item.Chat.Complete(ctx, msgs, params)
		if err == nil {
			return res, nil
		}
		lastErr = err
		logutil.GetLogger(ctx).Warn("chat provider failed", zap.Int("index", i), zap.String("name", item.Name), zap.Error(err))
	}
	if lastErr == nil {
		return "", fmt.Errorf("chat not configured")
	}
	return "", lastErr
}

func (g *groupChat) Stream(ctx context.Context, msgs []Message, params *SamplingParams) (<-chan StreamChunk, error) {
	var lastErr error
	for i, item := range g.items {
		if item.Chat == nil {
			continue
		}
		ch, err := item.Chat.Stream(ctx, msgs, params)
		if err == nil {
			return ch, nil
		}
		lastErr = err
		logutil.GetLogger(ctx).Warn("chat provider failed to open stream", zap.Int("index", i), zap.String("name", item.Name), zap.Error(err))
	}
	if lastErr == nil {
		return nil, fmt.Errorf("chat not configured")
	}
	return nil, lastErr
}

func (g *groupChat) ModelName() string {
	names := make([]string, 0, len(g.items))
	for _, item := range g.items {
		if item.Name == "" {
			continue
		}
		names = append(names, item.Name)
	}
	return strings.Join(names, "|")
}

type groupEmbedder struct {
	items []EmbedderEntry
}

// NewGroupEmbedder tries each embedder in order and returns the first
// success. Mixing embedders with different dimensions is a config error;
// Dimension reports the head's value.
func NewGroupEmbedder(items []EmbedderEntry) IEmbedder {
	if len(items) == 0 {
		return nil
	}
	return &groupEmbedder{items: items}
}

func (g *groupEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	var lastErr error
	for i, item := range g.items {
		if item.Embedder == nil {
			continue
		}
		res, err := item.Embedder.Embed(ctx, text, taskType)
		if err == nil {
			return res, nil
		}
		lastErr = err
		logutil.GetLogger(ctx).Warn("embedder failed", zap.Int("index", i), zap.String("name", item.Name), zap.Error(err))
	}
	if lastErr == nil {
		return nil, fmt.Errorf("embedder not configured")
	}
	return nil, lastErr
}

func (g *groupEmbedder) EmbedBatch(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	var lastErr error
	for i, item := range g.items {
		if item.Embedder == nil {
			continue
		}
		res, err := item.Embedder.EmbedBatch(ctx, texts, taskType)
		if err == nil {
			return res, nil
		}
		lastErr = err
		logutil.GetLogger(ctx).Warn("embedder failed", zap.Int("index", i), zap.String("name", item.Name), zap.Error(err))
	}
	if lastErr == nil {
		return nil, fmt.Errorf("embedder not configured")
	}
	return nil, lastErr
}

func (g *groupEmbedder) ProviderName() string {
	names := make([]string, 0, len(g.items))
	for _, item := range g.items {
		if item.Name == "" {
			continue
		}
		names = append(names, item.Name)
	}
	return strings.Join(names, "|")
}

func (g *groupEmbedder) ModelName() string {
	for _, item := range g.items {
		if item.Embedder != nil {
			return item.Embedder.ModelName()
		}
	}
	return ""
}

func (g *groupEmbedder) Dimension() int {
	for _, item := range g.items {
		if item.Embedder != nil {
			return item.Embedder.Dimension()
		}
	}
	return 0
}
