package ai

import "context"

type IChat interface {
	Complete(ctx context.Context, msgs []Message, params *SamplingParams) (string, error)
	Stream(ctx context.Context, msgs []Message, params *SamplingParams) (<-chan StreamChunk, error)
	ModelName() string
}

type chat struct {
	provider IChatProvider
	model    string
}

func NewChat(p IChatProvider, model string) IChat {
	return &chat{provider: p, model: model}
}

func (c *chat) Complete(ctx context.Context, msgs []Message, params *SamplingParams) (string, error) {
	return c.provider.Complete(ctx, c.effectiveModel(params), msgs, params)
}

func (c *chat) Stream(ctx context.Context, msgs []Message, params *SamplingParams) (<-chan StreamChunk, error) {
	return c.provider.Stream(ctx, c.effectiveModel(params), msgs, params)
}

func (c *chat) effectiveModel(params *SamplingParams) string {
	if params != nil && params.Model != "" {
		return params.Model
	}
	return c.model
}

func (c *chat) ModelName() string {
	return c.model
}
