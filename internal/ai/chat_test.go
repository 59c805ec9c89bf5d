package ai

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type recordingChatProvider struct {
	lastModel string
}

func (r *recordingChatProvider) Name() string { return "recording" }

func (r *recordingChatProvider) Complete(ctx context.Context, model string, msgs []Message, params *SamplingParams) (string, error) {
	r.lastModel = model
	return "ok", nil
}

func (r *recordingChatProvider) Stream(ctx context.Context, model string, msgs []Message, params *SamplingParams) (<-chan StreamChunk, error) {
	r.lastModel = model
	ch := make(chan StreamChunk)
	close(ch)
	return ch, nil
}

func TestChatUsesConfiguredModel(t *testing.T) {
	provider := &recordingChatProvider{}
	c := NewChat(provider, "gpt-4o-mini")
	_, err := c.Complete(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, nil)
	require.NoError(t, err)
	require.Equal(t, "gpt-4o-mini", provider.lastModel)
}

func TestChatModelOverride(t *testing.T) {
	provider := &recordingChatProvider{}
	c := NewChat(provider, "gpt-4o-mini")

	_, err := c.Complete(context.Background(), nil, &SamplingParams{Model: "o3-mini"})
	require.NoError(t, err)
	require.Equal(t, "o3-mini", provider.lastModel)

	// empty override falls back to the configured model
	_, err = c.Stream(context.Background(), nil, &SamplingParams{})
	require.NoError(t, err)
	require.Equal(t, "gpt-4o-mini", provider.lastModel)
}
