package ai

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type ManagerConfig struct {
	Timeout       int
	MaxInputChars int
}

// Manager binds the configured chat and embedder chains behind one
// facade and applies the request timeout.
type Manager struct {
	chat     IChat
	embedder IEmbedder
	cfg      ManagerConfig
}

func NewManager(chat IChat, embedder IEmbedder, cfg ManagerConfig) *Manager {
	return &Manager{
		chat:     chat,
		embedder: embedder,
		cfg:      cfg,
	}
}

func (m *Manager) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	if m.embedder == nil {
		return nil, fmt.Errorf("embedder not configured")
	}
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()
	return m.embedder.Embed(ctx, text, taskType)
}

func (m *Manager) EmbedBatch(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	if m.embedder == nil {
		return nil, fmt.Errorf("embedder not configured")
	}
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()
	return m.embedder.EmbedBatch(ctx, texts, taskType)
}

func (m *Manager) Complete(ctx context.Context, msgs []Message, params *SamplingParams) (string, error) {
	if m.chat == nil {
		return "", fmt.Errorf("chat not configured")
	}
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()
	resp, err := m.chat.Complete(ctx, msgs, params)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(resp)
	if text == "" {
		return "", fmt.Errorf("empty ai response")
	}
	return text, nil
}

// StreamComplete opens a stream without the request timeout; long
// generations stay bounded by the caller's context.
func (m *Manager) StreamComplete(ctx context.Context, msgs []Message, params *SamplingParams) (<-chan StreamChunk, error) {
	if m.chat == nil {
		return nil, fmt.Errorf("chat not configured")
	}
	return m.chat.Stream(ctx, msgs, params)
}

func (m *Manager) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.cfg.Timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, time.Duration(m.cfg.Timeout)*time.Second)
}

func (m *Manager) MaxInputChars() int {
	return m.cfg.MaxInputChars
}

func (m *Manager) ChatModelName() string {
	if m.chat == nil {
		return ""
	}
	return m.chat.ModelName()
}

func (m *Manager) EmbeddingModelName() string {
	if m.embedder == nil {
		return ""
	}
	return m.embedder.ModelName()
}

func (m *Manager) EmbeddingProviderName() string {
	if m.embedder == nil {
		return ""
	}
	return m.embedder.ProviderName()
}

func (m *Manager) EmbeddingDimension() int {
	if m.embedder == nil {
		return 0
	}
	return m.embedder.Dimension()
}
