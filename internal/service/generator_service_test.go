package service

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/unichat-ai/unichat/internal/ai"
	"github.com/unichat-ai/unichat/internal/model"
)

type fakeCompleter struct {
	lastMsgs   []ai.Message
	lastParams *ai.SamplingParams
	answer     string
	err        error
	chunks     []ai.StreamChunk
}

func (f *fakeCompleter) Complete(ctx context.Context, msgs []ai.Message, params *ai.SamplingParams) (string, error) {
	f.lastMsgs = msgs
	f.lastParams = params
	return f.answer, f.err
}

func (f *fakeCompleter) StreamComplete(ctx context.Context, msgs []ai.Message, params *ai.SamplingParams) (<-chan ai.StreamChunk, error) {
	f.lastMsgs = msgs
	if f.err != nil {
		return nil, f.err
	}
	ch := make(chan ai.StreamChunk, len(f.chunks))
	for _, c := range f.chunks {
		ch <- c
	}
	close(ch)
	return ch, nil
}

func TestGenerateMessageLayout(t *testing.T) {
	chat := &fakeCompleter{answer: "câu trả lời"}
	svc := NewGeneratorService(chat)
	answer, err := svc.Generate(context.Background(), tuitionDomain(), "Học phí bao nhiêu?", []string{"ngữ cảnh một", "ngữ cảnh hai"}, GenerateOptions{})
	require.NoError(t, err)
	require.Equal(t, "câu trả lời", answer)

	require.Len(t, chat.lastMsgs, 2)
	system := chat.lastMsgs[0]
	require.Equal(t, ai.RoleSystem, system.Role)
	require.Contains(t, system.Content, "Chỉ trả lời dựa trên thông tin được cung cấp")
	// domain context rides along in the system prompt
	require.Contains(t, system.Content, "chuyên viên tài chính")

	user := chat.lastMsgs[1]
	require.Equal(t, ai.RoleUser, user.Role)
	require.Contains(t, user.Content, "THÔNG TIN THAM KHẢO:")
	require.Contains(t, user.Content, "[1] ngữ cảnh một")
	require.Contains(t, user.Content, "[2] ngữ cảnh hai")
	require.Contains(t, user.Content, "CÂU HỎI: Học phí bao nhiêu?")
	require.True(t, strings.HasSuffix(user.Content, "TRẢ LỜI:"))
}

func TestGenerateEnglishTemplate(t *testing.T) {
	chat := &fakeCompleter{answer: "the answer"}
	svc := NewGeneratorService(chat)
	_, err := svc.Generate(context.Background(), generalDomain(), "When do classes start?", []string{"ctx"}, GenerateOptions{Language: "en"})
	require.NoError(t, err)
	require.Contains(t, chat.lastMsgs[0].Content, "Only answer based on the provided information")
	require.Contains(t, chat.lastMsgs[1].Content, "REFERENCE INFORMATION:")
	require.Contains(t, chat.lastMsgs[1].Content, "QUESTION: When do classes start?")
}

func TestGenerateDefaultSampling(t *testing.T) {
	chat := &fakeCompleter{answer: "ok"}
	svc := NewGeneratorService(chat)
	_, err := svc.Generate(context.Background(), generalDomain(), "q", nil, GenerateOptions{})
	require.NoError(t, err)
	require.NotNil(t, chat.lastParams)
	require.NotNil(t, chat.lastParams.Temperature)
	require.Equal(t, 0.7, *chat.lastParams.Temperature)
}

func TestGenerateHistoryCappedAtTen(t *testing.T) {
	chat := &fakeCompleter{answer: "ok"}
	svc := NewGeneratorService(chat)
	history := make([]model.ConversationTurn, 0, 14)
	for i := 0; i < 14; i++ {
		history = append(history, model.ConversationTurn{Role: "user", Content: fmt.Sprintf("turn %d", i)})
	}
	_, err := svc.Generate(context.Background(), generalDomain(), "q", []string{"ctx"}, GenerateOptions{History: history})
	require.NoError(t, err)

	user := chat.lastMsgs[1].Content
	require.Contains(t, user, "=== Conversation History ===")
	require.Contains(t, user, "the previous one")
	require.NotContains(t, user, "turn 3")
	require.Contains(t, user, "turn 4")
	require.Contains(t, user, "turn 13")
	// history precedes the retrieved context
	require.Less(t, strings.Index(user, "=== Conversation History ==="), strings.Index(user, "THÔNG TIN THAM KHẢO:"))
}

func TestGenerateNoHistoryBlock(t *testing.T) {
	chat := &fakeCompleter{answer: "ok"}
	svc := NewGeneratorService(chat)
	_, err := svc.Generate(context.Background(), generalDomain(), "q", []string{"ctx"}, GenerateOptions{})
	require.NoError(t, err)
	require.NotContains(t, chat.lastMsgs[1].Content, "Conversation History")
}

func TestStreamDeltasAndErrorMarker(t *testing.T) {
	chat := &fakeCompleter{chunks: []ai.StreamChunk{
		{Delta: "Học phí "},
		{Delta: "là 500.000 đồng."},
		{Err: fmt.Errorf("connection reset")},
	}}
	svc := NewGeneratorService(chat)
	stream, err := svc.Stream(context.Background(), generalDomain(), "q", []string{"ctx"}, GenerateOptions{})
	require.NoError(t, err)

	var parts []string
	for delta := range stream {
		parts = append(parts, delta)
	}
	require.Len(t, parts, 3)
	require.Equal(t, "Học phí ", parts[0])
	require.Equal(t, "[ERROR: connection reset]", parts[2])
}

func TestStreamOpenFailure(t *testing.T) {
	chat := &fakeCompleter{err: fmt.Errorf("no provider")}
	svc := NewGeneratorService(chat)
	_, err := svc.Stream(context.Background(), generalDomain(), "q", nil, GenerateOptions{})
	require.Error(t, err)
}
