package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/unichat-ai/unichat/internal/ai"
	"github.com/unichat-ai/unichat/internal/model"
	"github.com/unichat-ai/unichat/internal/vectorindex"
)

type countingCompleter struct {
	fakeCompleter
	completions int
}

func (c *countingCompleter) Complete(ctx context.Context, msgs []ai.Message, params *ai.SamplingParams) (string, error) {
	c.completions++
	return c.fakeCompleter.Complete(ctx, msgs, params)
}

func answerFixture(answer string) (*AnswerService, *fakeIndex, *countingCompleter) {
	index := &fakeIndex{
		hits: []vectorindex.Hit{
			{ChunkID: "c1", Score: 0.9},
			{ChunkID: "c2", Score: 0.8},
		},
	}
	chunks := &fakeChunkStore{chunks: map[string]*model.Chunk{
		"c1": {ID: "c1", DocumentID: "d1", Text: "học phí là 500000 đồng mỗi tín chỉ"},
		"c2": {ID: "c2", DocumentID: "d1", Text: "miễn giảm học phí cho sinh viên khó khăn"},
	}}
	docs := &fakeDocStore{docs: map[string]*model.Document{
		"d1": {ID: "d1", Title: "Biểu học phí"},
	}}
	embedder := &fakeQueryEmbedder{vector: []float32{1, 0, 0}}
	chat := &countingCompleter{fakeCompleter: fakeCompleter{answer: answer}}
	svc := NewAnswerService(
		NewRouterService(),
		NewRetrieverService(index, embedder, chunks, docs),
		NewGeneratorService(chat),
		16, time.Minute,
	)
	return svc, index, chat
}

func TestAnswerPipeline(t *testing.T) {
	svc, index, chat := answerFixture("Học phí là 500000 đồng mỗi tín chỉ.")
	res, err := svc.Answer(context.Background(), "Học phí một tín chỉ bao nhiêu?", AnswerOptions{})
	require.NoError(t, err)
	require.Equal(t, DomainTuition, res.Domain)
	require.Equal(t, "uni_tuition", res.Namespace)
	require.Len(t, res.Citations, 2)
	// tuition postprocess reformats currency and appends the disclaimer
	require.Contains(t, res.Answer, "500.000 đồng")
	require.Contains(t, res.Answer, "Lưu ý: Học phí có thể thay đổi")
	// retrieval was scoped to the routed domain
	require.Equal(t, "uni_tuition", index.lastOpts.Namespace)
	// retrieved chunk text reached the prompt
	require.Contains(t, chat.lastMsgs[1].Content, "500000 đồng mỗi tín chỉ")
}

func TestAnswerNoResults(t *testing.T) {
	svc, index, chat := answerFixture("unused")
	index.hits = nil
	res, err := svc.Answer(context.Background(), "Học phí bao nhiêu?", AnswerOptions{})
	require.NoError(t, err)
	require.Contains(t, res.Answer, "không tìm thấy thông tin về học phí")
	require.Empty(t, res.Citations)
	require.Equal(t, DomainTuition, res.Domain)
	require.Zero(t, chat.completions)
}

func TestAnswerCacheHit(t *testing.T) {
	svc, _, chat := answerFixture("trả lời")
	_, err := svc.Answer(context.Background(), "Học phí bao nhiêu?", AnswerOptions{})
	require.NoError(t, err)
	res, err := svc.Answer(context.Background(), "Học phí bao nhiêu?", AnswerOptions{})
	require.NoError(t, err)
	require.Equal(t, 1, chat.completions)
	require.Equal(t, DomainTuition, res.Domain)
}

func TestAnswerCacheKeyedByRetrievalOptions(t *testing.T) {
	svc, _, chat := answerFixture("trả lời")
	_, err := svc.Answer(context.Background(), "Học phí bao nhiêu?", AnswerOptions{TopK: 3})
	require.NoError(t, err)
	// same question with different knobs must not reuse the cached answer
	_, err = svc.Answer(context.Background(), "Học phí bao nhiêu?", AnswerOptions{TopK: 8})
	require.NoError(t, err)
	_, err = svc.Answer(context.Background(), "Học phí bao nhiêu?", AnswerOptions{TopK: 3, TokenBudget: 500})
	require.NoError(t, err)
	require.Equal(t, 3, chat.completions)
}

func TestAnswerCacheSkippedWithHistory(t *testing.T) {
	svc, _, chat := answerFixture("trả lời")
	history := []model.ConversationTurn{{Role: "user", Content: "trước đó"}}
	_, err := svc.Answer(context.Background(), "Học phí bao nhiêu?", AnswerOptions{History: history})
	require.NoError(t, err)
	_, err = svc.Answer(context.Background(), "Học phí bao nhiêu?", AnswerOptions{History: history})
	require.NoError(t, err)
	require.Equal(t, 2, chat.completions)
}

func TestAnswerForcedDomain(t *testing.T) {
	svc, index, _ := answerFixture("trả lời")
	res, err := svc.Answer(context.Background(), "Học phí bao nhiêu?", AnswerOptions{Domain: DomainRegulation})
	require.NoError(t, err)
	require.Equal(t, DomainRegulation, res.Domain)
	require.Equal(t, "uni_regulations", index.lastOpts.Namespace)
}

func TestAnswerUnknownForcedDomain(t *testing.T) {
	svc, _, _ := answerFixture("trả lời")
	_, err := svc.Answer(context.Background(), "q", AnswerOptions{Domain: "finance"})
	require.Error(t, err)
}

func TestAnswerSurfacesGenerateFailure(t *testing.T) {
	svc, _, chat := answerFixture("")
	chat.err = fmt.Errorf("provider down")
	_, err := svc.Answer(context.Background(), "Học phí bao nhiêu?", AnswerOptions{})
	require.Error(t, err)
}

func TestAnswerStreamDeltas(t *testing.T) {
	svc, _, chat := answerFixture("")
	chat.chunks = []ai.StreamChunk{{Delta: "Học phí "}, {Delta: "là 500.000 đồng."}}
	stream, meta, err := svc.AnswerStream(context.Background(), "Học phí bao nhiêu?", AnswerOptions{})
	require.NoError(t, err)
	require.Equal(t, DomainTuition, meta.Domain)
	require.Len(t, meta.Citations, 2)

	var got string
	for delta := range stream {
		got += delta
	}
	require.Equal(t, "Học phí là 500.000 đồng.", got)
}

func TestAnswerStreamNoResults(t *testing.T) {
	svc, index, _ := answerFixture("")
	index.hits = nil
	stream, meta, err := svc.AnswerStream(context.Background(), "Học phí bao nhiêu?", AnswerOptions{})
	require.NoError(t, err)
	require.Empty(t, meta.Citations)

	var msgs []string
	for delta := range stream {
		msgs = append(msgs, delta)
	}
	require.Len(t, msgs, 1)
	require.Contains(t, msgs[0], "không tìm thấy thông tin về học phí")
}
