package service

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/unichat-ai/unichat/internal/chunk"
	"github.com/unichat-ai/unichat/internal/model"
	appErr "github.com/unichat-ai/unichat/internal/pkg/errors"
)

type memDocWriter struct {
	docs      map[string]*model.Document
	createErr error
	updateErr error
}

func newMemDocWriter() *memDocWriter {
	return &memDocWriter{docs: map[string]*model.Document{}}
}

func (m *memDocWriter) Create(ctx context.Context, doc *model.Document) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.docs[doc.ID] = doc
	return nil
}

func (m *memDocWriter) Update(ctx context.Context, doc *model.Document) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	if _, ok := m.docs[doc.ID]; !ok {
		return appErr.ErrNotFound
	}
	m.docs[doc.ID] = doc
	return nil
}

func (m *memDocWriter) GetByID(ctx context.Context, docID string) (*model.Document, error) {
	doc, ok := m.docs[docID]
	if !ok {
		return nil, appErr.ErrNotFound
	}
	return doc, nil
}

func (m *memDocWriter) Delete(ctx context.Context, docID string) error {
	if _, ok := m.docs[docID]; !ok {
		return appErr.ErrNotFound
	}
	delete(m.docs, docID)
	return nil
}

type memChunkWriter struct {
	byDoc     map[string][]*model.Chunk
	createErr error
	deleteErr error
}

func newMemChunkWriter() *memChunkWriter {
	return &memChunkWriter{byDoc: map[string][]*model.Chunk{}}
}

func (m *memChunkWriter) BatchCreate(ctx context.Context, chunks []*model.Chunk) error {
	if m.createErr != nil {
		return m.createErr
	}
	for _, c := range chunks {
		m.byDoc[c.DocumentID] = append(m.byDoc[c.DocumentID], c)
	}
	return nil
}

func (m *memChunkWriter) ListByDocument(ctx context.Context, docID string) ([]*model.Chunk, error) {
	return m.byDoc[docID], nil
}

func (m *memChunkWriter) DeleteByDocument(ctx context.Context, docID string) (int64, error) {
	if m.deleteErr != nil {
		return 0, m.deleteErr
	}
	n := int64(len(m.byDoc[docID]))
	delete(m.byDoc, docID)
	return n, nil
}

type stubBatchEmbedder struct {
	calls int
	err   error
}

func (s *stubBatchEmbedder) EmbedBatch(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(i), 1}
	}
	return out, nil
}

func ingestFixture() (*IngestService, *memDocWriter, *memChunkWriter, *fakeIndex, *stubBatchEmbedder) {
	docs := newMemDocWriter()
	chunks := newMemChunkWriter()
	index := &fakeIndex{}
	embedder := &stubBatchEmbedder{}
	svc := NewIngestService(docs, chunks, index, embedder, nil)
	return svc, docs, chunks, index, embedder
}

func ingestText() string {
	return strings.Repeat("Nội dung tài liệu về học phí. ", 30)
}

func TestIngestHappyPath(t *testing.T) {
	svc, docs, chunks, index, embedder := ingestFixture()
	res, err := svc.Ingest(context.Background(), &IngestRequest{
		Title:     "Học phí 2025",
		Text:      ingestText(),
		Category:  "tuition",
		Namespace: "uni_tuition",
		Metadata:  map[string]string{"academic_year": "2025-2026"},
		Chunk:     chunk.Config{Size: 200, Overlap: 20, Strategy: chunk.StrategyFixed},
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.DocumentID)
	require.Greater(t, res.ChunkCount, 1)

	stored := docs.docs[res.DocumentID]
	require.NotNil(t, stored)
	require.Equal(t, "uni_tuition", stored.Metadata["namespace"])

	persisted := chunks.byDoc[res.DocumentID]
	require.Len(t, persisted, res.ChunkCount)
	for i, c := range persisted {
		require.Equal(t, i, c.Idx)
		require.Greater(t, c.Tokens, 0)
	}

	require.Len(t, index.upserted, res.ChunkCount)
	record := index.upserted[0]
	require.Equal(t, "uni_tuition", record.Namespace)
	require.True(t, record.Active)
	require.Equal(t, res.DocumentID, record.Payload["document_id"])
	require.Equal(t, "tuition", record.Payload["category"])
	require.Equal(t, "2025-2026", record.Payload["academic_year"])
	require.Equal(t, record.ChunkID, record.PointID)
	require.Equal(t, 1, embedder.calls)
}

func TestIngestEmptyTextRejected(t *testing.T) {
	svc, _, _, _, _ := ingestFixture()
	_, err := svc.Ingest(context.Background(), &IngestRequest{Text: "  \n "})
	require.ErrorIs(t, err, appErr.ErrInvalid)
}

func TestIngestSurfacesEmbedFailure(t *testing.T) {
	svc, docs, chunks, index, embedder := ingestFixture()
	embedder.err = fmt.Errorf("quota exhausted: %w", appErr.ErrRateLimited)
	_, err := svc.Ingest(context.Background(), &IngestRequest{Text: ingestText()})
	require.ErrorIs(t, err, appErr.ErrRateLimited)
	// chunks are persisted before the embed step; only vectors are missing
	require.Len(t, chunks.byDoc, 1)
	require.Len(t, docs.docs, 1)
	require.Empty(t, index.upserted)
}

func TestIngestPersistsChunksBeforeEmbedding(t *testing.T) {
	docs := newMemDocWriter()
	chunks := newMemChunkWriter()
	embedder := &stubBatchEmbedder{}
	svc := NewIngestService(docs, chunks, &fakeIndex{}, &orderCheckEmbedder{inner: embedder, chunks: chunks}, nil)
	_, err := svc.Ingest(context.Background(), &IngestRequest{Text: ingestText()})
	require.NoError(t, err)
}

// orderCheckEmbedder fails unless chunk rows already exist when the
// embed call arrives.
type orderCheckEmbedder struct {
	inner  *stubBatchEmbedder
	chunks *memChunkWriter
}

func (o *orderCheckEmbedder) EmbedBatch(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	if len(o.chunks.byDoc) == 0 {
		return nil, fmt.Errorf("embed called before chunks were persisted")
	}
	return o.inner.EmbedBatch(ctx, texts, taskType)
}

func TestIngestSurfacesUpsertFailure(t *testing.T) {
	svc, _, _, index, _ := ingestFixture()
	index.upsertErr = fmt.Errorf("qdrant down: %w", appErr.ErrUnavailable)
	_, err := svc.Ingest(context.Background(), &IngestRequest{Text: ingestText()})
	require.ErrorIs(t, err, appErr.ErrUnavailable)
}

func TestReindexReplacesChunksAndVectors(t *testing.T) {
	svc, _, chunks, index, _ := ingestFixture()
	res, err := svc.Ingest(context.Background(), &IngestRequest{
		Text:      ingestText(),
		Namespace: "uni_tuition",
		Chunk:     chunk.Config{Size: 200, Strategy: chunk.StrategyFixed},
	})
	require.NoError(t, err)
	oldChunks := append([]*model.Chunk(nil), chunks.byDoc[res.DocumentID]...)

	reindexed, err := svc.Reindex(context.Background(), &ReindexRequest{
		DocumentID: res.DocumentID,
		Chunk:      chunk.Config{Size: 100, Strategy: chunk.StrategyFixed},
	})
	require.NoError(t, err)
	require.Equal(t, res.ChunkCount, reindexed.OldChunkCount)
	require.Greater(t, reindexed.NewChunkCount, reindexed.OldChunkCount)
	require.Len(t, reindexed.OldVectorIDs, reindexed.OldChunkCount)
	require.Len(t, reindexed.NewVectorIDs, reindexed.NewChunkCount)

	// old vectors were removed from the index
	require.Equal(t, reindexed.OldVectorIDs, index.deleted)
	// new chunks carry fresh ids
	for _, old := range oldChunks {
		for _, c := range chunks.byDoc[res.DocumentID] {
			require.NotEqual(t, old.ID, c.ID)
		}
	}
	// namespace survives the reindex
	for _, record := range index.upserted[res.ChunkCount:] {
		require.Equal(t, "uni_tuition", record.Namespace)
	}
}

func TestReindexUnknownDocument(t *testing.T) {
	svc, _, _, _, _ := ingestFixture()
	_, err := svc.Reindex(context.Background(), &ReindexRequest{DocumentID: "missing"})
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestReindexInconsistentOnRebuildFailure(t *testing.T) {
	svc, _, chunks, _, embedder := ingestFixture()
	res, err := svc.Ingest(context.Background(), &IngestRequest{Text: ingestText()})
	require.NoError(t, err)

	embedder.err = fmt.Errorf("provider down")
	_, err = svc.Reindex(context.Background(), &ReindexRequest{DocumentID: res.DocumentID})
	require.ErrorIs(t, err, appErr.ErrInconsistent)
	// fresh chunks are in place but carry no vectors until a retry
	require.NotEmpty(t, chunks.byDoc[res.DocumentID])
}

func TestDeleteDocumentRemovesVectors(t *testing.T) {
	svc, docs, _, index, _ := ingestFixture()
	res, err := svc.Ingest(context.Background(), &IngestRequest{Text: ingestText()})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteDocument(context.Background(), res.DocumentID))
	require.NotContains(t, docs.docs, res.DocumentID)
	require.Len(t, index.deleted, res.ChunkCount)
}

type memSourceStore struct {
	texts   map[string]string
	saveErr error
}

func newMemSourceStore() *memSourceStore {
	return &memSourceStore{texts: map[string]string{}}
}

func (m *memSourceStore) Save(ctx context.Context, key string, text string) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.texts[key] = text
	return nil
}

func (m *memSourceStore) Fetch(ctx context.Context, key string) (string, error) {
	text, ok := m.texts[key]
	if !ok {
		return "", fmt.Errorf("source %s: %w", key, appErr.ErrNotFound)
	}
	return text, nil
}

func TestIngestRetainsSource(t *testing.T) {
	docs := newMemDocWriter()
	chunks := newMemChunkWriter()
	source := newMemSourceStore()
	svc := NewIngestService(docs, chunks, &fakeIndex{}, &stubBatchEmbedder{}, source)

	res, err := svc.Ingest(context.Background(), &IngestRequest{
		Text:      ingestText(),
		SourceKey: "hoc-phi-2025.txt",
	})
	require.NoError(t, err)
	require.Equal(t, ingestText(), source.texts["hoc-phi-2025.txt"])
	require.Equal(t, "hoc-phi-2025.txt", docs.docs[res.DocumentID].SourceKey)
}

func TestReindexFetchesFromSourceKey(t *testing.T) {
	docs := newMemDocWriter()
	chunks := newMemChunkWriter()
	source := newMemSourceStore()
	svc := NewIngestService(docs, chunks, &fakeIndex{}, &stubBatchEmbedder{}, source)

	res, err := svc.Ingest(context.Background(), &IngestRequest{
		Text:      ingestText(),
		SourceKey: "quy-che.txt",
	})
	require.NoError(t, err)

	// simulate the inline copy being trimmed; reindex must fall back to the key
	docs.docs[res.DocumentID].Text = ""
	reindexed, err := svc.Reindex(context.Background(), &ReindexRequest{DocumentID: res.DocumentID})
	require.NoError(t, err)
	require.Greater(t, reindexed.NewChunkCount, 1)
}
