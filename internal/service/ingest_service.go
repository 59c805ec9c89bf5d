package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/unichat-ai/unichat/internal/chunk"
	"github.com/unichat-ai/unichat/internal/model"
	appErr "github.com/unichat-ai/unichat/internal/pkg/errors"
	"github.com/unichat-ai/unichat/internal/vectorindex"
)

type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string, taskType string) ([][]float32, error)
}

type DocumentWriter interface {
	Create(ctx context.Context, doc *model.Document) error
	Update(ctx context.Context, doc *model.Document) error
	GetByID(ctx context.Context, docID string) (*model.Document, error)
	Delete(ctx context.Context, docID string) error
}

type ChunkWriter interface {
	BatchCreate(ctx context.Context, chunks []*model.Chunk) error
	ListByDocument(ctx context.Context, docID string) ([]*model.Chunk, error)
	DeleteByDocument(ctx context.Context, docID string) (int64, error)
}

// SourceStore retains raw document text by storage key so reindex can
// re-read a source even when the inline copy was trimmed.
type SourceStore interface {
	Save(ctx context.Context, key string, text string) error
	Fetch(ctx context.Context, key string) (string, error)
}

type IngestRequest struct {
	Title     string
	Text      string
	SourceURI string
	SourceKey string
	Category  string
	Namespace string
	Metadata  map[string]string
	Chunk     chunk.Config
}

type ReindexRequest struct {
	DocumentID string
	// Text overrides the stored source; empty means re-use it.
	Text  string
	Chunk chunk.Config
}

// IngestService owns the write path: document in, chunks and vectors out.
// Chunking parameters are per call, never service state.
type IngestService struct {
	docs     DocumentWriter
	chunks   ChunkWriter
	index    vectorindex.Index
	embedder BatchEmbedder
	source   SourceStore
}

func NewIngestService(docs DocumentWriter, chunks ChunkWriter, index vectorindex.Index, embedder BatchEmbedder, source SourceStore) *IngestService {
	return &IngestService{
		docs:     docs,
		chunks:   chunks,
		index:    index,
		embedder: embedder,
		source:   source,
	}
}

// Ingest runs chunk, persist, embed, upsert in that order. Any failure
// surfaces to the caller; a document whose embedding step failed keeps
// its chunks and can be completed with a reindex.
func (s *IngestService) Ingest(ctx context.Context, req *IngestRequest) (*model.IngestResult, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, fmt.Errorf("document text is empty: %w", appErr.ErrInvalid)
	}
	now := nowFunc().Unix()
	metadata := req.Metadata
	if req.Namespace != "" {
		if metadata == nil {
			metadata = map[string]string{}
		}
		// remember the namespace so reindex lands in the same one
		metadata["namespace"] = req.Namespace
	}
	doc := &model.Document{
		ID:        newID(),
		SourceURI: req.SourceURI,
		SourceKey: req.SourceKey,
		Title:     req.Title,
		Text:      req.Text,
		Category:  req.Category,
		Metadata:  metadata,
		Ctime:     now,
		Mtime:     now,
	}
	if err := s.docs.Create(ctx, doc); err != nil {
		return nil, err
	}
	if req.SourceKey != "" && s.source != nil {
		if err := s.source.Save(ctx, req.SourceKey, req.Text); err != nil {
			// the inline copy still serves reads; only reindex-by-key suffers
			logutil.GetLogger(ctx).Warn("retain source failed",
				zap.String("document_id", doc.ID),
				zap.String("source_key", req.SourceKey),
				zap.Error(err),
			)
		}
	}
	chunks, err := s.cutChunks(ctx, doc.ID, req.Text, req.Chunk)
	if err != nil {
		return nil, err
	}
	if err := s.chunks.BatchCreate(ctx, chunks); err != nil {
		return nil, err
	}
	records, err := s.embedRecords(ctx, doc, chunks, req.Namespace)
	if err != nil {
		return nil, err
	}
	if err := s.index.Upsert(ctx, records); err != nil {
		return nil, err
	}
	logutil.GetLogger(ctx).Info("document ingested",
		zap.String("document_id", doc.ID),
		zap.String("namespace", req.Namespace),
		zap.Int("chunks", len(chunks)),
	)
	return &model.IngestResult{DocumentID: doc.ID, ChunkCount: len(chunks)}, nil
}

// Reindex replaces a document's chunks and vectors with a fresh cut. Old
// data is removed first; if the rebuild then fails, the document is left
// without vectors and ErrInconsistent is returned so the caller knows a
// retry is needed.
func (s *IngestService) Reindex(ctx context.Context, req *ReindexRequest) (*model.ReindexResult, error) {
	start := nowFunc()
	doc, err := s.docs.GetByID(ctx, req.DocumentID)
	if err != nil {
		return nil, err
	}
	text, err := s.resolveText(ctx, doc, req.Text)
	if err != nil {
		return nil, err
	}
	oldChunks, err := s.chunks.ListByDocument(ctx, doc.ID)
	if err != nil {
		return nil, err
	}
	oldVectorIDs := make([]string, 0, len(oldChunks))
	for _, old := range oldChunks {
		oldVectorIDs = append(oldVectorIDs, old.ID)
	}
	namespace := namespaceOf(doc)

	if err := s.index.Delete(ctx, oldVectorIDs); err != nil {
		return nil, err
	}
	if _, err := s.chunks.DeleteByDocument(ctx, doc.ID); err != nil {
		return nil, fmt.Errorf("old vectors removed but chunk cleanup failed: %v: %w", err, appErr.ErrInconsistent)
	}

	if req.Text != "" {
		doc.Text = req.Text
	}
	doc.Mtime = nowFunc().Unix()
	if err := s.docs.Update(ctx, doc); err != nil {
		return nil, fmt.Errorf("old index removed but document update failed: %v: %w", err, appErr.ErrInconsistent)
	}

	newChunks, err := s.cutChunks(ctx, doc.ID, text, req.Chunk)
	if err != nil {
		return nil, fmt.Errorf("old index removed but rebuild failed: %v: %w", err, appErr.ErrInconsistent)
	}
	if err := s.chunks.BatchCreate(ctx, newChunks); err != nil {
		return nil, fmt.Errorf("old index removed but chunk insert failed: %v: %w", err, appErr.ErrInconsistent)
	}
	records, err := s.embedRecords(ctx, doc, newChunks, namespace)
	if err != nil {
		return nil, fmt.Errorf("old index removed but embedding failed: %v: %w", err, appErr.ErrInconsistent)
	}
	if err := s.index.Upsert(ctx, records); err != nil {
		return nil, fmt.Errorf("old index removed but vector upsert failed: %v: %w", err, appErr.ErrInconsistent)
	}

	newVectorIDs := make([]string, 0, len(newChunks))
	for _, c := range newChunks {
		newVectorIDs = append(newVectorIDs, c.ID)
	}
	logutil.GetLogger(ctx).Info("document reindexed",
		zap.String("document_id", doc.ID),
		zap.Int("old_chunks", len(oldChunks)),
		zap.Int("new_chunks", len(newChunks)),
	)
	return &model.ReindexResult{
		DocumentID:    doc.ID,
		OldChunkCount: len(oldChunks),
		NewChunkCount: len(newChunks),
		OldVectorIDs:  oldVectorIDs,
		NewVectorIDs:  newVectorIDs,
		ProcessingMs:  nowFunc().Sub(start).Milliseconds(),
	}, nil
}

// DeleteDocument removes the document, its chunks and its vectors.
func (s *IngestService) DeleteDocument(ctx context.Context, docID string) error {
	oldChunks, err := s.chunks.ListByDocument(ctx, docID)
	if err != nil {
		return err
	}
	vectorIDs := make([]string, 0, len(oldChunks))
	for _, c := range oldChunks {
		vectorIDs = append(vectorIDs, c.ID)
	}
	if err := s.index.Delete(ctx, vectorIDs); err != nil {
		return err
	}
	// chunks cascade with the document row
	return s.docs.Delete(ctx, docID)
}

func (s *IngestService) cutChunks(ctx context.Context, docID, text string, cfg chunk.Config) ([]*model.Chunk, error) {
	pieces := chunk.Split(ctx, text, cfg)
	if len(pieces) == 0 {
		return nil, fmt.Errorf("no chunks produced: %w", appErr.ErrInvalid)
	}
	now := nowFunc().Unix()
	chunks := make([]*model.Chunk, 0, len(pieces))
	for i, piece := range pieces {
		chunks = append(chunks, &model.Chunk{
			ID:         newID(),
			DocumentID: docID,
			Idx:        i,
			Text:       piece,
			Tokens:     chunk.EstimateTokens(piece),
			Ctime:      now,
		})
	}
	return chunks, nil
}

func (s *IngestService) embedRecords(ctx context.Context, doc *model.Document, chunks []*model.Chunk, namespace string) ([]*model.VectorRecord, error) {
	texts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		texts = append(texts, c.Text)
	}
	vectors, err := s.embedder.EmbedBatch(ctx, texts, taskTypeDocument)
	if err != nil {
		return nil, err
	}
	now := nowFunc().Unix()
	records := make([]*model.VectorRecord, 0, len(chunks))
	for i, c := range chunks {
		payload := map[string]string{
			"document_id": doc.ID,
		}
		if doc.Category != "" {
			payload["category"] = doc.Category
		}
		for key, value := range doc.Metadata {
			payload[key] = value
		}
		records = append(records, &model.VectorRecord{
			PointID:   c.ID,
			ChunkID:   c.ID,
			Namespace: namespace,
			Embedding: vectors[i],
			Active:    true,
			Payload:   payload,
			Ctime:     now,
		})
	}
	return records, nil
}

func (s *IngestService) resolveText(ctx context.Context, doc *model.Document, override string) (string, error) {
	if strings.TrimSpace(override) != "" {
		return override, nil
	}
	if strings.TrimSpace(doc.Text) != "" {
		return doc.Text, nil
	}
	if doc.SourceKey != "" && s.source != nil {
		return s.source.Fetch(ctx, doc.SourceKey)
	}
	return "", fmt.Errorf("document %s has no source text: %w", doc.ID, appErr.ErrInvalid)
}

// namespaceOf recovers the namespace a document was indexed under;
// documents ingested without one fall back to the category.
func namespaceOf(doc *model.Document) string {
	if ns, ok := doc.Metadata["namespace"]; ok {
		return ns
	}
	return doc.Category
}
