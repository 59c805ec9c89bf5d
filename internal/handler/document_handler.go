package handler

import (
	"errors"
	"io"

	"github.com/gin-gonic/gin"

	"github.com/unichat-ai/unichat/internal/chunk"
	"github.com/unichat-ai/unichat/internal/model"
	"github.com/unichat-ai/unichat/internal/pkg/errcode"
	"github.com/unichat-ai/unichat/internal/pkg/response"
	"github.com/unichat-ai/unichat/internal/repo"
	"github.com/unichat-ai/unichat/internal/service"
)

type DocumentHandler struct {
	ingest       *service.IngestService
	docs         *repo.DocumentRepo
	chunks       *repo.ChunkRepo
	defaultChunk chunk.Config
}

func NewDocumentHandler(ingest *service.IngestService, docs *repo.DocumentRepo, chunks *repo.ChunkRepo, defaultChunk chunk.Config) *DocumentHandler {
	return &DocumentHandler{ingest: ingest, docs: docs, chunks: chunks, defaultChunk: defaultChunk}
}

type ingestRequest struct {
	Title     string            `json:"title"`
	Text      string            `json:"text"`
	SourceURI string            `json:"source_uri"`
	SourceKey string            `json:"source_key"`
	Category  string            `json:"category"`
	Namespace string            `json:"namespace"`
	Metadata  map[string]string `json:"metadata"`
	ChunkSize int               `json:"chunk_size"`
	Overlap   int               `json:"overlap"`
	Strategy  string            `json:"strategy"`
}

type reindexRequest struct {
	Text      string `json:"text"`
	ChunkSize int    `json:"chunk_size"`
	Overlap   int    `json:"overlap"`
	Strategy  string `json:"strategy"`
}

type documentItem struct {
	ID        string            `json:"id"`
	Title     string            `json:"title"`
	SourceURI string            `json:"source_uri"`
	Category  string            `json:"category"`
	Metadata  map[string]string `json:"metadata"`
	Ctime     int64             `json:"ctime"`
	Mtime     int64             `json:"mtime"`
}

func (h *DocumentHandler) chunkConfig(size, overlap int, strategy string) chunk.Config {
	cfg := h.defaultChunk
	if size > 0 {
		cfg.Size = size
	}
	if overlap > 0 {
		cfg.Overlap = overlap
	}
	if strategy != "" {
		cfg.Strategy = chunk.Strategy(strategy)
	}
	return cfg
}

func toDocumentItem(doc *model.Document) documentItem {
	return documentItem{
		ID:        doc.ID,
		Title:     doc.Title,
		SourceURI: doc.SourceURI,
		Category:  doc.Category,
		Metadata:  doc.Metadata,
		Ctime:     doc.Ctime,
		Mtime:     doc.Mtime,
	}
}

func (h *DocumentHandler) Ingest(c *gin.Context) {
	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	result, err := h.ingest.Ingest(c.Request.Context(), &service.IngestRequest{
		Title:     req.Title,
		Text:      req.Text,
		SourceURI: req.SourceURI,
		SourceKey: req.SourceKey,
		Category:  req.Category,
		Namespace: req.Namespace,
		Metadata:  req.Metadata,
		Chunk:     h.chunkConfig(req.ChunkSize, req.Overlap, req.Strategy),
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{
		"document_id": result.DocumentID,
		"chunk_count": result.ChunkCount,
	})
}

func (h *DocumentHandler) Reindex(c *gin.Context) {
	docID := c.Param("id")
	var req reindexRequest
	// an empty body means re-chunk with the stored text and defaults
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	result, err := h.ingest.Reindex(c.Request.Context(), &service.ReindexRequest{
		DocumentID: docID,
		Text:       req.Text,
		Chunk:      h.chunkConfig(req.ChunkSize, req.Overlap, req.Strategy),
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{
		"document_id":     result.DocumentID,
		"old_chunk_count": result.OldChunkCount,
		"new_chunk_count": result.NewChunkCount,
		"old_vector_ids":  result.OldVectorIDs,
		"new_vector_ids":  result.NewVectorIDs,
		"processing_ms":   result.ProcessingMs,
	})
}

func (h *DocumentHandler) Get(c *gin.Context) {
	docID := c.Param("id")
	doc, err := h.docs.GetByID(c.Request.Context(), docID)
	if err != nil {
		handleError(c, err)
		return
	}
	chunkCount, err := h.chunks.CountByDocument(c.Request.Context(), docID)
	if err != nil {
		handleError(c, err)
		return
	}
	item := toDocumentItem(doc)
	response.Success(c, gin.H{
		"document":    item,
		"text":        doc.Text,
		"chunk_count": chunkCount,
	})
}

func (h *DocumentHandler) List(c *gin.Context) {
	limit := intQuery(c, "limit", 20)
	offset := intQuery(c, "offset", 0)
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	category := c.Query("category")
	docs, err := h.docs.List(c.Request.Context(), category, limit, offset)
	if err != nil {
		handleError(c, err)
		return
	}
	total, err := h.docs.Count(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	items := make([]documentItem, 0, len(docs))
	for _, doc := range docs {
		items = append(items, toDocumentItem(doc))
	}
	response.Success(c, gin.H{
		"documents": items,
		"total":     total,
	})
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	docID := c.Param("id")
	if err := h.ingest.DeleteDocument(c.Request.Context(), docID); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": true})
}
