package model

// RetrievalHit is an ephemeral per-query result: a scored chunk plus its
// hydrated parent document. Never persisted.
type RetrievalHit struct {
	ChunkID  string    `json:"chunk_id"`
	Score    float32   `json:"score"`
	Chunk    *Chunk    `json:"chunk,omitempty"`
	Document *Document `json:"doc,omitempty"`
}

// ConversationTurn is one prior message supplied by the caller. The core
// consumes but never persists conversation history.
type ConversationTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// IngestResult reports a completed document ingestion.
type IngestResult struct {
	DocumentID string `json:"document_id"`
	ChunkCount int    `json:"chunk_count"`
}

// AnswerResult is the outcome of the answer pipeline.
type AnswerResult struct {
	Answer    string         `json:"answer"`
	Citations []RetrievalHit `json:"citations"`
	Domain    string         `json:"domain"`
	Namespace string         `json:"namespace"`
}

// ReindexResult reports a completed re-index of a single document.
type ReindexResult struct {
	DocumentID    string   `json:"document_id"`
	OldChunkCount int      `json:"old_chunk_count"`
	NewChunkCount int      `json:"new_chunk_count"`
	OldVectorIDs  []string `json:"old_vector_ids"`
	NewVectorIDs  []string `json:"new_vector_ids"`
	ProcessingMs  int64    `json:"processing_ms"`
}
