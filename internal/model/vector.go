package model

// VectorRecord is a stored embedding point. PointID is the index backend's
// own identity and may differ from ChunkID; Active implements soft delete.
type VectorRecord struct {
	PointID   string            `json:"point_id"`
	ChunkID   string            `json:"chunk_id"`
	Namespace string            `json:"namespace"`
	Embedding []float32         `json:"embedding,omitempty"`
	Active    bool              `json:"active"`
	Payload   map[string]string `json:"payload,omitempty"`
	Ctime     int64             `json:"ctime"`
}

// EmbeddingCache is a persisted embedding keyed by provider, model and the
// sha256 of the embedded text. Entries are advisory; a miss only costs
// latency.
type EmbeddingCache struct {
	Provider    string    `json:"provider"`
	ModelName   string    `json:"model_name"`
	TaskType    string    `json:"task_type"`
	ContentHash string    `json:"content_hash"`
	Embedding   []float32 `json:"embedding"`
	Ctime       int64     `json:"ctime"`
}
