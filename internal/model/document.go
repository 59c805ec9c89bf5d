package model

// Document is a source document in the knowledge base. It owns an ordered
// set of chunks; deleting a document cascades to its chunks and vectors.
type Document struct {
	ID        string            `json:"id"`
	SourceURI string            `json:"source_uri,omitempty"`
	Title     string            `json:"title"`
	Text      string            `json:"text,omitempty"`
	Category  string            `json:"category,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	SourceKey string            `json:"source_key,omitempty"`
	Ctime     int64             `json:"ctime"`
	Mtime     int64             `json:"mtime"`
}

// Chunk is a bounded span of a document's text, the unit of embedding and
// retrieval. Idx is zero-based and gapless within a document.
type Chunk struct {
	ID         string `json:"id"`
	DocumentID string `json:"document_id"`
	Idx        int    `json:"idx"`
	Text       string `json:"text"`
	Tokens     int    `json:"tokens"`
	Ctime      int64  `json:"ctime"`
}
