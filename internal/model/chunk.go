package model

const (
	SourceTypeUpload = "upload"
	SourceTypeText   = "text"
)

// Document and Chunk rows are written by the ingestion pipeline; this service
// only reads them for retrieval.
type Document struct {
	ID                 string `json:"id"`
	UserID             string `json:"user_id"`
	Title              string `json:"title"`
	SourceType         string `json:"source_type"`
	Filename           string `json:"filename,omitempty"`
	State              int    `json:"state"`
	CurrentIngestionID string `json:"current_ingestion_id,omitempty"`
	Ctime              int64  `json:"ctime"`
	Mtime              int64  `json:"mtime"`
}

type Chunk struct {
	ID          int64     `json:"id"`
	DocumentID  string    `json:"document_id"`
	UserID      string    `json:"user_id"`
	IngestionID string    `json:"ingestion_id"`
	Content     string    `json:"content"`
	Embedding   []float32 `json:"embedding"`
}

// RetrievedChunk is the per-query retrieval result; it is never persisted.
type RetrievedChunk struct {
	ChunkID       int64   `json:"chunk_id"`
	DocumentID    string  `json:"document_id"`
	Snippet       string  `json:"snippet"`
	Score         float64 `json:"score"`
	DocumentTitle string  `json:"document_title"`
	SourceType    string  `json:"source_type"`
	Filename      string  `json:"filename,omitempty"`
}
