package model

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type ChatSession struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	Title  string `json:"title"`
	Ctime  int64  `json:"ctime"`
	Mtime  int64  `json:"mtime"`
}

type ChatMessage struct {
	ID         string `json:"id"`
	SessionID  string `json:"session_id"`
	UserID     string `json:"user_id"`
	Role       string `json:"role"`
	Content    string `json:"content"`
	ModelUsed  string `json:"model_used,omitempty"`
	RouterJSON string `json:"router_json,omitempty"`
	Ctime      int64  `json:"ctime"`

	Sources []SourceCitation `json:"sources,omitempty"`
}

// SourceCitation links an assistant message back to the chunk it was grounded
// on. At most one row per (message, chunk) pair.
type SourceCitation struct {
	ID         int64   `json:"id"`
	MessageID  string  `json:"message_id"`
	ChunkID    int64   `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	Score      float64 `json:"score"`
	Snippet    string  `json:"snippet,omitempty"`
}
