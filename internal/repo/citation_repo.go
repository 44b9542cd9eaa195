package repo

import (
	"context"
	"database/sql"

	"github.com/leafmind/studypal/internal/model"
)

type CitationRepo struct {
	db *sql.DB
}

func NewCitationRepo(db *sql.DB) *CitationRepo {
	return &CitationRepo{db: db}
}

// Save inserts one citation row. The (message_id, chunk_id) unique constraint
// backs up the service-level dedup, so a duplicate is a no-op rather than an
// error.
func (r *CitationRepo) Save(ctx context.Context, messageID string, chunkID int64, documentID string, score float64, snippet string) error {
	const query = `
		INSERT INTO chat_message_sources (message_id, chunk_id, document_id, similarity_score, snippet)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (message_id, chunk_id) DO NOTHING
	`
	_, err := r.db.ExecContext(ctx, query, messageID, chunkID, documentID, score, snippet)
	return err
}

func (r *CitationRepo) ListByMessage(ctx context.Context, messageID string) ([]model.SourceCitation, error) {
	const query = `
		SELECT id, message_id, chunk_id, document_id, similarity_score, snippet
		FROM chat_message_sources
		WHERE message_id = $1
		ORDER BY similarity_score DESC, id ASC
	`
	rows, err := r.db.QueryContext(ctx, query, messageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var citations []model.SourceCitation
	for rows.Next() {
		var c model.SourceCitation
		var snippet sql.NullString
		if err := rows.Scan(&c.ID, &c.MessageID, &c.ChunkID, &c.DocumentID, &c.Score, &snippet); err != nil {
			return nil, err
		}
		c.Snippet = snippet.String
		citations = append(citations, c)
	}
	return citations, rows.Err()
}
