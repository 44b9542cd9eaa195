package repo

import (
	"context"
	"database/sql"
	"math"

	"github.com/pgvector/pgvector-go"

	"github.com/leafmind/studypal/internal/model"
)

const (
	DocumentStateNormal  = 1
	DocumentStateDeleted = 2
)

type ChunkRepo struct {
	db *sql.DB
}

func NewChunkRepo(db *sql.DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

// SearchSimilar runs the cosine similarity search over the caller's chunks.
// Both sides of the document join are scoped to userID, soft-deleted
// documents are skipped, and only chunks from each document's current
// ingestion are visible; rows from superseded re-ingestions never surface.
// Results come back ordered by ascending distance (ties by chunk id) and the
// reported score is 1 - distance, rounded to 6 decimals.
func (r *ChunkRepo) SearchSimilar(ctx context.Context, userID string, queryVec []float32, topK int) ([]model.RetrievedChunk, error) {
	const query = `
		SELECT c.id, c.document_id, c.content, d.title, d.source_type, d.filename,
		       c.embedding <=> $1 AS distance
		FROM chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE c.user_id = $2
		  AND d.user_id = $2
		  AND d.state = $3
		  AND d.current_ingestion_id IS NOT NULL
		  AND c.ingestion_id = d.current_ingestion_id
		ORDER BY distance ASC, c.id ASC
		LIMIT $4
	`
	rows, err := r.db.QueryContext(ctx, query, pgvector.NewVector(queryVec), userID, DocumentStateNormal, topK)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []model.RetrievedChunk
	for rows.Next() {
		var item model.RetrievedChunk
		var filename sql.NullString
		var distance float64
		if err := rows.Scan(&item.ChunkID, &item.DocumentID, &item.Snippet, &item.DocumentTitle, &item.SourceType, &filename, &distance); err != nil {
			return nil, err
		}
		item.Filename = filename.String
		item.Score = math.Round((1-distance)*1e6) / 1e6
		results = append(results, item)
	}
	return results, rows.Err()
}

// SaveChunk exists for the ingestion collaborator and test fixtures; the
// answering pipeline itself never writes chunk rows.
func (r *ChunkRepo) SaveChunk(ctx context.Context, chunk *model.Chunk) (int64, error) {
	const query = `
		INSERT INTO chunks (document_id, user_id, ingestion_id, content, embedding)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	var id int64
	err := r.db.QueryRowContext(ctx, query,
		chunk.DocumentID,
		chunk.UserID,
		chunk.IngestionID,
		chunk.Content,
		pgvector.NewVector(chunk.Embedding),
	).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}
