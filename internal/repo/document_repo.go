package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/leafmind/studypal/internal/model"
	"github.com/leafmind/studypal/internal/pkg/dbutil"
	appErr "github.com/leafmind/studypal/internal/pkg/errors"
)

var documentColumns = []string{"id", "user_id", "title", "source_type", "filename", "state", "current_ingestion_id", "ctime", "mtime"}

// DocumentRepo is read-mostly: the ingestion pipeline owns document rows,
// this service only needs lookups (plus Create for test fixtures).
type DocumentRepo struct {
	db *sql.DB
}

func NewDocumentRepo(db *sql.DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

func (r *DocumentRepo) GetByID(ctx context.Context, userID, docID string) (*model.Document, error) {
	where := map[string]interface{}{
		"id":      docID,
		"user_id": userID,
		"state":   DocumentStateNormal,
	}
	sqlStr, args, err := builder.BuildSelect("documents", where, documentColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, appErr.ErrNotFound
	}
	doc, err := scanDocument(rows)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// GetCurrentIngestionID returns the document's current-ingestion pointer, or
// ("", nil) when the document has never completed an ingestion.
func (r *DocumentRepo) GetCurrentIngestionID(ctx context.Context, userID, docID string) (string, error) {
	doc, err := r.GetByID(ctx, userID, docID)
	if err != nil {
		return "", err
	}
	return doc.CurrentIngestionID, nil
}

func (r *DocumentRepo) Create(ctx context.Context, doc *model.Document) error {
	data := map[string]interface{}{
		"id":                   doc.ID,
		"user_id":              doc.UserID,
		"title":                doc.Title,
		"source_type":          doc.SourceType,
		"filename":             nullIfEmpty(doc.Filename),
		"state":                doc.State,
		"current_ingestion_id": nullIfEmpty(doc.CurrentIngestionID),
		"ctime":                doc.Ctime,
		"mtime":                doc.Mtime,
	}
	sqlStr, args, err := builder.BuildInsert("documents", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func scanDocument(rows *sql.Rows) (*model.Document, error) {
	var doc model.Document
	var filename, ingestionID sql.NullString
	if err := rows.Scan(&doc.ID, &doc.UserID, &doc.Title, &doc.SourceType, &filename, &doc.State, &ingestionID, &doc.Ctime, &doc.Mtime); err != nil {
		return nil, err
	}
	doc.Filename = filename.String
	doc.CurrentIngestionID = ingestionID.String
	return &doc, nil
}
