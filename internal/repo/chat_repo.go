package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/leafmind/studypal/internal/model"
	"github.com/leafmind/studypal/internal/pkg/dbutil"
	appErr "github.com/leafmind/studypal/internal/pkg/errors"
)

var chatColumns = []string{"id", "user_id", "title", "ctime", "mtime"}

type ChatRepo struct {
	db *sql.DB
}

func NewChatRepo(db *sql.DB) *ChatRepo {
	return &ChatRepo{db: db}
}

func (r *ChatRepo) Create(ctx context.Context, session *model.ChatSession) error {
	data := map[string]interface{}{
		"id":      session.ID,
		"user_id": session.UserID,
		"title":   session.Title,
		"ctime":   session.Ctime,
		"mtime":   session.Mtime,
	}
	sqlStr, args, err := builder.BuildInsert("chats", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

// GetByID scopes by owner; a session belonging to someone else is
// indistinguishable from a missing one.
func (r *ChatRepo) GetByID(ctx context.Context, userID, sessionID string) (*model.ChatSession, error) {
	where := map[string]interface{}{
		"id":      sessionID,
		"user_id": userID,
	}
	sqlStr, args, err := builder.BuildSelect("chats", where, chatColumns)
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
	var session model.ChatSession
	if err := rows.Scan(&session.ID, &session.UserID, &session.Title, &session.Ctime, &session.Mtime); err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *ChatRepo) ListByUser(ctx context.Context, userID string) ([]model.ChatSession, error) {
	where := map[string]interface{}{
		"user_id":  userID,
		"_orderby": "mtime desc",
	}
	sqlStr, args, err := builder.BuildSelect("chats", where, chatColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var sessions []model.ChatSession
	for rows.Next() {
		var session model.ChatSession
		if err := rows.Scan(&session.ID, &session.UserID, &session.Title, &session.Ctime, &session.Mtime); err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

func (r *ChatRepo) UpdateTitle(ctx context.Context, userID, sessionID, title string, mtime int64) error {
	where := map[string]interface{}{
		"id":      sessionID,
		"user_id": userID,
	}
	update := map[string]interface{}{
		"title": title,
		"mtime": mtime,
	}
	sqlStr, args, err := builder.BuildUpdate("chats", where, update)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

func (r *ChatRepo) Touch(ctx context.Context, userID, sessionID string, mtime int64) error {
	where := map[string]interface{}{
		"id":      sessionID,
		"user_id": userID,
	}
	update := map[string]interface{}{
		"mtime": mtime,
	}
	sqlStr, args, err := builder.BuildUpdate("chats", where, update)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *ChatRepo) Delete(ctx context.Context, userID, sessionID string) error {
	where := map[string]interface{}{
		"id":      sessionID,
		"user_id": userID,
	}
	sqlStr, args, err := builder.BuildDelete("chats", where)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}
