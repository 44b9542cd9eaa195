package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/leafmind/studypal/internal/model"
	"github.com/leafmind/studypal/internal/pkg/dbutil"
)

var messageColumns = []string{"id", "session_id", "user_id", "role", "content", "model_used", "router_json", "ctime"}

type MessageRepo struct {
	db *sql.DB
}

func NewMessageRepo(db *sql.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

func (r *MessageRepo) Create(ctx context.Context, msg *model.ChatMessage) error {
	data := map[string]interface{}{
		"id":          msg.ID,
		"session_id":  msg.SessionID,
		"user_id":     msg.UserID,
		"role":        msg.Role,
		"content":     msg.Content,
		"model_used":  nullIfEmpty(msg.ModelUsed),
		"router_json": nullIfEmpty(msg.RouterJSON),
		"ctime":       msg.Ctime,
	}
	sqlStr, args, err := builder.BuildInsert("chat_messages", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

// ListBySession returns all messages in chronological order.
func (r *MessageRepo) ListBySession(ctx context.Context, userID, sessionID string) ([]model.ChatMessage, error) {
	where := map[string]interface{}{
		"session_id": sessionID,
		"user_id":    userID,
		"_orderby":   "ctime asc, id asc",
	}
	return r.list(ctx, where)
}

// ListRecent returns up to limit of the newest messages, newest first. The
// caller reverses them when building prompt history.
func (r *MessageRepo) ListRecent(ctx context.Context, userID, sessionID string, limit uint) ([]model.ChatMessage, error) {
	where := map[string]interface{}{
		"session_id": sessionID,
		"user_id":    userID,
		"_orderby":   "ctime desc, id desc",
		"_limit":     []uint{0, limit},
	}
	return r.list(ctx, where)
}

func (r *MessageRepo) list(ctx context.Context, where map[string]interface{}) ([]model.ChatMessage, error) {
	sqlStr, args, err := builder.BuildSelect("chat_messages", where, messageColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var messages []model.ChatMessage
	for rows.Next() {
		var msg model.ChatMessage
		var modelUsed, routerJSON sql.NullString
		if err := rows.Scan(&msg.ID, &msg.SessionID, &msg.UserID, &msg.Role, &msg.Content, &modelUsed, &routerJSON, &msg.Ctime); err != nil {
			return nil, err
		}
		msg.ModelUsed = modelUsed.String
		msg.RouterJSON = routerJSON.String
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
