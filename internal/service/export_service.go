package service

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"

	"github.com/leafmind/studypal/internal/model"
)

// ExportService renders a session transcript as standalone HTML so students
// can keep a copy of a tutoring exchange outside the app.
type ExportService struct {
	chats *ChatService
}

func NewExportService(chats *ChatService) *ExportService {
	return &ExportService{chats: chats}
}

func (s *ExportService) ExportSessionHTML(ctx context.Context, userID, sessionID string) (string, error) {
	session, err := s.chats.sessions.GetByID(ctx, userID, sessionID)
	if err != nil {
		return "", err
	}
	messages, err := s.chats.GetMessages(ctx, userID, sessionID)
	if err != nil {
		return "", err
	}
	markdown := buildTranscript(session, messages)
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("render transcript: %w", err)
	}
	return buf.String(), nil
}

func buildTranscript(session *model.ChatSession, messages []model.ChatMessage) string {
	var sb strings.Builder
	sb.WriteString("# ")
	sb.WriteString(session.Title)
	sb.WriteString("\n")
	for _, msg := range messages {
		switch msg.Role {
		case model.RoleUser:
			sb.WriteString("\n## Student\n\n")
		case model.RoleAssistant:
			sb.WriteString("\n## Tutor\n\n")
		default:
			continue
		}
		sb.WriteString(msg.Content)
		sb.WriteString("\n")
		if msg.Role == model.RoleAssistant && msg.ModelUsed != "" {
			sb.WriteString(fmt.Sprintf("\n*Answered by %s*\n", msg.ModelUsed))
		}
		if len(msg.Sources) > 0 {
			sb.WriteString("\nSources:\n\n")
			for i, src := range msg.Sources {
				sb.WriteString(fmt.Sprintf("%d. chunk %d of document %s (score %.4f)\n", i+1, src.ChunkID, src.DocumentID, src.Score))
			}
		}
	}
	return sb.String()
}
