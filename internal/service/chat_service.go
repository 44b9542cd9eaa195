package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/leafmind/studypal/internal/model"
	appErr "github.com/leafmind/studypal/internal/pkg/errors"
)

const (
	defaultSessionTitle  = "New Chat"
	sessionTitleMaxRunes = 80
)

type sessionStore interface {
	Create(ctx context.Context, session *model.ChatSession) error
	GetByID(ctx context.Context, userID, sessionID string) (*model.ChatSession, error)
	ListByUser(ctx context.Context, userID string) ([]model.ChatSession, error)
	UpdateTitle(ctx context.Context, userID, sessionID, title string, mtime int64) error
	Touch(ctx context.Context, userID, sessionID string, mtime int64) error
	Delete(ctx context.Context, userID, sessionID string) error
}

type messageStore interface {
	Create(ctx context.Context, msg *model.ChatMessage) error
	ListBySession(ctx context.Context, userID, sessionID string) ([]model.ChatMessage, error)
	ListRecent(ctx context.Context, userID, sessionID string, limit uint) ([]model.ChatMessage, error)
}

type citationStore interface {
	Save(ctx context.Context, messageID string, chunkID int64, documentID string, score float64, snippet string) error
	ListByMessage(ctx context.Context, messageID string) ([]model.SourceCitation, error)
}

type messageRouter interface {
	Route(ctx context.Context, message string) model.RoutingDecision
}

type chunkRetriever interface {
	Retrieve(ctx context.Context, userID, queryText string, topK int) ([]model.RetrievedChunk, error)
}

type answerGenerator interface {
	GenerateAnswer(ctx context.Context, primaryModel string, chunks []model.RetrievedChunk, history []model.ChatMessage, question string) (*Answer, error)
}

// ChatService owns session/message lifecycle and composes the router,
// retriever and answer generator into the end-to-end message operation.
type ChatService struct {
	sessions      sessionStore
	messages      messageStore
	citations     citationStore
	router        messageRouter
	retriever     chunkRetriever
	answerer      answerGenerator
	historyTurns  int
	topK          int
	maxInputChars int
}

func NewChatService(
	sessions sessionStore,
	messages messageStore,
	citations citationStore,
	router messageRouter,
	retriever chunkRetriever,
	answerer answerGenerator,
	historyTurns int,
	topK int,
	maxInputChars int,
) *ChatService {
	if historyTurns <= 0 {
		historyTurns = 10
	}
	return &ChatService{
		sessions:      sessions,
		messages:      messages,
		citations:     citations,
		router:        router,
		retriever:     retriever,
		answerer:      answerer,
		historyTurns:  historyTurns,
		topK:          topK,
		maxInputChars: maxInputChars,
	}
}

// ChatExchange is the composed result of one answered message.
type ChatExchange struct {
	UserMessage      *model.ChatMessage    `json:"user_message"`
	AssistantMessage *model.ChatMessage    `json:"assistant_message"`
	Routing          model.RoutingDecision `json:"router"`
}

func (s *ChatService) CreateSession(ctx context.Context, userID, title string) (*model.ChatSession, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = defaultSessionTitle
	}
	now := time.Now().UnixMilli()
	session := &model.ChatSession{
		ID:     uuid.NewString(),
		UserID: userID,
		Title:  truncateRunes(title, 255),
		Ctime:  now,
		Mtime:  now,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *ChatService) ListSessions(ctx context.Context, userID string) ([]model.ChatSession, error) {
	return s.sessions.ListByUser(ctx, userID)
}

// DeleteSession removes a session; messages and citations go with it via
// cascade.
func (s *ChatService) DeleteSession(ctx context.Context, userID, sessionID string) error {
	return s.sessions.Delete(ctx, userID, sessionID)
}

// GetMessages returns a session's messages oldest-first, with citations
// attached to assistant messages.
func (s *ChatService) GetMessages(ctx context.Context, userID, sessionID string) ([]model.ChatMessage, error) {
	if _, err := s.sessions.GetByID(ctx, userID, sessionID); err != nil {
		return nil, err
	}
	messages, err := s.messages.ListBySession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	for i := range messages {
		if messages[i].Role != model.RoleAssistant {
			continue
		}
		sources, err := s.citations.ListByMessage(ctx, messages[i].ID)
		if err != nil {
			return nil, err
		}
		messages[i].Sources = sources
	}
	return messages, nil
}

// SendMessage runs the full pipeline for one user message. The user message
// is persisted before any provider call; if generation ultimately fails it
// stays persisted, so no input is silently lost.
func (s *ChatService) SendMessage(ctx context.Context, userID, sessionID, content string) (*ChatExchange, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, appErr.ErrInvalid
	}
	if s.maxInputChars > 0 && len(content) > s.maxInputChars {
		return nil, appErr.ErrInvalid
	}
	session, err := s.sessions.GetByID(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	logger := logutil.GetLogger(ctx).With(zap.String("user_id", userID), zap.String("session_id", sessionID))

	now := time.Now().UnixMilli()
	userMsg := &model.ChatMessage{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		UserID:    userID,
		Role:      model.RoleUser,
		Content:   content,
		Ctime:     now,
	}
	if err := s.messages.Create(ctx, userMsg); err != nil {
		return nil, err
	}

	decision := s.router.Route(ctx, content)
	logger.Debug("message routed",
		zap.String("category", decision.Category),
		zap.String("model", decision.Model),
		zap.String("stage", decision.Stage),
	)

	chunks, err := s.retriever.Retrieve(ctx, userID, content, s.topK)
	if err != nil {
		return nil, err
	}

	history, err := s.loadHistory(ctx, userID, sessionID, userMsg.ID)
	if err != nil {
		return nil, err
	}

	answer, err := s.answerer.GenerateAnswer(ctx, decision.Model, chunks, history, content)
	if err != nil {
		return nil, err
	}

	routerJSON, err := json.Marshal(decision)
	if err != nil {
		return nil, err
	}
	assistantMsg := &model.ChatMessage{
		ID:         uuid.NewString(),
		SessionID:  sessionID,
		UserID:     userID,
		Role:       model.RoleAssistant,
		Content:    answer.Text,
		ModelUsed:  answer.ModelUsed,
		RouterJSON: string(routerJSON),
		Ctime:      time.Now().UnixMilli(),
	}
	if err := s.messages.Create(ctx, assistantMsg); err != nil {
		return nil, err
	}

	assistantMsg.Sources = s.saveCitations(ctx, assistantMsg.ID, chunks)

	if session.Title == defaultSessionTitle {
		title := truncateRunes(content, sessionTitleMaxRunes)
		if err := s.sessions.UpdateTitle(ctx, userID, sessionID, title, time.Now().UnixMilli()); err != nil {
			logger.Warn("failed to set session title", zap.Error(err))
		}
	} else if err := s.sessions.Touch(ctx, userID, sessionID, time.Now().UnixMilli()); err != nil {
		logger.Warn("failed to touch session", zap.Error(err))
	}

	return &ChatExchange{
		UserMessage:      userMsg,
		AssistantMessage: assistantMsg,
		Routing:          decision,
	}, nil
}

// loadHistory returns the newest prior turns in chronological order, capped
// to the history window and excluding the message being answered.
func (s *ChatService) loadHistory(ctx context.Context, userID, sessionID, currentMsgID string) ([]model.ChatMessage, error) {
	limit := uint(s.historyTurns*2) + 1
	recent, err := s.messages.ListRecent(ctx, userID, sessionID, limit)
	if err != nil {
		return nil, err
	}
	history := make([]model.ChatMessage, 0, len(recent))
	for i := len(recent) - 1; i >= 0; i-- {
		if recent[i].ID == currentMsgID {
			continue
		}
		history = append(history, recent[i])
	}
	if max := s.historyTurns * 2; len(history) > max {
		history = history[len(history)-max:]
	}
	return history, nil
}

// saveCitations persists one citation per unique chunk. A chunk returned
// twice in a single answer is cited once.
func (s *ChatService) saveCitations(ctx context.Context, messageID string, chunks []model.RetrievedChunk) []model.SourceCitation {
	logger := logutil.GetLogger(ctx).With(zap.String("message_id", messageID))
	seen := make(map[int64]bool, len(chunks))
	citations := make([]model.SourceCitation, 0, len(chunks))
	for _, chunk := range chunks {
		if seen[chunk.ChunkID] {
			continue
		}
		seen[chunk.ChunkID] = true
		if err := s.citations.Save(ctx, messageID, chunk.ChunkID, chunk.DocumentID, chunk.Score, chunk.Snippet); err != nil {
			logger.Warn("failed to save citation", zap.Int64("chunk_id", chunk.ChunkID), zap.Error(err))
			continue
		}
		citations = append(citations, model.SourceCitation{
			MessageID:  messageID,
			ChunkID:    chunk.ChunkID,
			DocumentID: chunk.DocumentID,
			Score:      chunk.Score,
			Snippet:    chunk.Snippet,
		})
	}
	return citations
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
