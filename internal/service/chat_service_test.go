package service

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/leafmind/studypal/internal/model"
	appErr "github.com/leafmind/studypal/internal/pkg/errors"
)

type fakeSessionStore struct {
	sessions     map[string]*model.ChatSession
	titleUpdates []string
	touches      int
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: make(map[string]*model.ChatSession)}
}

func (f *fakeSessionStore) Create(ctx context.Context, session *model.ChatSession) error {
	cp := *session
	f.sessions[session.ID] = &cp
	return nil
}

func (f *fakeSessionStore) GetByID(ctx context.Context, userID, sessionID string) (*model.ChatSession, error) {
	session, ok := f.sessions[sessionID]
	if !ok || session.UserID != userID {
		return nil, appErr.ErrNotFound
	}
	cp := *session
	return &cp, nil
}

func (f *fakeSessionStore) ListByUser(ctx context.Context, userID string) ([]model.ChatSession, error) {
	var out []model.ChatSession
	for _, session := range f.sessions {
		if session.UserID == userID {
			out = append(out, *session)
		}
	}
	return out, nil
}

func (f *fakeSessionStore) UpdateTitle(ctx context.Context, userID, sessionID, title string, mtime int64) error {
	f.titleUpdates = append(f.titleUpdates, title)
	if session, ok := f.sessions[sessionID]; ok && session.UserID == userID {
		session.Title = title
		session.Mtime = mtime
	}
	return nil
}

func (f *fakeSessionStore) Delete(ctx context.Context, userID, sessionID string) error {
	session, ok := f.sessions[sessionID]
	if !ok || session.UserID != userID {
		return appErr.ErrNotFound
	}
	delete(f.sessions, sessionID)
	return nil
}

func (f *fakeSessionStore) Touch(ctx context.Context, userID, sessionID string, mtime int64) error {
	f.touches++
	if session, ok := f.sessions[sessionID]; ok && session.UserID == userID {
		session.Mtime = mtime
	}
	return nil
}

type fakeMessageStore struct {
	messages []model.ChatMessage
}

func (f *fakeMessageStore) Create(ctx context.Context, msg *model.ChatMessage) error {
	f.messages = append(f.messages, *msg)
	return nil
}

func (f *fakeMessageStore) ListBySession(ctx context.Context, userID, sessionID string) ([]model.ChatMessage, error) {
	var out []model.ChatMessage
	for _, msg := range f.messages {
		if msg.UserID == userID && msg.SessionID == sessionID {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (f *fakeMessageStore) ListRecent(ctx context.Context, userID, sessionID string, limit uint) ([]model.ChatMessage, error) {
	all, _ := f.ListBySession(ctx, userID, sessionID)
	// newest first, as the real store returns
	var out []model.ChatMessage
	for i := len(all) - 1; i >= 0 && uint(len(out)) < limit; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

type fakeCitationStore struct {
	saved   []model.SourceCitation
	saveErr error
}

func (f *fakeCitationStore) Save(ctx context.Context, messageID string, chunkID int64, documentID string, score float64, snippet string) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, model.SourceCitation{
		MessageID:  messageID,
		ChunkID:    chunkID,
		DocumentID: documentID,
		Score:      score,
		Snippet:    snippet,
	})
	return nil
}

func (f *fakeCitationStore) ListByMessage(ctx context.Context, messageID string) ([]model.SourceCitation, error) {
	var out []model.SourceCitation
	for _, c := range f.saved {
		if c.MessageID == messageID {
			out = append(out, c)
		}
	}
	return out, nil
}

type fakeRouter struct {
	decision model.RoutingDecision
}

func (f *fakeRouter) Route(ctx context.Context, message string) model.RoutingDecision {
	return f.decision
}

type fakeRetriever struct {
	chunks []model.RetrievedChunk
	err    error
}

func (f *fakeRetriever) Retrieve(ctx context.Context, userID, queryText string, topK int) ([]model.RetrievedChunk, error) {
	return f.chunks, f.err
}

type fakeAnswerer struct {
	answer     *Answer
	err        error
	gotHistory []model.ChatMessage
	gotModel   string
}

func (f *fakeAnswerer) GenerateAnswer(ctx context.Context, primaryModel string, chunks []model.RetrievedChunk, history []model.ChatMessage, question string) (*Answer, error) {
	f.gotModel = primaryModel
	f.gotHistory = history
	return f.answer, f.err
}

type chatFixture struct {
	sessions  *fakeSessionStore
	messages  *fakeMessageStore
	citations *fakeCitationStore
	router    *fakeRouter
	retriever *fakeRetriever
	answerer  *fakeAnswerer
	svc       *ChatService
}

func newChatFixture() *chatFixture {
	f := &chatFixture{
		sessions:  newFakeSessionStore(),
		messages:  &fakeMessageStore{},
		citations: &fakeCitationStore{},
		router: &fakeRouter{decision: model.RoutingDecision{
			Category:   model.CategoryGeneral,
			Model:      "routeway/glm-4.5-air:free",
			Confidence: model.ConfidenceHigh,
			Stage:      model.StageHeuristics,
		}},
		retriever: &fakeRetriever{},
		answerer:  &fakeAnswerer{answer: &Answer{Text: "hi there", ModelUsed: "routeway/glm-4.5-air:free"}},
	}
	f.svc = NewChatService(f.sessions, f.messages, f.citations, f.router, f.retriever, f.answerer, 10, 5, 4000)
	return f
}

func TestCreateSessionDefaultsTitle(t *testing.T) {
	f := newChatFixture()

	session, err := f.svc.CreateSession(context.Background(), "user-1", "  ")
	require.NoError(t, err)
	require.Equal(t, "New Chat", session.Title)
	require.NotEmpty(t, session.ID)
	require.Equal(t, session.Ctime, session.Mtime)
}

func TestDeleteSessionScopedToOwner(t *testing.T) {
	f := newChatFixture()
	session, err := f.svc.CreateSession(context.Background(), "owner", "")
	require.NoError(t, err)

	require.ErrorIs(t, f.svc.DeleteSession(context.Background(), "intruder", session.ID), appErr.ErrNotFound)
	require.NoError(t, f.svc.DeleteSession(context.Background(), "owner", session.ID))
	_, err = f.svc.GetMessages(context.Background(), "owner", session.ID)
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestSendMessageRejectsEmptyAndOversized(t *testing.T) {
	f := newChatFixture()
	session, err := f.svc.CreateSession(context.Background(), "user-1", "")
	require.NoError(t, err)

	_, err = f.svc.SendMessage(context.Background(), "user-1", session.ID, "   ")
	require.ErrorIs(t, err, appErr.ErrInvalid)

	_, err = f.svc.SendMessage(context.Background(), "user-1", session.ID, strings.Repeat("a", 4001))
	require.ErrorIs(t, err, appErr.ErrInvalid)
	require.Empty(t, f.messages.messages)
}

func TestSendMessageRejectsForeignSession(t *testing.T) {
	f := newChatFixture()
	session, err := f.svc.CreateSession(context.Background(), "owner", "")
	require.NoError(t, err)

	_, err = f.svc.SendMessage(context.Background(), "intruder", session.ID, "hello")
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestSendMessagePersistsBothMessages(t *testing.T) {
	f := newChatFixture()
	session, err := f.svc.CreateSession(context.Background(), "user-1", "")
	require.NoError(t, err)

	exchange, err := f.svc.SendMessage(context.Background(), "user-1", session.ID, "what is entropy?")
	require.NoError(t, err)
	require.Equal(t, model.RoleUser, exchange.UserMessage.Role)
	require.Equal(t, model.RoleAssistant, exchange.AssistantMessage.Role)
	require.Equal(t, "hi there", exchange.AssistantMessage.Content)
	require.Equal(t, "routeway/glm-4.5-air:free", exchange.AssistantMessage.ModelUsed)
	require.Contains(t, exchange.AssistantMessage.RouterJSON, `"category":"general"`)
	require.Len(t, f.messages.messages, 2)
}

func TestSendMessageSetsTitleFromFirstMessage(t *testing.T) {
	f := newChatFixture()
	session, err := f.svc.CreateSession(context.Background(), "user-1", "")
	require.NoError(t, err)

	long := strings.Repeat("x", 100)
	_, err = f.svc.SendMessage(context.Background(), "user-1", session.ID, long)
	require.NoError(t, err)
	require.Len(t, f.sessions.titleUpdates, 1)
	require.Len(t, []rune(f.sessions.titleUpdates[0]), 80)

	// Second message keeps the derived title and only touches mtime.
	_, err = f.svc.SendMessage(context.Background(), "user-1", session.ID, "follow up")
	require.NoError(t, err)
	require.Len(t, f.sessions.titleUpdates, 1)
	require.Equal(t, 1, f.sessions.touches)
}

func TestSendMessageKeepsExplicitTitle(t *testing.T) {
	f := newChatFixture()
	session, err := f.svc.CreateSession(context.Background(), "user-1", "Physics Review")
	require.NoError(t, err)

	_, err = f.svc.SendMessage(context.Background(), "user-1", session.ID, "hello")
	require.NoError(t, err)
	require.Empty(t, f.sessions.titleUpdates)
	require.Equal(t, 1, f.sessions.touches)
}

func TestSendMessageDeduplicatesCitations(t *testing.T) {
	f := newChatFixture()
	f.retriever.chunks = []model.RetrievedChunk{
		{ChunkID: 7, DocumentID: "doc-1", Score: 0.91, Snippet: "a"},
		{ChunkID: 7, DocumentID: "doc-1", Score: 0.91, Snippet: "a"},
		{ChunkID: 8, DocumentID: "doc-1", Score: 0.83, Snippet: "b"},
	}
	session, err := f.svc.CreateSession(context.Background(), "user-1", "")
	require.NoError(t, err)

	exchange, err := f.svc.SendMessage(context.Background(), "user-1", session.ID, "question?")
	require.NoError(t, err)
	require.Len(t, exchange.AssistantMessage.Sources, 2)
	require.Len(t, f.citations.saved, 2)
	require.Equal(t, int64(7), f.citations.saved[0].ChunkID)
	require.Equal(t, int64(8), f.citations.saved[1].ChunkID)
}

func TestSendMessageRetrievalFailurePropagates(t *testing.T) {
	f := newChatFixture()
	f.retriever.err = fmt.Errorf("%w: embed query: boom", appErr.ErrUnavailable)
	session, err := f.svc.CreateSession(context.Background(), "user-1", "")
	require.NoError(t, err)

	_, err = f.svc.SendMessage(context.Background(), "user-1", session.ID, "question?")
	require.ErrorIs(t, err, appErr.ErrUnavailable)
	// The user message survives the failed turn.
	require.Len(t, f.messages.messages, 1)
	require.Equal(t, model.RoleUser, f.messages.messages[0].Role)
}

func TestSendMessageAnswerFailureKeepsUserMessage(t *testing.T) {
	f := newChatFixture()
	f.answerer.answer = nil
	f.answerer.err = fmt.Errorf("%w: all models failed: x", appErr.ErrUnavailable)
	session, err := f.svc.CreateSession(context.Background(), "user-1", "")
	require.NoError(t, err)

	_, err = f.svc.SendMessage(context.Background(), "user-1", session.ID, "question?")
	require.ErrorIs(t, err, appErr.ErrUnavailable)
	require.Len(t, f.messages.messages, 1)
	require.Empty(t, f.sessions.titleUpdates)
}

func TestSendMessageHistoryExcludesCurrentAndIsChronological(t *testing.T) {
	f := newChatFixture()
	session, err := f.svc.CreateSession(context.Background(), "user-1", "")
	require.NoError(t, err)

	_, err = f.svc.SendMessage(context.Background(), "user-1", session.ID, "first question")
	require.NoError(t, err)
	_, err = f.svc.SendMessage(context.Background(), "user-1", session.ID, "second question")
	require.NoError(t, err)

	history := f.answerer.gotHistory
	require.Len(t, history, 2)
	require.Equal(t, "first question", history[0].Content)
	require.Equal(t, model.RoleAssistant, history[1].Role)
	for _, msg := range history {
		require.NotEqual(t, "second question", msg.Content)
	}
}

func TestSendMessageUsesRoutedModel(t *testing.T) {
	f := newChatFixture()
	f.router.decision = model.RoutingDecision{
		Category:   model.CategoryCoding,
		Model:      "routeway/devstral-2512:free",
		Confidence: model.ConfidenceHigh,
		Stage:      model.StageHeuristics,
	}
	f.answerer.answer = &Answer{Text: "code answer", ModelUsed: "routeway/devstral-2512:free"}
	session, err := f.svc.CreateSession(context.Background(), "user-1", "")
	require.NoError(t, err)

	exchange, err := f.svc.SendMessage(context.Background(), "user-1", session.ID, "debug my function")
	require.NoError(t, err)
	require.Equal(t, "routeway/devstral-2512:free", f.answerer.gotModel)
	require.Equal(t, model.CategoryCoding, exchange.Routing.Category)
}

func TestGetMessagesAttachesCitations(t *testing.T) {
	f := newChatFixture()
	f.retriever.chunks = []model.RetrievedChunk{{ChunkID: 1, DocumentID: "doc-1", Score: 0.9, Snippet: "s"}}
	session, err := f.svc.CreateSession(context.Background(), "user-1", "")
	require.NoError(t, err)

	_, err = f.svc.SendMessage(context.Background(), "user-1", session.ID, "question?")
	require.NoError(t, err)

	messages, err := f.svc.GetMessages(context.Background(), "user-1", session.ID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	require.Empty(t, messages[0].Sources)
	require.Len(t, messages[1].Sources, 1)

	_, err = f.svc.GetMessages(context.Background(), "someone-else", session.ID)
	require.ErrorIs(t, err, appErr.ErrNotFound)
}
