package handler_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/xxxsen/common/webapi"

	"github.com/leafmind/studypal/internal/ai"
	"github.com/leafmind/studypal/internal/config"
	"github.com/leafmind/studypal/internal/handler"
	"github.com/leafmind/studypal/internal/middleware"
	"github.com/leafmind/studypal/internal/pkg/jwt"
	"github.com/leafmind/studypal/internal/repo"
	"github.com/leafmind/studypal/internal/service"
	"github.com/leafmind/studypal/test/testutil"
)

var testJWTSecret = []byte("test-secret")

// stubProvider answers every generate call with canned text and embeds
// everything to the same vector, so pipeline tests stay deterministic.
type stubProvider struct {
	answer string
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) Generate(ctx context.Context, model string, prompt string) (string, error) {
	return s.answer, nil
}

func (s *stubProvider) Embed(ctx context.Context, model string, text string, taskType string) ([]float32, error) {
	vec := make([]float32, 1536)
	vec[0] = 1
	return vec, nil
}

func setupRouter(t *testing.T) (http.Handler, func()) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, cleanup := testutil.OpenTestDB(t)
	chatRepo := repo.NewChatRepo(db)
	messageRepo := repo.NewMessageRepo(db)
	citationRepo := repo.NewCitationRepo(db)
	chunkRepo := repo.NewChunkRepo(db)

	dispatcher := ai.NewDispatcher()
	dispatcher.Add("stub", &stubProvider{answer: "stub answer"})

	policy := config.RouterPolicy{
		GeneralModel:   "stub/general",
		ReasoningModel: "stub/reasoning",
		CodingModel:    "stub/coding",
		ClassifyModel:  "stub/classify",
	}
	embedder := ai.WrapTruncation(ai.NewEmbedder(dispatcher, "stub/embed"), 1536)

	retrievalService := service.NewRetrievalService(embedder, chunkRepo, 5)
	routerService := service.NewRouterService(ai.NewGenerator(dispatcher, policy.ClassifyModel), policy)
	answerService := service.NewAnswerService(dispatcher, []string{"stub/general"}, 10, time.Second)
	chatService := service.NewChatService(chatRepo, messageRepo, citationRepo, routerService, retrievalService, answerService, 10, 5, 4000)
	exportService := service.NewExportService(chatService)

	deps := handler.RouterDeps{
		Chat:      handler.NewChatHandler(chatService, exportService),
		JWTSecret: testJWTSecret,
	}

	engine, err := webapi.NewEngine(
		"/api/v1",
		"",
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(nil),
		),
	)
	require.NoError(t, err)

	return engine, cleanup
}

func issueToken(t *testing.T, userID string) string {
	t.Helper()
	token, err := jwt.GenerateToken(userID, userID+"@example.com", testJWTSecret, time.Hour)
	require.NoError(t, err)
	return token
}
