package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/leafmind/studypal/internal/middleware"
)

type RouterDeps struct {
	Chat              *ChatHandler
	JWTSecret         []byte
	MessageRateWindow time.Duration
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	authGroup := api.Group("")
	authGroup.Use(middleware.JWTAuth(deps.JWTSecret))

	authGroup.POST("/chat/sessions", deps.Chat.CreateSession)
	authGroup.GET("/chat/sessions", deps.Chat.ListSessions)
	authGroup.DELETE("/chat/sessions/:id", deps.Chat.DeleteSession)
	authGroup.GET("/chat/sessions/:id/messages", deps.Chat.GetMessages)
	authGroup.POST("/chat/sessions/:id/messages",
		middleware.RateLimit(deps.MessageRateWindow),
		deps.Chat.SendMessage,
	)
	authGroup.GET("/chat/sessions/:id/export", deps.Chat.ExportSession)
}
