package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/leafmind/studypal/internal/pkg/errcode"
	"github.com/leafmind/studypal/internal/pkg/response"
	"github.com/leafmind/studypal/internal/service"
)

type ChatHandler struct {
	chats  *service.ChatService
	export *service.ExportService
}

func NewChatHandler(chats *service.ChatService, export *service.ExportService) *ChatHandler {
	return &ChatHandler{chats: chats, export: export}
}

type createSessionRequest struct {
	Title string `json:"title"`
}

type sendMessageRequest struct {
	Content string `json:"content"`
}

func (h *ChatHandler) CreateSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	session, err := h.chats.CreateSession(c.Request.Context(), getUserID(c), req.Title)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, session)
}

func (h *ChatHandler) ListSessions(c *gin.Context) {
	sessions, err := h.chats.ListSessions(c.Request.Context(), getUserID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"sessions": sessions})
}

func (h *ChatHandler) DeleteSession(c *gin.Context) {
	if err := h.chats.DeleteSession(c.Request.Context(), getUserID(c), c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, nil)
}

func (h *ChatHandler) GetMessages(c *gin.Context) {
	messages, err := h.chats.GetMessages(c.Request.Context(), getUserID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"messages": messages})
}

// SendMessage is the end-to-end answer operation: route, retrieve, generate,
// persist, cite.
func (h *ChatHandler) SendMessage(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	exchange, err := h.chats.SendMessage(c.Request.Context(), getUserID(c), c.Param("id"), req.Content)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, exchange)
}

func (h *ChatHandler) ExportSession(c *gin.Context) {
	html, err := h.export.ExportSessionHTML(c.Request.Context(), getUserID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
}
