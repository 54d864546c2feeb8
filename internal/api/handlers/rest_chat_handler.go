package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"homelet/api/internal/services"
)

// RestChatHandler handles REST requests for chats and their messages.
type RestChatHandler struct {
	chatService services.IChatService
}

// NewRestChatHandler creates a new RestChatHandler.
func NewRestChatHandler(chatService services.IChatService) *RestChatHandler {
	return &RestChatHandler{chatService: chatService}
}

// StartChatRequest is the body of POST /v1/chats.
type StartChatRequest struct {
	UserID     int64  `json:"user_id" binding:"required,gt=0"`
	PropertyID *int64 `json:"property_id" binding:"omitempty,gt=0"`
}

// SendMessageRequest is the body of POST /v1/chats/:id/messages.
type SendMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// StartChat handles POST /v1/chats. An existing chat answers 200, a new one 201.
func (h *RestChatHandler) StartChat(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req StartChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, bindingError(err))
		return
	}

	chat, created, err := h.chatService.StartChat(c.Request.Context(), p, req.UserID, req.PropertyID)
	if err != nil {
		sendError(c, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	sendData(c, status, chat)
}

// ListChats handles GET /v1/chats.
func (h *RestChatHandler) ListChats(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	chats, err := h.chatService.ListChats(c.Request.Context(), p)
	if err != nil {
		sendError(c, err)
		return
	}
	sendData(c, http.StatusOK, chats)
}

// ListMessages handles GET /v1/chats/:id/messages?limit=&before=
func (h *RestChatHandler) ListMessages(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	chatID, ok := pathID(c, "id")
	if !ok {
		return
	}
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}
	before, ok := queryInt(c, "before")
	if !ok {
		return
	}

	msgs, err := h.chatService.ListMessages(c.Request.Context(), p, chatID, before, int(limit))
	if err != nil {
		sendError(c, err)
		return
	}
	sendData(c, http.StatusOK, msgs)
}

// SendMessage handles POST /v1/chats/:id/messages.
func (h *RestChatHandler) SendMessage(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	chatID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, bindingError(err))
		return
	}

	msg, err := h.chatService.SendMessage(c.Request.Context(), p, chatID, req.Content)
	if err != nil {
		sendError(c, err)
		return
	}
	sendData(c, http.StatusCreated, msg)
}
