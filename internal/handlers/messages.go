package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"chat-realtime/internal/middleware"
	"chat-realtime/internal/models"
)

// MessageService is the message ledger the handlers expose.
type MessageService interface {
	Append(ctx context.Context, sender models.User, roomID int, body string, rawType string) (models.Message, error)
	Edit(ctx context.Context, editor models.User, messageID int, body string) (models.Message, error)
	SoftDelete(ctx context.Context, editor models.User, messageID int) (models.Message, error)
	MarkSeen(ctx context.Context, viewerID int, messageID int) (models.MessageStatusChanged, error)
	ListForRoom(ctx context.Context, viewerID int, roomID int, limit int, beforeID int) ([]models.Message, error)
}

// MessageHandler serves message endpoints.
type MessageHandler struct {
	ledger MessageService
}

// NewMessageHandler builds a MessageHandler.
func NewMessageHandler(ledger MessageService) *MessageHandler {
	return &MessageHandler{ledger: ledger}
}

// Register mounts the message routes.
func (h *MessageHandler) Register(r gin.IRouter) {
	r.GET("/rooms/:room_id/messages", h.ListMessages)
	r.POST("/rooms/:room_id/messages", h.PostMessage)
	r.PATCH("/messages/:message_id", h.EditMessage)
	r.DELETE("/messages/:message_id", h.DeleteMessage)
	r.PATCH("/messages/:message_id/seen", h.MarkSeen)
}

// ListMessages handles GET /rooms/:room_id/messages.
func (h *MessageHandler) ListMessages(c *gin.Context) {
	roomID, ok := intParam(c, "room_id")
	if !ok {
		return
	}
	limit, ok := optionalInt(c, "limit")
	if !ok {
		return
	}
	before, ok := optionalInt(c, "before")
	if !ok {
		return
	}

	msgs, err := h.ledger.ListForRoom(c.Request.Context(), c.GetInt(middleware.UserIDKey), roomID, limit, before)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

func optionalInt(c *gin.Context, name string) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return v, true
}

// PostMessage handles POST /rooms/:room_id/messages.
func (h *MessageHandler) PostMessage(c *gin.Context) {
	roomID, ok := intParam(c, "room_id")
	if !ok {
		return
	}
	var req struct {
		Body string `json:"body"`
		Type string `json:"type"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.ledger.Append(c.Request.Context(), middleware.CurrentUser(c), roomID, req.Body, req.Type)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": msg})
}

// EditMessage handles PATCH /messages/:message_id.
func (h *MessageHandler) EditMessage(c *gin.Context) {
	messageID, ok := intParam(c, "message_id")
	if !ok {
		return
	}
	var req struct {
		Body string `json:"body"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.ledger.Edit(c.Request.Context(), middleware.CurrentUser(c), messageID, req.Body)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

// DeleteMessage handles DELETE /messages/:message_id.
func (h *MessageHandler) DeleteMessage(c *gin.Context) {
	messageID, ok := intParam(c, "message_id")
	if !ok {
		return
	}
	msg, err := h.ledger.SoftDelete(c.Request.Context(), middleware.CurrentUser(c), messageID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

// MarkSeen handles PATCH /messages/:message_id/seen.
func (h *MessageHandler) MarkSeen(c *gin.Context) {
	messageID, ok := intParam(c, "message_id")
	if !ok {
		return
	}
	status, err := h.ledger.MarkSeen(c.Request.Context(), c.GetInt(middleware.UserIDKey), messageID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}
