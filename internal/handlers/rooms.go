package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"chat-realtime/internal/middleware"
	"chat-realtime/internal/models"
)

// RoomService is the room lifecycle the handlers expose.
type RoomService interface {
	Summary(ctx context.Context, roomID int, viewerID int) (models.RoomSummary, error)
	ListRooms(ctx context.Context, viewerID int) ([]models.RoomSummary, error)
	CreateDirect(ctx context.Context, requester models.User, targetID int) (models.DirectRequestResult, error)
	ListDirectRequests(ctx context.Context, viewerID int) ([]models.PendingRequest, error)
	RespondDirect(ctx context.Context, viewer models.User, roomID int, action models.ReviewAction) (*models.RoomSummary, error)
	CreateGroup(ctx context.Context, creator models.User, name string, memberIDs []int) (models.RoomSummary, error)
	RequestJoinGroup(ctx context.Context, user models.User, roomID int) (models.MembershipStatus, error)
	ListGroupRequests(ctx context.Context, adminID int) ([]models.PendingRequest, error)
	RespondGroupJoin(ctx context.Context, admin models.User, roomID int, userID int, action models.ReviewAction) error
	DeleteGroup(ctx context.Context, creator models.User, roomID int) error
}

// RoomHandler serves room and membership endpoints.
type RoomHandler struct {
	rooms RoomService
}

// NewRoomHandler builds a RoomHandler.
func NewRoomHandler(rooms RoomService) *RoomHandler {
	return &RoomHandler{rooms: rooms}
}

// Register mounts the room routes.
func (h *RoomHandler) Register(r gin.IRouter) {
	r.GET("/rooms", h.ListRooms)
	r.GET("/rooms/:room_id", h.GetRoom)
	r.POST("/rooms/direct", h.CreateDirect)
	r.GET("/rooms/direct/requests", h.ListDirectRequests)
	r.PATCH("/rooms/direct/requests/:room_id", h.RespondDirect)
	r.POST("/rooms/group", h.CreateGroup)
	r.POST("/rooms/:room_id/join-request", h.RequestJoin)
	r.GET("/rooms/group/requests", h.ListGroupRequests)
	r.PATCH("/rooms/group/:room_id/requests/:user_id", h.RespondGroupJoin)
	r.DELETE("/rooms/group/:room_id", h.DeleteGroup)
}

// ListRooms handles GET /rooms.
func (h *RoomHandler) ListRooms(c *gin.Context) {
	rooms, err := h.rooms.ListRooms(c.Request.Context(), c.GetInt(middleware.UserIDKey))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rooms": rooms})
}

// GetRoom handles GET /rooms/:room_id.
func (h *RoomHandler) GetRoom(c *gin.Context) {
	roomID, ok := intParam(c, "room_id")
	if !ok {
		return
	}
	room, err := h.rooms.Summary(c.Request.Context(), roomID, c.GetInt(middleware.UserIDKey))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"room": room})
}

// CreateDirect handles POST /rooms/direct.
func (h *RoomHandler) CreateDirect(c *gin.Context) {
	var req struct {
		TargetUserID int `json:"target_user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.rooms.CreateDirect(c.Request.Context(), middleware.CurrentUser(c), req.TargetUserID)
	if err != nil {
		writeError(c, err)
		return
	}
	if result.RequestPending {
		c.JSON(http.StatusAccepted, result)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ListDirectRequests handles GET /rooms/direct/requests.
func (h *RoomHandler) ListDirectRequests(c *gin.Context) {
	requests, err := h.rooms.ListDirectRequests(c.Request.Context(), c.GetInt(middleware.UserIDKey))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": requests})
}

type reviewRequest struct {
	Action string `json:"action" binding:"required"`
}

func (r reviewRequest) action() models.ReviewAction {
	return models.ReviewAction(strings.ToUpper(strings.TrimSpace(r.Action)))
}

// RespondDirect handles PATCH /rooms/direct/requests/:room_id.
func (h *RoomHandler) RespondDirect(c *gin.Context) {
	roomID, ok := intParam(c, "room_id")
	if !ok {
		return
	}
	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	room, err := h.rooms.RespondDirect(c.Request.Context(), middleware.CurrentUser(c), roomID, req.action())
	if err != nil {
		writeError(c, err)
		return
	}
	resp := gin.H{"room_id": roomID, "status": req.action()}
	if room != nil {
		resp["room"] = room
	}
	c.JSON(http.StatusOK, resp)
}

// CreateGroup handles POST /rooms/group.
func (h *RoomHandler) CreateGroup(c *gin.Context) {
	var req struct {
		Name      string `json:"name"`
		MemberIDs []int  `json:"member_ids"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	room, err := h.rooms.CreateGroup(c.Request.Context(), middleware.CurrentUser(c), req.Name, req.MemberIDs)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"room": room})
}

// RequestJoin handles POST /rooms/:room_id/join-request.
func (h *RoomHandler) RequestJoin(c *gin.Context) {
	roomID, ok := intParam(c, "room_id")
	if !ok {
		return
	}
	status, err := h.rooms.RequestJoinGroup(c.Request.Context(), middleware.CurrentUser(c), roomID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"room_id": roomID, "status": status})
}

// ListGroupRequests handles GET /rooms/group/requests.
func (h *RoomHandler) ListGroupRequests(c *gin.Context) {
	requests, err := h.rooms.ListGroupRequests(c.Request.Context(), c.GetInt(middleware.UserIDKey))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": requests})
}

// RespondGroupJoin handles PATCH /rooms/group/:room_id/requests/:user_id.
func (h *RoomHandler) RespondGroupJoin(c *gin.Context) {
	roomID, ok := intParam(c, "room_id")
	if !ok {
		return
	}
	userID, ok := intParam(c, "user_id")
	if !ok {
		return
	}
	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.rooms.RespondGroupJoin(c.Request.Context(), middleware.CurrentUser(c), roomID, userID, req.action()); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"room_id": roomID, "user_id": userID, "status": req.action()})
}

// DeleteGroup handles DELETE /rooms/group/:room_id.
func (h *RoomHandler) DeleteGroup(c *gin.Context) {
	roomID, ok := intParam(c, "room_id")
	if !ok {
		return
	}
	if err := h.rooms.DeleteGroup(c.Request.Context(), middleware.CurrentUser(c), roomID); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
