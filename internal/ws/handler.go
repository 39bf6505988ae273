package ws

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"chat-realtime/internal/apperr"
	"chat-realtime/internal/auth"
	"chat-realtime/internal/models"
	"chat-realtime/internal/observability"
)

const opTimeout = 5 * time.Second

// Memberships answers which room channels a connection may join.
type Memberships interface {
	ListApprovedRoomIDs(ctx context.Context, userID int) ([]int, error)
	IsApprovedInActiveRoom(ctx context.Context, roomID int, userID int) (bool, error)
}

// Presence persists the online flag.
type Presence interface {
	SetOnline(ctx context.Context, userID int) error
	SetOffline(ctx context.Context, userID int) (time.Time, error)
}

// SeenMarker records read receipts arriving over the socket.
type SeenMarker interface {
	MarkSeen(ctx context.Context, viewerID int, messageID int) (models.MessageStatusChanged, error)
}

// Handler upgrades authenticated requests and runs the realtime protocol.
type Handler struct {
	hub           *Hub
	auth          auth.Authenticator
	members       Memberships
	presence      Presence
	seen          SeenMarker
	upgrader      websocket.Upgrader
	presenceLocks *userLocks
	log           *log.Logger
}

// NewHandler constructs a Handler. origins is the browser origin allow-list;
// empty or "*" allows every origin.
func NewHandler(hub *Hub, authenticator auth.Authenticator, members Memberships, presence Presence, seen SeenMarker, origins []string, l *log.Logger) *Handler {
	return &Handler{
		hub:      hub,
		auth:     authenticator,
		members:  members,
		presence: presence,
		seen:     seen,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(origins),
		},
		presenceLocks: newUserLocks(),
		log:           l,
	}
}

func originChecker(origins []string) func(*http.Request) bool {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		if o = strings.TrimSpace(o); o != "" {
			allowed[strings.TrimRight(o, "/")] = true
		}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if len(allowed) == 0 || allowed["*"] || origin == "" {
			return true
		}
		return allowed[strings.TrimRight(origin, "/")]
	}
}

func tokenFromRequest(r *http.Request) string {
	if token, ok := auth.BearerToken(r.Header.Get("Authorization")); ok {
		return token
	}
	return r.URL.Query().Get("token")
}

// Handle serves GET /ws.
func (h *Handler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("chat-realtime/ws").Start(c.Request.Context(), "ws.handshake", trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	user, err := h.auth.Authenticate(ctx, tokenFromRequest(c.Request))
	if err != nil {
		if apperr.Is(err, apperr.KindUnauthenticated) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		h.log.Printf("ws handshake auth failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	span.SetAttributes(attribute.Int("user.id", user.ID))

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Printf("ws upgrade failed user_id=%d: %v", user.ID, err)
		return
	}

	meta := observability.ClientMetaFromRequest(c.Request)
	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      user.ID,
		DeviceID:    meta.DeviceID,
		IP:          meta.IP,
		RequestID:   meta.RequestID,
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
	client := newClient(conn, user, info, h.log)
	h.connect(ctx, client)

	go client.writePump()
	go func() {
		reason := client.readPump(h.handleFrame)
		client.close(reason)
		h.disconnect(client, reason)
	}()
}

// connect and disconnect hold the user's presence lock so a reconnect racing a
// last-connection close always ends with the user online.
func (h *Handler) connect(ctx context.Context, c *Client) {
	unlock := h.presenceLocks.Lock(c.user.ID)
	defer unlock()

	h.hub.Register(c)

	roomIDs, err := h.members.ListApprovedRoomIDs(ctx, c.user.ID)
	if err != nil {
		h.log.Printf("load rooms failed user_id=%d: %v", c.user.ID, err)
	}
	for _, roomID := range roomIDs {
		h.hub.Subscribe(c, roomID)
	}

	if err := h.presence.SetOnline(ctx, c.user.ID); err != nil {
		h.log.Printf("set online failed user_id=%d: %v", c.user.ID, err)
	}
	h.hub.BroadcastExcept(c, models.PresenceOnline{UserID: c.user.ID})

	observability.IncWSActive()
	h.lifecycle(ctx, c, "ws_connect", "")
	h.log.Printf("ws connected conn_id=%s user_id=%d rooms=%d", c.info.ConnID, c.user.ID, len(roomIDs))
}

func (h *Handler) disconnect(c *Client, reason string) {
	unlock := h.presenceLocks.Lock(c.user.ID)
	defer unlock()

	remaining, removed := h.hub.Unregister(c)
	if !removed {
		return
	}
	observability.DecWSActive(time.Since(c.info.ConnectedAt))
	h.lifecycle(context.Background(), c, "ws_disconnect", reason)
	h.log.Printf("ws disconnected conn_id=%s user_id=%d reason=%q remaining=%d", c.info.ConnID, c.user.ID, reason, remaining)

	if remaining > 0 || h.hub.ConnectionCount(c.user.ID) > 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	lastSeen, err := h.presence.SetOffline(ctx, c.user.ID)
	if err != nil {
		h.log.Printf("set offline failed user_id=%d: %v", c.user.ID, err)
		lastSeen = time.Now()
	}
	h.hub.BroadcastExcept(nil, models.PresenceOffline{UserID: c.user.ID, LastSeen: lastSeen.UTC()})
}

func (h *Handler) handleFrame(c *Client, raw []byte) {
	frame, err := models.DecodeClientFrame(raw)
	if err != nil {
		observability.IncWSEvent("in", "invalid")
		msg := "invalid frame"
		if errors.Is(err, models.ErrUnknownEvent) {
			msg = "unknown event"
		}
		c.sendEvent(models.ErrorEvent{Message: msg})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	switch req := frame.(type) {
	case *models.RoomJoinRequest:
		observability.IncWSEvent("in", string(models.EventRoomJoin))
		ok, err := h.members.IsApprovedInActiveRoom(ctx, req.RoomID, c.user.ID)
		if err != nil {
			h.log.Printf("room join check failed room_id=%d user_id=%d: %v", req.RoomID, c.user.ID, err)
		}
		if !ok {
			c.sendEvent(models.ErrorEvent{Message: "cannot join room"})
			return
		}
		h.hub.Subscribe(c, req.RoomID)
		c.sendEvent(models.RoomJoined{RoomID: req.RoomID})

	case *models.RoomLeaveRequest:
		observability.IncWSEvent("in", string(models.EventRoomLeave))
		h.hub.Unsubscribe(c, req.RoomID)

	case *models.TypingRequest:
		observability.IncWSEvent("in", string(models.EventTypingUpdate))
		if !h.hub.IsSubscribed(c, req.RoomID) {
			return
		}
		h.hub.PublishRoomExcept(req.RoomID, c, models.TypingUpdate{
			RoomID:   req.RoomID,
			UserName: c.user.Username,
			IsTyping: req.IsTyping,
		})

	case *models.SeenRequest:
		observability.IncWSEvent("in", string(models.EventMessageSeen))
		if _, err := h.seen.MarkSeen(ctx, c.user.ID, req.MessageID); err != nil {
			if apperr.KindOf(err) == apperr.KindInternal {
				h.log.Printf("mark seen failed message_id=%d user_id=%d: %v", req.MessageID, c.user.ID, err)
			}
			c.sendEvent(models.ErrorEvent{Message: "cannot mark message seen"})
		}
	}
}

func (h *Handler) lifecycle(ctx context.Context, c *Client, event, reason string) {
	observability.IncWSEvent("lifecycle", event)
	envelope := observability.EventEnvelope{
		EventType: observability.WSEventType,
		EventName: event,
		Payload: observability.WSPayload{
			WS: observability.WSDetails{
				Event:      event,
				ConnID:     c.info.ConnID,
				DurationMS: time.Since(c.info.ConnectedAt).Milliseconds(),
				Reason:     reason,
			},
			Identity: observability.Identity{
				UserID:   c.user.ID,
				DeviceID: c.info.DeviceID,
				IP:       c.info.IP,
			},
		},
	}
	headers := observability.BuildHeaders(c.info.RequestID, c.info.TraceID)
	if err := observability.PublishEvent(ctx, observability.WSRoutingKey, envelope, headers); err != nil {
		h.log.Printf("publish ws event failed event=%s conn_id=%s: %v", event, c.info.ConnID, err)
	}
}
