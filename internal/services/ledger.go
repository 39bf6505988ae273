package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"chat-realtime/internal/apperr"
	"chat-realtime/internal/models"
	"chat-realtime/internal/observability"
	"chat-realtime/internal/repositories"
	"chat-realtime/internal/telemetry"
)

const (
	// MaxPageSize caps ListForRoom.
	MaxPageSize  = 500
	previewRunes = 80
)

// Ledger appends, edits, deletes and lists room messages and tracks per-recipient status.
// Every write that produces a room event holds that room's lock from the store call
// until the event is queued on all subscribed connections.
type Ledger struct {
	messages repositories.MessageRepository
	guard    *Guard
	hub      Broadcaster
	relay    *Relay
	audit    telemetry.Auditor
	locks    *roomLocks
}

func NewLedger(messages repositories.MessageRepository, guard *Guard, hub Broadcaster, relay *Relay, audit telemetry.Auditor) *Ledger {
	if hub == nil {
		hub = nopBroadcaster{}
	}
	if relay == nil {
		relay = NewRelay(hub)
	}
	return &Ledger{
		messages: messages,
		guard:    guard,
		hub:      hub,
		relay:    relay,
		audit:    audit,
		locks:    newRoomLocks(),
	}
}

// Append stores a message, fans it out to the room and notifies the other members.
func (l *Ledger) Append(ctx context.Context, sender models.User, roomID int, body string, rawType string) (models.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return models.Message{}, apperr.InvalidInput("message body is required")
	}
	msgType, ok := models.ParseMessageType(rawType)
	if !ok {
		return models.Message{}, apperr.InvalidInput("message type must be TEXT, IMAGE, FILE or VOICE")
	}

	ctx, span := otel.Tracer("chat-realtime/ledger").Start(ctx, "ledger.append")
	defer span.End()
	span.SetAttributes(
		attribute.Int("room.id", roomID),
		attribute.Int("sender.id", sender.ID),
		attribute.String("message.type", string(msgType)),
	)

	if err := l.guard.Check(ctx, roomID, sender.ID); err != nil {
		span.SetStatus(codes.Error, "access denied")
		return models.Message{}, err
	}

	unlock := l.locks.Lock(roomID)
	msg, statuses, err := l.messages.Append(ctx, roomID, sender.ID, body, msgType)
	if err != nil {
		unlock()
		span.RecordError(err)
		span.SetStatus(codes.Error, "append failed")
		return models.Message{}, fmt.Errorf("append message: %w", err)
	}
	if msg.SenderName == "" {
		msg.SenderName = sender.Username
	}
	l.hub.PublishRoom(roomID, models.MessageNew{Message: msg})
	unlock()

	observability.IncMessageAppended(string(msgType))
	span.SetAttributes(attribute.Int("message.id", msg.ID), attribute.Int("recipients", len(statuses)))

	preview := firstRunes(body, previewRunes)
	for _, st := range statuses {
		if st.UserID == sender.ID {
			continue
		}
		l.relay.Notify(st.UserID, models.Notification{
			Title:  fmt.Sprintf("New message from %s", sender.Username),
			Body:   preview,
			RoomID: roomID,
			Type:   models.NotifyNewMessage,
		})
	}
	return msg, nil
}

// Edit replaces the body of the editor's own live message.
func (l *Ledger) Edit(ctx context.Context, editor models.User, messageID int, body string) (models.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return models.Message{}, apperr.InvalidInput("message body is required")
	}
	current, err := l.ownedMessage(ctx, editor.ID, messageID)
	if err != nil {
		return models.Message{}, err
	}

	unlock := l.locks.Lock(current.RoomID)
	defer unlock()
	msg, err := l.messages.Edit(ctx, messageID, editor.ID, body)
	if err != nil {
		if errors.Is(err, repositories.ErrMessageNotFound) {
			return models.Message{}, apperr.NotFound("message not found")
		}
		return models.Message{}, fmt.Errorf("edit message: %w", err)
	}
	l.hub.PublishRoom(msg.RoomID, models.MessageUpdated{Message: msg})
	l.emit(ctx, telemetry.AuditEntry{Action: "message.edited", Text: "message edited", ActorID: editor.ID, RoomID: msg.RoomID, MessageID: msg.ID})
	return msg, nil
}

// SoftDelete hides the editor's own message behind the deleted placeholder.
func (l *Ledger) SoftDelete(ctx context.Context, editor models.User, messageID int) (models.Message, error) {
	current, err := l.ownedMessage(ctx, editor.ID, messageID)
	if err != nil {
		return models.Message{}, err
	}

	unlock := l.locks.Lock(current.RoomID)
	defer unlock()
	msg, err := l.messages.SoftDelete(ctx, messageID, editor.ID)
	if err != nil {
		if errors.Is(err, repositories.ErrMessageNotFound) {
			return models.Message{}, apperr.NotFound("message not found")
		}
		return models.Message{}, fmt.Errorf("delete message: %w", err)
	}
	msg = msg.Sanitized()
	l.hub.PublishRoom(msg.RoomID, models.MessageDeleted{RoomID: msg.RoomID, MessageID: msg.ID, Message: msg})
	l.emit(ctx, telemetry.AuditEntry{Action: "message.deleted", Text: "message deleted", ActorID: editor.ID, RoomID: msg.RoomID, MessageID: msg.ID})
	return msg, nil
}

func (l *Ledger) ownedMessage(ctx context.Context, editorID int, messageID int) (models.Message, error) {
	msg, err := l.messages.GetMessage(ctx, messageID)
	if err != nil {
		if errors.Is(err, repositories.ErrMessageNotFound) {
			return models.Message{}, apperr.NotFound("message not found")
		}
		return models.Message{}, fmt.Errorf("load message: %w", err)
	}
	if err := l.guard.Check(ctx, msg.RoomID, editorID); err != nil {
		return models.Message{}, err
	}
	if msg.SenderID != editorID {
		return models.Message{}, apperr.AccessDenied("only the sender can change this message")
	}
	return msg, nil
}

// MarkSeen records that viewer has seen the message. The room hears about it only
// when the viewer's status actually changed.
func (l *Ledger) MarkSeen(ctx context.Context, viewerID int, messageID int) (models.MessageStatusChanged, error) {
	msg, err := l.messages.GetMessage(ctx, messageID)
	if err != nil {
		if errors.Is(err, repositories.ErrMessageNotFound) {
			return models.MessageStatusChanged{}, apperr.NotFound("message not found")
		}
		return models.MessageStatusChanged{}, fmt.Errorf("load message: %w", err)
	}
	if err := l.guard.Check(ctx, msg.RoomID, viewerID); err != nil {
		return models.MessageStatusChanged{}, err
	}

	event := models.MessageStatusChanged{RoomID: msg.RoomID, MessageID: msg.ID, Status: models.DeliverySeen, UserID: viewerID}
	unlock := l.locks.Lock(msg.RoomID)
	defer unlock()
	changed, err := l.messages.MarkSeen(ctx, messageID, viewerID)
	if err != nil {
		return models.MessageStatusChanged{}, fmt.Errorf("mark seen: %w", err)
	}
	if changed {
		l.hub.PublishRoom(msg.RoomID, event)
	}
	return event, nil
}

// ListForRoom returns a page of messages oldest first with the viewer's status on each.
// beforeID, when non-zero, selects messages older than that id.
func (l *Ledger) ListForRoom(ctx context.Context, viewerID int, roomID int, limit int, beforeID int) ([]models.Message, error) {
	if beforeID < 0 {
		return nil, apperr.InvalidInput("before must be a message id")
	}
	if err := l.guard.Check(ctx, roomID, viewerID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > MaxPageSize {
		limit = MaxPageSize
	}
	msgs, err := l.messages.ListForRoom(ctx, roomID, viewerID, limit, beforeID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return msgs, nil
}

func (l *Ledger) emit(ctx context.Context, entry telemetry.AuditEntry) {
	if l.audit == nil {
		return
	}
	entry.RequestID = telemetry.RequestIDFrom(ctx)
	l.audit.Emit(ctx, entry)
}
