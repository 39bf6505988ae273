package telemetry

import (
	"context"
	"log"
	"strconv"
	"time"
)

type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
	Close() error
}

// Auditor records room and message lifecycle actions.
type Auditor interface {
	Emit(ctx context.Context, entry AuditEntry)
}

type AuditEmitter struct {
	publisher   Publisher
	routingKey  string
	service     string
	environment string
}

// AuditEntry is what callers know about an action.
type AuditEntry struct {
	Level     string
	Action    string
	Text      string
	RequestID string
	ActorID   int
	RoomID    int
	MessageID int
	TargetID  int
}

type AuditEnvelope struct {
	SchemaVersion int          `json:"schema_version"`
	EventType     string       `json:"event_type"`
	OccurredAt    string       `json:"occurred_at"`
	Service       string       `json:"service"`
	Environment   string       `json:"environment"`
	RequestID     string       `json:"request_id"`
	UserID        *string      `json:"user_id,omitempty"`
	Payload       AuditPayload `json:"payload"`
}

type AuditPayload struct {
	Level     string `json:"level"`
	Action    string `json:"action"`
	Text      string `json:"text"`
	RoomID    int    `json:"room_id,omitempty"`
	MessageID int    `json:"message_id,omitempty"`
	TargetID  int    `json:"target_user_id,omitempty"`
}

func NewAuditEmitter(publisher Publisher, routingKey, service, environment string) *AuditEmitter {
	return &AuditEmitter{
		publisher:   publisher,
		routingKey:  routingKey,
		service:     service,
		environment: environment,
	}
}

func (e *AuditEmitter) Emit(ctx context.Context, entry AuditEntry) {
	if e == nil || e.publisher == nil {
		return
	}

	level := entry.Level
	if level == "" {
		level = "info"
	}
	var userID *string
	if entry.ActorID > 0 {
		id := strconv.Itoa(entry.ActorID)
		userID = &id
	}

	log.Printf("audit emit: level=%s action=%s request_id=%s user_id=%d room_id=%d text=%q", level, entry.Action, entry.RequestID, entry.ActorID, entry.RoomID, entry.Text)
	envelope := AuditEnvelope{
		SchemaVersion: 1,
		EventType:     "audit_log",
		OccurredAt:    time.Now().UTC().Format(time.RFC3339Nano),
		Service:       e.service,
		Environment:   e.environment,
		RequestID:     entry.RequestID,
		UserID:        userID,
		Payload: AuditPayload{
			Level:     level,
			Action:    entry.Action,
			Text:      entry.Text,
			RoomID:    entry.RoomID,
			MessageID: entry.MessageID,
			TargetID:  entry.TargetID,
		},
	}

	if err := e.publisher.Publish(ctx, e.routingKey, envelope); err != nil {
		log.Printf("audit publish failed: %v", err)
	}
}

type requestIDKey struct{}

// WithRequestID stores the request id for audit entries emitted further down the call.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestIDFrom returns the request id stored by WithRequestID.
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
