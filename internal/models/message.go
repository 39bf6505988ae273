package models

import (
	"strings"
	"time"
)

// DeletedPlaceholder replaces the body of every soft-deleted message.
const DeletedPlaceholder = "This message was deleted."

// MessageType tags what a message body refers to.
type MessageType string

const (
	MessageText  MessageType = "TEXT"
	MessageImage MessageType = "IMAGE"
	MessageFile  MessageType = "FILE"
	MessageVoice MessageType = "VOICE"
)

// ParseMessageType normalizes a client supplied type; empty means TEXT.
func ParseMessageType(raw string) (MessageType, bool) {
	if strings.TrimSpace(raw) == "" {
		return MessageText, true
	}
	switch t := MessageType(strings.ToUpper(strings.TrimSpace(raw))); t {
	case MessageText, MessageImage, MessageFile, MessageVoice:
		return t, true
	}
	return "", false
}

// DeliveryStatus is a recipient's view of a message. SENT means no status row exists.
type DeliveryStatus string

const (
	DeliverySent      DeliveryStatus = "sent"
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliverySeen      DeliveryStatus = "seen"
)

// Message is a room message together with the requesting viewer's delivery status.
type Message struct {
	ID         int            `db:"id" json:"id"`
	RoomID     int            `db:"room_id" json:"room_id"`
	SenderID   int            `db:"sender_id" json:"sender_id"`
	SenderName string         `db:"sender_name" json:"sender_name,omitempty"`
	Body       string         `db:"body" json:"body"`
	Type       MessageType    `db:"message_type" json:"type"`
	IsEdited   bool           `db:"is_edited" json:"edited"`
	IsDeleted  bool           `db:"is_deleted" json:"deleted"`
	Status     DeliveryStatus `db:"status" json:"status"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time      `db:"updated_at" json:"updated_at"`
}

// Sanitized returns the message as any reader may see it.
func (m Message) Sanitized() Message {
	if m.IsDeleted {
		m.Body = DeletedPlaceholder
	}
	return m
}

// StatusRow is one (message, recipient) delivery state.
type StatusRow struct {
	MessageID int            `db:"message_id" json:"message_id"`
	UserID    int            `db:"user_id" json:"user_id"`
	Status    DeliveryStatus `db:"status" json:"status"`
	UpdatedAt time.Time      `db:"updated_at" json:"updated_at"`
}
