package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// EventName tags a realtime frame.
type EventName string

const (
	EventRoomJoined      EventName = "room:joined"
	EventRoomLeave       EventName = "room:leave"
	EventRoomJoin        EventName = "room:join"
	EventMessageNew      EventName = "message:new"
	EventMessageUpdated  EventName = "message:updated"
	EventMessageDeleted  EventName = "message:deleted"
	EventMessageStatus   EventName = "message:status"
	EventMessageSeen     EventName = "message:seen"
	EventTypingUpdate    EventName = "typing:update"
	EventPresenceOnline  EventName = "presence:online"
	EventPresenceOffline EventName = "presence:offline"
	EventNotificationNew EventName = "notification:new"
	EventRoomAvailable   EventName = "room:available"
	EventError           EventName = "error"
)

// Event is a server-to-client frame payload.
type Event interface {
	EventName() EventName
}

type RoomJoined struct {
	RoomID int `json:"room_id"`
}

type MessageNew struct {
	Message Message `json:"message"`
}

type MessageUpdated struct {
	Message Message `json:"message"`
}

type MessageDeleted struct {
	RoomID    int     `json:"room_id"`
	MessageID int     `json:"message_id"`
	Message   Message `json:"message"`
}

type MessageStatusChanged struct {
	RoomID    int            `json:"room_id"`
	MessageID int            `json:"message_id"`
	Status    DeliveryStatus `json:"status"`
	UserID    int            `json:"user_id"`
}

// TypingUpdate is relayed as-is and never persisted.
type TypingUpdate struct {
	RoomID   int    `json:"room_id"`
	UserName string `json:"user_name"`
	IsTyping bool   `json:"is_typing"`
}

type PresenceOnline struct {
	UserID int `json:"user_id"`
}

type PresenceOffline struct {
	UserID   int       `json:"user_id"`
	LastSeen time.Time `json:"last_seen"`
}

// NotificationType classifies out-of-band alerts.
type NotificationType string

const (
	NotifyDirectRequest   NotificationType = "private_request"
	NotifyDirectResponse  NotificationType = "private_request_response"
	NotifyGroupJoin       NotificationType = "group_join_request"
	NotifyGroupJoinResult NotificationType = "group_join_response"
	NotifyNewMessage      NotificationType = "new_message"
	NotifyGroupDeleted    NotificationType = "group_deleted"
)

type Notification struct {
	Title     string           `json:"title"`
	Body      string           `json:"body"`
	RoomID    int              `json:"room_id"`
	Type      NotificationType `json:"type"`
	Timestamp time.Time        `json:"timestamp"`
}

type RoomAvailable struct {
	Room RoomSummary `json:"room"`
}

// ErrorEvent reports a rejected inbound frame back to its sender.
type ErrorEvent struct {
	Message string `json:"message"`
}

func (RoomJoined) EventName() EventName           { return EventRoomJoined }
func (MessageNew) EventName() EventName           { return EventMessageNew }
func (MessageUpdated) EventName() EventName       { return EventMessageUpdated }
func (MessageDeleted) EventName() EventName       { return EventMessageDeleted }
func (MessageStatusChanged) EventName() EventName { return EventMessageStatus }
func (TypingUpdate) EventName() EventName         { return EventTypingUpdate }
func (PresenceOnline) EventName() EventName       { return EventPresenceOnline }
func (PresenceOffline) EventName() EventName      { return EventPresenceOffline }
func (Notification) EventName() EventName         { return EventNotificationNew }
func (RoomAvailable) EventName() EventName        { return EventRoomAvailable }
func (ErrorEvent) EventName() EventName           { return EventError }

// Frame is the wire envelope shared by both directions.
type Frame struct {
	Event EventName       `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// EncodeEvent marshals an event into its wire frame.
func EncodeEvent(e Event) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Event: e.EventName(), Data: data})
}

// Client-to-server payloads.

type RoomJoinRequest struct {
	RoomID int `json:"room_id"`
}

type RoomLeaveRequest struct {
	RoomID int `json:"room_id"`
}

type TypingRequest struct {
	RoomID   int    `json:"room_id"`
	UserName string `json:"user_name"`
	IsTyping bool   `json:"is_typing"`
}

type SeenRequest struct {
	RoomID    int `json:"room_id"`
	MessageID int `json:"message_id"`
}

var ErrUnknownEvent = errors.New("unknown event")

// DecodeClientFrame parses an inbound frame into one of the request types above.
func DecodeClientFrame(raw []byte) (any, error) {
	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}

	var target any
	switch frame.Event {
	case EventRoomJoin:
		target = &RoomJoinRequest{}
	case EventRoomLeave:
		target = &RoomLeaveRequest{}
	case EventTypingUpdate:
		target = &TypingRequest{}
	case EventMessageSeen:
		target = &SeenRequest{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, frame.Event)
	}

	if len(frame.Data) == 0 {
		return nil, fmt.Errorf("decode %s: missing data", frame.Event)
	}
	if err := json.Unmarshal(frame.Data, target); err != nil {
		return nil, fmt.Errorf("decode %s: %w", frame.Event, err)
	}
	return target, nil
}
