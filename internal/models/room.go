package models

import "time"

// RoomType distinguishes one-to-one rooms from groups.
type RoomType string

const (
	RoomDirect RoomType = "DIRECT"
	RoomGroup  RoomType = "GROUP"
)

// Room is a conversation container. Rooms are never hard-deleted.
type Room struct {
	ID        int       `db:"id" json:"id"`
	Type      RoomType  `db:"room_type" json:"type"`
	Name      string    `db:"room_name" json:"name,omitempty"`
	CreatedBy int       `db:"created_by" json:"created_by"`
	IsActive  bool      `db:"is_active" json:"is_active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// RoomMember is an approved member as seen by the room resolver.
type RoomMember struct {
	UserID   int    `db:"user_id" json:"user_id"`
	Username string `db:"username" json:"username"`
	IsOnline bool   `db:"is_online" json:"is_online"`
}

// RoomSnapshot is the raw data a summary is derived from.
type RoomSnapshot struct {
	Room
	LastMessageAt *time.Time   `db:"last_message_at"`
	Members       []RoomMember `db:"-"`
	// Invited holds not-yet-approved members of a DIRECT room so the
	// requester still sees the other party's name.
	Invited []RoomMember `db:"-"`
}

// RoomSummary is the viewer-specific projection of a room.
type RoomSummary struct {
	ID           int       `json:"id"`
	Title        string    `json:"title"`
	Type         string    `json:"type"`
	Avatar       string    `json:"avatar"`
	Online       bool      `json:"online"`
	LastActivity time.Time `json:"last_message_at"`
	MembersCount int       `json:"members_count"`
}

// DirectPairing is an active direct room joining exactly the two requested users.
type DirectPairing struct {
	RoomID          int              `db:"room_id"`
	RequesterStatus MembershipStatus `db:"requester_status"`
	TargetStatus    MembershipStatus `db:"target_status"`
}

// AccessInfo carries what the access guard needs to decide for one (room, user).
type AccessInfo struct {
	RoomType      RoomType `db:"room_type"`
	IsActive      bool     `db:"is_active"`
	UserApproved  bool     `db:"user_approved"`
	ApprovedCount int      `db:"approved_count"`
}

// DirectRequestResult is the outcome of asking for a direct room.
type DirectRequestResult struct {
	Room           *RoomSummary     `json:"room,omitempty"`
	RoomID         int              `json:"room_id"`
	RequestPending bool             `json:"request_pending"`
	Status         MembershipStatus `json:"status"`
}
