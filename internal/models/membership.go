package models

import "time"

// MembershipRole is a member's role within a room.
type MembershipRole string

const (
	RoleAdmin  MembershipRole = "ADMIN"
	RoleMember MembershipRole = "MEMBER"
)

// MembershipStatus is the approval state of a membership.
type MembershipStatus string

const (
	StatusPending  MembershipStatus = "PENDING"
	StatusApproved MembershipStatus = "APPROVED"
	StatusRejected MembershipStatus = "REJECTED"
)

// Membership is the single row per (room, user) pair.
type Membership struct {
	RoomID   int              `db:"room_id" json:"room_id"`
	UserID   int              `db:"user_id" json:"user_id"`
	Role     MembershipRole   `db:"role" json:"role"`
	Status   MembershipStatus `db:"status" json:"status"`
	JoinedAt time.Time        `db:"joined_at" json:"joined_at"`
}

// PendingRequest is a pending membership an approver can act on.
type PendingRequest struct {
	RoomID      int       `db:"room_id" json:"room_id"`
	RoomType    RoomType  `db:"room_type" json:"room_type"`
	RoomName    string    `db:"room_name" json:"room_name,omitempty"`
	UserID      int       `db:"user_id" json:"user_id"`
	Username    string    `db:"username" json:"username"`
	RequestedAt time.Time `db:"joined_at" json:"requested_at"`
}

// ReviewAction is the approver's decision on a pending membership.
type ReviewAction string

const (
	ActionApprove ReviewAction = "APPROVE"
	ActionReject  ReviewAction = "REJECT"
)

// NextStatus maps an action to the status it produces.
func (a ReviewAction) NextStatus() (MembershipStatus, bool) {
	switch a {
	case ActionApprove:
		return StatusApproved, true
	case ActionReject:
		return StatusRejected, true
	}
	return "", false
}
