package services

import (
	"context"
	"errors"
	"log"

	"chat-realtime/internal/apperr"
	"chat-realtime/internal/models"
	"chat-realtime/internal/repositories"
)

// Guard decides whether a user may read or write a room's messages.
type Guard struct {
	members repositories.MembershipRepository
}

func NewGuard(members repositories.MembershipRepository) *Guard {
	return &Guard{members: members}
}

// CanAccess requires an approved membership in an active room; a direct room
// additionally needs both of its memberships approved. Any lookup failure denies.
func (g *Guard) CanAccess(ctx context.Context, roomID int, userID int) bool {
	info, err := g.members.AccessInfo(ctx, roomID, userID)
	if err != nil {
		if !errors.Is(err, repositories.ErrRoomNotFound) {
			log.Printf("access check failed room_id=%d user_id=%d: %v", roomID, userID, err)
		}
		return false
	}
	if !info.IsActive || !info.UserApproved {
		return false
	}
	if info.RoomType == models.RoomDirect && info.ApprovedCount < 2 {
		return false
	}
	return true
}

// Check is CanAccess as an AccessDenied error.
func (g *Guard) Check(ctx context.Context, roomID int, userID int) error {
	if !g.CanAccess(ctx, roomID, userID) {
		return apperr.AccessDenied("you do not have access to this room")
	}
	return nil
}
