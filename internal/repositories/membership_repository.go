package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"chat-realtime/internal/models"
)

var (
	ErrMembershipNotFound = errors.New("membership not found")
	ErrNoPendingRequest   = errors.New("pending request not found")
)

// MembershipRepository is the durable record of who belongs to which room.
type MembershipRepository interface {
	Upsert(ctx context.Context, m models.Membership) error
	GetStatus(ctx context.Context, roomID int, userID int) (models.MembershipStatus, error)
	ListMembers(ctx context.Context, roomID int) ([]models.Membership, error)
	ListApprovedMembers(ctx context.Context, roomID int) ([]int, error)
	ListAdmins(ctx context.Context, roomID int) ([]int, error)
	ListPendingForApprover(ctx context.Context, approverID int) ([]models.PendingRequest, error)
	TransitionPending(ctx context.Context, roomID int, userID int, roomType models.RoomType, next models.MembershipStatus) error
	ListApprovedRoomIDs(ctx context.Context, userID int) ([]int, error)
	IsApprovedInActiveRoom(ctx context.Context, roomID int, userID int) (bool, error)
	AccessInfo(ctx context.Context, roomID int, userID int) (models.AccessInfo, error)
}

// MembershipRepo is a sqlx implementation of MembershipRepository.
type MembershipRepo struct {
	db *sqlx.DB
}

// NewMembershipRepo constructs a MembershipRepo.
func NewMembershipRepo(db *sqlx.DB) *MembershipRepo {
	return &MembershipRepo{db: db}
}

// Upsert writes the (room, user) row, updating status in place when it already exists.
func (r *MembershipRepo) Upsert(ctx context.Context, m models.Membership) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO room_members (room_id, user_id, role, status) VALUES ($1, $2, $3, $4)
        ON CONFLICT (room_id, user_id) DO UPDATE SET status = EXCLUDED.status,
            joined_at = CASE WHEN EXCLUDED.status = 'PENDING' THEN NOW() ELSE room_members.joined_at END`,
		m.RoomID, m.UserID, m.Role, m.Status)
	return err
}

// GetStatus returns the membership status of a user in a room.
func (r *MembershipRepo) GetStatus(ctx context.Context, roomID int, userID int) (models.MembershipStatus, error) {
	var status models.MembershipStatus
	err := r.db.GetContext(ctx, &status, `SELECT status FROM room_members WHERE room_id=$1 AND user_id=$2`, roomID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrMembershipNotFound
	}
	return status, err
}

// ListMembers returns every membership row of a room regardless of status.
func (r *MembershipRepo) ListMembers(ctx context.Context, roomID int) ([]models.Membership, error) {
	var members []models.Membership
	err := r.db.SelectContext(ctx, &members, `SELECT room_id, user_id, role, status, joined_at FROM room_members WHERE room_id=$1 ORDER BY joined_at ASC`, roomID)
	return members, err
}

// ListApprovedMembers returns the ids of approved members.
func (r *MembershipRepo) ListApprovedMembers(ctx context.Context, roomID int) ([]int, error) {
	var ids []int
	err := r.db.SelectContext(ctx, &ids, `SELECT user_id FROM room_members WHERE room_id=$1 AND status='APPROVED' ORDER BY user_id`, roomID)
	return ids, err
}

// ListAdmins returns the ids of approved admins.
func (r *MembershipRepo) ListAdmins(ctx context.Context, roomID int) ([]int, error) {
	var ids []int
	err := r.db.SelectContext(ctx, &ids, `SELECT user_id FROM room_members WHERE room_id=$1 AND role='ADMIN' AND status='APPROVED' ORDER BY user_id`, roomID)
	return ids, err
}

// ListPendingForApprover returns direct requests addressed to the approver and join
// requests for active groups the approver administers, newest first.
func (r *MembershipRepo) ListPendingForApprover(ctx context.Context, approverID int) ([]models.PendingRequest, error) {
	query := `SELECT r.id AS room_id, r.room_type, r.room_name, u.id AS user_id, u.username, me.joined_at
        FROM room_members me
        JOIN rooms r ON r.id = me.room_id AND r.room_type = 'DIRECT' AND r.is_active
        JOIN room_members requester ON requester.room_id = r.id AND requester.user_id <> me.user_id AND requester.status = 'APPROVED'
        JOIN users u ON u.id = requester.user_id
        WHERE me.user_id = $1 AND me.status = 'PENDING'
        UNION ALL
        SELECT r.id AS room_id, r.room_type, r.room_name, u.id AS user_id, u.username, rm.joined_at
        FROM rooms r
        JOIN room_members admin ON admin.room_id = r.id AND admin.user_id = $1 AND admin.role = 'ADMIN' AND admin.status = 'APPROVED'
        JOIN room_members rm ON rm.room_id = r.id AND rm.status = 'PENDING'
        JOIN users u ON u.id = rm.user_id
        WHERE r.room_type = 'GROUP' AND r.is_active
        ORDER BY joined_at DESC`
	var requests []models.PendingRequest
	err := r.db.SelectContext(ctx, &requests, query, approverID)
	return requests, err
}

// TransitionPending moves a PENDING membership of an active room of the given type to next.
func (r *MembershipRepo) TransitionPending(ctx context.Context, roomID int, userID int, roomType models.RoomType, next models.MembershipStatus) error {
	res, err := r.db.ExecContext(ctx, `UPDATE room_members me SET status = $1
        FROM rooms r
        WHERE me.room_id = $2 AND me.user_id = $3 AND me.status = 'PENDING'
        AND r.id = me.room_id AND r.room_type = $4 AND r.is_active`, next, roomID, userID, roomType)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrNoPendingRequest
	}
	return nil
}

// ListApprovedRoomIDs returns active rooms in which the user is approved.
func (r *MembershipRepo) ListApprovedRoomIDs(ctx context.Context, userID int) ([]int, error) {
	var ids []int
	err := r.db.SelectContext(ctx, &ids, `SELECT rm.room_id FROM room_members rm
        JOIN rooms r ON r.id = rm.room_id AND r.is_active
        WHERE rm.user_id=$1 AND rm.status='APPROVED' ORDER BY rm.room_id`, userID)
	return ids, err
}

// IsApprovedInActiveRoom checks that the user may subscribe to the room channel.
func (r *MembershipRepo) IsApprovedInActiveRoom(ctx context.Context, roomID int, userID int) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM room_members rm
        JOIN rooms r ON r.id = rm.room_id
        WHERE rm.room_id=$1 AND rm.user_id=$2 AND rm.status='APPROVED' AND r.is_active)`, roomID, userID)
	return exists, err
}

// AccessInfo loads the facts the access guard decides on.
func (r *MembershipRepo) AccessInfo(ctx context.Context, roomID int, userID int) (models.AccessInfo, error) {
	var info models.AccessInfo
	err := r.db.GetContext(ctx, &info, `SELECT r.room_type, r.is_active,
            COALESCE(BOOL_OR(rm.user_id = $2 AND rm.status = 'APPROVED'), FALSE) AS user_approved,
            COUNT(rm.user_id) FILTER (WHERE rm.status = 'APPROVED') AS approved_count
        FROM rooms r
        LEFT JOIN room_members rm ON rm.room_id = r.id
        WHERE r.id = $1
        GROUP BY r.id`, roomID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.AccessInfo{}, ErrRoomNotFound
	}
	return info, err
}
