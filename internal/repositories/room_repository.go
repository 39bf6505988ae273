package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"chat-realtime/internal/models"
)

var (
	ErrRoomNotFound     = errors.New("room not found")
	ErrDirectRoomExists = errors.New("direct room already exists for pair")
)

const uniqueViolation = "23505"

// RoomRepository abstracts room persistence.
type RoomRepository interface {
	GetRoom(ctx context.Context, roomID int) (models.Room, error)
	FindDirectPairing(ctx context.Context, requesterID int, targetID int) (models.DirectPairing, bool, error)
	CreateDirectRoom(ctx context.Context, requesterID int, targetID int) (models.Room, error)
	CreateGroupRoom(ctx context.Context, creatorID int, name string, memberIDs []int) (models.Room, error)
	Snapshot(ctx context.Context, roomID int, viewerID int) (models.RoomSnapshot, error)
	ListSnapshots(ctx context.Context, viewerID int) ([]models.RoomSnapshot, error)
	DeactivateGroup(ctx context.Context, roomID int, creatorID int) error
}

// RoomRepo is a sqlx implementation of RoomRepository.
type RoomRepo struct {
	db *sqlx.DB
}

// NewRoomRepo constructs a RoomRepo.
func NewRoomRepo(db *sqlx.DB) *RoomRepo {
	return &RoomRepo{db: db}
}

// DirectKey is the order-independent identity of a user pair.
func DirectKey(a, b int) string {
	pair := []int{a, b}
	sort.Ints(pair)
	return fmt.Sprintf("%d:%d", pair[0], pair[1])
}

const roomColumns = `r.id, r.room_type, r.room_name, r.created_by, r.is_active, r.created_at`

// GetRoom fetches a room by id, active or not.
func (r *RoomRepo) GetRoom(ctx context.Context, roomID int) (models.Room, error) {
	var room models.Room
	err := r.db.GetContext(ctx, &room, `SELECT `+roomColumns+` FROM rooms r WHERE r.id=$1`, roomID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Room{}, ErrRoomNotFound
	}
	return room, err
}

// FindDirectPairing looks for an active direct room whose two memberships are exactly this pair.
func (r *RoomRepo) FindDirectPairing(ctx context.Context, requesterID int, targetID int) (models.DirectPairing, bool, error) {
	var pairing models.DirectPairing
	err := r.db.GetContext(ctx, &pairing, `SELECT r.id AS room_id,
            MAX(CASE WHEN rm.user_id = $1 THEN rm.status END) AS requester_status,
            MAX(CASE WHEN rm.user_id = $2 THEN rm.status END) AS target_status
        FROM rooms r
        JOIN room_members rm ON rm.room_id = r.id
        WHERE r.room_type = 'DIRECT' AND r.is_active AND rm.user_id IN ($1, $2)
        GROUP BY r.id
        HAVING COUNT(DISTINCT rm.user_id) = 2
        ORDER BY r.id
        LIMIT 1`, requesterID, targetID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.DirectPairing{}, false, nil
	}
	if err != nil {
		return models.DirectPairing{}, false, err
	}
	return pairing, true, nil
}

// CreateDirectRoom creates the room and both memberships atomically.
func (r *RoomRepo) CreateDirectRoom(ctx context.Context, requesterID int, targetID int) (room models.Room, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Room{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if err = tx.GetContext(ctx, &room, `INSERT INTO rooms AS r (room_type, created_by, direct_key) VALUES ('DIRECT', $1, $2)
        RETURNING `+roomColumns, requesterID, DirectKey(requesterID, targetID)); err != nil {
		if isUniqueViolation(err) {
			err = fmt.Errorf("%w: %v", ErrDirectRoomExists, err)
		}
		return models.Room{}, err
	}

	if _, err = tx.ExecContext(ctx, `INSERT INTO room_members (room_id, user_id, role, status) VALUES
        ($1, $2, 'ADMIN', 'APPROVED'),
        ($1, $3, 'MEMBER', 'PENDING')`, room.ID, requesterID, targetID); err != nil {
		return models.Room{}, err
	}

	if err = tx.Commit(); err != nil {
		return models.Room{}, err
	}
	return room, nil
}

// CreateGroupRoom creates a group with its creator as admin and existing members approved.
func (r *RoomRepo) CreateGroupRoom(ctx context.Context, creatorID int, name string, memberIDs []int) (room models.Room, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Room{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if err = tx.GetContext(ctx, &room, `INSERT INTO rooms AS r (room_type, room_name, created_by) VALUES ('GROUP', $1, $2)
        RETURNING `+roomColumns, name, creatorID); err != nil {
		return models.Room{}, err
	}

	if _, err = tx.ExecContext(ctx, `INSERT INTO room_members (room_id, user_id, role, status)
        VALUES ($1, $2, 'ADMIN', 'APPROVED') ON CONFLICT DO NOTHING`, room.ID, creatorID); err != nil {
		return models.Room{}, err
	}

	ids := make([]int64, 0, len(memberIDs))
	for _, id := range memberIDs {
		ids = append(ids, int64(id))
	}
	if len(ids) > 0 {
		if _, err = tx.ExecContext(ctx, `INSERT INTO room_members (room_id, user_id, role, status)
            SELECT $1, u.id, 'MEMBER', 'APPROVED' FROM users u
            WHERE u.id = ANY($2) AND u.id <> $3
            ON CONFLICT DO NOTHING`, room.ID, pq.Array(ids), creatorID); err != nil {
			return models.Room{}, err
		}
	}

	if err = tx.Commit(); err != nil {
		return models.Room{}, err
	}
	return room, nil
}

const snapshotColumns = roomColumns + `,
            (SELECT MAX(m.created_at) FROM messages m WHERE m.room_id = r.id) AS last_message_at`

// Snapshot loads an active room the viewer is approved in, with its approved members.
func (r *RoomRepo) Snapshot(ctx context.Context, roomID int, viewerID int) (models.RoomSnapshot, error) {
	var snap models.RoomSnapshot
	err := r.db.GetContext(ctx, &snap, `SELECT `+snapshotColumns+`
        FROM rooms r
        JOIN room_members rm ON rm.room_id = r.id AND rm.user_id = $2 AND rm.status = 'APPROVED'
        WHERE r.id = $1 AND r.is_active`, roomID, viewerID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.RoomSnapshot{}, ErrRoomNotFound
	}
	if err != nil {
		return models.RoomSnapshot{}, err
	}

	members, err := r.members(ctx, []int64{int64(roomID)})
	if err != nil {
		return models.RoomSnapshot{}, err
	}
	members.fill(&snap)
	return snap, nil
}

// ListSnapshots returns every active room the viewer is approved in, most recent activity first.
func (r *RoomRepo) ListSnapshots(ctx context.Context, viewerID int) ([]models.RoomSnapshot, error) {
	var snaps []models.RoomSnapshot
	err := r.db.SelectContext(ctx, &snaps, `SELECT * FROM (
            SELECT `+snapshotColumns+`
            FROM rooms r
            JOIN room_members rm ON rm.room_id = r.id AND rm.user_id = $1 AND rm.status = 'APPROVED'
            WHERE r.is_active
        ) s ORDER BY COALESCE(s.last_message_at, s.created_at) DESC, s.id DESC`, viewerID)
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return snaps, nil
	}

	ids := make([]int64, 0, len(snaps))
	for _, s := range snaps {
		ids = append(ids, int64(s.ID))
	}
	members, err := r.members(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range snaps {
		members.fill(&snaps[i])
	}
	return snaps, nil
}

type memberRow struct {
	RoomID int                     `db:"room_id"`
	Status models.MembershipStatus `db:"status"`
	models.RoomMember
}

type roomMembers map[int][]memberRow

func (rm roomMembers) fill(snap *models.RoomSnapshot) {
	for _, row := range rm[snap.ID] {
		switch {
		case row.Status == models.StatusApproved:
			snap.Members = append(snap.Members, row.RoomMember)
		case snap.Type == models.RoomDirect:
			snap.Invited = append(snap.Invited, row.RoomMember)
		}
	}
}

func (r *RoomRepo) members(ctx context.Context, roomIDs []int64) (roomMembers, error) {
	var rows []memberRow
	err := r.db.SelectContext(ctx, &rows, `SELECT rm.room_id, rm.status, u.id AS user_id, u.username, u.is_online
        FROM room_members rm
        JOIN users u ON u.id = rm.user_id
        WHERE rm.room_id = ANY($1)
        ORDER BY rm.room_id, rm.joined_at, u.id`, pq.Array(roomIDs))
	if err != nil {
		return nil, err
	}
	result := make(roomMembers, len(roomIDs))
	for _, row := range rows {
		result[row.RoomID] = append(result[row.RoomID], row)
	}
	return result, nil
}

// DeactivateGroup soft-deletes an active group created by creatorID.
func (r *RoomRepo) DeactivateGroup(ctx context.Context, roomID int, creatorID int) error {
	res, err := r.db.ExecContext(ctx, `UPDATE rooms SET is_active = FALSE
        WHERE id=$1 AND room_type='GROUP' AND created_by=$2 AND is_active`, roomID, creatorID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrRoomNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
