package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"chat-realtime/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

// MessageRepository defines interactions for room messages and their delivery status.
type MessageRepository interface {
	Append(ctx context.Context, roomID int, senderID int, body string, msgType models.MessageType) (models.Message, []models.StatusRow, error)
	GetMessage(ctx context.Context, messageID int) (models.Message, error)
	Edit(ctx context.Context, messageID int, senderID int, body string) (models.Message, error)
	SoftDelete(ctx context.Context, messageID int, senderID int) (models.Message, error)
	MarkSeen(ctx context.Context, messageID int, userID int) (bool, error)
	ListForRoom(ctx context.Context, roomID int, viewerID int, limit int, beforeID int) ([]models.Message, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

const messageColumns = `m.id, m.room_id, m.sender_id, COALESCE(u.username, '') AS sender_name, m.body, m.message_type,
            m.is_edited, m.is_deleted, m.created_at, m.updated_at`

// Append stores a message and one status row per approved member in a single transaction.
// The sender's row is SEEN, everyone else starts at DELIVERED.
func (r *MessageRepo) Append(ctx context.Context, roomID int, senderID int, body string, msgType models.MessageType) (msg models.Message, statuses []models.StatusRow, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Message{}, nil, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if err = tx.GetContext(ctx, &msg, `WITH m AS (
            INSERT INTO messages (room_id, sender_id, body, message_type) VALUES ($1, $2, $3, $4)
            RETURNING *
        )
        SELECT `+messageColumns+`
        FROM m LEFT JOIN users u ON u.id = m.sender_id`, roomID, senderID, body, msgType); err != nil {
		return models.Message{}, nil, err
	}

	if err = tx.SelectContext(ctx, &statuses, `INSERT INTO message_status (message_id, user_id, status)
        SELECT $1, rm.user_id, CASE WHEN rm.user_id = $2 THEN 'SEEN' ELSE 'DELIVERED' END
        FROM room_members rm
        WHERE rm.room_id = $3 AND rm.status = 'APPROVED'
        ON CONFLICT (message_id, user_id) DO UPDATE SET
            status = CASE WHEN message_status.status = 'SEEN' THEN 'SEEN' ELSE EXCLUDED.status END,
            updated_at = NOW()
        RETURNING message_id, user_id, LOWER(status) AS status, updated_at`, msg.ID, senderID, roomID); err != nil {
		return models.Message{}, nil, err
	}

	if err = tx.Commit(); err != nil {
		return models.Message{}, nil, err
	}
	msg.Status = models.DeliverySeen
	return msg, statuses, nil
}

// GetMessage retrieves a single message without viewer status.
func (r *MessageRepo) GetMessage(ctx context.Context, messageID int) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `SELECT `+messageColumns+`
        FROM messages m LEFT JOIN users u ON u.id = m.sender_id
        WHERE m.id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// Edit replaces the body of a live message owned by senderID.
func (r *MessageRepo) Edit(ctx context.Context, messageID int, senderID int, body string) (models.Message, error) {
	return r.conditionalUpdate(ctx, `UPDATE messages SET body = $3, is_edited = TRUE, updated_at = NOW()
        WHERE id = $1 AND sender_id = $2 AND is_deleted = FALSE
        RETURNING *`, messageID, senderID, body)
}

// SoftDelete marks a live message owned by senderID as deleted and blanks its body.
func (r *MessageRepo) SoftDelete(ctx context.Context, messageID int, senderID int) (models.Message, error) {
	return r.conditionalUpdate(ctx, `UPDATE messages SET body = $3, is_deleted = TRUE, updated_at = NOW()
        WHERE id = $1 AND sender_id = $2 AND is_deleted = FALSE
        RETURNING *`, messageID, senderID, models.DeletedPlaceholder)
}

func (r *MessageRepo) conditionalUpdate(ctx context.Context, update string, args ...any) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `WITH m AS (`+update+`)
        SELECT `+messageColumns+`
        FROM m LEFT JOIN users u ON u.id = m.sender_id`, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// MarkSeen upserts a SEEN row and reports whether the row actually changed state.
func (r *MessageRepo) MarkSeen(ctx context.Context, messageID int, userID int) (bool, error) {
	var previous string
	err := r.db.GetContext(ctx, &previous, `WITH prev AS (
            SELECT status FROM message_status WHERE message_id = $1 AND user_id = $2
        ), up AS (
            INSERT INTO message_status (message_id, user_id, status) VALUES ($1, $2, 'SEEN')
            ON CONFLICT (message_id, user_id) DO UPDATE SET
                status = 'SEEN',
                updated_at = CASE WHEN message_status.status = 'SEEN' THEN message_status.updated_at ELSE NOW() END
            RETURNING 1
        )
        SELECT COALESCE((SELECT status FROM prev), '') FROM up`, messageID, userID)
	if err != nil {
		return false, err
	}
	return previous != "SEEN", nil
}

// ListForRoom returns up to limit messages, oldest first, with the viewer's status.
// A non-zero beforeID restricts the page to messages older than that id.
func (r *MessageRepo) ListForRoom(ctx context.Context, roomID int, viewerID int, limit int, beforeID int) ([]models.Message, error) {
	query := `SELECT * FROM (
            SELECT ` + messageColumns + `,
                LOWER(COALESCE(ms.status, 'SENT')) AS status
            FROM messages m
            LEFT JOIN users u ON u.id = m.sender_id
            LEFT JOIN message_status ms ON ms.message_id = m.id AND ms.user_id = $2
            WHERE m.room_id = $1 AND ($4::int = 0 OR m.id < $4::int)
            ORDER BY m.id DESC
            LIMIT $3
        ) page ORDER BY page.id ASC`
	msgs := []models.Message{}
	if err := r.db.SelectContext(ctx, &msgs, query, roomID, viewerID, limit, beforeID); err != nil {
		return nil, err
	}
	for i := range msgs {
		msgs[i] = msgs[i].Sanitized()
	}
	return msgs, nil
}
