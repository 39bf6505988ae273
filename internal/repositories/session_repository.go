package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"chat-realtime/internal/models"
)

var ErrSessionNotFound = errors.New("session not found")

// SessionRepository resolves bearer tokens against live sessions.
type SessionRepository interface {
	FindActiveSession(ctx context.Context, token string, userID int) (models.User, error)
}

// SessionRepo is a sqlx implementation of SessionRepository.
type SessionRepo struct {
	db *sqlx.DB
}

// NewSessionRepo constructs a SessionRepo.
func NewSessionRepo(db *sqlx.DB) *SessionRepo {
	return &SessionRepo{db: db}
}

// FindActiveSession returns the session owner when the token is valid, unexpired and
// issued to userID.
func (r *SessionRepo) FindActiveSession(ctx context.Context, token string, userID int) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT u.id, u.username, u.is_online, u.last_seen
        FROM user_sessions s
        JOIN users u ON u.id = s.user_id
        WHERE s.jwt_token = $1 AND s.user_id = $2 AND s.is_valid AND s.expires_at > NOW()`, token, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrSessionNotFound
	}
	return user, err
}
