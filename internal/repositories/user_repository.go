package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"chat-realtime/internal/models"
)

var ErrUserNotFound = errors.New("user not found")

// UserRepository reads users and maintains their presence flag.
type UserRepository interface {
	GetUser(ctx context.Context, userID int) (models.User, error)
	SetOnline(ctx context.Context, userID int) error
	SetOffline(ctx context.Context, userID int) (time.Time, error)
}

// UserRepo is a sqlx implementation of UserRepository.
type UserRepo struct {
	db *sqlx.DB
}

// NewUserRepo constructs a UserRepo.
func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

// GetUser fetches a user by id.
func (r *UserRepo) GetUser(ctx context.Context, userID int) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT id, username, is_online, last_seen FROM users WHERE id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

// SetOnline flags the user online.
func (r *UserRepo) SetOnline(ctx context.Context, userID int) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET is_online = TRUE, updated_at = NOW() WHERE id=$1`, userID)
	return err
}

// SetOffline flags the user offline and stamps last_seen.
func (r *UserRepo) SetOffline(ctx context.Context, userID int) (time.Time, error) {
	var lastSeen time.Time
	err := r.db.GetContext(ctx, &lastSeen, `UPDATE users SET is_online = FALSE, last_seen = NOW(), updated_at = NOW()
        WHERE id=$1 RETURNING last_seen`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, ErrUserNotFound
	}
	return lastSeen, err
}
