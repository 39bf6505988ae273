// Package auth turns bearer tokens into users: the token must carry a valid HS256
// signature and match a live row in user_sessions.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"chat-realtime/internal/apperr"
	"chat-realtime/internal/models"
	"chat-realtime/internal/repositories"
)

// Authenticator validates bearer tokens.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (models.User, error)
}

// SessionAuthenticator checks the JWT signature, then the session table.
type SessionAuthenticator struct {
	secret   []byte
	sessions repositories.SessionRepository
}

func NewSessionAuthenticator(secret string, sessions repositories.SessionRepository) *SessionAuthenticator {
	return &SessionAuthenticator{secret: []byte(secret), sessions: sessions}
}

// Authenticate returns the session owner or an Unauthenticated error.
func (a *SessionAuthenticator) Authenticate(ctx context.Context, token string) (models.User, error) {
	if token == "" {
		return models.User{}, apperr.Unauthenticated("missing token")
	}

	userID, err := a.subject(token)
	if err != nil {
		return models.User{}, apperr.Wrap(apperr.KindUnauthenticated, "invalid token", err)
	}

	user, err := a.sessions.FindActiveSession(ctx, token, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrSessionNotFound) {
			return models.User{}, apperr.Unauthenticated("session expired or invalid")
		}
		return models.User{}, fmt.Errorf("lookup session: %w", err)
	}
	return user, nil
}

func (a *SessionAuthenticator) subject(tokenString string) (int, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return 0, err
	}
	if !token.Valid {
		return 0, errors.New("token is not valid")
	}

	// issuers differ on whether sub is a JSON number or a string
	switch sub := claims["sub"].(type) {
	case float64:
		if sub > 0 && sub == float64(int(sub)) {
			return int(sub), nil
		}
	case string:
		if id, err := strconv.Atoi(sub); err == nil && id > 0 {
			return id, nil
		}
	}
	return 0, errors.New("token has no user subject")
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}
