package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"chat-realtime/internal/apperr"
	"chat-realtime/internal/models"
)

type stubAuthenticator struct {
	users map[string]models.User
	err   error
}

func (s stubAuthenticator) Authenticate(ctx context.Context, token string) (models.User, error) {
	if s.err != nil {
		return models.User{}, s.err
	}
	user, ok := s.users[token]
	if !ok {
		return models.User{}, apperr.Unauthenticated("invalid token")
	}
	return user, nil
}

func setupRouter(a stubAuthenticator) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", AuthMiddleware(a), func(c *gin.Context) {
		c.JSON(http.StatusOK, CurrentUser(c))
	})
	return r
}

func TestAuthMiddleware(t *testing.T) {
	r := setupRouter(stubAuthenticator{users: map[string]models.User{"good": {ID: 3, Username: "carol"}}})

	cases := []struct {
		header string
		status int
	}{
		{"", http.StatusUnauthorized},
		{"Token good", http.StatusUnauthorized},
		{"Bearer bad", http.StatusUnauthorized},
		{"Bearer good", http.StatusOK},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, tc.status, w.Code, tc.header)
		if tc.status == http.StatusOK {
			assert.JSONEq(t, `{"id":3,"username":"carol","is_online":false}`, w.Body.String())
		}
	}
}

func TestAuthMiddlewareStoreFailure(t *testing.T) {
	r := setupRouter(stubAuthenticator{err: errors.New("db down")})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer any")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
