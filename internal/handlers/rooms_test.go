package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-realtime/internal/apperr"
	"chat-realtime/internal/mocks"
	"chat-realtime/internal/models"
)

var caller = models.User{ID: 1, Username: "alice"}

func setupRouter(register func(gin.IRouter)) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	r.Use(func(c *gin.Context) {
		c.Set("userID", caller.ID)
		c.Set("username", caller.Username)
		c.Next()
	})
	register(r)
	return r
}

func doJSON(t *testing.T, r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Buffer
	if body == "" {
		reader = &bytes.Buffer{}
	} else {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestListRoomsSuccess(t *testing.T) {
	svc := new(mocks.RoomServiceMock)
	router := setupRouter(NewRoomHandler(svc).Register)

	svc.On("ListRooms", mock.Anything, 1).Return([]models.RoomSummary{{ID: 3, Title: "bob", Type: "direct"}}, nil).Once()

	rec := doJSON(t, router, http.MethodGet, "/rooms", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	var resp struct {
		Rooms []models.RoomSummary `json:"rooms"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Rooms, 1)
	assert.Equal(t, "bob", resp.Rooms[0].Title)
	svc.AssertExpectations(t)
}

func TestListRoomsInternalErrorIsHidden(t *testing.T) {
	svc := new(mocks.RoomServiceMock)
	router := setupRouter(NewRoomHandler(svc).Register)

	svc.On("ListRooms", mock.Anything, 1).Return(nil, assert.AnError).Once()

	rec := doJSON(t, router, http.MethodGet, "/rooms", "")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal error"}`, rec.Body.String())
	svc.AssertExpectations(t)
}

func TestGetRoomErrorKinds(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{apperr.NotFound("room not found"), http.StatusNotFound},
		{apperr.AccessDenied("no"), http.StatusForbidden},
		{apperr.Unauthenticated("no"), http.StatusUnauthorized},
		{apperr.InvalidInput("bad"), http.StatusBadRequest},
		{apperr.Conflict("dup"), http.StatusConflict},
	}
	for _, tc := range cases {
		svc := new(mocks.RoomServiceMock)
		router := setupRouter(NewRoomHandler(svc).Register)
		svc.On("Summary", mock.Anything, 9, 1).Return(nil, tc.err).Once()

		rec := doJSON(t, router, http.MethodGet, "/rooms/9", "")
		assert.Equal(t, tc.status, rec.Code, tc.err.Error())
	}
}

func TestGetRoomInvalidID(t *testing.T) {
	svc := new(mocks.RoomServiceMock)
	router := setupRouter(NewRoomHandler(svc).Register)

	rec := doJSON(t, router, http.MethodGet, "/rooms/abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertNotCalled(t, "Summary", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateDirectPendingAndApproved(t *testing.T) {
	svc := new(mocks.RoomServiceMock)
	router := setupRouter(NewRoomHandler(svc).Register)

	svc.On("CreateDirect", mock.Anything, caller, 2).Return(models.DirectRequestResult{RoomID: 5, RequestPending: true, Status: models.StatusPending}, nil).Once()
	rec := doJSON(t, router, http.MethodPost, "/rooms/direct", `{"target_user_id":2}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	room := models.RoomSummary{ID: 5, Title: "bob"}
	svc.On("CreateDirect", mock.Anything, caller, 2).Return(models.DirectRequestResult{Room: &room, RoomID: 5, Status: models.StatusApproved}, nil).Once()
	rec = doJSON(t, router, http.MethodPost, "/rooms/direct", `{"target_user_id":2}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/rooms/direct", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertExpectations(t)
}

func TestRespondDirectNormalizesAction(t *testing.T) {
	svc := new(mocks.RoomServiceMock)
	router := setupRouter(NewRoomHandler(svc).Register)

	summary := &models.RoomSummary{ID: 5, Title: "bob"}
	svc.On("RespondDirect", mock.Anything, caller, 5, models.ActionApprove).Return(summary, nil).Once()

	rec := doJSON(t, router, http.MethodPatch, "/rooms/direct/requests/5", `{"action":" approve "}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "APPROVE", resp["status"])
	assert.NotNil(t, resp["room"])
	svc.AssertExpectations(t)
}

func TestGroupRoutes(t *testing.T) {
	svc := new(mocks.RoomServiceMock)
	router := setupRouter(NewRoomHandler(svc).Register)

	svc.On("CreateGroup", mock.Anything, caller, "Ops", []int{2, 3}).Return(models.RoomSummary{ID: 8, Title: "Ops"}, nil).Once()
	rec := doJSON(t, router, http.MethodPost, "/rooms/group", `{"name":"Ops","member_ids":[2,3]}`)
	assert.Equal(t, http.StatusCreated, rec.Code)

	svc.On("RequestJoinGroup", mock.Anything, caller, 8).Return(models.StatusPending, nil).Once()
	rec = doJSON(t, router, http.MethodPost, "/rooms/8/join-request", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)

	svc.On("ListGroupRequests", mock.Anything, 1).Return([]models.PendingRequest{{RoomID: 8, UserID: 3}}, nil).Once()
	rec = doJSON(t, router, http.MethodGet, "/rooms/group/requests", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	svc.On("ListDirectRequests", mock.Anything, 1).Return([]models.PendingRequest{}, nil).Once()
	rec = doJSON(t, router, http.MethodGet, "/rooms/direct/requests", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	svc.On("RespondGroupJoin", mock.Anything, caller, 8, 3, models.ActionReject).Return(nil).Once()
	rec = doJSON(t, router, http.MethodPatch, "/rooms/group/8/requests/3", `{"action":"reject"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	svc.On("DeleteGroup", mock.Anything, caller, 8).Return(apperr.NotFound("group not found")).Once()
	rec = doJSON(t, router, http.MethodDelete, "/rooms/group/8", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	svc.On("DeleteGroup", mock.Anything, caller, 8).Return(nil).Once()
	rec = doJSON(t, router, http.MethodDelete, "/rooms/group/8", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	svc.AssertExpectations(t)
}
