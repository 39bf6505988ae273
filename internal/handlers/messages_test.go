package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-realtime/internal/apperr"
	"chat-realtime/internal/mocks"
	"chat-realtime/internal/models"
)

func TestListMessagesPassesPaging(t *testing.T) {
	svc := new(mocks.MessageServiceMock)
	router := setupRouter(NewMessageHandler(svc).Register)

	svc.On("ListForRoom", mock.Anything, 1, 4, 0, 0).Return([]models.Message{{ID: 1, Body: "hi", Status: models.DeliverySent}}, nil).Once()
	rec := doJSON(t, router, http.MethodGet, "/rooms/4/messages", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Messages []models.Message `json:"messages"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Messages, 1)
	assert.Equal(t, models.DeliverySent, resp.Messages[0].Status)

	svc.On("ListForRoom", mock.Anything, 1, 4, 50, 120).Return([]models.Message{}, nil).Once()
	rec = doJSON(t, router, http.MethodGet, "/rooms/4/messages?limit=50&before=120", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/rooms/4/messages?limit=ten", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	svc.AssertExpectations(t)
}

func TestPostMessage(t *testing.T) {
	svc := new(mocks.MessageServiceMock)
	router := setupRouter(NewMessageHandler(svc).Register)

	svc.On("Append", mock.Anything, caller, 4, "hello", "").Return(models.Message{ID: 10, RoomID: 4, Body: "hello", Status: models.DeliverySeen}, nil).Once()
	rec := doJSON(t, router, http.MethodPost, "/rooms/4/messages", `{"body":"hello"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)

	svc.On("Append", mock.Anything, caller, 4, "", "").Return(nil, apperr.InvalidInput("message body is required")).Once()
	rec = doJSON(t, router, http.MethodPost, "/rooms/4/messages", `{"body":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"message body is required"}`, rec.Body.String())

	svc.On("Append", mock.Anything, caller, 4, "x", "TEXT").Return(nil, apperr.AccessDenied("you do not have access to this room")).Once()
	rec = doJSON(t, router, http.MethodPost, "/rooms/4/messages", `{"body":"x","type":"TEXT"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	svc.AssertExpectations(t)
}

func TestEditDeleteSeen(t *testing.T) {
	svc := new(mocks.MessageServiceMock)
	router := setupRouter(NewMessageHandler(svc).Register)

	svc.On("Edit", mock.Anything, caller, 10, "fixed").Return(models.Message{ID: 10, Body: "fixed", IsEdited: true}, nil).Once()
	rec := doJSON(t, router, http.MethodPatch, "/messages/10", `{"body":"fixed"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	svc.On("SoftDelete", mock.Anything, caller, 10).Return(models.Message{ID: 10, Body: models.DeletedPlaceholder, IsDeleted: true}, nil).Once()
	rec = doJSON(t, router, http.MethodDelete, "/messages/10", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), models.DeletedPlaceholder)

	svc.On("MarkSeen", mock.Anything, 1, 10).Return(models.MessageStatusChanged{RoomID: 4, MessageID: 10, Status: models.DeliverySeen, UserID: 1}, nil).Once()
	rec = doJSON(t, router, http.MethodPatch, "/messages/10/seen", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"room_id":4,"message_id":10,"status":"seen","user_id":1}`, rec.Body.String())

	svc.On("MarkSeen", mock.Anything, 1, 11).Return(nil, apperr.NotFound("message not found")).Once()
	rec = doJSON(t, router, http.MethodPatch, "/messages/11/seen", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	svc.AssertExpectations(t)
}
