package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"chat-realtime/internal/models"
)

type RoomServiceMock struct {
	mock.Mock
}

func (m *RoomServiceMock) Summary(ctx context.Context, roomID int, viewerID int) (models.RoomSummary, error) {
	args := m.Called(ctx, roomID, viewerID)
	var summary models.RoomSummary
	if val := args.Get(0); val != nil {
		summary = val.(models.RoomSummary)
	}
	return summary, args.Error(1)
}

func (m *RoomServiceMock) ListRooms(ctx context.Context, viewerID int) ([]models.RoomSummary, error) {
	args := m.Called(ctx, viewerID)
	var list []models.RoomSummary
	if val := args.Get(0); val != nil {
		list = val.([]models.RoomSummary)
	}
	return list, args.Error(1)
}

func (m *RoomServiceMock) CreateDirect(ctx context.Context, requester models.User, targetID int) (models.DirectRequestResult, error) {
	args := m.Called(ctx, requester, targetID)
	var result models.DirectRequestResult
	if val := args.Get(0); val != nil {
		result = val.(models.DirectRequestResult)
	}
	return result, args.Error(1)
}

func (m *RoomServiceMock) ListDirectRequests(ctx context.Context, viewerID int) ([]models.PendingRequest, error) {
	args := m.Called(ctx, viewerID)
	var list []models.PendingRequest
	if val := args.Get(0); val != nil {
		list = val.([]models.PendingRequest)
	}
	return list, args.Error(1)
}

func (m *RoomServiceMock) RespondDirect(ctx context.Context, viewer models.User, roomID int, action models.ReviewAction) (*models.RoomSummary, error) {
	args := m.Called(ctx, viewer, roomID, action)
	var summary *models.RoomSummary
	if val := args.Get(0); val != nil {
		summary = val.(*models.RoomSummary)
	}
	return summary, args.Error(1)
}

func (m *RoomServiceMock) CreateGroup(ctx context.Context, creator models.User, name string, memberIDs []int) (models.RoomSummary, error) {
	args := m.Called(ctx, creator, name, memberIDs)
	var summary models.RoomSummary
	if val := args.Get(0); val != nil {
		summary = val.(models.RoomSummary)
	}
	return summary, args.Error(1)
}

func (m *RoomServiceMock) RequestJoinGroup(ctx context.Context, user models.User, roomID int) (models.MembershipStatus, error) {
	args := m.Called(ctx, user, roomID)
	var status models.MembershipStatus
	if val := args.Get(0); val != nil {
		status = val.(models.MembershipStatus)
	}
	return status, args.Error(1)
}

func (m *RoomServiceMock) ListGroupRequests(ctx context.Context, adminID int) ([]models.PendingRequest, error) {
	args := m.Called(ctx, adminID)
	var list []models.PendingRequest
	if val := args.Get(0); val != nil {
		list = val.([]models.PendingRequest)
	}
	return list, args.Error(1)
}

func (m *RoomServiceMock) RespondGroupJoin(ctx context.Context, admin models.User, roomID int, userID int, action models.ReviewAction) error {
	args := m.Called(ctx, admin, roomID, userID, action)
	return args.Error(0)
}

func (m *RoomServiceMock) DeleteGroup(ctx context.Context, creator models.User, roomID int) error {
	args := m.Called(ctx, creator, roomID)
	return args.Error(0)
}

type MessageServiceMock struct {
	mock.Mock
}

func (m *MessageServiceMock) Append(ctx context.Context, sender models.User, roomID int, body string, rawType string) (models.Message, error) {
	args := m.Called(ctx, sender, roomID, body, rawType)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageServiceMock) Edit(ctx context.Context, editor models.User, messageID int, body string) (models.Message, error) {
	args := m.Called(ctx, editor, messageID, body)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageServiceMock) SoftDelete(ctx context.Context, editor models.User, messageID int) (models.Message, error) {
	args := m.Called(ctx, editor, messageID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageServiceMock) MarkSeen(ctx context.Context, viewerID int, messageID int) (models.MessageStatusChanged, error) {
	args := m.Called(ctx, viewerID, messageID)
	var status models.MessageStatusChanged
	if val := args.Get(0); val != nil {
		status = val.(models.MessageStatusChanged)
	}
	return status, args.Error(1)
}

func (m *MessageServiceMock) ListForRoom(ctx context.Context, viewerID int, roomID int, limit int, beforeID int) ([]models.Message, error) {
	args := m.Called(ctx, viewerID, roomID, limit, beforeID)
	var list []models.Message
	if val := args.Get(0); val != nil {
		list = val.([]models.Message)
	}
	return list, args.Error(1)
}
