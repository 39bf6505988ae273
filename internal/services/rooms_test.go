package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-realtime/internal/apperr"
	"chat-realtime/internal/models"
)

func TestCreateDirectValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.rooms.CreateDirect(f.ctx, f.alice, f.alice.ID)
	assert.True(t, apperr.Is(err, apperr.KindInvalidInput))

	_, err = f.rooms.CreateDirect(f.ctx, f.alice, 404)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	assert.Zero(t, f.store.CountRooms(models.RoomDirect))
}

func TestCreateDirectOpensPendingRequest(t *testing.T) {
	f := newFixture(t)

	res, err := f.rooms.CreateDirect(f.ctx, f.alice, f.bob.ID)
	require.NoError(t, err)
	assert.True(t, res.RequestPending)
	assert.Equal(t, models.StatusPending, res.Status)
	assert.Nil(t, res.Room)

	creator, ok := f.store.Membership(res.RoomID, f.alice.ID)
	require.True(t, ok)
	assert.Equal(t, models.RoleAdmin, creator.Role)
	assert.Equal(t, models.StatusApproved, creator.Status)

	target, ok := f.store.Membership(res.RoomID, f.bob.ID)
	require.True(t, ok)
	assert.Equal(t, models.RoleMember, target.Role)
	assert.Equal(t, models.StatusPending, target.Status)

	notes := f.hub.Notifications(f.bob.ID)
	require.Len(t, notes, 1)
	assert.Equal(t, models.NotifyDirectRequest, notes[0].Type)
	assert.Equal(t, "alice wants to chat with you", notes[0].Body)
	assert.Equal(t, res.RoomID, notes[0].RoomID)
	assert.False(t, notes[0].Timestamp.IsZero())
}

func TestCreateDirectDeduplicates(t *testing.T) {
	f := newFixture(t)

	first, err := f.rooms.CreateDirect(f.ctx, f.alice, f.bob.ID)
	require.NoError(t, err)
	again, err := f.rooms.CreateDirect(f.ctx, f.alice, f.bob.ID)
	require.NoError(t, err)

	assert.Equal(t, first.RoomID, again.RoomID)
	assert.True(t, again.RequestPending)
	assert.Equal(t, 1, f.store.CountRooms(models.RoomDirect))
	assert.Len(t, f.hub.Notifications(f.bob.ID), 2, "pending request is re-notified")

	// the reverse direction resolves to the same room
	reverse, err := f.rooms.CreateDirect(f.ctx, f.bob, f.alice.ID)
	require.NoError(t, err)
	assert.Equal(t, first.RoomID, reverse.RoomID)
	assert.Equal(t, 1, f.store.CountRooms(models.RoomDirect))
}

func TestCreateDirectAfterRejectionResetsToPending(t *testing.T) {
	f := newFixture(t)
	res, err := f.rooms.CreateDirect(f.ctx, f.alice, f.bob.ID)
	require.NoError(t, err)

	_, err = f.rooms.RespondDirect(f.ctx, f.bob, res.RoomID, models.ActionReject)
	require.NoError(t, err)
	m, _ := f.store.Membership(res.RoomID, f.bob.ID)
	assert.Equal(t, models.StatusRejected, m.Status)

	again, err := f.rooms.CreateDirect(f.ctx, f.alice, f.bob.ID)
	require.NoError(t, err)
	assert.Equal(t, res.RoomID, again.RoomID)
	m, _ = f.store.Membership(res.RoomID, f.bob.ID)
	assert.Equal(t, models.StatusPending, m.Status)
}

func TestCreateDirectWhenApprovedReturnsRoom(t *testing.T) {
	f := newFixture(t)
	roomID := f.approvedDirect(t)
	before := len(f.hub.Notifications(f.bob.ID))

	res, err := f.rooms.CreateDirect(f.ctx, f.alice, f.bob.ID)
	require.NoError(t, err)
	assert.False(t, res.RequestPending)
	assert.Equal(t, models.StatusApproved, res.Status)
	require.NotNil(t, res.Room)
	assert.Equal(t, roomID, res.Room.ID)
	assert.Equal(t, "bob", res.Room.Title)
	assert.Len(t, f.hub.Notifications(f.bob.ID), before, "no new request once approved")
}

func TestRespondDirectApprove(t *testing.T) {
	f := newFixture(t)
	res, err := f.rooms.CreateDirect(f.ctx, f.alice, f.bob.ID)
	require.NoError(t, err)

	summary, err := f.rooms.RespondDirect(f.ctx, f.bob, res.RoomID, models.ActionApprove)
	require.NoError(t, err)
	require.NotNil(t, summary)
	assert.Equal(t, "alice", summary.Title)

	var available *models.RoomAvailable
	for _, e := range f.hub.UserEvents(f.alice.ID) {
		if ev, ok := e.(models.RoomAvailable); ok {
			available = &ev
		}
	}
	require.NotNil(t, available)
	assert.Equal(t, "bob", available.Room.Title)
	assert.Equal(t, 2, available.Room.MembersCount)

	notes := f.hub.Notifications(f.alice.ID)
	require.Len(t, notes, 1)
	assert.Equal(t, models.NotifyDirectResponse, notes[0].Type)
	assert.Equal(t, "bob accepted your request", notes[0].Body)

	assert.True(t, f.hub.Joined(f.alice.ID, res.RoomID))
	assert.True(t, f.hub.Joined(f.bob.ID, res.RoomID))
}

func TestRespondDirectRejectAndErrors(t *testing.T) {
	f := newFixture(t)
	res, err := f.rooms.CreateDirect(f.ctx, f.alice, f.bob.ID)
	require.NoError(t, err)

	_, err = f.rooms.RespondDirect(f.ctx, f.bob, res.RoomID, models.ReviewAction("MAYBE"))
	assert.True(t, apperr.Is(err, apperr.KindInvalidInput))

	_, err = f.rooms.RespondDirect(f.ctx, f.carol, res.RoomID, models.ActionApprove)
	assert.True(t, apperr.Is(err, apperr.KindNotFound), "only the addressed user has a pending row")

	summary, err := f.rooms.RespondDirect(f.ctx, f.bob, res.RoomID, models.ActionReject)
	require.NoError(t, err)
	assert.Nil(t, summary)
	notes := f.hub.Notifications(f.alice.ID)
	require.Len(t, notes, 1)
	assert.Equal(t, "bob rejected your request", notes[0].Body)

	_, err = f.rooms.RespondDirect(f.ctx, f.bob, res.RoomID, models.ActionApprove)
	assert.True(t, apperr.Is(err, apperr.KindNotFound), "a decided request cannot be decided again")
}

func TestListDirectRequests(t *testing.T) {
	f := newFixture(t)
	res, err := f.rooms.CreateDirect(f.ctx, f.alice, f.bob.ID)
	require.NoError(t, err)
	f.group(t, "Ops")

	requests, err := f.rooms.ListDirectRequests(f.ctx, f.bob.ID)
	require.NoError(t, err)
	require.Len(t, requests, 1)
	assert.Equal(t, res.RoomID, requests[0].RoomID)
	assert.Equal(t, f.alice.ID, requests[0].UserID)
	assert.Equal(t, "alice", requests[0].Username)

	none, err := f.rooms.ListDirectRequests(f.ctx, f.alice.ID)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestCreateGroup(t *testing.T) {
	f := newFixture(t)

	_, err := f.rooms.CreateGroup(f.ctx, f.alice, "   ", nil)
	assert.True(t, apperr.Is(err, apperr.KindInvalidInput))

	summary, err := f.rooms.CreateGroup(f.ctx, f.alice, "  Weekend Hikers ", []int{f.bob.ID, f.bob.ID, f.alice.ID, 404})
	require.NoError(t, err)
	assert.Equal(t, "Weekend Hikers", summary.Title)
	assert.Equal(t, "WH", summary.Avatar)
	assert.Equal(t, 2, summary.MembersCount)

	admin, _ := f.store.Membership(summary.ID, f.alice.ID)
	assert.Equal(t, models.RoleAdmin, admin.Role)
	member, _ := f.store.Membership(summary.ID, f.bob.ID)
	assert.Equal(t, models.RoleMember, member.Role)
	assert.Equal(t, models.StatusApproved, member.Status)
	_, ok := f.store.Membership(summary.ID, 404)
	assert.False(t, ok)

	assert.True(t, f.hub.Joined(f.bob.ID, summary.ID))
	var gotAvailable bool
	for _, e := range f.hub.UserEvents(f.bob.ID) {
		_, gotAvailable = e.(models.RoomAvailable)
	}
	assert.True(t, gotAvailable)
}

func TestRequestJoinGroup(t *testing.T) {
	f := newFixture(t)
	roomID := f.group(t, "Ops", f.bob.ID)

	_, err := f.rooms.RequestJoinGroup(f.ctx, f.bob, roomID)
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	status, err := f.rooms.RequestJoinGroup(f.ctx, f.carol, roomID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, status)
	m, _ := f.store.Membership(roomID, f.carol.ID)
	assert.Equal(t, models.StatusPending, m.Status)

	notes := f.hub.Notifications(f.alice.ID)
	require.Len(t, notes, 1)
	assert.Equal(t, models.NotifyGroupJoin, notes[0].Type)
	assert.Equal(t, "carol requested to join Ops", notes[0].Body)
	assert.Empty(t, f.hub.Notifications(f.bob.ID), "plain members are not asked")

	status, err = f.rooms.RequestJoinGroup(f.ctx, f.carol, roomID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, status)

	direct := f.approvedDirect(t)
	_, err = f.rooms.RequestJoinGroup(f.ctx, f.carol, direct)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	_, err = f.rooms.RequestJoinGroup(f.ctx, f.carol, 999)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestRespondGroupJoin(t *testing.T) {
	f := newFixture(t)
	roomID := f.group(t, "Ops", f.bob.ID)
	_, err := f.rooms.RequestJoinGroup(f.ctx, f.carol, roomID)
	require.NoError(t, err)

	_, err = f.ledger.ListForRoom(f.ctx, f.carol.ID, roomID, MaxPageSize, 0)
	assert.True(t, apperr.Is(err, apperr.KindAccessDenied), "pending members cannot read history")

	err = f.rooms.RespondGroupJoin(f.ctx, f.bob, roomID, f.carol.ID, models.ActionApprove)
	assert.True(t, apperr.Is(err, apperr.KindAccessDenied))

	err = f.rooms.RespondGroupJoin(f.ctx, f.alice, roomID, f.bob.ID, models.ActionApprove)
	assert.True(t, apperr.Is(err, apperr.KindNotFound), "bob has no pending request")

	require.NoError(t, f.rooms.RespondGroupJoin(f.ctx, f.alice, roomID, f.carol.ID, models.ActionApprove))
	assert.True(t, f.guard.CanAccess(f.ctx, roomID, f.carol.ID))
	assert.True(t, f.hub.Joined(f.carol.ID, roomID))

	var available []models.RoomAvailable
	for _, e := range f.hub.UserEvents(f.carol.ID) {
		if ev, ok := e.(models.RoomAvailable); ok {
			available = append(available, ev)
		}
	}
	require.Len(t, available, 1)
	assert.Equal(t, roomID, available[0].Room.ID)
	assert.Equal(t, "Ops", available[0].Room.Title)

	_, err = f.ledger.ListForRoom(f.ctx, f.carol.ID, roomID, MaxPageSize, 0)
	assert.NoError(t, err, "approved members read history")

	notes := f.hub.Notifications(f.carol.ID)
	require.Len(t, notes, 1)
	assert.Equal(t, "Your request to join was approved", notes[0].Body)

	groups, err := f.rooms.ListGroupRequests(f.ctx, f.alice.ID)
	require.NoError(t, err)
	assert.Empty(t, groups)
}

func TestRejectedJoinCanBeRequestedAgain(t *testing.T) {
	f := newFixture(t)
	roomID := f.group(t, "Ops")
	_, err := f.rooms.RequestJoinGroup(f.ctx, f.carol, roomID)
	require.NoError(t, err)

	pending, err := f.rooms.ListGroupRequests(f.ctx, f.alice.ID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "Ops", pending[0].RoomName)

	require.NoError(t, f.rooms.RespondGroupJoin(f.ctx, f.alice, roomID, f.carol.ID, models.ActionReject))
	m, _ := f.store.Membership(roomID, f.carol.ID)
	assert.Equal(t, models.StatusRejected, m.Status)

	_, err = f.rooms.RequestJoinGroup(f.ctx, f.carol, roomID)
	require.NoError(t, err)
	m, _ = f.store.Membership(roomID, f.carol.ID)
	assert.Equal(t, models.StatusPending, m.Status)
}

func TestDeleteGroup(t *testing.T) {
	f := newFixture(t)
	roomID := f.group(t, "Ops", f.bob.ID)

	err := f.rooms.DeleteGroup(f.ctx, f.bob, roomID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	require.NoError(t, f.rooms.DeleteGroup(f.ctx, f.alice, roomID))
	assert.Equal(t, []int{roomID}, f.hub.Dropped())
	assert.False(t, f.guard.CanAccess(f.ctx, roomID, f.bob.ID))

	notes := f.hub.Notifications(f.bob.ID)
	require.NotEmpty(t, notes)
	assert.Equal(t, models.NotifyGroupDeleted, notes[len(notes)-1].Type)
	assert.Equal(t, "alice deleted Ops", notes[len(notes)-1].Body)

	err = f.rooms.DeleteGroup(f.ctx, f.alice, 999)
	assert.True(t, apperr.Is(err, apperr.KindNotFound), "unknown room")

	err = f.rooms.DeleteGroup(f.ctx, f.alice, roomID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound), "already deleted")

	_, err = f.rooms.Summary(f.ctx, roomID, f.alice.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestListRoomsOrdersByActivity(t *testing.T) {
	f := newFixture(t)
	ops := f.group(t, "Ops", f.bob.ID)
	direct := f.approvedDirect(t)
	pending, err := f.rooms.CreateDirect(f.ctx, f.alice, f.carol.ID)
	require.NoError(t, err)

	_, err = f.ledger.Append(f.ctx, f.bob, ops, "newest activity", "")
	require.NoError(t, err)

	rooms, err := f.rooms.ListRooms(f.ctx, f.alice.ID)
	require.NoError(t, err)
	ids := make([]int, 0, len(rooms))
	for _, r := range rooms {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []int{ops, pending.RoomID, direct}, ids)
	assert.Equal(t, "carol", rooms[1].Title, "a pending direct room is titled by the invitee")

	carolRooms, err := f.rooms.ListRooms(f.ctx, f.carol.ID)
	require.NoError(t, err)
	assert.Empty(t, carolRooms, "pending memberships are not listed")
}
