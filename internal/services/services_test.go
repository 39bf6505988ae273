package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"chat-realtime/internal/models"
	"chat-realtime/internal/testutil"
)

type fixture struct {
	ctx    context.Context
	store  *testutil.Store
	hub    *testutil.Recorder
	guard  *Guard
	rooms  *RoomService
	ledger *Ledger
	alice  models.User
	bob    models.User
	carol  models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := testutil.NewStore()
	hub := &testutil.Recorder{}
	relay := NewRelay(hub)
	guard := NewGuard(store)
	return &fixture{
		ctx:    context.Background(),
		store:  store,
		hub:    hub,
		guard:  guard,
		rooms:  NewRoomService(store, store, store, hub, relay, nil),
		ledger: NewLedger(store, guard, hub, relay, nil),
		alice:  store.AddUser(1, "alice"),
		bob:    store.AddUser(2, "bob"),
		carol:  store.AddUser(3, "carol"),
	}
}

// approvedDirect creates a direct room between alice and bob and approves it.
func (f *fixture) approvedDirect(t *testing.T) int {
	t.Helper()
	res, err := f.rooms.CreateDirect(f.ctx, f.alice, f.bob.ID)
	require.NoError(t, err)
	_, err = f.rooms.RespondDirect(f.ctx, f.bob, res.RoomID, models.ActionApprove)
	require.NoError(t, err)
	return res.RoomID
}

// group creates a group owned by alice with the given members approved.
func (f *fixture) group(t *testing.T, name string, members ...int) int {
	t.Helper()
	summary, err := f.rooms.CreateGroup(f.ctx, f.alice, name, members)
	require.NoError(t, err)
	return summary.ID
}
