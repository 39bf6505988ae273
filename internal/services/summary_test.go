package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"chat-realtime/internal/models"
)

func TestSummarizeDirect(t *testing.T) {
	created := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	snap := models.RoomSnapshot{
		Room: models.Room{ID: 4, Type: models.RoomDirect, CreatedAt: created},
		Members: []models.RoomMember{
			{UserID: 1, Username: "alice"},
			{UserID: 2, Username: "bob", IsOnline: true},
		},
	}

	summary := Summarize(snap, 1)
	assert.Equal(t, "bob", summary.Title)
	assert.Equal(t, "BO", summary.Avatar)
	assert.Equal(t, "direct", summary.Type)
	assert.True(t, summary.Online)
	assert.Equal(t, created, summary.LastActivity)
	assert.Equal(t, 2, summary.MembersCount)

	fromBob := Summarize(snap, 2)
	assert.Equal(t, "alice", fromBob.Title)
	assert.False(t, fromBob.Online)
}

func TestSummarizeDirectWithPendingCounterpart(t *testing.T) {
	snap := models.RoomSnapshot{
		Room:    models.Room{ID: 5, Type: models.RoomDirect},
		Members: []models.RoomMember{{UserID: 1, Username: "alice", IsOnline: true}},
		Invited: []models.RoomMember{{UserID: 3, Username: "carol"}},
	}

	summary := Summarize(snap, 1)
	assert.Equal(t, "carol", summary.Title)
	assert.Equal(t, "CA", summary.Avatar)
	assert.False(t, summary.Online, "the viewer's own flag is never shown")
	assert.Equal(t, 1, summary.MembersCount)
}

func TestSummarizeGroup(t *testing.T) {
	last := time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC)
	cases := []struct {
		name   string
		title  string
		avatar string
	}{
		{"Weekend Hikers Club", "Weekend Hikers Club", "WH"},
		{"team", "team", "T"},
		{"", "Group", "G"},
		{"ёлка party", "ёлка party", "ЁP"},
	}
	for _, tc := range cases {
		snap := models.RoomSnapshot{
			Room:          models.Room{ID: 9, Type: models.RoomGroup, Name: tc.name},
			LastMessageAt: &last,
			Members:       []models.RoomMember{{UserID: 1, IsOnline: true}},
		}
		summary := Summarize(snap, 1)
		assert.Equal(t, tc.title, summary.Title)
		assert.Equal(t, tc.avatar, summary.Avatar, tc.name)
		assert.Equal(t, "group", summary.Type)
		assert.False(t, summary.Online)
		assert.Equal(t, last, summary.LastActivity)
	}
}

func TestGroupInitialsFallback(t *testing.T) {
	assert.Equal(t, "GR", groupInitials("   "))
}
