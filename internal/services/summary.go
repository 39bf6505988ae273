package services

import (
	"strings"
	"unicode"

	"chat-realtime/internal/models"
)

// Summarize projects a room snapshot for one viewer.
func Summarize(snap models.RoomSnapshot, viewerID int) models.RoomSummary {
	summary := models.RoomSummary{
		ID:           snap.ID,
		LastActivity: snap.CreatedAt,
		MembersCount: len(snap.Members),
	}
	if snap.LastMessageAt != nil {
		summary.LastActivity = *snap.LastMessageAt
	}

	if snap.Type == models.RoomGroup {
		summary.Type = "group"
		summary.Title = snap.Name
		if summary.Title == "" {
			summary.Title = "Group"
		}
		summary.Avatar = groupInitials(summary.Title)
		return summary
	}

	summary.Type = "direct"
	summary.Title = "Direct Chat"
	parties := append(append([]models.RoomMember{}, snap.Members...), snap.Invited...)
	if other, ok := otherMember(parties, viewerID); ok {
		if other.Username != "" {
			summary.Title = other.Username
		}
		summary.Online = other.IsOnline
	}
	summary.Avatar = strings.ToUpper(firstRunes(summary.Title, 2))
	return summary
}

func otherMember(members []models.RoomMember, viewerID int) (models.RoomMember, bool) {
	for _, m := range members {
		if m.UserID != viewerID {
			return m, true
		}
	}
	if len(members) > 0 {
		return members[0], true
	}
	return models.RoomMember{}, false
}

func groupInitials(name string) string {
	var b strings.Builder
	for i, word := range strings.Fields(name) {
		if i == 2 {
			break
		}
		r := []rune(word)[0]
		b.WriteRune(unicode.ToUpper(r))
	}
	if b.Len() == 0 {
		return "GR"
	}
	return b.String()
}

func firstRunes(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		r = r[:n]
	}
	return string(r)
}
