package services

import (
	"time"

	"chat-realtime/internal/models"
)

// Relay delivers out-of-band alerts to a user's personal channel.
// Users without a live connection miss them.
type Relay struct {
	hub Broadcaster
	now func() time.Time
}

func NewRelay(hub Broadcaster) *Relay {
	if hub == nil {
		hub = nopBroadcaster{}
	}
	return &Relay{hub: hub, now: time.Now}
}

// Notify sends notification:new to every connection of userID.
func (r *Relay) Notify(userID int, n models.Notification) {
	if n.Timestamp.IsZero() {
		n.Timestamp = r.now().UTC()
	}
	r.hub.PublishUser(userID, n)
}

// RoomAvailable tells userID a room just became usable for them.
func (r *Relay) RoomAvailable(userID int, summary models.RoomSummary) {
	r.hub.PublishUser(userID, models.RoomAvailable{Room: summary})
}
