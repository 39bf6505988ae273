package testutil

import (
	"sync"

	"chat-realtime/internal/models"
)

// Published is one event captured by Recorder.
type Published struct {
	RoomID int
	UserID int
	Event  models.Event
}

// Recorder captures everything published through it.
type Recorder struct {
	mu      sync.Mutex
	rooms   []Published
	users   []Published
	joins   [][2]int
	dropped []int
}

func (r *Recorder) PublishRoom(roomID int, event models.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rooms = append(r.rooms, Published{RoomID: roomID, Event: event})
}

func (r *Recorder) PublishUser(userID int, event models.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users = append(r.users, Published{UserID: userID, Event: event})
}

func (r *Recorder) JoinUserToRoom(userID int, roomID int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.joins = append(r.joins, [2]int{userID, roomID})
}

func (r *Recorder) DropRoom(roomID int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dropped = append(r.dropped, roomID)
}

// RoomEvents returns events published to roomID, in order.
func (r *Recorder) RoomEvents(roomID int) []models.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Event
	for _, p := range r.rooms {
		if p.RoomID == roomID {
			out = append(out, p.Event)
		}
	}
	return out
}

// UserEvents returns events published to userID's personal channel, in order.
func (r *Recorder) UserEvents(userID int) []models.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Event
	for _, p := range r.users {
		if p.UserID == userID {
			out = append(out, p.Event)
		}
	}
	return out
}

// Notifications returns notification:new events sent to userID.
func (r *Recorder) Notifications(userID int) []models.Notification {
	var out []models.Notification
	for _, e := range r.UserEvents(userID) {
		if n, ok := e.(models.Notification); ok {
			out = append(out, n)
		}
	}
	return out
}

// Joined reports whether userID was subscribed to roomID.
func (r *Recorder) Joined(userID, roomID int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, j := range r.joins {
		if j[0] == userID && j[1] == roomID {
			return true
		}
	}
	return false
}

// Dropped returns rooms whose channel was dropped.
func (r *Recorder) Dropped() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.dropped...)
}
