// Package services holds room and message operations on top of the repositories.
package services

import "chat-realtime/internal/models"

// Broadcaster is the realtime fan-out operations publish through.
// Publishing never blocks and never fails the caller.
type Broadcaster interface {
	PublishRoom(roomID int, event models.Event)
	PublishUser(userID int, event models.Event)
	JoinUserToRoom(userID int, roomID int)
	DropRoom(roomID int)
}

type nopBroadcaster struct{}

func (nopBroadcaster) PublishRoom(int, models.Event) {}
func (nopBroadcaster) PublishUser(int, models.Event) {}
func (nopBroadcaster) JoinUserToRoom(int, int)       {}
func (nopBroadcaster) DropRoom(int)                  {}
