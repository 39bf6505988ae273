// Package testutil provides in-memory fakes for service and realtime tests.
package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"chat-realtime/internal/models"
	"chat-realtime/internal/repositories"
)

type memberKey struct {
	room int
	user int
}

type statusKey struct {
	message int
	user    int
}

type session struct {
	userID    int
	valid     bool
	expiresAt time.Time
}

// Store is an in-memory implementation of every repository interface.
type Store struct {
	mu       sync.Mutex
	now      time.Time
	nextID   int
	users    map[int]models.User
	sessions map[string]session
	rooms    map[int]models.Room
	direct   map[string]int
	members  map[memberKey]models.Membership
	messages map[int]models.Message
	statuses map[statusKey]models.StatusRow

	// FailAccess makes AccessInfo fail with a store error.
	FailAccess bool
}

var (
	_ repositories.RoomRepository       = (*Store)(nil)
	_ repositories.MembershipRepository = (*Store)(nil)
	_ repositories.MessageRepository    = (*Store)(nil)
	_ repositories.UserRepository       = (*Store)(nil)
	_ repositories.SessionRepository    = (*Store)(nil)
)

func NewStore() *Store {
	return &Store{
		now:      time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
		users:    make(map[int]models.User),
		sessions: make(map[string]session),
		rooms:    make(map[int]models.Room),
		direct:   make(map[string]int),
		members:  make(map[memberKey]models.Membership),
		messages: make(map[int]models.Message),
		statuses: make(map[statusKey]models.StatusRow),
	}
}

// tick advances the fake clock so every write gets a distinct timestamp.
func (s *Store) tick() time.Time {
	s.now = s.now.Add(time.Second)
	return s.now
}

func (s *Store) id() int {
	s.nextID++
	return s.nextID
}

// AddUser seeds a user.
func (s *Store) AddUser(id int, username string) models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	user := models.User{ID: id, Username: username}
	s.users[id] = user
	return user
}

// AddSession seeds a session row for token.
func (s *Store) AddSession(token string, userID int, valid bool, expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[token] = session{userID: userID, valid: valid, expiresAt: expiresAt}
}

// Membership returns the raw membership row.
func (s *Store) Membership(roomID, userID int) (models.Membership, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[memberKey{roomID, userID}]
	return m, ok
}

// StatusOf returns the raw status row.
func (s *Store) StatusOf(messageID, userID int) (models.StatusRow, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.statuses[statusKey{messageID, userID}]
	return row, ok
}

// StatusRows returns every status row of a message ordered by user.
func (s *Store) StatusRows(messageID int) []models.StatusRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	var rows []models.StatusRow
	for key, row := range s.statuses {
		if key.message == messageID {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].UserID < rows[j].UserID })
	return rows
}

// SetRoomActive flips a room's active flag.
func (s *Store) SetRoomActive(roomID int, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room := s.rooms[roomID]
	room.IsActive = active
	s.rooms[roomID] = room
}

// CountRooms counts rooms of a type.
func (s *Store) CountRooms(roomType models.RoomType) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.rooms {
		if r.Type == roomType {
			n++
		}
	}
	return n
}

func (s *Store) GetRoom(ctx context.Context, roomID int) (models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return models.Room{}, repositories.ErrRoomNotFound
	}
	return room, nil
}

func (s *Store) FindDirectPairing(ctx context.Context, requesterID int, targetID int) (models.DirectPairing, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int, 0, len(s.rooms))
	for id := range s.rooms {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		room := s.rooms[id]
		if room.Type != models.RoomDirect || !room.IsActive {
			continue
		}
		req, okReq := s.members[memberKey{id, requesterID}]
		tgt, okTgt := s.members[memberKey{id, targetID}]
		if okReq && okTgt {
			return models.DirectPairing{RoomID: id, RequesterStatus: req.Status, TargetStatus: tgt.Status}, true, nil
		}
	}
	return models.DirectPairing{}, false, nil
}

func (s *Store) CreateDirectRoom(ctx context.Context, requesterID int, targetID int) (models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := repositories.DirectKey(requesterID, targetID)
	if id, ok := s.direct[key]; ok && s.rooms[id].IsActive {
		return models.Room{}, repositories.ErrDirectRoomExists
	}
	now := s.tick()
	room := models.Room{ID: s.id(), Type: models.RoomDirect, CreatedBy: requesterID, IsActive: true, CreatedAt: now}
	s.rooms[room.ID] = room
	s.direct[key] = room.ID
	s.members[memberKey{room.ID, requesterID}] = models.Membership{RoomID: room.ID, UserID: requesterID, Role: models.RoleAdmin, Status: models.StatusApproved, JoinedAt: now}
	s.members[memberKey{room.ID, targetID}] = models.Membership{RoomID: room.ID, UserID: targetID, Role: models.RoleMember, Status: models.StatusPending, JoinedAt: now}
	return room, nil
}

func (s *Store) CreateGroupRoom(ctx context.Context, creatorID int, name string, memberIDs []int) (models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.tick()
	room := models.Room{ID: s.id(), Type: models.RoomGroup, Name: name, CreatedBy: creatorID, IsActive: true, CreatedAt: now}
	s.rooms[room.ID] = room
	s.members[memberKey{room.ID, creatorID}] = models.Membership{RoomID: room.ID, UserID: creatorID, Role: models.RoleAdmin, Status: models.StatusApproved, JoinedAt: now}
	for _, id := range memberIDs {
		if _, ok := s.users[id]; !ok || id == creatorID {
			continue
		}
		if _, exists := s.members[memberKey{room.ID, id}]; exists {
			continue
		}
		s.members[memberKey{room.ID, id}] = models.Membership{RoomID: room.ID, UserID: id, Role: models.RoleMember, Status: models.StatusApproved, JoinedAt: now}
	}
	return room, nil
}

func (s *Store) Snapshot(ctx context.Context, roomID int, viewerID int) (models.RoomSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	if !ok || !room.IsActive {
		return models.RoomSnapshot{}, repositories.ErrRoomNotFound
	}
	if m, ok := s.members[memberKey{roomID, viewerID}]; !ok || m.Status != models.StatusApproved {
		return models.RoomSnapshot{}, repositories.ErrRoomNotFound
	}
	return s.snapshot(room), nil
}

func (s *Store) snapshot(room models.Room) models.RoomSnapshot {
	snap := models.RoomSnapshot{Room: room}
	for _, msg := range s.messages {
		if msg.RoomID != room.ID {
			continue
		}
		if snap.LastMessageAt == nil || msg.CreatedAt.After(*snap.LastMessageAt) {
			at := msg.CreatedAt
			snap.LastMessageAt = &at
		}
	}
	for _, id := range s.approvedLocked(room.ID) {
		user := s.users[id]
		snap.Members = append(snap.Members, models.RoomMember{UserID: id, Username: user.Username, IsOnline: user.IsOnline})
	}
	if room.Type == models.RoomDirect {
		for key, m := range s.members {
			if key.room == room.ID && m.Status != models.StatusApproved {
				user := s.users[key.user]
				snap.Invited = append(snap.Invited, models.RoomMember{UserID: key.user, Username: user.Username, IsOnline: user.IsOnline})
			}
		}
	}
	return snap
}

func (s *Store) ListSnapshots(ctx context.Context, viewerID int) ([]models.RoomSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snaps := []models.RoomSnapshot{}
	for _, room := range s.rooms {
		if !room.IsActive {
			continue
		}
		if m, ok := s.members[memberKey{room.ID, viewerID}]; !ok || m.Status != models.StatusApproved {
			continue
		}
		snaps = append(snaps, s.snapshot(room))
	}
	activity := func(snap models.RoomSnapshot) time.Time {
		if snap.LastMessageAt != nil {
			return *snap.LastMessageAt
		}
		return snap.CreatedAt
	}
	sort.Slice(snaps, func(i, j int) bool {
		ai, aj := activity(snaps[i]), activity(snaps[j])
		if ai.Equal(aj) {
			return snaps[i].ID > snaps[j].ID
		}
		return ai.After(aj)
	})
	return snaps, nil
}

func (s *Store) DeactivateGroup(ctx context.Context, roomID int, creatorID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	if !ok || room.Type != models.RoomGroup || room.CreatedBy != creatorID || !room.IsActive {
		return repositories.ErrRoomNotFound
	}
	room.IsActive = false
	s.rooms[roomID] = room
	return nil
}

func (s *Store) Upsert(ctx context.Context, m models.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := memberKey{m.RoomID, m.UserID}
	existing, ok := s.members[key]
	if ok {
		existing.Status = m.Status
		if m.Status == models.StatusPending {
			existing.JoinedAt = s.tick()
		}
		s.members[key] = existing
		return nil
	}
	m.JoinedAt = s.tick()
	s.members[key] = m
	return nil
}

func (s *Store) GetStatus(ctx context.Context, roomID int, userID int) (models.MembershipStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[memberKey{roomID, userID}]
	if !ok {
		return "", repositories.ErrMembershipNotFound
	}
	return m.Status, nil
}

func (s *Store) ListMembers(ctx context.Context, roomID int) ([]models.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Membership
	for key, m := range s.members {
		if key.room == roomID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (s *Store) approvedLocked(roomID int) []int {
	var ids []int
	for key, m := range s.members {
		if key.room == roomID && m.Status == models.StatusApproved {
			ids = append(ids, key.user)
		}
	}
	sort.Ints(ids)
	return ids
}

func (s *Store) ListApprovedMembers(ctx context.Context, roomID int) ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.approvedLocked(roomID), nil
}

func (s *Store) ListAdmins(ctx context.Context, roomID int) ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []int
	for key, m := range s.members {
		if key.room == roomID && m.Role == models.RoleAdmin && m.Status == models.StatusApproved {
			ids = append(ids, key.user)
		}
	}
	sort.Ints(ids)
	return ids, nil
}

func (s *Store) ListPendingForApprover(ctx context.Context, approverID int) ([]models.PendingRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.PendingRequest{}
	for key, m := range s.members {
		room := s.rooms[key.room]
		if !room.IsActive || m.Status != models.StatusPending {
			continue
		}
		switch room.Type {
		case models.RoomDirect:
			if key.user != approverID {
				continue
			}
			for other, om := range s.members {
				if other.room == room.ID && other.user != approverID && om.Status == models.StatusApproved {
					out = append(out, models.PendingRequest{RoomID: room.ID, RoomType: room.Type, UserID: other.user, Username: s.users[other.user].Username, RequestedAt: m.JoinedAt})
				}
			}
		case models.RoomGroup:
			admin, ok := s.members[memberKey{room.ID, approverID}]
			if !ok || admin.Role != models.RoleAdmin || admin.Status != models.StatusApproved {
				continue
			}
			out = append(out, models.PendingRequest{RoomID: room.ID, RoomType: room.Type, RoomName: room.Name, UserID: key.user, Username: s.users[key.user].Username, RequestedAt: m.JoinedAt})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestedAt.After(out[j].RequestedAt) })
	return out, nil
}

func (s *Store) TransitionPending(ctx context.Context, roomID int, userID int, roomType models.RoomType, next models.MembershipStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	m, mok := s.members[memberKey{roomID, userID}]
	if !ok || !mok || !room.IsActive || room.Type != roomType || m.Status != models.StatusPending {
		return repositories.ErrNoPendingRequest
	}
	m.Status = next
	s.members[memberKey{roomID, userID}] = m
	return nil
}

func (s *Store) ListApprovedRoomIDs(ctx context.Context, userID int) ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []int
	for key, m := range s.members {
		if key.user == userID && m.Status == models.StatusApproved && s.rooms[key.room].IsActive {
			ids = append(ids, key.room)
		}
	}
	sort.Ints(ids)
	return ids, nil
}

func (s *Store) IsApprovedInActiveRoom(ctx context.Context, roomID int, userID int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[memberKey{roomID, userID}]
	return ok && m.Status == models.StatusApproved && s.rooms[roomID].IsActive, nil
}

func (s *Store) AccessInfo(ctx context.Context, roomID int, userID int) (models.AccessInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailAccess {
		return models.AccessInfo{}, context.DeadlineExceeded
	}
	room, ok := s.rooms[roomID]
	if !ok {
		return models.AccessInfo{}, repositories.ErrRoomNotFound
	}
	m, mok := s.members[memberKey{roomID, userID}]
	return models.AccessInfo{
		RoomType:      room.Type,
		IsActive:      room.IsActive,
		UserApproved:  mok && m.Status == models.StatusApproved,
		ApprovedCount: len(s.approvedLocked(roomID)),
	}, nil
}

func (s *Store) Append(ctx context.Context, roomID int, senderID int, body string, msgType models.MessageType) (models.Message, []models.StatusRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.tick()
	msg := models.Message{
		ID:         s.id(),
		RoomID:     roomID,
		SenderID:   senderID,
		SenderName: s.users[senderID].Username,
		Body:       body,
		Type:       msgType,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.messages[msg.ID] = msg
	var rows []models.StatusRow
	for _, id := range s.approvedLocked(roomID) {
		status := models.DeliveryDelivered
		if id == senderID {
			status = models.DeliverySeen
		}
		row := models.StatusRow{MessageID: msg.ID, UserID: id, Status: status, UpdatedAt: now}
		s.statuses[statusKey{msg.ID, id}] = row
		rows = append(rows, row)
	}
	msg.Status = models.DeliverySeen
	return msg, rows, nil
}

func (s *Store) GetMessage(ctx context.Context, messageID int) (models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.messages[messageID]
	if !ok {
		return models.Message{}, repositories.ErrMessageNotFound
	}
	return msg, nil
}

func (s *Store) Edit(ctx context.Context, messageID int, senderID int, body string) (models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.messages[messageID]
	if !ok || msg.SenderID != senderID || msg.IsDeleted {
		return models.Message{}, repositories.ErrMessageNotFound
	}
	msg.Body = body
	msg.IsEdited = true
	msg.UpdatedAt = s.tick()
	s.messages[messageID] = msg
	return msg, nil
}

func (s *Store) SoftDelete(ctx context.Context, messageID int, senderID int) (models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.messages[messageID]
	if !ok || msg.SenderID != senderID || msg.IsDeleted {
		return models.Message{}, repositories.ErrMessageNotFound
	}
	msg.Body = models.DeletedPlaceholder
	msg.IsDeleted = true
	msg.UpdatedAt = s.tick()
	s.messages[messageID] = msg
	return msg, nil
}

func (s *Store) MarkSeen(ctx context.Context, messageID int, userID int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := statusKey{messageID, userID}
	row, ok := s.statuses[key]
	if ok && row.Status == models.DeliverySeen {
		return false, nil
	}
	s.statuses[key] = models.StatusRow{MessageID: messageID, UserID: userID, Status: models.DeliverySeen, UpdatedAt: s.tick()}
	return true, nil
}

func (s *Store) ListForRoom(ctx context.Context, roomID int, viewerID int, limit int, beforeID int) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []models.Message
	for _, msg := range s.messages {
		if msg.RoomID != roomID || (beforeID > 0 && msg.ID >= beforeID) {
			continue
		}
		msg.Status = models.DeliverySent
		if row, ok := s.statuses[statusKey{msg.ID, viewerID}]; ok {
			msg.Status = row.Status
		}
		all = append(all, msg.Sanitized())
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	if all == nil {
		all = []models.Message{}
	}
	return all, nil
}

func (s *Store) GetUser(ctx context.Context, userID int) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return models.User{}, repositories.ErrUserNotFound
	}
	return user, nil
}

func (s *Store) SetOnline(ctx context.Context, userID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return repositories.ErrUserNotFound
	}
	user.IsOnline = true
	s.users[userID] = user
	return nil
}

func (s *Store) SetOffline(ctx context.Context, userID int) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return time.Time{}, repositories.ErrUserNotFound
	}
	now := s.tick()
	user.IsOnline = false
	user.LastSeen = &now
	s.users[userID] = user
	return now, nil
}

func (s *Store) FindActiveSession(ctx context.Context, token string, userID int) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[token]
	if !ok || !sess.valid || sess.userID != userID || !sess.expiresAt.After(time.Now()) {
		return models.User{}, repositories.ErrSessionNotFound
	}
	user, ok := s.users[userID]
	if !ok {
		return models.User{}, repositories.ErrSessionNotFound
	}
	return user, nil
}
