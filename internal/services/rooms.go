package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"chat-realtime/internal/apperr"
	"chat-realtime/internal/models"
	"chat-realtime/internal/repositories"
	"chat-realtime/internal/telemetry"
)

// RoomService resolves room summaries and runs the membership workflows.
type RoomService struct {
	rooms   repositories.RoomRepository
	members repositories.MembershipRepository
	users   repositories.UserRepository
	hub     Broadcaster
	relay   *Relay
	audit   telemetry.Auditor
}

func NewRoomService(rooms repositories.RoomRepository, members repositories.MembershipRepository, users repositories.UserRepository, hub Broadcaster, relay *Relay, audit telemetry.Auditor) *RoomService {
	if hub == nil {
		hub = nopBroadcaster{}
	}
	if relay == nil {
		relay = NewRelay(hub)
	}
	return &RoomService{rooms: rooms, members: members, users: users, hub: hub, relay: relay, audit: audit}
}

// Summary returns the viewer's projection of a room they are approved in.
func (s *RoomService) Summary(ctx context.Context, roomID int, viewerID int) (models.RoomSummary, error) {
	snap, err := s.rooms.Snapshot(ctx, roomID, viewerID)
	if err != nil {
		if errors.Is(err, repositories.ErrRoomNotFound) {
			return models.RoomSummary{}, apperr.NotFound("room not found")
		}
		return models.RoomSummary{}, fmt.Errorf("load room: %w", err)
	}
	return Summarize(snap, viewerID), nil
}

// ListRooms returns every active room the viewer is approved in, latest activity first.
func (s *RoomService) ListRooms(ctx context.Context, viewerID int) ([]models.RoomSummary, error) {
	snaps, err := s.rooms.ListSnapshots(ctx, viewerID)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	summaries := make([]models.RoomSummary, 0, len(snaps))
	for _, snap := range snaps {
		summaries = append(summaries, Summarize(snap, viewerID))
	}
	return summaries, nil
}

// CreateDirect returns the existing direct room for the pair or opens a new request.
func (s *RoomService) CreateDirect(ctx context.Context, requester models.User, targetID int) (models.DirectRequestResult, error) {
	if targetID == requester.ID {
		return models.DirectRequestResult{}, apperr.InvalidInput("cannot create direct room with yourself")
	}
	if _, err := s.users.GetUser(ctx, targetID); err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return models.DirectRequestResult{}, apperr.NotFound("target user not found")
		}
		return models.DirectRequestResult{}, fmt.Errorf("load target user: %w", err)
	}
	return s.resolveDirect(ctx, requester, targetID, true)
}

func (s *RoomService) resolveDirect(ctx context.Context, requester models.User, targetID int, retry bool) (models.DirectRequestResult, error) {
	pairing, found, err := s.rooms.FindDirectPairing(ctx, requester.ID, targetID)
	if err != nil {
		return models.DirectRequestResult{}, fmt.Errorf("find direct room: %w", err)
	}

	if found {
		if pairing.RequesterStatus == models.StatusApproved && pairing.TargetStatus == models.StatusApproved {
			summary, err := s.Summary(ctx, pairing.RoomID, requester.ID)
			if err != nil {
				return models.DirectRequestResult{}, err
			}
			return models.DirectRequestResult{Room: &summary, RoomID: pairing.RoomID, Status: models.StatusApproved}, nil
		}
		if pairing.TargetStatus == models.StatusRejected {
			if err := s.members.Upsert(ctx, models.Membership{RoomID: pairing.RoomID, UserID: targetID, Role: models.RoleMember, Status: models.StatusPending}); err != nil {
				return models.DirectRequestResult{}, fmt.Errorf("reset direct request: %w", err)
			}
		}
		s.notifyDirectRequest(requester, targetID, pairing.RoomID)
		return models.DirectRequestResult{RoomID: pairing.RoomID, RequestPending: true, Status: models.StatusPending}, nil
	}

	room, err := s.rooms.CreateDirectRoom(ctx, requester.ID, targetID)
	if err != nil {
		if errors.Is(err, repositories.ErrDirectRoomExists) {
			if retry {
				return s.resolveDirect(ctx, requester, targetID, false)
			}
			return models.DirectRequestResult{}, apperr.Wrap(apperr.KindConflict, "direct room already exists", err)
		}
		return models.DirectRequestResult{}, fmt.Errorf("create direct room: %w", err)
	}

	s.emit(ctx, telemetry.AuditEntry{Action: "room.direct.requested", Text: "direct room requested", ActorID: requester.ID, RoomID: room.ID, TargetID: targetID})
	s.notifyDirectRequest(requester, targetID, room.ID)
	return models.DirectRequestResult{RoomID: room.ID, RequestPending: true, Status: models.StatusPending}, nil
}

func (s *RoomService) notifyDirectRequest(requester models.User, targetID int, roomID int) {
	s.relay.Notify(targetID, models.Notification{
		Title:  "Private chat request",
		Body:   fmt.Sprintf("%s wants to chat with you", requester.Username),
		RoomID: roomID,
		Type:   models.NotifyDirectRequest,
	})
}

// ListDirectRequests returns pending direct requests addressed to the viewer.
func (s *RoomService) ListDirectRequests(ctx context.Context, viewerID int) ([]models.PendingRequest, error) {
	return s.pendingOfType(ctx, viewerID, models.RoomDirect)
}

// ListGroupRequests returns pending join requests for groups the admin runs.
func (s *RoomService) ListGroupRequests(ctx context.Context, adminID int) ([]models.PendingRequest, error) {
	return s.pendingOfType(ctx, adminID, models.RoomGroup)
}

func (s *RoomService) pendingOfType(ctx context.Context, approverID int, roomType models.RoomType) ([]models.PendingRequest, error) {
	all, err := s.members.ListPendingForApprover(ctx, approverID)
	if err != nil {
		return nil, fmt.Errorf("list pending requests: %w", err)
	}
	requests := make([]models.PendingRequest, 0, len(all))
	for _, req := range all {
		if req.RoomType == roomType {
			requests = append(requests, req)
		}
	}
	return requests, nil
}

// RespondDirect approves or rejects a direct request addressed to the viewer.
// On approval the viewer's summary of the room is returned.
func (s *RoomService) RespondDirect(ctx context.Context, viewer models.User, roomID int, action models.ReviewAction) (*models.RoomSummary, error) {
	next, ok := action.NextStatus()
	if !ok {
		return nil, apperr.InvalidInput("action must be APPROVE or REJECT")
	}
	if err := s.members.TransitionPending(ctx, roomID, viewer.ID, models.RoomDirect, next); err != nil {
		if errors.Is(err, repositories.ErrNoPendingRequest) {
			return nil, apperr.NotFound("pending request not found")
		}
		return nil, fmt.Errorf("respond direct request: %w", err)
	}

	requesterID := s.counterpart(ctx, roomID, viewer.ID)
	s.emit(ctx, telemetry.AuditEntry{Action: "room.direct." + strings.ToLower(string(next)), Text: "direct request answered", ActorID: viewer.ID, RoomID: roomID, TargetID: requesterID})

	var summary *models.RoomSummary
	if next == models.StatusApproved {
		s.hub.JoinUserToRoom(viewer.ID, roomID)
		if mine, err := s.Summary(ctx, roomID, viewer.ID); err == nil {
			summary = &mine
		}
		if requesterID != 0 {
			s.hub.JoinUserToRoom(requesterID, roomID)
			if theirs, err := s.Summary(ctx, roomID, requesterID); err == nil {
				s.relay.RoomAvailable(requesterID, theirs)
			} else {
				log.Printf("room available summary failed room_id=%d user_id=%d: %v", roomID, requesterID, err)
			}
		}
	}

	if requesterID != 0 {
		verb := "rejected"
		if next == models.StatusApproved {
			verb = "accepted"
		}
		s.relay.Notify(requesterID, models.Notification{
			Title:  "Private request update",
			Body:   fmt.Sprintf("%s %s your request", viewer.Username, verb),
			RoomID: roomID,
			Type:   models.NotifyDirectResponse,
		})
	}
	return summary, nil
}

func (s *RoomService) counterpart(ctx context.Context, roomID int, userID int) int {
	members, err := s.members.ListMembers(ctx, roomID)
	if err != nil {
		log.Printf("list members failed room_id=%d: %v", roomID, err)
		return 0
	}
	for _, m := range members {
		if m.UserID != userID {
			return m.UserID
		}
	}
	return 0
}

// CreateGroup creates a group with the creator as admin and the given users approved.
func (s *RoomService) CreateGroup(ctx context.Context, creator models.User, name string, memberIDs []int) (models.RoomSummary, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.RoomSummary{}, apperr.InvalidInput("group name is required")
	}

	room, err := s.rooms.CreateGroupRoom(ctx, creator.ID, name, distinctOthers(memberIDs, creator.ID))
	if err != nil {
		return models.RoomSummary{}, fmt.Errorf("create group: %w", err)
	}
	s.emit(ctx, telemetry.AuditEntry{Action: "room.group.created", Text: "group created", ActorID: creator.ID, RoomID: room.ID})

	approved, err := s.members.ListApprovedMembers(ctx, room.ID)
	if err != nil {
		log.Printf("list group members failed room_id=%d: %v", room.ID, err)
	}
	for _, userID := range approved {
		s.hub.JoinUserToRoom(userID, room.ID)
		if userID == creator.ID {
			continue
		}
		if summary, err := s.Summary(ctx, room.ID, userID); err == nil {
			s.relay.RoomAvailable(userID, summary)
		}
	}

	return s.Summary(ctx, room.ID, creator.ID)
}

func distinctOthers(ids []int, self int) []int {
	seen := make(map[int]bool, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if id <= 0 || id == self || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// RequestJoinGroup files (or re-files) a join request and alerts the group's admins.
func (s *RoomService) RequestJoinGroup(ctx context.Context, user models.User, roomID int) (models.MembershipStatus, error) {
	room, err := s.activeGroup(ctx, roomID)
	if err != nil {
		return "", err
	}

	status, err := s.members.GetStatus(ctx, roomID, user.ID)
	switch {
	case errors.Is(err, repositories.ErrMembershipNotFound):
		status = ""
	case err != nil:
		return "", fmt.Errorf("load membership: %w", err)
	}

	switch status {
	case models.StatusApproved:
		return "", apperr.Conflict("already a member of this group")
	case models.StatusPending:
	default:
		if err := s.members.Upsert(ctx, models.Membership{RoomID: roomID, UserID: user.ID, Role: models.RoleMember, Status: models.StatusPending}); err != nil {
			return "", fmt.Errorf("request join: %w", err)
		}
		s.emit(ctx, telemetry.AuditEntry{Action: "room.group.join_requested", Text: "group join requested", ActorID: user.ID, RoomID: roomID})
	}

	admins, err := s.members.ListAdmins(ctx, roomID)
	if err != nil {
		log.Printf("list admins failed room_id=%d: %v", roomID, err)
	}
	for _, adminID := range admins {
		if adminID == user.ID {
			continue
		}
		s.relay.Notify(adminID, models.Notification{
			Title:  "Group join request",
			Body:   fmt.Sprintf("%s requested to join %s", user.Username, room.Name),
			RoomID: roomID,
			Type:   models.NotifyGroupJoin,
		})
	}
	return models.StatusPending, nil
}

// RespondGroupJoin lets an approved admin decide a pending join request.
func (s *RoomService) RespondGroupJoin(ctx context.Context, admin models.User, roomID int, userID int, action models.ReviewAction) error {
	next, ok := action.NextStatus()
	if !ok {
		return apperr.InvalidInput("action must be APPROVE or REJECT")
	}
	if _, err := s.activeGroup(ctx, roomID); err != nil {
		return err
	}

	admins, err := s.members.ListAdmins(ctx, roomID)
	if err != nil {
		return fmt.Errorf("list admins: %w", err)
	}
	if !containsID(admins, admin.ID) {
		return apperr.AccessDenied("only group admins can review join requests")
	}

	if err := s.members.TransitionPending(ctx, roomID, userID, models.RoomGroup, next); err != nil {
		if errors.Is(err, repositories.ErrNoPendingRequest) {
			return apperr.NotFound("pending request not found")
		}
		return fmt.Errorf("respond join request: %w", err)
	}
	s.emit(ctx, telemetry.AuditEntry{Action: "room.group.join_" + strings.ToLower(string(next)), Text: "group join request answered", ActorID: admin.ID, RoomID: roomID, TargetID: userID})

	body := "Your request to join was rejected"
	if next == models.StatusApproved {
		body = "Your request to join was approved"
		s.hub.JoinUserToRoom(userID, roomID)
		if summary, err := s.Summary(ctx, roomID, userID); err == nil {
			s.relay.RoomAvailable(userID, summary)
		} else {
			log.Printf("room available summary failed room_id=%d user_id=%d: %v", roomID, userID, err)
		}
	}
	s.relay.Notify(userID, models.Notification{
		Title:  "Group request update",
		Body:   body,
		RoomID: roomID,
		Type:   models.NotifyGroupJoinResult,
	})
	return nil
}

// DeleteGroup deactivates a group; only its creator may do so.
func (s *RoomService) DeleteGroup(ctx context.Context, creator models.User, roomID int) error {
	room, err := s.activeGroup(ctx, roomID)
	if err != nil {
		return err
	}
	members, err := s.members.ListApprovedMembers(ctx, roomID)
	if err != nil {
		log.Printf("list group members failed room_id=%d: %v", roomID, err)
	}

	if err := s.rooms.DeactivateGroup(ctx, roomID, creator.ID); err != nil {
		if errors.Is(err, repositories.ErrRoomNotFound) {
			return apperr.NotFound("group not found")
		}
		return fmt.Errorf("delete group: %w", err)
	}
	s.emit(ctx, telemetry.AuditEntry{Action: "room.group.deleted", Text: "group deleted", ActorID: creator.ID, RoomID: roomID})

	s.hub.DropRoom(roomID)
	for _, userID := range members {
		if userID == creator.ID {
			continue
		}
		s.relay.Notify(userID, models.Notification{
			Title:  "Group deleted",
			Body:   fmt.Sprintf("%s deleted %s", creator.Username, room.Name),
			RoomID: roomID,
			Type:   models.NotifyGroupDeleted,
		})
	}
	return nil
}

func (s *RoomService) activeGroup(ctx context.Context, roomID int) (models.Room, error) {
	room, err := s.rooms.GetRoom(ctx, roomID)
	if err != nil {
		if errors.Is(err, repositories.ErrRoomNotFound) {
			return models.Room{}, apperr.NotFound("group not found")
		}
		return models.Room{}, fmt.Errorf("load group: %w", err)
	}
	if room.Type != models.RoomGroup || !room.IsActive {
		return models.Room{}, apperr.NotFound("group not found")
	}
	return room, nil
}

func (s *RoomService) emit(ctx context.Context, entry telemetry.AuditEntry) {
	if s.audit == nil {
		return
	}
	entry.RequestID = telemetry.RequestIDFrom(ctx)
	s.audit.Emit(ctx, entry)
}

func containsID(ids []int, id int) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
