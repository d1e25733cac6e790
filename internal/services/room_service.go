// Package services – RoomService
//
// This file implements the RoomService, which manages the lifecycle of rooms.
// It validates and normalizes names, derives the room type from its member
// count, enforces membership for every read and coordinates repository
// operations for creating, listing (with pagination) and renaming rooms.
//
// Service-level errors (e.g., ErrRoomNotFound) are returned for predictable
// cases so handlers can map them to HTTP results consistently.
package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/owenstack/chat/internal/domain"
	"github.com/owenstack/chat/internal/repo"
	"github.com/owenstack/chat/internal/utils"
)

const (
	defaultRoomName = "New room"
	maxRoomNameLen  = 60
	maxRoomMembers  = 256
)

// MemberProfile is the public view of a room member.
type MemberProfile struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Avatar           string `json:"avatar"`
	SelectedLanguage string `json:"selected_language,omitempty"`
}

// RoomService provides room-level operations such as creating, listing and
// renaming rooms.
type RoomService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
}

// Create inserts a room owned by actor with the given members. The creator is
// always a member; a room of exactly two people is private, anything larger is
// a group.
func (s *RoomService) Create(ctx context.Context, actor *domain.User, name string, memberIDs []string) (*domain.Room, error) {
	ctx, span := otel.Tracer("services/RoomService").Start(ctx, "Create",
		trace.WithAttributes(attribute.String("user.id", actor.ID)))
	defer span.End()

	others := make([]string, 0, len(memberIDs))
	seen := map[string]struct{}{actor.ID: {}}
	for _, id := range memberIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		others = append(others, id)
	}
	if len(others) == 0 {
		return nil, ErrNoMembers
	}
	if len(others)+1 > maxRoomMembers {
		return nil, ErrTooManyMembers
	}
	found, err := repo.GetUsersByIDs(ctx, s.DB, others)
	if err != nil {
		return nil, err
	}
	if len(found) != len(others) {
		return nil, ErrUnknownMembers
	}

	typ := domain.RoomGroup
	if len(others) == 1 {
		typ = domain.RoomPrivate
	}
	name = normalizeName(name)
	if name == "" {
		name = defaultRoomName
	}
	span.SetAttributes(attribute.String("room.type", typ), attribute.Int("room.members", len(others)+1))
	return repo.CreateRoom(ctx, s.DB, clipRunes(name, maxRoomNameLen), typ, actor.ID, append([]string{actor.ID}, others...))
}

// ListPage returns a page of the actor's rooms, most recently active first.
// It applies defaults for invalid page/pageSize and returns the total count.
func (s *RoomService) ListPage(ctx context.Context, actor *domain.User, page, pageSize int) ([]domain.Room, int64, error) {
	page, pageSize = utils.ClampPage(page, pageSize, 20, 100)
	total, err := repo.CountRoomsForUser(ctx, s.DB, actor.ID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Room{}, 0, nil
	}
	items, err := repo.ListRoomsPageForUser(ctx, s.DB, actor.ID, (page-1)*pageSize, pageSize)
	return items, total, err
}

// Get returns the room if actor is a member.
func (s *RoomService) Get(ctx context.Context, actor *domain.User, roomID string) (*domain.Room, error) {
	return readableRoom(ctx, s.DB, actor.ID, roomID)
}

// Members maps member ID to profile for a room the actor belongs to.
func (s *RoomService) Members(ctx context.Context, actor *domain.User, roomID string) (map[string]MemberProfile, error) {
	if _, err := readableRoom(ctx, s.DB, actor.ID, roomID); err != nil {
		return nil, err
	}
	rows, err := repo.ListRoomMembers(ctx, s.DB, roomID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]MemberProfile, len(rows))
	for _, m := range rows {
		out[m.UserID] = MemberProfile{ID: m.UserID, Name: m.Name, Avatar: m.Avatar, SelectedLanguage: m.SelectedLanguage}
	}
	return out, nil
}

// Rename changes a room's name. Only the creator may rename.
func (s *RoomService) Rename(ctx context.Context, actor *domain.User, roomID, name string) (*domain.Room, error) {
	room, err := readableRoom(ctx, s.DB, actor.ID, roomID)
	if err != nil {
		return nil, err
	}
	if !canModifyRoom(actor.ID, room) {
		return nil, ErrForbidden
	}
	name = normalizeName(name)
	if name == "" {
		return nil, ErrInvalidName
	}
	name = clipRunes(name, maxRoomNameLen)
	// A rename counts as activity so it surfaces in every member's room list.
	now := time.Now().UTC()
	if err := s.DB.WithContext(ctx).Model(&domain.Room{}).Where("id = ?", roomID).
		Updates(map[string]any{"name": name, "last_activity_at": now, "updated_at": now}).Error; err != nil {
		return nil, err
	}
	room.Name = name
	room.LastActivityAt = now
	room.UpdatedAt = now
	return room, nil
}

// Fingerprint summarizes the actor's room list: how many rooms they belong to
// and the latest activity among them.
func (s *RoomService) Fingerprint(ctx context.Context, actor *domain.User) (int64, *time.Time, error) {
	return repo.RoomsStats(ctx, s.DB, actor.ID)
}

// Authorize returns the room when actor may read it. Other packages use it to
// guard room-scoped endpoints such as presence and the event stream.
func (s *RoomService) Authorize(ctx context.Context, actor *domain.User, roomID string) (*domain.Room, error) {
	return readableRoom(ctx, s.DB, actor.ID, roomID)
}

// readableRoom loads roomID and checks membership. Missing rooms and rooms the
// actor is not in both yield ErrRoomNotFound.
func readableRoom(ctx context.Context, db *gorm.DB, actorID, roomID string) (*domain.Room, error) {
	room, err := repo.GetRoom(ctx, db, roomID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, err
	}
	member, err := repo.IsMember(ctx, db, roomID, actorID)
	if err != nil {
		return nil, err
	}
	if !canReadRoom(actorID, member) {
		return nil, ErrRoomNotFound
	}
	return room, nil
}

// normalizeName trims whitespace and collapses multiple spaces to one.
func normalizeName(s string) string {
	return whitespaceRE.ReplaceAllString(strings.TrimSpace(s), " ")
}

// whitespaceRE collapses consecutive whitespace to a single space.
var whitespaceRE = regexp.MustCompile(`\s+`)
