// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Room and
// Membership models.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a room is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
//
// Functions:
//
//   - CreateRoom(ctx, db, name, typ, createdBy, memberIDs) -> *domain.Room, error
//     Inserts the room and one membership per distinct member in a transaction.
//
//   - CountRoomsForUser / ListRoomsPageForUser
//     Paginated rooms a user belongs to, most recent activity first.
//
//   - GetRoom(ctx, db, id) -> *domain.Room, error
//
//   - IsMember(ctx, db, roomID, userID) -> bool, error
//
//   - ListRoomMembers(ctx, db, roomID) -> []RoomMember, error
//     Current members joined with their profile, in join order.
//
//   - TouchRoom(ctx, db, roomID, at) -> error
//     Bumps LastActivityAt.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/owenstack/chat/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// RoomMember is a membership joined with the member's profile.
type RoomMember struct {
	UserID           string
	Name             string
	Avatar           string
	SelectedLanguage string
	JoinedAt         time.Time
}

// CreateRoom inserts a new Room and its memberships atomically. memberIDs
// must already include the creator; duplicates are collapsed.
func CreateRoom(ctx context.Context, db *gorm.DB, name, typ, createdBy string, memberIDs []string) (*domain.Room, error) {
	now := time.Now().UTC()
	r := &domain.Room{
		ID:             uuid.NewString(),
		Name:           name,
		Type:           typ,
		CreatedBy:      createdBy,
		LastActivityAt: now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(r).Error; err != nil {
			return err
		}
		seen := make(map[string]struct{}, len(memberIDs))
		rows := make([]domain.Membership, 0, len(memberIDs))
		for i, uid := range memberIDs {
			if _, dup := seen[uid]; dup {
				continue
			}
			seen[uid] = struct{}{}
			rows = append(rows, domain.Membership{
				ID:     uuid.NewString(),
				UserID: uid,
				RoomID: r.ID,
				// Strictly increasing so join order survives equal clocks.
				CreatedAt: now.Add(time.Duration(i) * time.Microsecond),
			})
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// AddMember joins userID to roomID. Joining twice is a no-op.
func AddMember(ctx context.Context, db *gorm.DB, roomID, userID string) error {
	m := &domain.Membership{
		ID:        uuid.NewString(),
		UserID:    userID,
		RoomID:    roomID,
		CreatedAt: time.Now().UTC(),
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}, {Name: "room_id"}}, DoNothing: true}).
		Create(m).Error
}

// GetRoom fetches a single room by its ID. If the record does not exist, it
// returns ErrNotFound.
func GetRoom(ctx context.Context, db *gorm.DB, id string) (*domain.Room, error) {
	var r domain.Room
	if err := db.WithContext(ctx).Where("id = ?", id).First(&r).Error; err != nil {
		return nil, err
	}
	return &r, nil
}

// IsMember reports whether userID currently belongs to roomID.
func IsMember(ctx context.Context, db *gorm.DB, roomID, userID string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Membership{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Limit(1).
		Count(&n).Error
	return n > 0, err
}

// CountRoomsForUser returns the number of rooms userID belongs to.
func CountRoomsForUser(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Membership{}).
		Where("user_id = ?", userID).
		Count(&total).Error
	return total, err
}

// ListRoomsPageForUser returns a page of the user's rooms ordered by last
// activity descending, then ID for a stable order.
func ListRoomsPageForUser(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.Room, error) {
	var out []domain.Room
	err := db.WithContext(ctx).
		Model(&domain.Room{}).
		Joins("JOIN user_rooms ON user_rooms.room_id = rooms.id").
		Where("user_rooms.user_id = ?", userID).
		Order("rooms.last_activity_at DESC, rooms.id ASC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// ListRoomMembers returns the room's members with their profile, ordered by
// join time then user ID.
func ListRoomMembers(ctx context.Context, db *gorm.DB, roomID string) ([]RoomMember, error) {
	var out []RoomMember
	err := db.WithContext(ctx).
		Table("user_rooms").
		Select("user_rooms.user_id AS user_id, users.name AS name, users.avatar AS avatar, users.selected_language AS selected_language, user_rooms.created_at AS joined_at").
		Joins("JOIN users ON users.id = user_rooms.user_id").
		Where("user_rooms.room_id = ?", roomID).
		Order("user_rooms.created_at ASC, user_rooms.user_id ASC").
		Scan(&out).Error
	return out, err
}

// TouchRoom sets the room's LastActivityAt. Returns ErrNotFound if no row matched.
func TouchRoom(ctx context.Context, db *gorm.DB, roomID string, at time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.Room{}).
		Where("id = ?", roomID).
		Updates(map[string]any{"last_activity_at": at.UTC(), "updated_at": at.UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
