// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate/statistics queries used
// primarily for conditional responses (e.g., ETag generation) in the HTTP
// layer. Each function is context-aware and safe to call from services or
// handlers.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/owenstack/chat/internal/domain"
)

// RoomsStats returns aggregate metadata for a user's rooms: the number of
// rooms the user belongs to and the most recent LastActivityAt among them.
//
// When the user has no rooms, the returned count is 0 and maxActivity is nil.
func RoomsStats(ctx context.Context, db *gorm.DB, userID string) (count int64, maxActivity *time.Time, err error) {
	q := db.WithContext(ctx).
		Model(&domain.Room{}).
		Joins("JOIN user_rooms ON user_rooms.room_id = rooms.id").
		Where("user_rooms.user_id = ?", userID)

	// Count
	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest activity (avoid MAX() -> TEXT in SQLite)
	var row struct {
		LastActivityAt time.Time
	}
	if err = q.Select("rooms.last_activity_at").Order("rooms.last_activity_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.LastActivityAt, nil
}

// MessagesStats returns aggregate metadata for messages within a given room:
// the total number of rows and the maximum UpdatedAt timestamp among those rows.
//
// It executes two lightweight queries against the messages table scoped to the
// provided roomID. When the room has no messages, the returned count is 0 and
// maxUpdatedAt is nil.
//
// Return values:
//   - count:        total messages for roomID
//   - maxUpdatedAt: pointer to the greatest UpdatedAt, or nil if no rows
//   - err:          database error, if any
func MessagesStats(ctx context.Context, db *gorm.DB, roomID string) (count int64, maxUpdatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Message{}).Where("room_id = ?", roomID)

	// Count
	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest updated_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		UpdatedAt time.Time
	}
	if err = q.Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}

// CopiesStats counts the reader's delivered copies for messages of a room. A
// new copy changes what the reader sees without touching the message row, so
// read-path validators fold this count in.
func CopiesStats(ctx context.Context, db *gorm.DB, roomID, userID string) (int64, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.DeliveredCopy{}).
		Joins("JOIN messages ON messages.id = user_messages.message_id").
		Where("messages.room_id = ? AND user_messages.user_id = ?", roomID, userID).
		Count(&n).Error
	return n, err
}
