// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Message model.
package repo

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/owenstack/chat/internal/domain"
)

// CreateMessage inserts a new message row.
func CreateMessage(db *gorm.DB, roomID, authorID, text, lang string, status domain.MessageStatus) (*domain.Message, error) {
	now := time.Now().UTC()
	m := &domain.Message{
		ID:             uuid.NewString(),
		RoomID:         roomID,
		AuthorID:       authorID,
		OriginalText:   text,
		SourceLanguage: lang,
		Status:         status,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	return m, db.Create(m).Error
}

// UpdateMessageStatus patches only the status column.
func UpdateMessageStatus(db *gorm.DB, id string, status domain.MessageStatus) error {
	res := db.Model(&domain.Message{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": status, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListMessagesAfter returns up to limit messages of the room ordered
// (CreatedAt ASC, ID ASC) that sort strictly after (afterAt, afterID). An
// empty afterID starts from the beginning.
func ListMessagesAfter(db *gorm.DB, roomID string, afterAt time.Time, afterID string, limit int) ([]domain.Message, error) {
	var out []domain.Message
	q := db.Where("room_id = ?", roomID)
	if afterID != "" {
		at := afterAt.UTC()
		q = q.Where("(created_at > ?) OR (created_at = ? AND id > ?)", at, at, afterID)
	}
	q = q.Order("created_at ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// ListRecentBefore returns up to n messages of the room that sort strictly
// before (beforeAt, beforeID), in chronological order.
func ListRecentBefore(db *gorm.DB, roomID string, beforeAt time.Time, beforeID string, n int) ([]domain.Message, error) {
	if n <= 0 {
		return nil, nil
	}
	at := beforeAt.UTC()
	var out []domain.Message
	err := db.
		Where("room_id = ?", roomID).
		Where("(created_at < ?) OR (created_at = ? AND id < ?)", at, at, beforeID).
		Order("created_at DESC, id DESC").
		Limit(n).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// CountMessages uses a raw COUNT so a missing table surfaces as an error.
func CountMessages(db *gorm.DB, roomID string) (int64, error) {
	var total int64
	err := db.Raw("SELECT COUNT(*) FROM messages WHERE room_id = ?", roomID).Scan(&total).Error
	return total, err
}

// GetMessage fetches a message by ID.
func GetMessage(db *gorm.DB, id string) (*domain.Message, error) {
	var m domain.Message
	if err := db.Where("id = ?", id).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}
