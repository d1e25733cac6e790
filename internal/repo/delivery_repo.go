// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for DeliveredCopy,
// the per-recipient translated rendering of a message.
//
// Error semantics:
//   - A second copy for the same (user_id, message_id) is silently skipped
//     via ON CONFLICT DO NOTHING; callers learn how many rows were new from
//     the returned count.
//   - On other DB errors (connectivity, missing table, etc.), the raw gorm
//     error is propagated.
//
// Functions:
//
//   - InsertCopies(ctx, db, messageID, text, lang, userIDs) -> int64, error
//     Inserts one copy per recipient; returns the number newly created.
//
//   - ListCopiesForUser(ctx, db, userID, messageIDs) -> map[string]DeliveredCopy, error
//     Batched read-path lookup keyed by message ID.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/owenstack/chat/internal/domain"
)

// InsertCopies writes text as the delivered copy of messageID for every user
// in userIDs. Existing copies are left untouched.
func InsertCopies(ctx context.Context, db *gorm.DB, messageID, text, lang string, userIDs []string) (int64, error) {
	if len(userIDs) == 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	rows := make([]domain.DeliveredCopy, 0, len(userIDs))
	for _, uid := range userIDs {
		rows = append(rows, domain.DeliveredCopy{
			ID:             uuid.NewString(),
			UserID:         uid,
			MessageID:      messageID,
			TranslatedText: text,
			TargetLanguage: lang,
			CreatedAt:      now,
		})
	}
	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "message_id"}},
			DoNothing: true,
		}).
		Create(&rows)
	return res.RowsAffected, res.Error
}

// ListCopiesForUser returns the user's copies among messageIDs keyed by
// message ID. Messages without a copy are absent from the map.
func ListCopiesForUser(ctx context.Context, db *gorm.DB, userID string, messageIDs []string) (map[string]domain.DeliveredCopy, error) {
	out := make(map[string]domain.DeliveredCopy, len(messageIDs))
	if len(messageIDs) == 0 {
		return out, nil
	}
	var rows []domain.DeliveredCopy
	err := db.WithContext(ctx).
		Where("user_id = ? AND message_id IN ?", userID, messageIDs).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, c := range rows {
		out[c.MessageID] = c
	}
	return out, nil
}

// CountCopies returns how many copies exist for messageID.
func CountCopies(ctx context.Context, db *gorm.DB, messageID string) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.DeliveredCopy{}).Where("message_id = ?", messageID).Count(&n).Error
	return n, err
}
