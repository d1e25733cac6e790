// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file persists translation jobs and their state.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/owenstack/chat/internal/domain"
)

// CreateJobs inserts jobs. A job for an existing (message_id,
// target_language) pair is skipped.
func CreateJobs(ctx context.Context, db *gorm.DB, jobs []domain.TranslationJob) error {
	if len(jobs) == 0 {
		return nil
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "message_id"}, {Name: "target_language"}},
			DoNothing: true,
		}).
		Create(&jobs).Error
}

// GetJob fetches a job by ID or returns ErrNotFound.
func GetJob(ctx context.Context, db *gorm.DB, id string) (*domain.TranslationJob, error) {
	var j domain.TranslationJob
	if err := db.WithContext(ctx).Where("id = ?", id).First(&j).Error; err != nil {
		return nil, err
	}
	return &j, nil
}

// SetJobState records a state transition. errText is stored as-is (empty
// clears a previous error).
func SetJobState(ctx context.Context, db *gorm.DB, id string, state domain.JobState, errText string) error {
	res := db.WithContext(ctx).
		Model(&domain.TranslationJob{}).
		Where("id = ?", id).
		Updates(map[string]any{"state": state, "error": errText, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// IncrementJobAttempts bumps the attempt counter of a job.
func IncrementJobAttempts(ctx context.Context, db *gorm.DB, id string) error {
	return db.WithContext(ctx).
		Model(&domain.TranslationJob{}).
		Where("id = ?", id).
		UpdateColumn("attempts", gorm.Expr("attempts + ?", 1)).Error
}

// ListJobsForMessage returns all jobs of a message ordered by target language.
func ListJobsForMessage(ctx context.Context, db *gorm.DB, messageID string) ([]domain.TranslationJob, error) {
	var out []domain.TranslationJob
	err := db.WithContext(ctx).
		Where("message_id = ?", messageID).
		Order("target_language ASC").
		Find(&out).Error
	return out, err
}
