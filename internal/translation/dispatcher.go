package translation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/owenstack/chat/internal/domain"
	"github.com/owenstack/chat/internal/queue"
	"github.com/owenstack/chat/internal/repo"
)

// SameLanguagePolicy decides what happens to recipients who read in the
// message's source language.
type SameLanguagePolicy string

const (
	// PolicySkip creates no job for the source language; readers fall back to
	// the original text.
	PolicySkip SameLanguagePolicy = "skip"
	// PolicyTranslate treats the source language like any other target.
	PolicyTranslate SameLanguagePolicy = "translate"
)

// ParsePolicy maps a configuration value to a policy, defaulting to skip.
func ParsePolicy(s string) SameLanguagePolicy {
	if SameLanguagePolicy(s) == PolicyTranslate {
		return PolicyTranslate
	}
	return PolicySkip
}

// Dispatcher turns a stored message and its room's language groups into one
// persisted and enqueued job per target language.
type Dispatcher struct {
	db     *gorm.DB
	q      queue.Queue
	policy SameLanguagePolicy
}

// NewDispatcher wires a dispatcher.
func NewDispatcher(db *gorm.DB, q queue.Queue, policy SameLanguagePolicy) *Dispatcher {
	return &Dispatcher{db: db, q: q, policy: policy}
}

// Plan builds the jobs for msg without persisting them. The author is never a
// recipient and languages left without recipients produce no job. Jobs are
// ordered by target language.
func (d *Dispatcher) Plan(msg *domain.Message, groups LanguageGroups) []domain.TranslationJob {
	now := time.Now().UTC()
	var jobs []domain.TranslationJob
	for _, lang := range groups.Languages() {
		if d.policy == PolicySkip && string(lang) == msg.SourceLanguage {
			continue
		}
		recipients := make([]string, 0, len(groups[lang]))
		for _, id := range groups[lang] {
			if id != msg.AuthorID {
				recipients = append(recipients, id)
			}
		}
		if len(recipients) == 0 {
			continue
		}
		jobs = append(jobs, domain.TranslationJob{
			ID:             uuid.NewString(),
			MessageID:      msg.ID,
			RoomID:         msg.RoomID,
			AuthorID:       msg.AuthorID,
			SourceText:     msg.OriginalText,
			SourceLanguage: msg.SourceLanguage,
			TargetLanguage: string(lang),
			RecipientIDs:   recipients,
			State:          domain.JobPending,
			CreatedAt:      now,
			UpdatedAt:      now,
		})
	}
	return jobs
}

// Dispatch persists and enqueues the jobs for msg. Re-dispatching a message
// reuses its existing job rows. A job that cannot be enqueued is marked failed;
// the other jobs still go out and the joined error is returned alongside them.
func (d *Dispatcher) Dispatch(ctx context.Context, msg *domain.Message, groups LanguageGroups) ([]domain.TranslationJob, error) {
	planned := d.Plan(msg, groups)
	if len(planned) == 0 {
		return nil, nil
	}
	if err := repo.CreateJobs(ctx, d.db, planned); err != nil {
		return nil, fmt.Errorf("create jobs: %w", err)
	}
	// Reload so IDs are the persisted ones when a pair already existed.
	jobs, err := repo.ListJobsForMessage(ctx, d.db, msg.ID)
	if err != nil {
		return nil, fmt.Errorf("reload jobs: %w", err)
	}

	var errs []error
	for _, j := range jobs {
		if j.State.Terminal() {
			continue
		}
		if err := d.q.Enqueue(ctx, j); err != nil {
			jobsDispatched.WithLabelValues("error").Inc()
			log.Ctx(ctx).Error().Err(err).
				Str("job_id", j.ID).
				Str("message_id", j.MessageID).
				Str("target_language", j.TargetLanguage).
				Msg("enqueue translation job")
			if serr := repo.SetJobState(ctx, d.db, j.ID, domain.JobFailed, "enqueue: "+err.Error()); serr != nil {
				log.Ctx(ctx).Error().Err(serr).Str("job_id", j.ID).Msg("mark job failed")
			}
			errs = append(errs, fmt.Errorf("enqueue %s: %w", j.TargetLanguage, err))
			continue
		}
		jobsDispatched.WithLabelValues("ok").Inc()
	}
	return jobs, errors.Join(errs...)
}
