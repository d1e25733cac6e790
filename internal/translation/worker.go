package translation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"github.com/owenstack/chat/internal/domain"
	"github.com/owenstack/chat/internal/repo"
)

// Notifier is told about copies that became readable.
type Notifier interface {
	MessageTranslated(ctx context.Context, roomID, messageID, lang string, userIDs []string)
}

type nopNotifier struct{}

func (nopNotifier) MessageTranslated(context.Context, string, string, string, []string) {}

// WorkerOptions tunes a Worker. Zero values are usable.
type WorkerOptions struct {
	// ContextMessages is how many earlier room messages accompany a model call.
	ContextMessages int
	Locker          Locker
	Notifier        Notifier
}

// Worker executes translation jobs. It is safe for concurrent use; jobs for
// the same (text, language) pair share a single model call.
type Worker struct {
	db       *gorm.DB
	cache    Cache
	model    Model
	delivery *Delivery
	locker   Locker
	notifier Notifier
	contextN int
	inflight singleflight.Group
}

// NewWorker wires a worker.
func NewWorker(db *gorm.DB, cache Cache, model Model, opts WorkerOptions) *Worker {
	w := &Worker{
		db:       db,
		cache:    cache,
		model:    model,
		delivery: NewDelivery(db),
		locker:   opts.Locker,
		notifier: opts.Notifier,
		contextN: opts.ContextMessages,
	}
	if w.locker == nil {
		w.locker = NopLocker{}
	}
	if w.notifier == nil {
		w.notifier = nopNotifier{}
	}
	return w
}

// Handle adapts Process to a queue handler. The job is acknowledged either
// way; a returned error only feeds the pool's logs and metrics.
func (w *Worker) Handle(ctx context.Context, job domain.TranslationJob) error {
	_, err := w.Process(ctx, job)
	if errors.Is(err, ErrJobNotFound) {
		return nil
	}
	return err
}

// missResult is shared by every job waiting on one cache-miss computation.
type missResult struct {
	text string
	// modelCalled is false when the entry appeared while waiting on the lock.
	modelCalled bool
}

// Process runs job to a terminal state and returns it. A job already in a
// terminal state is a no-op. A translation failure leaves the job failed,
// writes nothing to the cache, delivers nothing and is returned as the error.
// Cancelling ctx mid-job is not a failure: the job keeps a non-terminal state
// and ErrInterrupted is returned.
func (w *Worker) Process(ctx context.Context, job domain.TranslationJob) (domain.JobState, error) {
	ctx, span := tracer.Start(ctx, "translation.job")
	defer span.End()
	span.SetAttributes(
		attribute.String("translation.job_id", job.ID),
		attribute.String("translation.message_id", job.MessageID),
		attribute.String("translation.target_language", job.TargetLanguage),
		attribute.Int("translation.recipients", len(job.RecipientIDs)),
	)
	logger := log.Ctx(ctx).With().
		Str("job_id", job.ID).
		Str("message_id", job.MessageID).
		Str("target_language", job.TargetLanguage).
		Logger()

	stored, err := repo.GetJob(ctx, w.db, job.ID)
	if errors.Is(err, repo.ErrNotFound) {
		logger.Warn().Msg("dropping job without a persisted row")
		return "", ErrJobNotFound
	}
	if err != nil {
		return "", fmt.Errorf("load job: %w", err)
	}
	if stored.State.Terminal() {
		jobOutcomes.WithLabelValues(string(stored.State), "noop").Inc()
		return stored.State, nil
	}
	if err := repo.IncrementJobAttempts(ctx, w.db, job.ID); err != nil {
		return "", fmt.Errorf("count attempt: %w", err)
	}

	translated, hit, err := w.cache.Lookup(ctx, stored.SourceText, stored.TargetLanguage)
	if err != nil {
		logger.Warn().Err(err).Msg("cache lookup failed, treating as miss")
	}

	path := "cache"
	if hit {
		if err := w.mark(ctx, job.ID, domain.JobCacheHit); err != nil {
			return "", err
		}
	} else {
		path = "model"
		if err := w.mark(ctx, job.ID, domain.JobCacheMiss); err != nil {
			return "", err
		}
		res, err := w.resolveMiss(ctx, stored)
		if err != nil && ctx.Err() == nil && errors.Is(err, context.Canceled) {
			// The shared computation belonged to a caller that went away.
			res, err = w.resolveMiss(ctx, stored)
		}
		if err != nil && ctx.Err() != nil {
			return w.interrupted(logger, domain.JobCacheMiss, path, err)
		}
		if err != nil {
			logger.Error().Err(err).Msg("translation failed")
			span.RecordError(err)
			span.SetStatus(codes.Error, "translation failed")
			return w.fail(ctx, job.ID, path, err)
		}
		if res.modelCalled {
			if err := w.mark(ctx, job.ID, domain.JobModelCalled); err != nil {
				return "", err
			}
			if err := w.mark(ctx, job.ID, domain.JobCacheWritten); err != nil {
				return "", err
			}
		}
		translated = res.text
	}

	if err := w.mark(ctx, job.ID, domain.JobDelivering); err != nil {
		return "", err
	}
	n, err := w.delivery.Deliver(ctx, stored.MessageID, translated, stored.TargetLanguage, stored.RecipientIDs)
	if err != nil && ctx.Err() != nil {
		return w.interrupted(logger, domain.JobDelivering, path, err)
	}
	if err != nil {
		logger.Error().Err(err).Msg("delivery failed")
		span.RecordError(err)
		span.SetStatus(codes.Error, "delivery failed")
		return w.fail(ctx, job.ID, path, err)
	}
	if err := w.mark(ctx, job.ID, domain.JobDone); err != nil {
		return "", err
	}
	jobOutcomes.WithLabelValues(string(domain.JobDone), path).Inc()
	logger.Info().Str("path", path).Int("new_copies", n).Msg("translation delivered")

	w.notifier.MessageTranslated(ctx, stored.RoomID, stored.MessageID, stored.TargetLanguage, stored.RecipientIDs)
	return domain.JobDone, nil
}

// resolveMiss produces the translation for a cache miss. Concurrent callers in
// this process share one computation; across processes the locker serializes
// them and the cache is rechecked under the lock so the model runs once.
func (w *Worker) resolveMiss(ctx context.Context, job *domain.TranslationJob) (missResult, error) {
	key := CacheKey(job.SourceText, job.TargetLanguage)
	v, err, _ := w.inflight.Do(key, func() (interface{}, error) {
		unlock, err := w.locker.Lock(ctx, key)
		if err != nil {
			return missResult{}, err
		}
		defer unlock()

		if text, ok, err := w.cache.Lookup(ctx, job.SourceText, job.TargetLanguage); err == nil && ok {
			return missResult{text: text}, nil
		}

		req := Request{
			Text:           job.SourceText,
			SourceLanguage: job.SourceLanguage,
			TargetLanguage: job.TargetLanguage,
			History:        w.history(ctx, job),
		}
		text, err := w.model.Translate(ctx, req)
		if err != nil {
			return missResult{}, err
		}
		if err := w.cache.Store(ctx, job.SourceText, job.TargetLanguage, text); err != nil {
			return missResult{}, err
		}
		// Serve whatever entry won if another writer got there first.
		if winner, ok, err := w.cache.Lookup(ctx, job.SourceText, job.TargetLanguage); err == nil && ok {
			text = winner
		}
		return missResult{text: text, modelCalled: true}, nil
	})
	if err != nil {
		return missResult{}, err
	}
	return v.(missResult), nil
}

// history loads up to contextN messages preceding the job's message, oldest
// first. Failures degrade to no history.
func (w *Worker) history(ctx context.Context, job *domain.TranslationJob) []ContextLine {
	if w.contextN <= 0 {
		return nil
	}
	db := w.db.WithContext(ctx)
	msg, err := repo.GetMessage(db, job.MessageID)
	if err != nil {
		log.Ctx(ctx).Debug().Err(err).Str("message_id", job.MessageID).Msg("history: message lookup failed")
		return nil
	}
	prior, err := repo.ListRecentBefore(db, msg.RoomID, msg.CreatedAt, msg.ID, w.contextN)
	if err != nil {
		log.Ctx(ctx).Debug().Err(err).Str("message_id", job.MessageID).Msg("history: list failed")
		return nil
	}
	lines := make([]ContextLine, 0, len(prior))
	for _, m := range prior {
		lines = append(lines, ContextLine{
			Text:     m.OriginalText,
			Language: m.SourceLanguage,
			ByAuthor: m.AuthorID == job.AuthorID,
		})
	}
	return lines
}

func (w *Worker) mark(ctx context.Context, id string, state domain.JobState) error {
	if err := repo.SetJobState(ctx, w.db, id, state, ""); err != nil {
		return fmt.Errorf("set job %s %s: %w", id, state, err)
	}
	return nil
}

// interrupted leaves the job in state so a redelivery picks it up again.
func (w *Worker) interrupted(logger zerolog.Logger, state domain.JobState, path string, cause error) (domain.JobState, error) {
	jobOutcomes.WithLabelValues("interrupted", path).Inc()
	logger.Info().Err(cause).Str("state", string(state)).Msg("translation interrupted")
	return state, fmt.Errorf("%w: %w", ErrInterrupted, cause)
}

func (w *Worker) fail(ctx context.Context, id, path string, cause error) (domain.JobState, error) {
	jobOutcomes.WithLabelValues(string(domain.JobFailed), path).Inc()
	// Record the failure even if the job's context is already gone.
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := repo.SetJobState(sctx, w.db, id, domain.JobFailed, cause.Error()); err != nil {
		return domain.JobFailed, fmt.Errorf("record failure %v: %w", cause, err)
	}
	return domain.JobFailed, cause
}
