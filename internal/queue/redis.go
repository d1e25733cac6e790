package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/owenstack/chat/internal/domain"
)

// Redis is a reliable list queue. Producers LPUSH onto <prefix>:pending;
// consumers atomically BLMOVE each item into <prefix>:processing and LREM it
// once handled. Items stranded in processing by a crashed consumer are moved
// back to pending by Recover.
type Redis struct {
	client     redis.UniversalClient
	pending    string
	processing string
	block      time.Duration
}

// NewRedis builds a queue whose keys live under prefix.
func NewRedis(client redis.UniversalClient, prefix string) *Redis {
	return &Redis{
		client:     client,
		pending:    prefix + ":pending",
		processing: prefix + ":processing",
		block:      2 * time.Second,
	}
}

// Enqueue serializes job and pushes it onto the pending list.
func (q *Redis) Enqueue(ctx context.Context, job domain.TranslationJob) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	if err := q.client.LPush(ctx, q.pending, raw).Err(); err != nil {
		return fmt.Errorf("enqueue job: %w", err)
	}
	queueDepth.WithLabelValues("redis").Inc()
	return nil
}

// Recover requeues every item left in the processing list. Call it once at
// startup before consumers run.
func (q *Redis) Recover(ctx context.Context) (int, error) {
	n := 0
	for {
		err := q.client.LMove(ctx, q.processing, q.pending, "RIGHT", "RIGHT").Err()
		if errors.Is(err, redis.Nil) {
			return n, nil
		}
		if err != nil {
			return n, fmt.Errorf("recover processing list: %w", err)
		}
		n++
	}
}

// Consume moves one item at a time into the processing list, runs h and
// acknowledges it. An item whose handler fails after ctx is cancelled is not
// acknowledged, so the next Recover hands it out again.
func (q *Redis) Consume(ctx context.Context, h Handler) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		raw, err := q.client.BLMove(ctx, q.pending, q.processing, "RIGHT", "LEFT", q.block).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, redis.ErrClosed) {
				return nil
			}
			log.Error().Err(err).Str("queue", q.pending).Msg("queue receive failed")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}
		queueDepth.WithLabelValues("redis").Dec()

		var job domain.TranslationJob
		if err := json.Unmarshal([]byte(raw), &job); err != nil {
			log.Error().Err(err).Str("queue", q.pending).Msg("dropping undecodable job")
		} else if err := h(ctx, job); err != nil && ctx.Err() != nil {
			// Interrupted by shutdown: stays in processing for Recover.
			log.Info().Str("job_id", job.ID).Msg("job interrupted, left for recovery")
			return nil
		}
		// Ack with a fresh context so a shutdown right after handling does
		// not strand a finished item.
		ackCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := q.client.LRem(ackCtx, q.processing, 1, raw).Err(); err != nil {
			log.Error().Err(err).Str("job_id", job.ID).Msg("queue ack failed")
		}
		cancel()
	}
}

// Close is a no-op; the Redis client is owned by the caller.
func (q *Redis) Close() error { return nil }
