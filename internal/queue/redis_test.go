package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/owenstack/chat/internal/domain"
	"github.com/owenstack/chat/internal/redisx"
)

func newTestRedisQueue(t *testing.T) (*Redis, *miniredis.Miniredis, redis.UniversalClient) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := redisx.NewClient(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	q := NewRedis(client, "test:queue")
	q.block = 100 * time.Millisecond
	return q, mr, client
}

func testJob(id string) domain.TranslationJob {
	return domain.TranslationJob{ID: id, MessageID: "m-" + id, TargetLanguage: "fr", RecipientIDs: []string{"u2"}, State: domain.JobPending}
}

func TestRedis_ConsumeAcknowledges(t *testing.T) {
	q, mr, _ := newTestRedisQueue(t)
	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, testJob("j1")))

	cctx, cancel := context.WithCancel(ctx)
	var got domain.TranslationJob
	err := q.Consume(cctx, func(_ context.Context, job domain.TranslationJob) error {
		got = job
		cancel()
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "j1", got.ID)
	assert.Equal(t, []string{"u2"}, got.RecipientIDs)

	assert.False(t, mr.Exists("test:queue:processing"), "handled item must be acknowledged")
	assert.False(t, mr.Exists("test:queue:pending"))
}

func TestRedis_HandlerErrorStillAcknowledges(t *testing.T) {
	q, mr, _ := newTestRedisQueue(t)
	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, testJob("j1")))
	require.NoError(t, q.Enqueue(ctx, testJob("j2")))

	cctx, cancel := context.WithCancel(ctx)
	seen := 0
	err := q.Consume(cctx, func(_ context.Context, job domain.TranslationJob) error {
		seen++
		if seen == 2 {
			cancel()
			return nil
		}
		return errors.New("model down")
	})
	require.NoError(t, err)
	assert.Equal(t, 2, seen)
	assert.False(t, mr.Exists("test:queue:processing"), "failures are recorded on the job, not by redelivery")
}

func TestRedis_RecoverRequeuesStrandedItems(t *testing.T) {
	q, _, client := newTestRedisQueue(t)
	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, testJob("j1")))

	// A consumer crashed after taking the item.
	require.NoError(t, client.LMove(ctx, "test:queue:pending", "test:queue:processing", "RIGHT", "LEFT").Err())
	n, err := q.Recover(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = q.Recover(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	cctx, cancel := context.WithCancel(ctx)
	var got string
	require.NoError(t, q.Consume(cctx, func(_ context.Context, job domain.TranslationJob) error {
		got = job.ID
		cancel()
		return nil
	}))
	assert.Equal(t, "j1", got)
}

// A handler cut short by shutdown leaves its item in processing, and the
// next start hands it out again.
func TestRedis_InterruptedItemSurvivesForRecover(t *testing.T) {
	q, mr, _ := newTestRedisQueue(t)
	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, testJob("j1")))

	cctx, cancel := context.WithCancel(ctx)
	err := q.Consume(cctx, func(c context.Context, _ domain.TranslationJob) error {
		cancel()
		return c.Err()
	})
	require.NoError(t, err)

	left, err := mr.List("test:queue:processing")
	require.NoError(t, err)
	require.Len(t, left, 1)

	n, err := q.Recover(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	cctx, cancel = context.WithCancel(ctx)
	var got string
	require.NoError(t, q.Consume(cctx, func(_ context.Context, job domain.TranslationJob) error {
		got = job.ID
		cancel()
		return nil
	}))
	assert.Equal(t, "j1", got)
	assert.False(t, mr.Exists("test:queue:processing"))
}

func TestPool_RunsRedisConsumers(t *testing.T) {
	q, _, _ := newTestRedisQueue(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, q.Enqueue(ctx, testJob(id)))
	}
	handled := make(chan string, 3)
	done := make(chan error, 1)
	go func() {
		done <- NewPool(q, func(_ context.Context, job domain.TranslationJob) error {
			handled <- job.ID
			return nil
		}, 2).Run(ctx)
	}()

	got := map[string]bool{}
	for len(got) < 3 {
		select {
		case id := <-handled:
			got[id] = true
		case <-time.After(5 * time.Second):
			t.Fatalf("handled only %v", got)
		}
	}
	cancel()
	require.NoError(t, <-done)
}
