// Package app assembles the process from configuration: storage, Redis,
// the job queue, realtime fan-out, the translation pipeline and the
// application services. cmd/server and cmd/worker differ only in which
// pieces they run.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/owenstack/chat/internal/config"
	"github.com/owenstack/chat/internal/metering"
	"github.com/owenstack/chat/internal/queue"
	"github.com/owenstack/chat/internal/realtime"
	"github.com/owenstack/chat/internal/redisx"
	"github.com/owenstack/chat/internal/repo"
	"github.com/owenstack/chat/internal/services"
	"github.com/owenstack/chat/internal/translation"
)

const (
	eventsChannel = "chat:events"
	lockExpiry    = 30 * time.Second
	janitorEvery  = 10 * time.Minute
)

// Runtime owns every long-lived dependency of a process.
type Runtime struct {
	Cfg      config.Config
	DB       *gorm.DB
	Redis    redis.UniversalClient // nil without REDIS_URL
	Queue    queue.Queue
	Realtime *realtime.Service

	Users    *services.UserService
	Rooms    *services.RoomService
	Messages *services.MessageService
}

// Open connects storage and Redis, migrates the schema and wires services.
// Call Close when done, even after a failed Run.
func Open(ctx context.Context, cfg config.Config) (*Runtime, error) {
	db, err := repo.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	rt := &Runtime{Cfg: cfg, DB: db}

	if err := repo.AutoMigrate(db); err != nil {
		_ = rt.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	if cfg.RedisURL != "" {
		client, err := redisx.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			_ = rt.Close()
			return nil, err
		}
		rt.Redis = client
	}

	rt.Queue, err = newQueue(cfg, rt.Redis)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}

	if rt.Redis != nil {
		rt.Realtime = realtime.NewService(
			realtime.NewRedisBroker(rt.Redis, eventsChannel),
			realtime.NewRedisPresence(rt.Redis, cfg.PresenceTTL),
		)
	} else {
		rt.Realtime = realtime.NewService(realtime.NewLocalBroker(), realtime.NewMemoryPresence(cfg.PresenceTTL))
	}

	rt.Users = &services.UserService{DB: db}
	rt.Rooms = &services.RoomService{DB: db}
	rt.Messages = &services.MessageService{
		DB:           db,
		Resolver:     translation.NewResolver(db),
		Dispatcher:   translation.NewDispatcher(db, rt.Queue, translation.ParsePolicy(cfg.Translation.SameLanguagePolicy)),
		Events:       rt.Realtime,
		MaxTextRunes: cfg.Translation.MaxMessageRunes,
	}
	// A nil *Client must not reach the interface field.
	if m := metering.NewClient(cfg.Metering.URL, cfg.Metering.APIKey); m != nil {
		rt.Messages.Meter = m
	}
	return rt, nil
}

func newQueue(cfg config.Config, client redis.UniversalClient) (queue.Queue, error) {
	switch cfg.Queue.Backend {
	case "redis":
		if client == nil {
			return nil, errors.New("QUEUE_BACKEND=redis requires REDIS_URL")
		}
		return queue.NewRedis(client, cfg.Queue.Prefix), nil
	case "", "memory":
		return queue.NewMemory(cfg.Queue.BufferSize), nil
	default:
		return nil, fmt.Errorf("unsupported queue backend %q", cfg.Queue.Backend)
	}
}

// Worker builds the translation worker. With Redis the cache gains a shared
// hot tier and misses are coordinated across processes.
func (rt *Runtime) Worker(model translation.Model) *translation.Worker {
	var cache translation.Cache = translation.NewDBCache(rt.DB)
	var locker translation.Locker = translation.NopLocker{}
	if rt.Redis != nil {
		cache = translation.NewRedisCache(rt.Redis, cache, rt.Cfg.Translation.CacheTTL)
		locker = translation.NewRedisLocker(rt.Redis, lockExpiry)
	}
	return translation.NewWorker(rt.DB, cache, model, translation.WorkerOptions{
		ContextMessages: rt.Cfg.Translation.ContextMessages,
		Locker:          locker,
		Notifier:        rt.Realtime,
	})
}

// Model builds the configured translation model with retries, a rate limit
// and a circuit breaker around it.
func (rt *Runtime) Model() translation.Model {
	mc := rt.Cfg.Model
	return translation.NewResilientModel(
		translation.NewOpenAIModel(translation.OpenAIConfig{
			BaseURL: mc.BaseURL,
			APIKey:  mc.APIKey,
			Model:   mc.Name,
			Timeout: mc.Timeout,
		}),
		translation.ResilienceConfig{MaxRetries: uint64(mc.MaxRetries), RPS: mc.RPS},
	)
}

// RunWorkers consumes the queue with cfg.Queue.Concurrency workers until ctx
// ends. Redis jobs stranded by a previous crash are requeued first.
func (rt *Runtime) RunWorkers(ctx context.Context, w *translation.Worker) error {
	if rq, ok := rt.Queue.(*queue.Redis); ok {
		n, err := rq.Recover(ctx)
		if err != nil {
			return fmt.Errorf("recover queue: %w", err)
		}
		if n > 0 {
			log.Info().Int("jobs", n).Msg("requeued stranded translation jobs")
		}
	}
	return queue.NewPool(rt.Queue, w.Handle, rt.Cfg.Queue.Concurrency).Run(ctx)
}

// RunJanitor purges expired idempotency records until ctx ends.
func (rt *Runtime) RunJanitor(ctx context.Context) error {
	t := time.NewTicker(janitorEvery)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-t.C:
			n, err := repo.PurgeExpiredIdempotency(ctx, rt.DB, now.UTC())
			if err != nil {
				log.Warn().Err(err).Msg("purge idempotency records")
				continue
			}
			if n > 0 {
				log.Debug().Int64("purged", n).Msg("expired idempotency records removed")
			}
		}
	}
}

// Close releases the queue, Redis and the database.
func (rt *Runtime) Close() error {
	var errs []error
	if rt.Queue != nil {
		errs = append(errs, rt.Queue.Close())
	}
	if rt.Redis != nil {
		errs = append(errs, rt.Redis.Close())
	}
	if rt.DB != nil {
		if sqlDB, err := rt.DB.DB(); err == nil {
			errs = append(errs, sqlDB.Close())
		}
	}
	return errors.Join(errs...)
}
