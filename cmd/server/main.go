// Command server runs the chat HTTP API. With WORKER_ENABLED it also
// consumes translation jobs in-process, which is the single-binary setup
// used with the memory queue.
package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/owenstack/chat/internal/app"
	"github.com/owenstack/chat/internal/config"
	httpapi "github.com/owenstack/chat/internal/http"
	"github.com/owenstack/chat/internal/observability"
	"github.com/owenstack/chat/internal/sysutil"
)

const shutdownGrace = 15 * time.Second

func main() {
	if err := sysutil.LoadEnv(); err != nil {
		log.Fatal().Err(err).Msg("load .env")
	}
	cfg := config.MustLoad()
	sysutil.InitLogger(os.Stderr, cfg.LogLevel, cfg.LogPretty, string(observability.ComponentAPI))

	if err := run(cfg); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func run(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	version := sysutil.Version()
	shutdownOTel, err := observability.Setup(ctx, cfg.OTEL, observability.Build{
		Version:   version,
		Component: observability.ComponentAPI,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := observability.ShutdownWithin(shutdownOTel, 5*time.Second); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	rt, err := app.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			log.Warn().Err(err).Msg("close runtime")
		}
	}()

	gin.SetMode(cfg.GinMode)
	engine := gin.New()
	httpapi.RegisterRoutes(engine, httpapi.Deps{
		DB:       rt.DB,
		Users:    rt.Users,
		Rooms:    rt.Rooms,
		Messages: rt.Messages,
		Realtime: rt.Realtime,
		Redis:    rt.Redis,
	}, cfg)

	srv := &http.Server{
		Addr:              net.JoinHostPort("", cfg.Port),
		Handler:           engine,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return rt.Realtime.Run(gctx) })
	g.Go(func() error { return rt.RunJanitor(gctx) })
	if cfg.Queue.WorkerEnabled {
		worker := rt.Worker(rt.Model())
		g.Go(func() error { return rt.RunWorkers(gctx, worker) })
	}

	g.Go(func() error {
		log.Info().
			Str("addr", srv.Addr).
			Str("version", version).
			Str("db", cfg.DB.Driver).
			Str("queue", cfg.Queue.Backend).
			Bool("redis", rt.Redis != nil).
			Bool("worker", cfg.Queue.WorkerEnabled).
			Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	return g.Wait()
}
