// Command worker consumes translation jobs from the Redis queue. Run as many
// replicas as the model quota allows; they share the cache, the miss lock and
// the event channel through Redis.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/owenstack/chat/internal/app"
	"github.com/owenstack/chat/internal/config"
	"github.com/owenstack/chat/internal/observability"
	"github.com/owenstack/chat/internal/sysutil"
)

func main() {
	if err := sysutil.LoadEnv(); err != nil {
		log.Fatal().Err(err).Msg("load .env")
	}
	cfg := config.MustLoad()
	sysutil.InitLogger(os.Stderr, cfg.LogLevel, cfg.LogPretty, string(observability.ComponentWorker))

	if err := run(cfg); err != nil {
		log.Fatal().Err(err).Msg("worker exited")
	}
}

func run(cfg config.Config) error {
	if cfg.Queue.Backend != "redis" {
		return errors.New("the standalone worker needs QUEUE_BACKEND=redis; the memory queue is consumed by the server")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.Setup(ctx, cfg.OTEL, observability.Build{
		Version:   sysutil.Version(),
		Component: observability.ComponentWorker,
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

	// Metrics only; the worker serves no API.
	gin.SetMode(cfg.GinMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	engine.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	metricsSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	worker := rt.Worker(rt.Model())
	g.Go(func() error { return rt.RunWorkers(gctx, worker) })
	g.Go(func() error {
		log.Info().Str("addr", metricsSrv.Addr).Int("concurrency", cfg.Queue.Concurrency).Msg("translation worker started")
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return metricsSrv.Shutdown(sctx)
	})
	return g.Wait()
}
