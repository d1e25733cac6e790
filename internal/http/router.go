// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, authentication, idempotency, and rate limiting.
//
// @title                      Translated Chat API
// @version                    1.0
// @BasePath                   /api/v1
// @securityDefinitions.apikey BearerAuth
// @in                         header
// @name                       Authorization
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/owenstack/chat/internal/config"
	"github.com/owenstack/chat/internal/docs"
	"github.com/owenstack/chat/internal/domain"
	"github.com/owenstack/chat/internal/http/handlers"
	"github.com/owenstack/chat/internal/http/middleware"
	"github.com/owenstack/chat/internal/realtime"
	"github.com/owenstack/chat/internal/repo"
	"github.com/owenstack/chat/internal/services"
)

// maxBodyBytes caps every request body. Messages are far smaller; the margin
// covers profile updates with long avatar URLs.
const maxBodyBytes = 1 << 20

// Deps are the collaborators RegisterRoutes mounts. Realtime and Redis may be
// nil: presence endpoints then answer 503 and rate limiting stays in-process.
type Deps struct {
	DB       *gorm.DB
	Users    *services.UserService
	Rooms    *services.RoomService
	Messages *services.MessageService
	Realtime *realtime.Service
	Redis    redis.UniversalClient
}

// idempotencyStore records sends in the idempotency table.
type idempotencyStore struct{ db *gorm.DB }

func (s idempotencyStore) Remember(ctx context.Context, userID, roomID, key, messageID string, ttl time.Duration) error {
	_, err := repo.CreateIdempotency(ctx, s.db, userID, roomID, key, messageID, http.StatusCreated, ttl)
	if errors.Is(err, repo.ErrDuplicate) {
		// A concurrent retry with the same key won; its record stands.
		return nil
	}
	return err
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine and mounts the versioned API under cfg.APIBasePath.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. CORS, security headers and gzip
//
// The API group then adds Authenticate, ResolveUser, the idempotency
// validator and the rate limiter, in that order, so that replays skip the
// limiter and limits key on the resolved user.
func RegisterRoutes(r *gin.Engine, deps Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{"X-API-Key"},
	}))
	r.Use(middleware.Recovery())
	r.Use(limitBody(maxBodyBytes))

	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	useCORS(r, cfg.CORS.AllowedOrigins)

	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:    cfg.Security.EnableHSTS,
		HSTSMaxAge:    cfg.Security.HSTSMaxAge,
		PrivateCache:  true,
		EnablePolicy:  true,
		ExposeHeaders: []string{"ETag", middleware.HeaderIdempotencyReplayed, "Retry-After"},
	}))

	// Websocket upgrades hijack the connection; the compressor must stay out.
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPathsRegexs([]string{`/stream$`})))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/ready", readiness(deps))

	if cfg.SwaggerEnabled {
		docs.SwaggerInfo.BasePath = cfg.APIBasePath
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	hd := handlers.Deps{
		Users:          deps.Users,
		Rooms:          deps.Rooms,
		Messages:       deps.Messages,
		Idempotency:    idempotencyStore{db: deps.DB},
		IdempotencyTTL: cfg.IdempotencyTTL,
		CheckOrigin:    originChecker(cfg.CORS.AllowedOrigins),
	}
	if deps.Realtime != nil {
		hd.Realtime = deps.Realtime
	}
	h := handlers.New(hd)

	api := groupWithPrefix(r, cfg.APIBasePath)
	api.Use(middleware.Authenticate(middleware.AuthOptions{
		Secret:          []byte(cfg.Auth.JWTSecret),
		Issuer:          cfg.Auth.Issuer,
		Disabled:        cfg.Auth.Disabled,
		AllowQueryToken: true,
	}))

	// Setup is the one call allowed before a profile exists.
	api.POST("/me", h.SetupMe)

	app := api.Group("")
	app.Use(middleware.ResolveUser(func(ctx context.Context, tokenIdentifier string) (*domain.User, bool, error) {
		u, err := deps.Users.Resolve(ctx, tokenIdentifier)
		if errors.Is(err, services.ErrUserNotFound) {
			return nil, false, nil
		}
		if err != nil {
			return nil, false, err
		}
		return u, true, nil
	}))
	app.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{MaxLen: 200},
		func(ctx context.Context, userID, roomID, key string, now time.Time) (string, error) {
			rec, err := repo.GetIdempotency(ctx, deps.DB, userID, roomID, key, now)
			if errors.Is(err, repo.ErrNotFound) {
				return "", nil
			}
			if err != nil {
				return "", err
			}
			return rec.MessageID, nil
		},
	))
	app.Use(middleware.RateLimit(newLimiter(deps.Redis, cfg), middleware.KeyByUserOrIP()))
	{
		// Users
		app.GET("/me", h.GetMe)
		app.PATCH("/me", h.UpdateMe)
		app.GET("/users", h.SearchUsers)

		// Rooms
		app.POST("/rooms", h.CreateRoom)
		app.GET("/rooms", h.ListRooms)
		app.GET("/rooms/:id", h.GetRoom)
		app.PATCH("/rooms/:id", h.RenameRoom)
		app.GET("/rooms/:id/members", h.ListMembers)

		// Messages
		app.POST("/rooms/:id/messages", h.PostMessage)
		app.GET("/rooms/:id/messages", h.ListMessages)

		// Realtime
		app.GET("/rooms/:id/presence", h.GetPresence)
		app.POST("/rooms/:id/presence/heartbeat", h.Heartbeat)
		app.GET("/rooms/:id/stream", h.Stream)
	}
}

// useCORS installs gin-contrib/cors. With no allowlist every origin is
// accepted without credentials.
func useCORS(r *gin.Engine, origins []string) {
	base := cors.Config{
		AllowMethods: []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowHeaders: []string{
			"Origin", "Content-Type", "Accept", "Authorization",
			middleware.HeaderUserID, middleware.HeaderIdempotencyKey, "If-None-Match",
		},
		ExposeHeaders:    []string{"X-Request-ID", "Content-Length", "ETag", middleware.HeaderIdempotencyReplayed, "Retry-After"},
		AllowCredentials: false,
		AllowWebSockets:  true,
		MaxAge:           12 * time.Hour,
	}

	if len(origins) == 0 {
		// Force ACAO: * even without an Origin header (health checks, curl).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		base.AllowAllOrigins = true
		r.Use(cors.New(base))
		return
	}

	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	r.Use(func(c *gin.Context) {
		if origin := c.GetHeader("Origin"); origin != "" {
			if _, ok := allowed[origin]; ok {
				h := c.Writer.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
			}
		}
		c.Next()
	})
	base.AllowOrigins = origins
	r.Use(cors.New(base))
}

// originChecker validates websocket Origin headers against the CORS
// allowlist. An empty allowlist accepts any origin, matching the HTTP posture.
func originChecker(origins []string) func(*http.Request) bool {
	if len(origins) == 0 {
		return func(*http.Request) bool { return true }
	}
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := allowed[origin]
		return ok
	}
}

// newLimiter shares buckets across instances when Redis is configured.
func newLimiter(client redis.UniversalClient, cfg config.Config) middleware.Limiter {
	if client != nil {
		return middleware.NewRedisLimiter(client, "ratelimit:", cfg.RateRPS, cfg.RateBurst)
	}
	return middleware.NewLocalLimiter(cfg.RateRPS, cfg.RateBurst)
}

// readiness pings the database and, when configured, Redis.
func readiness(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		checks := gin.H{}
		ready := true
		if deps.DB != nil {
			checks["database"] = "ok"
			sqlDB, err := deps.DB.DB()
			if err == nil {
				err = sqlDB.PingContext(ctx)
			}
			if err != nil {
				checks["database"] = err.Error()
				ready = false
			}
		}
		if deps.Redis != nil {
			checks["redis"] = "ok"
			if err := deps.Redis.Ping(ctx).Err(); err != nil {
				checks["redis"] = err.Error()
				ready = false
			}
		}

		status := http.StatusOK
		state := "ready"
		if !ready {
			status = http.StatusServiceUnavailable
			state = "unavailable"
		}
		c.JSON(status, gin.H{"status": state, "checks": checks})
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
