// Package handlers exposes the REST and websocket endpoints of the chat API.
//
// Handlers are transport-thin: they bind and validate input, take the actor
// resolved by middleware.ResolveUser, call an application service and map
// its sentinel errors onto the standard ErrorResponse envelope.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/owenstack/chat/internal/domain"
	"github.com/owenstack/chat/internal/http/middleware"
	"github.com/owenstack/chat/internal/services"
	"github.com/owenstack/chat/internal/utils"
)

//
// Service contracts (context-aware)
//

// UserService covers profile setup, edits and the public directory.
type UserService interface {
	Setup(ctx context.Context, id services.Identity, selectedLanguage string) (*domain.User, error)
	Update(ctx context.Context, actor *domain.User, targetID string, upd services.ProfileUpdate) (*domain.User, error)
	SearchPublic(ctx context.Context, actor *domain.User, query string, page, pageSize int) ([]domain.User, int64, error)
}

// RoomService covers room lifecycle and membership reads.
type RoomService interface {
	Create(ctx context.Context, actor *domain.User, name string, memberIDs []string) (*domain.Room, error)
	ListPage(ctx context.Context, actor *domain.User, page, pageSize int) ([]domain.Room, int64, error)
	Get(ctx context.Context, actor *domain.User, roomID string) (*domain.Room, error)
	Members(ctx context.Context, actor *domain.User, roomID string) (map[string]services.MemberProfile, error)
	Rename(ctx context.Context, actor *domain.User, roomID, name string) (*domain.Room, error)
	Authorize(ctx context.Context, actor *domain.User, roomID string) (*domain.Room, error)
	Fingerprint(ctx context.Context, actor *domain.User) (count int64, latest *time.Time, err error)
}

// MessageService covers the send and read paths.
type MessageService interface {
	Send(ctx context.Context, actor *domain.User, roomID, text, sourceLanguage string) (*domain.Message, error)
	Get(ctx context.Context, actor *domain.User, roomID, messageID string) (*domain.Message, error)
	List(ctx context.Context, actor *domain.User, roomID, cursor string, limit int) (*services.MessagePage, error)
	Fingerprint(ctx context.Context, actor *domain.User, roomID string) (count int64, latest *time.Time, copies int64, err error)
}

// Realtime covers presence and the per-room event stream.
type Realtime interface {
	Serve(ctx context.Context, conn *websocket.Conn, roomID, userID string)
	Heartbeat(ctx context.Context, roomID, userID string) error
	Online(ctx context.Context, roomID string) ([]string, error)
}

// IdempotencyStore records which message an Idempotency-Key produced.
type IdempotencyStore interface {
	Remember(ctx context.Context, userID, roomID, key, messageID string, ttl time.Duration) error
}

//
// Handler wiring
//

// Deps lists what Handlers needs. Realtime and Idempotency may be nil, which
// disables the presence/stream endpoints and replay recording respectively.
type Deps struct {
	Users       UserService
	Rooms       RoomService
	Messages    MessageService
	Realtime    Realtime
	Idempotency IdempotencyStore

	// IdempotencyTTL is how long a recorded key replays. Defaults to 24h.
	IdempotencyTTL time.Duration
	// CheckOrigin validates websocket origins; nil accepts same-origin only.
	CheckOrigin func(r *http.Request) bool
}

// Handlers groups the HTTP endpoints.
type Handlers struct {
	users    UserService
	rooms    RoomService
	msgs     MessageService
	rt       Realtime
	idem     IdempotencyStore
	idemTTL  time.Duration
	upgrader websocket.Upgrader
}

// New constructs Handlers from deps.
func New(deps Deps) *Handlers {
	ttl := deps.IdempotencyTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Handlers{
		users:   deps.Users,
		rooms:   deps.Rooms,
		msgs:    deps.Messages,
		rt:      deps.Realtime,
		idem:    deps.Idempotency,
		idemTTL: ttl,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     deps.CheckOrigin,
		},
	}
}

// actor returns the user resolved by middleware. Routes are mounted behind
// ResolveUser, so a missing actor is a wiring bug and answers 401.
func actor(c *gin.Context) (*domain.User, bool) {
	u, ok := middleware.UserFrom(c)
	if !ok {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "not authenticated")
		return nil, false
	}
	return u, true
}

//
// Shared DTOs
//

// Pagination carries offset pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// clampPagination parses page and page_size with the same defaults and caps
// the services apply.
func clampPagination(c *gin.Context) (page, pageSize int) {
	return utils.ClampPage(
		utils.AtoiDefault(c.Query("page"), 1),
		utils.AtoiDefault(c.Query("page_size"), 20),
		20, 100,
	)
}

func newPagination(page, pageSize int, total int64) Pagination {
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}
