// Message HTTP handlers.
//
//   - POST /rooms/{id}/messages  (send; translation fan-out happens asynchronously)
//   - GET  /rooms/{id}/messages  (cursor-paginated, each message in the reader's language)
//
// Idempotency:
// If the client supplies an Idempotency-Key header and an earlier send with the
// same key exists for (user, room, key), the handler returns that message with
// 200 and `Idempotency-Replayed: true` instead of sending again.
package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/owenstack/chat/internal/domain"
	"github.com/owenstack/chat/internal/http/middleware"
	"github.com/owenstack/chat/internal/services"
	"github.com/owenstack/chat/internal/utils"
)

// PostMessageRequest is the JSON payload for sending a message.
type PostMessageRequest struct {
	// Text is the message body. Control characters are stripped.
	Text string `json:"text" binding:"required" example:"Bonjour tout le monde"`
	// SourceLanguage is the BCP 47 tag of Text.
	SourceLanguage string `json:"source_language" binding:"required" example:"fr"`
}

// PostMessageResponse wraps the stored message.
type PostMessageResponse struct {
	Message *domain.Message `json:"message"`
}

// ListMessagesResponse is a page of messages rendered for the reader.
type ListMessagesResponse struct {
	Messages   []services.MessageView `json:"messages"`
	NextCursor string                 `json:"next_cursor,omitempty"`
	HasMore    bool                   `json:"has_more"`
}

// PostMessage godoc
// @ID          postMessage
// @Summary     Send a message to a room
// @Description Stores the message, then schedules translation into every other member's language.
// @Description Supports idempotency via the Idempotency-Key header (same key, same message).
// @Tags        Messages
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       Idempotency-Key  header  string                        false  "Idempotency key for safe retries"  example(7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab)
// @Param       id               path    string                        true   "Room ID"  format(uuid)
// @Param       body             body    handlers.PostMessageRequest  true   "Message payload"
// @Success     201  {object}  handlers.PostMessageResponse  "Stored message"
// @Success     200  {object}  handlers.PostMessageResponse  "Replayed message"
// @Failure     400  {object}  handlers.ErrorResponse        "Validation failed"
// @Failure     404  {object}  handlers.ErrorResponse        "Room not found"
// @Failure     429  {object}  handlers.ErrorResponse        "Rate limited"
// @Failure     500  {object}  handlers.ErrorResponse        "Internal error"
// @Router      /rooms/{id}/messages [post]
func (h *Handlers) PostMessage(c *gin.Context) {
	u, found := actor(c)
	if !found {
		return
	}
	ctx := c.Request.Context()
	roomID := c.Param("id")

	if prevID, replay := middleware.ReplayMessageID(c); replay {
		prev, err := h.msgs.Get(ctx, u, roomID, prevID)
		if err == nil {
			c.Header(middleware.HeaderIdempotencyReplayed, "true")
			ok(c, http.StatusOK, PostMessageResponse{Message: prev})
			return
		}
		middleware.LoggerFrom(c).Warn().Err(err).Str("message_id", prevID).Msg("idempotent replay unavailable")
	}

	var req PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "text and source_language required")
		return
	}

	m, err := h.msgs.Send(ctx, u, roomID, req.Text, req.SourceLanguage)
	if err != nil {
		failService(c, err, ErrCodeSendFailed)
		return
	}

	if key, hasKey := middleware.GetIdempotencyKey(c); hasKey && h.idem != nil {
		if err := h.idem.Remember(ctx, u.ID, roomID, key, m.ID, h.idemTTL); err != nil {
			middleware.LoggerFrom(c).Warn().Err(err).Str("message_id", m.ID).Msg("idempotency record failed")
		}
	}

	ok(c, http.StatusCreated, PostMessageResponse{Message: m})
}

// ListMessages godoc
// @ID          listMessages
// @Summary     List messages in a room
// @Description Returns messages oldest first. Messages from other members show the
// @Description reader's translated copy when one has been delivered, else the original.
// @Tags        Messages
// @Produce     json
// @Security    BearerAuth
// @Param       id             path    string  true   "Room ID"  format(uuid)
// @Param       cursor         query   string  false  "Opaque cursor from a previous page"
// @Param       limit          query   int     false  "Page size"  minimum(1) maximum(200) default(50)
// @Param       If-None-Match  header  string  false  "ETag from a previous response"
// @Success     200  {object}  handlers.ListMessagesResponse
// @Success     304  "Not modified"
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid cursor"
// @Failure     404  {object}  handlers.ErrorResponse  "Room not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /rooms/{id}/messages [get]
func (h *Handlers) ListMessages(c *gin.Context) {
	u, found := actor(c)
	if !found {
		return
	}
	ctx := c.Request.Context()
	roomID := c.Param("id")
	cursor := c.Query("cursor")
	limit := utils.AtoiDefault(c.Query("limit"), 0)

	count, latest, copies, err := h.msgs.Fingerprint(ctx, u, roomID)
	if err != nil {
		failService(c, err, ErrCodeListFailed)
		return
	}
	etag := messagesETag(count, latest, copies, cursor, limit)
	c.Header("ETag", etag)
	if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
		c.Status(http.StatusNotModified)
		return
	}

	page, err := h.msgs.List(ctx, u, roomID, cursor, limit)
	if err != nil {
		failService(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, ListMessagesResponse{
		Messages:   page.Items,
		NextCursor: page.NextCursor,
		HasMore:    page.HasMore,
	})
}

// messagesETag changes whenever a message is added or updated, or a copy is
// delivered to the reader. Responses vary by caller, see middleware.SecurityOptions.
func messagesETag(count int64, latest *time.Time, copies int64, cursor string, limit int) string {
	var ts int64
	if latest != nil {
		ts = latest.UnixNano()
	}
	return fmt.Sprintf(`W/"messages:%d:%d:%d:%s:%s"`, count, ts, copies, cursor, strconv.Itoa(limit))
}
