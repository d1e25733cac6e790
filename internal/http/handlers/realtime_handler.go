// Realtime HTTP handlers.
//
//   - GET  /rooms/{id}/presence
//   - POST /rooms/{id}/presence/heartbeat
//   - GET  /rooms/{id}/stream  (websocket upgrade)
//
// Stream frames are JSON objects {"type": ..., "room_id": ..., "data": ...}
// with types message.created, message.translated, presence and typing.
// Clients send {"type":"typing"} and {"type":"heartbeat"}.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/owenstack/chat/internal/domain"
	"github.com/owenstack/chat/internal/http/middleware"
)

// PresenceResponse lists members currently online in a room.
type PresenceResponse struct {
	Online []string `json:"online"`
}

// roomActor resolves the actor and checks room membership, writing the error
// response itself when either fails.
func (h *Handlers) roomActor(c *gin.Context) (*domain.User, string, bool) {
	if h.rt == nil {
		fail(c, http.StatusServiceUnavailable, ErrCodeUnavailable, "realtime disabled")
		return nil, "", false
	}
	u, found := actor(c)
	if !found {
		return nil, "", false
	}
	roomID := c.Param("id")
	if _, err := h.rooms.Authorize(c.Request.Context(), u, roomID); err != nil {
		failService(c, err, ErrCodeInternal)
		return nil, "", false
	}
	return u, roomID, true
}

// GetPresence godoc
// @ID          getPresence
// @Summary     List online members
// @Tags        Realtime
// @Produce     json
// @Security    BearerAuth
// @Param       id   path      string  true  "Room ID"  format(uuid)
// @Success     200  {object}  handlers.PresenceResponse
// @Failure     404  {object}  handlers.ErrorResponse  "Room not found"
// @Failure     503  {object}  handlers.ErrorResponse  "Realtime disabled"
// @Router      /rooms/{id}/presence [get]
func (h *Handlers) GetPresence(c *gin.Context) {
	_, roomID, allowed := h.roomActor(c)
	if !allowed {
		return
	}
	online, err := h.rt.Online(c.Request.Context(), roomID)
	if err != nil {
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "presence unavailable")
		return
	}
	if online == nil {
		online = []string{}
	}
	ok(c, http.StatusOK, PresenceResponse{Online: online})
}

// Heartbeat godoc
// @ID          presenceHeartbeat
// @Summary     Mark the caller online
// @Description Keeps the caller in the room's presence set for PRESENCE_TTL.
// @Tags        Realtime
// @Security    BearerAuth
// @Param       id  path  string  true  "Room ID"  format(uuid)
// @Success     204  "Recorded"
// @Failure     404  {object}  handlers.ErrorResponse  "Room not found"
// @Router      /rooms/{id}/presence/heartbeat [post]
func (h *Handlers) Heartbeat(c *gin.Context) {
	u, roomID, allowed := h.roomActor(c)
	if !allowed {
		return
	}
	if err := h.rt.Heartbeat(c.Request.Context(), roomID, u.ID); err != nil {
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "presence unavailable")
		return
	}
	noContent(c)
}

// Stream godoc
// @ID          roomStream
// @Summary     Subscribe to room events
// @Description Upgrades to a websocket. Browsers may pass the token as ?access_token=.
// @Tags        Realtime
// @Security    BearerAuth
// @Param       id            path   string  true   "Room ID"  format(uuid)
// @Param       access_token  query  string  false  "Bearer token for clients that cannot set headers"
// @Success     101  "Switching protocols"
// @Failure     404  {object}  handlers.ErrorResponse  "Room not found"
// @Router      /rooms/{id}/stream [get]
func (h *Handlers) Stream(c *gin.Context) {
	u, roomID, allowed := h.roomActor(c)
	if !allowed {
		return
	}
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already answered the client.
		middleware.LoggerFrom(c).Debug().Err(err).Msg("websocket upgrade failed")
		c.Abort()
		return
	}
	h.rt.Serve(c.Request.Context(), conn, roomID, u.ID)
}
