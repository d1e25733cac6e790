// Room HTTP handlers.
//
//   - POST  /rooms
//   - GET   /rooms              (most recently active first)
//   - GET   /rooms/{id}
//   - PATCH /rooms/{id}         (rename, creator only)
//   - GET   /rooms/{id}/members
package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/owenstack/chat/internal/domain"
	"github.com/owenstack/chat/internal/services"
)

// CreateRoomRequest is the payload of POST /rooms.
type CreateRoomRequest struct {
	// Name is optional; a default is used when blank.
	Name string `json:"name" example:"Weekend trip"`
	// MemberIDs are the other participants. The caller is always added.
	MemberIDs []string `json:"member_ids" binding:"required,min=1" example:"6f1c2a7e-1d9b-4c1e-9f0a-3b2d1c4e5f60"`
}

// RenameRoomRequest is the payload of PATCH /rooms/{id}.
type RenameRoomRequest struct {
	Name string `json:"name" binding:"required,min=1,max=255" example:"Trip planning"`
}

// RoomResponse wraps a single room.
type RoomResponse struct {
	Room *domain.Room `json:"room"`
}

// ListRoomsResponse wraps a page of rooms.
type ListRoomsResponse struct {
	Rooms      []domain.Room `json:"rooms"`
	Pagination Pagination    `json:"pagination"`
}

// MembersResponse maps member ID to profile.
type MembersResponse struct {
	Members map[string]services.MemberProfile `json:"members"`
}

// CreateRoom godoc
// @ID          createRoom
// @Summary     Create a room
// @Description A room with exactly two distinct members is private; larger rooms are groups.
// @Tags        Rooms
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body      handlers.CreateRoomRequest  true  "Room payload"
// @Success     201   {object}  handlers.RoomResponse
// @Failure     400   {object}  handlers.ErrorResponse  "Invalid members"
// @Failure     401   {object}  handlers.ErrorResponse  "Unauthenticated"
// @Failure     500   {object}  handlers.ErrorResponse  "Internal error"
// @Router      /rooms [post]
func (h *Handlers) CreateRoom(c *gin.Context) {
	u, found := actor(c)
	if !found {
		return
	}
	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "member_ids required")
		return
	}
	room, err := h.rooms.Create(c.Request.Context(), u, req.Name, req.MemberIDs)
	if err != nil {
		failService(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusCreated, RoomResponse{Room: room})
}

// ListRooms godoc
// @ID          listRooms
// @Summary     List the caller's rooms
// @Tags        Rooms
// @Produce     json
// @Security    BearerAuth
// @Param       page       query  int  false  "Page number"     minimum(1) default(1)
// @Param       page_size  query  int  false  "Items per page"  minimum(1) maximum(100) default(20)
// @Param       If-None-Match  header  string  false  "ETag from a previous response"
// @Success     200  {object}  handlers.ListRoomsResponse
// @Success     304  "Not modified"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthenticated"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /rooms [get]
func (h *Handlers) ListRooms(c *gin.Context) {
	u, found := actor(c)
	if !found {
		return
	}
	ctx := c.Request.Context()
	page, pageSize := clampPagination(c)

	count, latest, err := h.rooms.Fingerprint(ctx, u)
	if err != nil {
		failService(c, err, ErrCodeListFailed)
		return
	}
	etag := roomsETag(count, latest, page, pageSize)
	c.Header("ETag", etag)
	if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
		c.Status(http.StatusNotModified)
		return
	}

	items, total, err := h.rooms.ListPage(ctx, u, page, pageSize)
	if err != nil {
		failService(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, ListRoomsResponse{Rooms: items, Pagination: newPagination(page, pageSize, total)})
}

// GetRoom godoc
// @ID          getRoom
// @Summary     Get a room
// @Tags        Rooms
// @Produce     json
// @Security    BearerAuth
// @Param       id   path      string  true  "Room ID"  format(uuid)
// @Success     200  {object}  handlers.RoomResponse
// @Failure     404  {object}  handlers.ErrorResponse  "Room not found"
// @Router      /rooms/{id} [get]
func (h *Handlers) GetRoom(c *gin.Context) {
	u, found := actor(c)
	if !found {
		return
	}
	room, err := h.rooms.Get(c.Request.Context(), u, c.Param("id"))
	if err != nil {
		failService(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, RoomResponse{Room: room})
}

// RenameRoom godoc
// @ID          renameRoom
// @Summary     Rename a room
// @Description Only the room's creator may rename it.
// @Tags        Rooms
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path      string                      true  "Room ID"  format(uuid)
// @Param       body  body      handlers.RenameRoomRequest  true  "New name"
// @Success     200   {object}  handlers.RoomResponse
// @Failure     400   {object}  handlers.ErrorResponse  "Invalid name"
// @Failure     403   {object}  handlers.ErrorResponse  "Not the creator"
// @Failure     404   {object}  handlers.ErrorResponse  "Room not found"
// @Router      /rooms/{id} [patch]
func (h *Handlers) RenameRoom(c *gin.Context) {
	u, found := actor(c)
	if !found {
		return
	}
	var req RenameRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "name required")
		return
	}
	room, err := h.rooms.Rename(c.Request.Context(), u, c.Param("id"), req.Name)
	if err != nil {
		failService(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, RoomResponse{Room: room})
}

// ListMembers godoc
// @ID          listRoomMembers
// @Summary     List room members
// @Tags        Rooms
// @Produce     json
// @Security    BearerAuth
// @Param       id   path      string  true  "Room ID"  format(uuid)
// @Success     200  {object}  handlers.MembersResponse
// @Failure     404  {object}  handlers.ErrorResponse  "Room not found"
// @Router      /rooms/{id}/members [get]
func (h *Handlers) ListMembers(c *gin.Context) {
	u, found := actor(c)
	if !found {
		return
	}
	members, err := h.rooms.Members(c.Request.Context(), u, c.Param("id"))
	if err != nil {
		failService(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, MembersResponse{Members: members})
}

func roomsETag(count int64, latest *time.Time, page, pageSize int) string {
	var ts int64
	if latest != nil {
		ts = latest.UnixNano()
	}
	return fmt.Sprintf(`W/"rooms:%d:%d:%d:%d"`, count, ts, page, pageSize)
}
