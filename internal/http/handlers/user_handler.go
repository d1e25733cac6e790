// User HTTP handlers.
//
//   - POST  /me     (first-time setup, later calls sync name and language)
//   - GET   /me
//   - PATCH /me
//   - GET   /users  (public directory)
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/owenstack/chat/internal/domain"
	"github.com/owenstack/chat/internal/http/middleware"
	"github.com/owenstack/chat/internal/services"
)

// SetupRequest is the payload of POST /me.
type SetupRequest struct {
	// SelectedLanguage is the reader language; empty keeps the current one.
	SelectedLanguage string `json:"selected_language" example:"fr"`
}

// UpdateProfileRequest is the payload of PATCH /me. Omitted fields are
// left unchanged.
type UpdateProfileRequest struct {
	Name             *string `json:"name,omitempty"              example:"Ada"`
	AccountType      *string `json:"account_type,omitempty"      example:"private" enums:"public,private"`
	Avatar           *string `json:"avatar,omitempty"            example:"https://img.example/ada.png"`
	SelectedLanguage *string `json:"selected_language,omitempty" example:"pt-BR"`
}

// UserResponse wraps a single user.
type UserResponse struct {
	User *domain.User `json:"user"`
}

// ListUsersResponse wraps a page of public users.
type ListUsersResponse struct {
	Users      []domain.User `json:"users"`
	Pagination Pagination    `json:"pagination"`
}

// SetupMe godoc
// @ID          setupMe
// @Summary     Set up the current user
// @Description Creates the user for the authenticated identity on first call.
// @Description Later calls sync the display name and, when given, the selected language.
// @Tags        Users
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body      handlers.SetupRequest  false  "Setup payload"
// @Success     200   {object}  handlers.UserResponse
// @Failure     400   {object}  handlers.ErrorResponse  "Invalid language"
// @Failure     401   {object}  handlers.ErrorResponse  "Unauthenticated"
// @Failure     500   {object}  handlers.ErrorResponse  "Internal error"
// @Router      /me [post]
func (h *Handlers) SetupMe(c *gin.Context) {
	ident, found := middleware.IdentityFrom(c)
	if !found {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "not authenticated")
		return
	}

	var req SetupRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
			return
		}
	}

	u, err := h.users.Setup(c.Request.Context(), services.Identity{
		TokenIdentifier: ident.TokenIdentifier,
		Name:            ident.Name,
		PictureURL:      ident.Picture,
	}, req.SelectedLanguage)
	if err != nil {
		failService(c, err, ErrCodeInternal)
		return
	}
	middleware.SetUser(c, u)
	ok(c, http.StatusOK, UserResponse{User: u})
}

// GetMe godoc
// @ID          getMe
// @Summary     Get the current user
// @Tags        Users
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  handlers.UserResponse
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthenticated"
// @Failure     403  {object}  handlers.ErrorResponse  "Setup required"
// @Router      /me [get]
func (h *Handlers) GetMe(c *gin.Context) {
	u, found := actor(c)
	if !found {
		return
	}
	ok(c, http.StatusOK, UserResponse{User: u})
}

// UpdateMe godoc
// @ID          updateMe
// @Summary     Update the current user's profile
// @Tags        Users
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body      handlers.UpdateProfileRequest  true  "Fields to change"
// @Success     200   {object}  handlers.UserResponse
// @Failure     400   {object}  handlers.ErrorResponse  "Validation failed"
// @Failure     401   {object}  handlers.ErrorResponse  "Unauthenticated"
// @Failure     403   {object}  handlers.ErrorResponse  "Setup required"
// @Router      /me [patch]
func (h *Handlers) UpdateMe(c *gin.Context) {
	u, found := actor(c)
	if !found {
		return
	}
	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	updated, err := h.users.Update(c.Request.Context(), u, u.ID, services.ProfileUpdate{
		Name:             req.Name,
		AccountType:      req.AccountType,
		Avatar:           req.Avatar,
		SelectedLanguage: req.SelectedLanguage,
	})
	if err != nil {
		failService(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, UserResponse{User: updated})
}

// SearchUsers godoc
// @ID          searchUsers
// @Summary     Search public users
// @Description Lists public users other than the caller whose name contains query.
// @Tags        Users
// @Produce     json
// @Security    BearerAuth
// @Param       query      query  string  false  "Name fragment"
// @Param       page       query  int     false  "Page number"     minimum(1) default(1)
// @Param       page_size  query  int     false  "Items per page"  minimum(1) maximum(100) default(20)
// @Success     200  {object}  handlers.ListUsersResponse
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthenticated"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /users [get]
func (h *Handlers) SearchUsers(c *gin.Context) {
	u, found := actor(c)
	if !found {
		return
	}
	page, pageSize := clampPagination(c)
	items, total, err := h.users.SearchPublic(c.Request.Context(), u, strings.TrimSpace(c.Query("query")), page, pageSize)
	if err != nil {
		failService(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, ListUsersResponse{Users: items, Pagination: newPagination(page, pageSize, total)})
}
