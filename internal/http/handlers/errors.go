// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// Codes are stable, lowercase snake_case strings. Clients branch on them; the
// message is for humans. Generic codes mirror HTTP status semantics, domain
// codes name a business rule the status alone cannot convey.
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "invalid_language",
//	  "message": "language must be a BCP 47 tag"
//	}
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/owenstack/chat/internal/services"
)

const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeForbidden    = "forbidden"
	ErrCodeNotFound     = "not_found"
	ErrCodeConflict     = "conflict"
	ErrCodeInternal     = "internal_error"
	ErrCodeUnavailable  = "unavailable"

	ErrCodeMethodNotAllowed = "method_not_allowed"

	// Domain-specific:
	ErrCodeInvalidLanguage = "invalid_language"
	ErrCodeInvalidCursor   = "invalid_cursor"
	ErrCodeEmptyText       = "empty_text"
	ErrCodeTextTooLong     = "text_too_long"
	ErrCodeInvalidMembers  = "invalid_members"
	ErrCodeSendFailed      = "send_failed"
	ErrCodeListFailed      = "list_failed"
)

// errMapping pairs a service sentinel with its HTTP status and code.
type errMapping struct {
	err    error
	status int
	code   string
}

var serviceErrors = []errMapping{
	{services.ErrUserNotFound, http.StatusNotFound, ErrCodeNotFound},
	{services.ErrRoomNotFound, http.StatusNotFound, ErrCodeNotFound},
	{services.ErrMessageNotFound, http.StatusNotFound, ErrCodeNotFound},
	{services.ErrForbidden, http.StatusForbidden, ErrCodeForbidden},
	{services.ErrInvalidName, http.StatusBadRequest, ErrCodeBadRequest},
	{services.ErrInvalidAccountType, http.StatusBadRequest, ErrCodeBadRequest},
	{services.ErrInvalidLanguage, http.StatusBadRequest, ErrCodeInvalidLanguage},
	{services.ErrInvalidCursor, http.StatusBadRequest, ErrCodeInvalidCursor},
	{services.ErrEmptyText, http.StatusBadRequest, ErrCodeEmptyText},
	{services.ErrTooLong, http.StatusBadRequest, ErrCodeTextTooLong},
	{services.ErrNoMembers, http.StatusBadRequest, ErrCodeInvalidMembers},
	{services.ErrUnknownMembers, http.StatusBadRequest, ErrCodeInvalidMembers},
	{services.ErrTooManyMembers, http.StatusBadRequest, ErrCodeInvalidMembers},
}

// failService maps a service error to the response envelope. Unknown errors
// become 500 with fallbackCode and are logged by fail.
func failService(c *gin.Context, err error, fallbackCode string) {
	for _, m := range serviceErrors {
		if errors.Is(err, m.err) {
			fail(c, m.status, m.code, err.Error())
			return
		}
	}
	_ = c.Error(err)
	fail(c, http.StatusInternalServerError, fallbackCode, "internal server error")
}
