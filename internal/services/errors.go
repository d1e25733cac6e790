// Package services defines the business logic for users, rooms and messages.
// This file centralizes common service-level error values so that they can be
// consistently returned by service methods and checked by callers.
//
// These errors are intended for internal use by the service layer and translation
// into user-facing messages or HTTP status codes should be performed at the
// handler/controller layer.
package services

import (
	"errors"

	"github.com/owenstack/chat/internal/domain"
	"github.com/owenstack/chat/internal/utils"
)

// User errors.
var (
	// ErrUserNotFound indicates the authenticated identity has not completed
	// setup yet, or a referenced user does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrInvalidName is returned for a blank or oversized display name.
	ErrInvalidName = errors.New("invalid name")

	// ErrInvalidAccountType is returned for account types other than public
	// or private.
	ErrInvalidAccountType = errors.New("account type must be public or private")

	// ErrForbidden is returned when the actor may see a resource but not
	// change it.
	ErrForbidden = errors.New("forbidden")
)

// Room errors.
var (
	// ErrRoomNotFound indicates that the room does not exist or the actor is
	// not a member of it; callers cannot tell the two apart.
	ErrRoomNotFound = errors.New("room not found")

	// ErrNoMembers is returned when a room would have no member besides its
	// creator.
	ErrNoMembers = errors.New("a room needs at least one other member")

	// ErrUnknownMembers is returned when some requested member IDs do not
	// belong to existing users.
	ErrUnknownMembers = errors.New("unknown member ids")

	// ErrTooManyMembers is returned when a room would exceed the member cap.
	ErrTooManyMembers = errors.New("too many members")
)

// Message errors.
var (
	// ErrEmptyText is returned when a message is empty after sanitizing.
	ErrEmptyText = errors.New("message text is empty")

	// ErrTooLong is returned when a message exceeds the configured maximum
	// rune count.
	ErrTooLong = errors.New("message text too long")

	// ErrMessageNotFound indicates that the requested message does not exist
	// or is not accessible to the current user.
	ErrMessageNotFound = errors.New("message not found")

	// ErrInvalidLanguage is returned for a language code that cannot be parsed.
	ErrInvalidLanguage = domain.ErrInvalidLanguage

	// ErrInvalidCursor is returned for a malformed pagination cursor.
	ErrInvalidCursor = utils.ErrInvalidCursor
)
