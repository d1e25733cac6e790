// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements idempotent message sends. It validates the
// Idempotency-Key request header, asks a lookup whether (user, room, key) has
// already produced a message, and annotates the request context so downstream
// handlers can:
//   - read the normalized key (GetIdempotencyKey)
//   - detect a replay and fetch the original message (ReplayMessageID)
//   - bypass rate limiting when a replay is served (via an internal flag)
//
// The middleware must run after ResolveUser so the lookup is scoped to the
// authenticated user.
package middleware

import (
	"context"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey is the request header that clients use to make a send
// safe to retry.
const HeaderIdempotencyKey = "Idempotency-Key"

// HeaderIdempotencyReplayed is set on responses served from a prior send.
const HeaderIdempotencyReplayed = "Idempotency-Replayed"

const (
	ctxKeyIdemKey     = "idem.key"
	ctxKeyIdemMessage = "idem.message" // string: message id of the prior send
	ctxKeyRateBypass  = "rate.bypass"  // bool: true to skip rate limiting
)

// GetIdempotencyKey returns the validated idempotency key stored by
// IdempotencyValidator. The second return value indicates presence.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxKeyIdemKey)
	if !ok {
		return "", false
	}
	s, _ := v.(string)
	return s, s != ""
}

// ReplayMessageID returns the message created by an earlier request with the
// same key, if any.
func ReplayMessageID(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxKeyIdemMessage)
	if !ok {
		return "", false
	}
	s, _ := v.(string)
	return s, s != ""
}

// IsReplay reports whether this request repeats a completed send.
func IsReplay(c *gin.Context) bool {
	_, ok := ReplayMessageID(c)
	return ok
}

// IdempotencyOptions configures header validation.
type IdempotencyOptions struct {
	// MaxLen caps the accepted key length. Values <= 0 default to 200.
	MaxLen int
	// Pattern restricts allowed characters. If nil, ^[A-Za-z0-9._~\-:]+$ is used.
	Pattern *regexp.Regexp
}

// IdempotencyLookup returns the message ID recorded for (userID, roomID, key)
// if it has not expired at now, or "" when there is none. Errors do not block
// normal processing.
type IdempotencyLookup func(ctx context.Context, userID, roomID, key string, now time.Time) (messageID string, err error)

// IdempotencyValidator validates the Idempotency-Key header (if present),
// stashes it in the request context and checks for a prior completed send.
//
// Behavior:
//   - If the header is absent or the method is safe: no-op.
//   - If the header fails validation: responds 400.
//   - If lookup finds a prior send: sets replay + rate-bypass flags.
func IdempotencyValidator(opts IdempotencyOptions, lookup IdempotencyLookup) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = 200
	}
	pat := opts.Pattern
	if pat == nil {
		pat = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)
	}

	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" || c.Request.Method != http.MethodPost {
			c.Next()
			return
		}
		if len(key) > maxLen || !pat.MatchString(key) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"request_id": c.Writer.Header().Get(requestIDHeader),
				"code":       "bad_idempotency_key",
				"message":    "invalid Idempotency-Key",
			})
			return
		}

		c.Set(ctxKeyIdemKey, key)

		if lookup != nil {
			uid := userIDFromCtx(c)
			roomID := c.Param("id")
			if uid != "" && roomID != "" {
				msgID, err := lookup(c.Request.Context(), uid, roomID, key, time.Now().UTC())
				if err != nil {
					LoggerFrom(c).Warn().Err(err).Msg("idempotency lookup failed")
				}
				if msgID != "" {
					c.Set(ctxKeyIdemMessage, msgID)
					c.Set(ctxKeyRateBypass, true)
				}
			}
		}

		c.Next()
	}
}

// userIDFromCtx returns the resolved user's ID, or "" before authentication.
func userIDFromCtx(c *gin.Context) string {
	if v, ok := c.Get(ctxKeyUserID); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
