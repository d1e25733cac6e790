package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestHelpers_GetIdempotencyKey_ReplayMessageID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	if k, ok := GetIdempotencyKey(c); k != "" || ok {
		t.Fatalf("expected empty key when not set")
	}
	if IsReplay(c) {
		t.Fatalf("expected IsReplay=false by default")
	}

	// Non-string values are treated as absent.
	c.Set(ctxKeyIdemKey, 123)
	if _, ok := GetIdempotencyKey(c); ok {
		t.Fatalf("expected GetIdempotencyKey to be absent for non-string value")
	}
	c.Set(ctxKeyIdemMessage, 7)
	if IsReplay(c) {
		t.Fatalf("expected IsReplay=false for non-string message id")
	}
	c.Set(ctxKeyIdemMessage, "m1")
	if id, ok := ReplayMessageID(c); !ok || id != "m1" || !IsReplay(c) {
		t.Fatalf("expected replay of m1, got %q %v", id, ok)
	}

	if got := userIDFromCtx(c); got != "" {
		t.Fatalf("userIDFromCtx should be empty before auth, got %q", got)
	}
	c.Set(ctxKeyUserID, "u1")
	if got := userIDFromCtx(c); got != "u1" {
		t.Fatalf("userIDFromCtx mismatch: %q", got)
	}
}

func TestIdempotencyValidator_NoHeader_NoLookupCalled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	lookupCalled := false
	lookup := func(context.Context, string, string, string, time.Time) (string, error) {
		lookupCalled = true
		return "", nil
	}
	r.Use(IdempotencyValidator(IdempotencyOptions{}, lookup))
	r.POST("/rooms/:id/messages", func(c *gin.Context) {
		if _, ok := GetIdempotencyKey(c); ok {
			t.Fatalf("key should not be present when header missing")
		}
		c.Status(http.StatusNoContent)
	})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/rooms/r1/messages", nil))

	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if lookupCalled {
		t.Fatalf("lookup should not be called when header missing")
	}
}

func TestIdempotencyValidator_IgnoredOnSafeMethods(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(IdempotencyValidator(IdempotencyOptions{MaxLen: 1}, nil))
	r.GET("/rooms/:id/messages", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/rooms/r1/messages", nil)
	req.Header.Set(HeaderIdempotencyKey, "way-too-long")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GET must ignore the header, got %d", w.Code)
	}
}

func TestIdempotencyValidator_InvalidKey_Length(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(IdempotencyValidator(IdempotencyOptions{MaxLen: 5}, nil))
	r.POST("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/x", nil)
	req.Header.Set(HeaderIdempotencyKey, "abcdef")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if body["code"] != "bad_idempotency_key" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestIdempotencyValidator_InvalidKey_Pattern(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(IdempotencyValidator(IdempotencyOptions{Pattern: regexp.MustCompile(`^[0-9]+$`)}, nil))
	r.POST("/y", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/y", nil)
	req.Header.Set(HeaderIdempotencyKey, "abc123")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestIdempotencyValidator_Lookup(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name       string
		userID     string
		found      string
		err        error
		wantReplay bool
		wantLookup bool
	}{
		{name: "no user skips lookup", wantLookup: false},
		{name: "miss", userID: "u9", wantLookup: true},
		{name: "hit", userID: "u9", found: "m-1", wantReplay: true, wantLookup: true},
		{name: "lookup error proceeds", userID: "u9", err: errors.New("db down"), wantLookup: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			if tc.userID != "" {
				r.Use(func(c *gin.Context) { c.Set(ctxKeyUserID, tc.userID); c.Next() })
			}
			called := false
			r.Use(IdempotencyValidator(IdempotencyOptions{}, func(_ context.Context, userID, roomID, key string, now time.Time) (string, error) {
				called = true
				if userID != tc.userID || roomID != "abc" || key != "k-9" || now.IsZero() {
					t.Fatalf("unexpected lookup args: %q %q %q %v", userID, roomID, key, now)
				}
				return tc.found, tc.err
			}))
			r.POST("/rooms/:id/messages", func(c *gin.Context) {
				if IsReplay(c) != tc.wantReplay || IsRateBypass(c) != tc.wantReplay {
					t.Fatalf("replay=%v bypass=%v, want %v", IsReplay(c), IsRateBypass(c), tc.wantReplay)
				}
				if tc.wantReplay {
					if id, _ := ReplayMessageID(c); id != tc.found {
						t.Fatalf("replay id = %q, want %q", id, tc.found)
					}
				}
				c.Status(http.StatusOK)
			})

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/rooms/abc/messages", nil)
			req.Header.Set(HeaderIdempotencyKey, "k-9")
			r.ServeHTTP(w, req)
			if w.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", w.Code)
			}
			if called != tc.wantLookup {
				t.Fatalf("lookup called=%v, want %v", called, tc.wantLookup)
			}
		})
	}
}
