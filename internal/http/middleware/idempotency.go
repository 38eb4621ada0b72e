// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements Idempotency-Key handling for the order-cancel
// endpoint. A client retrying a cancel after a network failure sends the
// same key; the validator detects a prior completed attempt and marks the
// request as a replay so the handler can answer without re-running side
// effects (no second notification, no second broadcast).
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// idempotencyHeader is the HTTP header carrying the client retry key.
	idempotencyHeader = "Idempotency-Key"
	// identityHeader carries the signed-in customer identity.
	identityHeader = "X-User-ID"

	// ctxKeyIdemKey stores the validated key in the Gin context.
	ctxKeyIdemKey = "idempotencyKey"
	// ctxKeyIdemReplay stores the recorded status of a detected replay.
	ctxKeyIdemReplay = "idempotencyReplay"
	// ctxKeyRateBypass marks a replay for rate-limit bypass.
	ctxKeyRateBypass = "rateBypass"
)

// IdempotencyLookup resolves a prior attempt for (userID, orderID, key).
// It returns the recorded HTTP status and found=true when a non-expired
// record exists.
type IdempotencyLookup func(c *gin.Context, userID, orderID, key string) (status int, found bool, err error)

// GetIdempotencyKey returns the validated Idempotency-Key for this request,
// or "" when the client did not send one.
func GetIdempotencyKey(c *gin.Context) string {
	v, ok := c.Get(ctxKeyIdemKey)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// IsReplay reports whether this request replays a previously completed
// attempt, and if so the HTTP status recorded for that attempt.
func IsReplay(c *gin.Context) (int, bool) {
	v, ok := c.Get(ctxKeyIdemReplay)
	if !ok {
		return 0, false
	}
	status, _ := v.(int)
	return status, true
}

// IdempotencyValidator returns a middleware that validates the
// Idempotency-Key header and consults lookup for a prior attempt keyed by
// (identity, :id route param, key). Requests without the header pass
// through untouched. A malformed key is rejected with 400 before any
// handler runs. On a detected replay the request is flagged for the handler
// and for rate-limit bypass; the handler decides the replayed response.
func IdempotencyValidator(lookup IdempotencyLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := strings.TrimSpace(c.GetHeader(idempotencyHeader))
		if key == "" {
			c.Next()
			return
		}

		if _, err := uuid.Parse(key); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"request_id": c.Writer.Header().Get(requestIDHeader),
				"code":       "bad_request",
				"message":    "invalid Idempotency-Key: must be a UUID",
			})
			return
		}

		c.Set(ctxKeyIdemKey, key)

		userID := strings.TrimSpace(c.GetHeader(identityHeader))
		orderID := c.Param("id")
		if lookup != nil && userID != "" && orderID != "" {
			status, found, err := lookup(c, userID, orderID, key)
			if err != nil {
				LoggerFrom(c).Warn().Err(err).Msg("idempotency lookup failed")
			} else if found {
				c.Set(ctxKeyIdemReplay, status)
				c.Set(ctxKeyRateBypass, true)
			}
		}

		c.Next()
	}
}
