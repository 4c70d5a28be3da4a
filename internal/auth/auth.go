// Package auth holds the two credential checks this service performs itself.
// Real user authentication happens at the gateway; we only consume the
// identity it forwards.
package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	identityHeader = "X-User-ID"
	identityKey    = "auth.user_id"
)

// IdentityMiddleware reads the caller identity forwarded by the gateway.
// Requests without a parseable user id are rejected.
func IdentityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(identityHeader)
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing caller identity",
			})
			return
		}
		userID, err := uuid.Parse(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid caller identity",
			})
			return
		}
		c.Set(identityKey, userID)
		c.Next()
	}
}

// CallerID returns the authenticated user id set by IdentityMiddleware.
func CallerID(c *gin.Context) uuid.UUID {
	v, _ := c.Get(identityKey)
	id, _ := v.(uuid.UUID)
	return id
}

// CallbackSecretMiddleware validates the static bearer token the worker
// presents on the callback endpoint. An empty secret disables the route
// entirely rather than letting unauthenticated callbacks through.
func CallbackSecretMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"error": "callback secret not configured",
			})
			return
		}

		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Unauthorized",
			})
			return
		}

		if subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Unauthorized",
			})
			return
		}

		c.Next()
	}
}
