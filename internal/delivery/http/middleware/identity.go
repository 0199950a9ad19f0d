package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// IdentityHeader is set by the upstream gateway after authentication;
// the engine trusts it. Authentication itself is out of scope here.
const IdentityHeader = "X-User-ID"

const userIDKey = "user_id"

// Identity parses the caller's user id when present. It never rejects:
// endpoints that need a user call RequireUser.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if raw := c.GetHeader(IdentityHeader); raw != "" {
			if id, err := strconv.ParseInt(raw, 10, 64); err == nil && id > 0 {
				c.Set(userIDKey, id)
			}
		}
		c.Next()
	}
}

// RequireUser guards endpoints that act on behalf of a user.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := c.Get(userIDKey); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing or invalid " + IdentityHeader + " header",
			})
			return
		}
		c.Next()
	}
}

// UserID returns the caller's id; only valid behind RequireUser.
func UserID(c *gin.Context) int64 {
	v, _ := c.Get(userIDKey)
	id, _ := v.(int64)
	return id
}

// RateKey identifies the caller for rate limiting: the user when known,
// the client address otherwise.
func RateKey(c *gin.Context) string {
	if v, ok := c.Get(userIDKey); ok {
		if id, ok := v.(int64); ok {
			return "u:" + strconv.FormatInt(id, 10)
		}
	}
	return "ip:" + c.ClientIP()
}
