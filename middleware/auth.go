package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"organic-hub/common/auth"
	"organic-hub/models"
)

const (
	UserContextKey  = "userID"
	RoleContextKey  = "role"
	EmailContextKey = "email"
	GuestContextKey = "guestID"

	GuestHeader = "X-Guest-ID"
)

// TokenParser validates bearer tokens.
type TokenParser interface {
	Parse(raw, expectedType string) (*auth.Claims, error)
}

func bearer(c *gin.Context) (string, bool) {
	h := c.GetHeader("Authorization")
	if len(h) < 7 || !strings.EqualFold(h[:7], "Bearer ") {
		return "", false
	}
	tok := strings.TrimSpace(h[7:])
	return tok, tok != ""
}

func setClaims(c *gin.Context, claims *auth.Claims) {
	c.Set(UserContextKey, claims.UserID())
	c.Set(RoleContextKey, claims.Role)
	c.Set(EmailContextKey, claims.Email)
}

// AuthMiddleware requires a valid access token.
func AuthMiddleware(tokens TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearer(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		claims, err := tokens.Parse(raw, auth.TypeAccess)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}
		setClaims(c, claims)
		c.Next()
	}
}

// OptionalAuth identifies the caller when it can: a valid access token sets
// the user, otherwise a well-formed X-Guest-ID header sets the guest. An
// invalid token is rejected rather than silently downgraded to a guest.
func OptionalAuth(tokens TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		if raw, ok := bearer(c); ok {
			claims, err := tokens.Parse(raw, auth.TypeAccess)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
				return
			}
			setClaims(c, claims)
		}
		if gid := strings.TrimSpace(c.GetHeader(GuestHeader)); gid != "" {
			if _, err := uuid.Parse(gid); err == nil {
				c.Set(GuestContextKey, gid)
			}
		}
		c.Next()
	}
}

// AdminOnly must run after AuthMiddleware.
func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(RoleContextKey) != models.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
			return
		}
		c.Next()
	}
}

func GetUserID(c *gin.Context) (string, error) {
	if id := c.GetString(UserContextKey); id != "" {
		return id, nil
	}
	return "", errors.New("user ID not found in context")
}

func GetGuestID(c *gin.Context) string {
	return c.GetString(GuestContextKey)
}

func GetEmail(c *gin.Context) string {
	return c.GetString(EmailContextKey)
}
