// Package ginmw binds access guards to Gin HTTP handlers.
package ginmw

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	auth "github.com/grantlab/auth-go"
	"github.com/grantlab/auth-go/guard"
)

// Context keys for authenticated caller data in gin.Context.
const (
	KeyClaims   = "auth_claims"
	KeyUsername = "auth_username"
	KeyEmail    = "auth_email"
)

// SessionCookie is the cookie checked when no Authorization header is set.
const SessionCookie = "access_token"

// Require returns Gin middleware enforcing the guard. An unknown caller gets
// 401; a known caller the guard refuses gets 403. On success the claims are
// stored in the context for handlers.
func Require(g *guard.Guard) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)

		claims, ok := g.Allow(c.Request.Context(), token)
		if !ok {
			if claims == nil {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			} else {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient privileges"})
			}
			return
		}

		c.Set(KeyClaims, claims)
		c.Set(KeyUsername, claims.Username)
		c.Set(KeyEmail, claims.Email)

		c.Next()
	}
}

// GetClaims returns the verified claims from the Gin context.
func GetClaims(c *gin.Context) *auth.Claims {
	v, _ := c.Get(KeyClaims)
	claims, _ := v.(*auth.Claims)
	return claims
}

// GetUsername returns the authenticated username from the Gin context.
func GetUsername(c *gin.Context) string {
	v, _ := c.Get(KeyUsername)
	s, _ := v.(string)
	return s
}

// GetEmail returns the authenticated email from the Gin context.
func GetEmail(c *gin.Context) string {
	v, _ := c.Get(KeyEmail)
	s, _ := v.(string)
	return s
}

// extractToken prefers the Authorization bearer header and falls back to the
// session cookie.
func extractToken(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return parts[1]
		}
		return ""
	}
	if cookie, err := c.Cookie(SessionCookie); err == nil {
		return cookie
	}
	return ""
}
