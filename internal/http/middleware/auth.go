package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/quickdesk/backend/internal/auth"
)

const claimsKey = "authClaims"

// Authenticate extracts a bearer token from the Authorization header (or
// the access_token cookie as a fallback), verifies it, and stashes the
// decoded claims in the gin context for downstream handlers.
func Authenticate(tokens *auth.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := bearerToken(c)
		if tokenString == "" {
			abortUnauthorized(c, "UNAUTHORIZED", "Missing credentials")
			return
		}

		claims, err := tokens.VerifyAccess(tokenString)
		if err != nil {
			if errors.Is(err, auth.ErrTokenExpired) {
				abortUnauthorized(c, "TOKEN_EXPIRED", "Token expired")
				return
			}
			abortUnauthorized(c, "INVALID_TOKEN", "Invalid token")
			return
		}

		c.Set(claimsKey, claims)
		c.Next()
	}
}

// RequireRole guards a route group to the given roles. Must run after
// Authenticate.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := ClaimsFrom(c)
		if claims == nil {
			abortUnauthorized(c, "UNAUTHORIZED", "Missing credentials")
			return
		}
		for _, role := range roles {
			if claims.Role == role {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"error": gin.H{
				"code":    "FORBIDDEN",
				"message": "Insufficient role",
			},
		})
	}
}

func ClaimsFrom(c *gin.Context) *auth.Claims {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*auth.Claims)
	return claims
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	if cookie, err := c.Cookie("access_token"); err == nil {
		return cookie
	}
	return ""
}

func abortUnauthorized(c *gin.Context, code, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}
