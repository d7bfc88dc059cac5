package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/teamchat/internal/apperr"
	"github.com/lalith-99/teamchat/internal/auth"
)

// ContextKeyPrincipal is where Identity stores the resolved caller.
const ContextKeyPrincipal = "principal"

// Identity resolves the caller for every request.
//
// Unlike a hard auth gate it lets anonymous requests through: queries
// answer empty for them and mutations fail UNAUTHENTICATED in the service
// layer. A token that is present but malformed or expired is different.
// The client thinks it is signed in, so it gets a 401 to re-authenticate.
//
// Browsers cannot set headers on a websocket upgrade, so the token may
// also arrive as the access_token query parameter.
func Identity(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid authorization format, expected: Bearer <token>",
				"code":  apperr.CodeUnauthenticated,
			})
			return
		}
		if tokenString == "" {
			c.Set(ContextKeyPrincipal, auth.Anonymous)
			c.Next()
			return
		}

		claims, err := auth.ParseToken(tokenString, secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid or expired token",
				"code":  apperr.CodeUnauthenticated,
			})
			return
		}

		c.Set(ContextKeyPrincipal, auth.PrincipalFromClaims(claims))
		c.Next()
	}
}

// bearerToken returns ("", true) when no credentials were sent and
// ok=false when the Authorization header is present but not a bearer token.
func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return c.Query("access_token"), true
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

// GetPrincipal returns the caller stored by Identity, or the anonymous
// principal when the middleware did not run.
func GetPrincipal(c *gin.Context) auth.Principal {
	val, exists := c.Get(ContextKeyPrincipal)
	if !exists {
		return auth.Anonymous
	}
	p, ok := val.(auth.Principal)
	if !ok {
		return auth.Anonymous
	}
	return p
}
