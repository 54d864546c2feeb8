package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"homelet/api/internal/auth"
)

const (
	// ContextKeyPrincipal holds the authenticated auth.Principal in Gin context.
	ContextKeyPrincipal = "principal"
)

// AuthMiddleware creates a Gin middleware for JWT authentication.
func AuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, err := auth.BearerToken(c.GetHeader("Authorization"))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}

		principal, err := auth.Authenticate(tokenString, jwtSecret)
		if err != nil {
			errMsg := fmt.Sprintf("Invalid or expired token: %v", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errMsg})
			return
		}

		c.Set(ContextKeyPrincipal, principal)
		c.Next()
	}
}

// PrincipalFrom returns the principal set by AuthMiddleware.
func PrincipalFrom(c *gin.Context) (auth.Principal, bool) {
	value, exists := c.Get(ContextKeyPrincipal)
	if !exists {
		return auth.Principal{}, false
	}
	principal, ok := value.(auth.Principal)
	return principal, ok
}

// AdminMiddleware creates a Gin middleware to check for admin privileges.
// Assumes AuthMiddleware runs first.
func AdminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := PrincipalFrom(c)
		if !ok || !principal.IsElevated() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Administrator privileges required"})
			return
		}
		c.Next()
	}
}
