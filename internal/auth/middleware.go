package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ctxClaimsKey is the gin context key carrying parsed claims.
const ctxClaimsKey = "claims"

// Require enforces bearer JWT tokens signed with HS256 and stores the claims
// on the request context.
func Require(signingKey, issuer string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if authz == "" || !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		tokenStr := strings.TrimSpace(authz[len("bearer "):])
		claims, err := Parse(tokenStr, signingKey, issuer)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(ctxClaimsKey, claims)
		c.Next()
	}
}

// RequireRole rejects callers whose token does not carry one of the given
// roles. Must run after Require.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := FromContext(c)
		for _, r := range roles {
			if claims.Role == r {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient role"})
	}
}

// FromContext returns the claims stored by Require; zero claims when absent.
func FromContext(c *gin.Context) Claims {
	v, ok := c.Get(ctxClaimsKey)
	if !ok {
		return Claims{}
	}
	claims, _ := v.(Claims)
	return claims
}
