package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"carbon-scribe/derivative-market/derivative-market-backend/pkg/identity"
)

const callerContextKey = "auth.caller"

// CallerAddress returns the authenticated caller address set by
// RequireAuth.
func CallerAddress(c *gin.Context) (identity.Address, bool) {
	v, ok := c.Get(callerContextKey)
	if !ok {
		return identity.Address{}, false
	}
	addr, ok := v.(identity.Address)
	return addr, ok
}

// RequireAuth validates the bearer token and stores the caller address
// in the request context.
func (s *Service) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		addr, err := s.VerifyToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(callerContextKey, addr)
		c.Next()
	}
}

// RequireOperator rejects authenticated callers that are not registered
// operators. Must run after RequireAuth.
func (s *Service) RequireOperator() gin.HandlerFunc {
	return func(c *gin.Context) {
		addr, ok := CallerAddress(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing caller identity"})
			return
		}
		if !s.IsOperator(addr) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "operator status required"})
			return
		}
		c.Next()
	}
}
