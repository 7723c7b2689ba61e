package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RequireAuth gates requests behind the session when auth mode is "local".
// In mode "none" every request passes through untouched.
func RequireAuth(service *Service, sessions *SessionManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !service.Enabled() {
			c.Next()
			return
		}
		if !sessions.IsAuthenticated(c.Request) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": ErrAuthRequired.Error()})
			return
		}
		c.Next()
	}
}
