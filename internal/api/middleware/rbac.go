package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RequireSelf restricts a route to the user named by the path parameter.
// It MUST be used AFTER RequireAuth.
func RequireSelf(param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := UserID(c)
		if uid == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "User context missing"})
			return
		}

		if c.Param(param) != uid {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "Forbidden: you can only access your own library.",
			})
			return
		}
		c.Next()
	}
}
