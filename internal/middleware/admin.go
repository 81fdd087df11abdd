package middleware

import (
	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/labsite-api/pkg/errors"
	"github.com/noah-isme/labsite-api/pkg/response"
)

// RequireAdmin lets the request through only when the token email passes policy.
// It must run after JWT.
func RequireAdmin(policy func(email string) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := Claims(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if policy == nil || !policy(claims.Email) {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}
