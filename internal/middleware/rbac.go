package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/pass-request-client/internal/models"
	appErrors "github.com/noah-isme/pass-request-client/pkg/errors"
	"github.com/noah-isme/pass-request-client/pkg/response"
)

// RequireRoles lets the request through only for the given roles. It must run
// after JWT.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	return func(c *gin.Context) {
		claims, ok := Claims(c)
		if !ok {
			response.Error(c, errUnauthorized)
			c.Abort()
			return
		}

		if _, ok := allowed[claims.Role]; ok {
			c.Next()
			return
		}

		response.Error(c, appErrors.Server(http.StatusForbidden, "access is denied"))
		c.Abort()
	}
}
