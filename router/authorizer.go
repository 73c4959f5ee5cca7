package router

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"lexia/controllers"

	"github.com/gin-gonic/gin"
)

// Authorizer blocks access to admin routes unless the request carries
// "Authorization: Bearer <token>". An empty token closes the routes entirely.
func Authorizer(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			controllers.RespondError(c, "rota administrativa desabilitada", http.StatusForbidden)
			c.Abort()
			return
		}

		got, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(strings.TrimSpace(got)), []byte(token)) != 1 {
			controllers.RespondError(c, "unauthorized", http.StatusUnauthorized)
			c.Abort()
			return
		}

		c.Next()
	}
}
