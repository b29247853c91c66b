package middleware

import (
	"net/http"
	"strings"

	"github.com/itayelfasy/nominal-assignment/internal/auth"
	"github.com/gin-gonic/gin"
)

// RequireServiceToken guards an endpoint with a signed service JWT. It is an
// opt-in layer for deployments that do not want the accounts proxy open on
// the internal network.
func RequireServiceToken(jwtSecret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			respondUnauthorized(c, "Missing Authorization header. A valid Bearer token is required.")
			return
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			respondUnauthorized(c, "Authorization header must use Bearer scheme. Format: 'Bearer <token>'")
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == "" {
			respondUnauthorized(c, "Bearer token is empty")
			return
		}

		claims, err := auth.VerifyToken(jwtSecret, tokenString)
		if err != nil {
			respondUnauthorized(c, err.Error())
			return
		}

		if sub, ok := claims["sub"].(string); ok && sub != "" {
			c.Set("serviceSubject", sub)
		}

		c.Next()
	}
}

func respondUnauthorized(c *gin.Context, description string) {
	c.JSON(http.StatusUnauthorized, gin.H{
		"error":             "invalid_token",
		"error_description": description,
	})
	c.Abort()
}
