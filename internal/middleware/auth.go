package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"classconnect-auth/internal/apperrors"
	"classconnect-auth/internal/services"
)

const (
	CtxUserID = "user_id"
	CtxEmail  = "email"
)

// AuthMiddleware requires a valid Bearer access token and stores the
// subject and email in the gin context.
func AuthMiddleware(tokens services.TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Missing or invalid Authorization header",
				"type":  "missing_token",
			})
			return
		}

		claims, err := tokens.Parse(strings.TrimSpace(parts[1]))
		if err != nil {
			body := gin.H{"error": "Invalid or expired token", "type": services.ErrTokenInvalid.Type}
			if e, ok := apperrors.As(err); ok {
				body = gin.H{"error": e.Message, "type": e.Type}
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, body)
			return
		}

		c.Set(CtxUserID, claims.Subject)
		c.Set(CtxEmail, claims.Email)
		c.Next()
	}
}
