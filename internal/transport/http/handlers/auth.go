package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/anelcanto/recall/internal/container"
	"github.com/anelcanto/recall/pkg/apperr"
	"github.com/anelcanto/recall/pkg/logger"
)

// AuthHandler gates requests behind a single bearer token.
type AuthHandler struct {
	container *container.Container
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(c *container.Container) *AuthHandler {
	return &AuthHandler{container: c}
}

// BearerTokenMiddleware validates the Authorization: Bearer <token> header
// against the configured API_AUTH_TOKEN. When no token is configured, the
// gate is a no-op (§6).
func (h *AuthHandler) BearerTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := h.container.Config.Auth.Token
		if token == "" {
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			h.respondAuthError(c, "missing Authorization header")
			return
		}

		const prefix = "Bearer "
		if !strings.HasPrefix(authHeader, prefix) {
			h.respondAuthError(c, "Authorization header must use the Bearer scheme")
			return
		}

		if strings.TrimPrefix(authHeader, prefix) != token {
			h.respondAuthError(c, "invalid bearer token")
			return
		}

		ctx := logger.WithUserID(c.Request.Context(), "authenticated")
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

func (h *AuthHandler) respondAuthError(c *gin.Context, detail string) {
	h.container.Logger.Warn("authentication failed",
		"detail", detail,
		"ip", c.ClientIP(),
		"path", c.Request.URL.Path,
	)

	err := apperr.New(apperr.CodeUnauthorized, detail)
	c.JSON(err.HTTPStatus, gin.H{
		"error":  string(err.Code),
		"detail": detail,
	})
	c.Abort()
}
