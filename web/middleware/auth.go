package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Baleenmedia2512/recordingapp--ramesh/ccc/logging"
)

// AuthMiddleware guards the status API with a shared API key
type AuthMiddleware struct {
	logger logging.Logger
	apiKey string
}

// NewAuthMiddleware creates a new API-key middleware
func NewAuthMiddleware(logger logging.Logger, apiKey string) *AuthMiddleware {
	if logger == nil {
		logger = logging.NopLogger
	}

	return &AuthMiddleware{
		logger: logger,
		apiKey: apiKey,
	}
}

// RequireAuth middleware that requires the X-Api-Key header
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader("X-Api-Key")
		if key == "" {
			m.logger.Warn("Missing X-Api-Key header")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing X-Api-Key header"})
			c.Abort()
			return
		}

		if subtle.ConstantTimeCompare([]byte(key), []byte(m.apiKey)) != 1 {
			m.logger.Warn("Invalid API key")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid API key"})
			c.Abort()
			return
		}

		c.Next()
	}
}
