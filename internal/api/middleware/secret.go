package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/At4lian/editra/internal/config"
)

// HeaderWebhookSecret is the shared-secret header ClickUp sends with
// every webhook delivery.
const HeaderWebhookSecret = "x-webhook-secret"

// WebhookSecretMiddleware creates a Gin middleware that validates the
// shared webhook secret. An unset secret is a configuration error and
// answers 500; a mismatch answers 401.
func WebhookSecretMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.WebhookSecret == "" {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "webhook secret not configured"})
			return
		}

		provided := c.GetHeader(HeaderWebhookSecret)
		if subtle.ConstantTimeCompare([]byte(provided), []byte(cfg.WebhookSecret)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "invalid webhook secret"})
			return
		}

		c.Next()
	}
}
