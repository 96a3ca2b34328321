package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/At4lian/editra/internal/api/handlers"
	"github.com/At4lian/editra/internal/api/middleware"
	"github.com/At4lian/editra/internal/clickup"
	"github.com/At4lian/editra/internal/config"
	"github.com/At4lian/editra/internal/services"
)

// SetupRouter configures and returns the Gin engine serving the
// webhook and debug endpoints.
func SetupRouter(cfg *config.Config, invoiceSvc services.IInvoiceService, workspaceAPI clickup.IWorkspaceAPI) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	rateLimiter := middleware.NewRateLimiterMiddleware(cfg)
	r.Use(rateLimiter.Limit())

	webhookHandler := handlers.NewWebhookHandler(cfg, invoiceSvc)
	debugHandler := handlers.NewDebugHandler(cfg, workspaceAPI)

	secured := r.Group("/api")
	secured.Use(middleware.WebhookSecretMiddleware(cfg))
	{
		secured.POST("/invoice-hook", webhookHandler.HandleInvoiceHook)
		secured.GET("/clickup-debug", debugHandler.HandleWorkspaceDump)
	}

	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})

	return r
}
