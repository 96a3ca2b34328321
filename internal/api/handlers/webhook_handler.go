package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/At4lian/editra/internal/clickup"
	"github.com/At4lian/editra/internal/config"
	"github.com/At4lian/editra/internal/logger"
	"github.com/At4lian/editra/internal/services"
)

// WebhookBody is the inbound ClickUp webhook payload. Several
// historical shapes are tolerated: the task id lives in payload.id, the
// list id in payload.subcategory or payload.lists[0].list_id, and test
// pings carry a plain body string with no payload at all.
type WebhookBody struct {
	Body    string          `json:"body,omitempty"`
	Payload *WebhookPayload `json:"payload,omitempty"`
}

// WebhookPayload is the event detail of a real (non-ping) delivery.
type WebhookPayload struct {
	ID          string        `json:"id"`
	Name        string        `json:"name,omitempty"`
	Subcategory string        `json:"subcategory,omitempty"`
	Lists       []WebhookList `json:"lists,omitempty"`
}

// WebhookList is a list reference inside the payload.
type WebhookList struct {
	ListID string `json:"list_id"`
	Type   string `json:"type,omitempty"`
}

// ListID returns the originating list id, trying the payload shapes in
// their historical order.
func (p *WebhookPayload) ListID() string {
	if p.Subcategory != "" {
		return p.Subcategory
	}
	if len(p.Lists) > 0 {
		return p.Lists[0].ListID
	}
	return ""
}

// WebhookHandler handles inbound ClickUp webhook deliveries.
type WebhookHandler struct {
	cfg *config.Config
	svc services.IInvoiceService
	log zerolog.Logger
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(cfg *config.Config, svc services.IInvoiceService) *WebhookHandler {
	return &WebhookHandler{
		cfg: cfg,
		svc: svc,
		log: logger.WithComponent("webhook"),
	}
}

// HandleInvoiceHook runs the invoice pipeline for one delivery. Every
// business non-match answers {ok:true}; only auth/config failures and
// upstream errors surface as non-200.
func (h *WebhookHandler) HandleInvoiceHook(c *gin.Context) {
	var body WebhookBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid payload"})
		return
	}

	// ClickUp sends a synthetic test message when a webhook is created.
	if body.Payload == nil || body.Payload.ID == "" {
		if strings.HasPrefix(body.Body, "Test message") {
			h.log.Info().Msg("Webhook test ping received")
		} else {
			h.log.Info().Msg("Webhook delivery without payload, ignoring")
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}

	triggerTaskID := body.Payload.ID
	listID := body.Payload.ListID()
	h.log.Info().Str("trigger", triggerTaskID).Str("list", listID).Msg("Webhook received")

	// Deliveries from other lists are expected traffic, not errors.
	if listID != h.cfg.ProjectsListID {
		h.log.Info().Str("list", listID).Msg("Not the Projects list, ignoring")
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}

	outcome, err := h.svc.ProcessWebhookEvent(c.Request.Context(), triggerTaskID)
	if err != nil {
		var apiErr *clickup.APIError
		if errors.As(err, &apiErr) {
			h.log.Error().Err(err).Msg("Upstream API failure")
			c.JSON(http.StatusBadGateway, gin.H{"ok": false, "error": "upstream api error"})
			return
		}
		h.log.Error().Err(err).Msg("Invoice pipeline failure")
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "internal error"})
		return
	}

	h.log.Info().
		Str("state", string(outcome.State)).
		Str("reason", outcome.Reason).
		Str("invoice", outcome.InvoiceName).
		Msg("Webhook processed")
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
