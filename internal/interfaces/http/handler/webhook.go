package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	billingapp "github.com/noro/control-plane/internal/application/billing"
)

// Stripe webhook payloads are small; anything bigger is not Stripe.
const maxWebhookPayloadSize = 65536

// WebhookHandler receives payment provider webhooks. These endpoints
// authenticate with the provider's signature, not a bearer token.
type WebhookHandler struct {
	BaseHandler
	webhookService *billingapp.WebhookService
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(webhookService *billingapp.WebhookService) *WebhookHandler {
	return &WebhookHandler{webhookService: webhookService}
}

// RegisterRoutes registers webhook routes
func (h *WebhookHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/webhooks/stripe", h.HandleStripeWebhook)
}

// WebhookResponse acknowledges a webhook delivery
type WebhookResponse struct {
	Received  bool   `json:"received"`
	EventID   string `json:"event_id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Message   string `json:"message,omitempty"`
}

// HandleStripeWebhook verifies and processes one Stripe delivery. The
// raw body is required for signature verification. Processing failures
// after a valid signature return 500 so Stripe redelivers.
func (h *WebhookHandler) HandleStripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookPayloadSize+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, WebhookResponse{Message: "Failed to read request body"})
		return
	}
	if len(payload) > maxWebhookPayloadSize {
		c.JSON(http.StatusRequestEntityTooLarge, WebhookResponse{Message: "Payload too large"})
		return
	}

	signature := c.GetHeader("Stripe-Signature")
	if signature == "" {
		c.JSON(http.StatusBadRequest, WebhookResponse{Message: "Missing Stripe-Signature header"})
		return
	}

	result, err := h.webhookService.ProcessWebhook(c.Request.Context(), payload, signature)
	if err != nil {
		if errors.Is(err, billingapp.ErrInvalidSignature) {
			c.JSON(http.StatusBadRequest, WebhookResponse{Message: "Webhook signature verification failed"})
			return
		}
		c.JSON(http.StatusInternalServerError, WebhookResponse{Message: "Webhook processing failed"})
		return
	}

	c.JSON(http.StatusOK, WebhookResponse{
		Received:  true,
		EventID:   result.EventID,
		EventType: result.EventType,
		Message:   result.Message,
	})
}
