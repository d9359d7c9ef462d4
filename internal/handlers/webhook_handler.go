package handlers

import (
	"io"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"dredd-service/internal/services"
)

// WebhookHandler receives provider callbacks. Bodies are read raw because
// both providers sign the exact bytes, not the decoded JSON.
type WebhookHandler struct {
	Stripe *services.StripeService
	NP     *services.NOWPaymentsService
}

func NewWebhookHandler(stripe *services.StripeService, np *services.NOWPaymentsService) *WebhookHandler {
	return &WebhookHandler{Stripe: stripe, NP: np}
}

func (h *WebhookHandler) StripeWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.Status(http.StatusBadRequest)
		return
	}

	if err := h.Stripe.HandleWebhook(body, c.GetHeader("Stripe-Signature")); err != nil {
		log.Printf("stripe webhook rejected: %v", err)
		c.Status(http.StatusBadRequest)
		return
	}
	c.Status(http.StatusOK)
}

func (h *WebhookHandler) NOWPaymentsIPN(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.Status(http.StatusBadRequest)
		return
	}

	if err := h.NP.HandleIPN(body, c.GetHeader("X-NOWPAYMENTS-SIG")); err != nil {
		log.Printf("nowpayments ipn rejected: %v", err)
		c.Status(http.StatusBadRequest)
		return
	}
	c.Status(http.StatusOK)
}
