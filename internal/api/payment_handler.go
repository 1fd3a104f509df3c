package api

import (
	"alcyxob/fitness-booking/internal/payment"
	"alcyxob/fitness-booking/internal/service"
	"net/http"

	"github.com/gin-gonic/gin"
)

// WebhookSecretHeader carries the secret shared with the payment provider.
const WebhookSecretHeader = "X-Webhook-Secret"

type PaymentHandler struct {
	schedulerService service.SchedulerService
	webhookSecret    string
}

func NewPaymentHandler(schedulerService service.SchedulerService, webhookSecret string) *PaymentHandler {
	return &PaymentHandler{schedulerService: schedulerService, webhookSecret: webhookSecret}
}

type PaymentWebhookRequest struct {
	Handle string `json:"handle" binding:"required"`
	Status string `json:"status" binding:"required"`
}

// Webhook godoc
// @Summary Payment provider callback
// @Description Records the outcome of a checkout. Redelivery of the same outcome is harmless.
// @Tags Payments
// @Accept json
// @Produce json
// @Param X-Webhook-Secret header string true "Shared secret"
// @Param request body PaymentWebhookRequest true "Checkout outcome"
// @Success 200 {object} domain.Booking
// @Failure 401 {object} gin.H "Bad secret"
// @Failure 404 {object} gin.H "Unknown handle"
// @Failure 500 {object} gin.H "Not recorded, retry"
// @Router /payments/webhook [post]
func (h *PaymentHandler) Webhook(c *gin.Context) {
	if err := payment.VerifyWebhookSecret(h.webhookSecret, c.GetHeader(WebhookSecretHeader)); err != nil {
		abortWithError(c, http.StatusUnauthorized, err.Error())
		return
	}

	var req PaymentWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	outcome, err := payment.ParseOutcome(req.Status)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}

	booking, err := h.schedulerService.HandlePaymentCallback(c.Request.Context(), req.Handle, outcome)
	if err != nil {
		abortWithServiceError(c, err, "Payment outcome could not be recorded.")
		return
	}
	c.JSON(http.StatusOK, booking)
}
