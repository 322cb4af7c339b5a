package controllers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"organic-hub/services"
)

// maxWebhookBody mirrors Stripe's documented payload ceiling.
const maxWebhookBody = 65536

type PaymentController struct {
	service services.PaymentService
	logger  *zap.Logger
}

func NewPaymentController(service services.PaymentService, logger *zap.Logger) *PaymentController {
	return &PaymentController{service: service, logger: logger}
}

// GetConfig handles GET /payments/config.
func (pc *PaymentController) GetConfig(c *gin.Context) {
	c.JSON(http.StatusOK, pc.service.Config())
}

// CreatePayment handles POST /payments with {"order_id": ...}.
func (pc *PaymentController) CreatePayment(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var body struct {
		OrderID string `json:"order_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}

	intent, err := pc.service.Create(c.Request.Context(), userID, body.OrderID)
	if err != nil {
		respondError(c, pc.logger, err)
		return
	}
	c.JSON(http.StatusCreated, intent)
}

// VerifyPayment handles POST /payments/verify.
func (pc *PaymentController) VerifyPayment(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var body struct {
		OrderID   string `json:"order_id" binding:"required"`
		PaymentID string `json:"payment_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}

	order, err := pc.service.Verify(c.Request.Context(), userID, body.OrderID, body.PaymentID)
	if err != nil {
		respondError(c, pc.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}

// StripeWebhook handles POST /payments/webhook/stripe.
func (pc *PaymentController) StripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "failed to read body"})
		return
	}

	if err := pc.service.HandleWebhook(c.Request.Context(), payload, c.GetHeader("Stripe-Signature")); err != nil {
		pc.logger.Warn("stripe webhook rejected", zap.Error(err))
		respondError(c, pc.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "received"})
}
