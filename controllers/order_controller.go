package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"organic-hub/middleware"
	"organic-hub/services"
)

const IdempotencyHeader = "Idempotency-Key"

type OrderController struct {
	service services.OrderService
	logger  *zap.Logger
}

func NewOrderController(service services.OrderService, logger *zap.Logger) *OrderController {
	return &OrderController{service: service, logger: logger}
}

// Checkout handles POST /orders. Orders accepted by the local fallback
// store are answered with 202.
func (oc *OrderController) Checkout(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req services.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	buyer := services.Buyer{UserID: userID, Email: middleware.GetEmail(c)}
	key := strings.TrimSpace(c.GetHeader(IdempotencyHeader))
	res, err := oc.service.Checkout(c.Request.Context(), buyer, req, key)
	if err != nil {
		respondError(c, oc.logger, err)
		return
	}

	if res.Offline {
		oc.logger.Warn("order accepted offline",
			zap.String("order_id", res.Order.ID.String()),
			zap.String("user_id", userID),
		)
		c.JSON(http.StatusAccepted, res)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// ListMyOrders handles GET /orders.
func (oc *OrderController) ListMyOrders(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	page, limit := parsePaginationParams(c)

	orders, err := oc.service.ListMine(c.Request.Context(), userID, page, limit)
	if err != nil {
		respondError(c, oc.logger, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

// GetMyOrder handles GET /orders/:id.
func (oc *OrderController) GetMyOrder(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	order, err := oc.service.GetMine(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		respondError(c, oc.logger, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// CancelMyOrder handles POST /orders/:id/cancel.
func (oc *OrderController) CancelMyOrder(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	order, err := oc.service.Cancel(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		respondError(c, oc.logger, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// ListOrders handles GET /admin/orders?status=.
func (oc *OrderController) ListOrders(c *gin.Context) {
	page, limit := parsePaginationParams(c)
	orders, err := oc.service.List(c.Request.Context(), c.Query("status"), page, limit)
	if err != nil {
		respondError(c, oc.logger, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

// GetOrder handles GET /admin/orders/:id.
func (oc *OrderController) GetOrder(c *gin.Context) {
	order, err := oc.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, oc.logger, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// UpdateOrderStatus handles PATCH /admin/orders/:id/status.
func (oc *OrderController) UpdateOrderStatus(c *gin.Context) {
	var body struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}

	order, err := oc.service.UpdateStatus(c.Request.Context(), c.Param("id"), body.Status)
	if err != nil {
		respondError(c, oc.logger, err)
		return
	}
	oc.logger.Info("order status updated",
		zap.String("order_id", order.ID.String()),
		zap.String("status", string(order.Status)),
	)
	c.JSON(http.StatusOK, order)
}
