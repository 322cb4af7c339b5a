package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "organic-hub/common/errors"
	"organic-hub/middleware"
	"organic-hub/models"
	"organic-hub/repository"
	"organic-hub/services"
)

type CartController struct {
	service services.CartService
	logger  *zap.Logger
}

func NewCartController(service services.CartService, logger *zap.Logger) *CartController {
	return &CartController{service: service, logger: logger}
}

type cartItemRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,gt=0"`
}

type mergeRequest struct {
	// Items are guest lines held by the client; when absent the server-side
	// guest cart named by X-Guest-ID is merged.
	Items []models.CartItem `json:"items"`
}

// owner resolves whose cart the request addresses: the authenticated user
// first, then the X-Guest-ID guest.
func (cc *CartController) owner(c *gin.Context) (repository.CartOwner, bool) {
	if userID, err := middleware.GetUserID(c); err == nil {
		return repository.CartOwner{ID: userID}, true
	}
	if guestID := middleware.GetGuestID(c); guestID != "" {
		return repository.CartOwner{ID: guestID, Guest: true}, true
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "Sign in or send an " + middleware.GuestHeader + " header"})
	return repository.CartOwner{}, false
}

// GetCart handles GET /cart.
func (cc *CartController) GetCart(c *gin.Context) {
	owner, ok := cc.owner(c)
	if !ok {
		return
	}
	view, err := cc.service.GetCart(c.Request.Context(), owner)
	if err != nil {
		respondError(c, cc.logger, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// AddItem handles POST /cart/items.
func (cc *CartController) AddItem(c *gin.Context) {
	owner, ok := cc.owner(c)
	if !ok {
		return
	}
	var req cartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	view, err := cc.service.AddItem(c.Request.Context(), owner, req.ProductID, req.Quantity)
	if err != nil {
		respondError(c, cc.logger, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// UpdateItem handles PUT /cart/items/:product_id with {"quantity": n}.
func (cc *CartController) UpdateItem(c *gin.Context) {
	owner, ok := cc.owner(c)
	if !ok {
		return
	}
	var body struct {
		Quantity *int `json:"quantity" binding:"required,gte=0"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}

	view, err := cc.service.SetQuantity(c.Request.Context(), owner, c.Param("product_id"), *body.Quantity)
	if err != nil {
		respondError(c, cc.logger, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// RemoveItem handles DELETE /cart/items/:product_id.
func (cc *CartController) RemoveItem(c *gin.Context) {
	owner, ok := cc.owner(c)
	if !ok {
		return
	}
	view, err := cc.service.RemoveItem(c.Request.Context(), owner, c.Param("product_id"))
	if err != nil {
		respondError(c, cc.logger, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// ClearCart handles DELETE /cart.
func (cc *CartController) ClearCart(c *gin.Context) {
	owner, ok := cc.owner(c)
	if !ok {
		return
	}
	if err := cc.service.Clear(c.Request.Context(), owner); err != nil {
		respondError(c, cc.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Cart cleared"})
}

// MergeCart handles POST /cart/merge for a signed-in user.
func (cc *CartController) MergeCart(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req mergeRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}
	for _, it := range req.Items {
		if it.Quantity <= 0 {
			respondError(c, cc.logger, apperrors.ErrInvalidQuantity)
			return
		}
	}

	var (
		view *models.CartView
		err  error
	)
	switch guestID := middleware.GetGuestID(c); {
	case len(req.Items) > 0:
		view, err = cc.service.MergeItems(c.Request.Context(), userID, req.Items)
	case guestID != "":
		view, err = cc.service.MergeGuest(c.Request.Context(), guestID, userID)
	default:
		view, err = cc.service.GetCart(c.Request.Context(), repository.CartOwner{ID: userID})
	}
	if err != nil {
		respondError(c, cc.logger, err)
		return
	}
	c.JSON(http.StatusOK, view)
}
