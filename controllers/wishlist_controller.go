package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"organic-hub/services"
)

type WishlistController struct {
	service services.WishlistService
	logger  *zap.Logger
}

func NewWishlistController(service services.WishlistService, logger *zap.Logger) *WishlistController {
	return &WishlistController{service: service, logger: logger}
}

func (wc *WishlistController) GetWishlist(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	items, err := wc.service.List(c.Request.Context(), userID)
	if err != nil {
		respondError(c, wc.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "count": len(items)})
}

func (wc *WishlistController) AddToWishlist(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var body struct {
		ProductID string `json:"product_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}

	if err := wc.service.Add(c.Request.Context(), userID, body.ProductID); err != nil {
		respondError(c, wc.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Added to wishlist"})
}

func (wc *WishlistController) RemoveFromWishlist(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	if err := wc.service.Remove(c.Request.Context(), userID, c.Param("product_id")); err != nil {
		respondError(c, wc.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Removed from wishlist"})
}

// MoveToCart handles POST /wishlist/:product_id/move-to-cart.
func (wc *WishlistController) MoveToCart(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	view, err := wc.service.MoveToCart(c.Request.Context(), userID, c.Param("product_id"))
	if err != nil {
		respondError(c, wc.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cart": view})
}
