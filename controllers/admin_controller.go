package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"organic-hub/services"
)

type AdminController struct {
	service services.DashboardService
	logger  *zap.Logger
}

func NewAdminController(service services.DashboardService, logger *zap.Logger) *AdminController {
	return &AdminController{service: service, logger: logger}
}

// GetStats handles GET /admin/dashboard.
func (ac *AdminController) GetStats(c *gin.Context) {
	stats, err := ac.service.Stats(c.Request.Context())
	if err != nil {
		respondError(c, ac.logger, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// ListUsers handles GET /admin/users.
func (ac *AdminController) ListUsers(c *gin.Context) {
	page, limit := parsePaginationParams(c)
	users, meta, err := ac.service.Users(c.Request.Context(), page, limit)
	if err != nil {
		respondError(c, ac.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users, "meta": meta})
}
