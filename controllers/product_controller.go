package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "organic-hub/common/errors"
	"organic-hub/services"
)

const defaultSeasonalLimit = 8

type ProductController struct {
	service services.ProductService
	logger  *zap.Logger
}

func NewProductController(service services.ProductService, logger *zap.Logger) *ProductController {
	return &ProductController{service: service, logger: logger}
}

// GetProducts handles GET /products.
func (pc *ProductController) GetProducts(c *gin.Context) {
	filter, err := parseProductFilter(c)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}

	page, err := pc.service.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, pc.logger, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// GetProduct handles GET /products/:id.
func (pc *ProductController) GetProduct(c *gin.Context) {
	product, err := pc.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, pc.logger, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

// GetSeasonal handles GET /products/seasonal?season=&limit=.
func (pc *ProductController) GetSeasonal(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultSeasonalLimit)))
	if err != nil || limit <= 0 || limit > maxLimit {
		limit = defaultSeasonalLimit
	}

	season, products, err := pc.service.Seasonal(c.Request.Context(), c.Query("season"), limit)
	if err != nil {
		respondError(c, pc.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"season": season, "products": products})
}

// GetCategories handles GET /categories.
func (pc *ProductController) GetCategories(c *gin.Context) {
	categories, err := pc.service.Categories(c.Request.Context())
	if err != nil {
		respondError(c, pc.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

// CreateProduct handles POST /admin/products.
func (pc *ProductController) CreateProduct(c *gin.Context) {
	var in services.ProductInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}

	product, err := pc.service.Create(c.Request.Context(), in)
	if err != nil {
		respondError(c, pc.logger, err)
		return
	}
	pc.logger.Info("product created", zap.String("product_id", product.ID.String()))
	c.JSON(http.StatusCreated, product)
}

// UpdateProduct handles PUT /admin/products/:id.
func (pc *ProductController) UpdateProduct(c *gin.Context) {
	var in services.ProductInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}

	product, err := pc.service.Update(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		respondError(c, pc.logger, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

// DeleteProduct handles DELETE /admin/products/:id.
func (pc *ProductController) DeleteProduct(c *gin.Context) {
	if err := pc.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, pc.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Product deleted"})
}

// AdjustStock handles PATCH /admin/products/:id/stock with {"delta": n}.
func (pc *ProductController) AdjustStock(c *gin.Context) {
	var body struct {
		Delta int `json:"delta" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}

	product, err := pc.service.AdjustStock(c.Request.Context(), c.Param("id"), body.Delta)
	if err != nil {
		respondError(c, pc.logger, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

// ImageUploadURL handles POST /admin/products/upload-url.
func (pc *ProductController) ImageUploadURL(c *gin.Context) {
	var body struct {
		Filename    string `json:"filename" binding:"required"`
		ContentType string `json:"content_type" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}

	upload, err := pc.service.ImageUploadURL(c.Request.Context(), body.Filename, body.ContentType)
	if err != nil {
		respondError(c, pc.logger, err)
		return
	}
	c.JSON(http.StatusOK, upload)
}
