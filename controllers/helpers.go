package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "organic-hub/common/errors"
	"organic-hub/middleware"
	"organic-hub/models"
	"organic-hub/repository"
)

const (
	defaultPage  = 1
	defaultLimit = 10
	maxLimit     = 100
)

// parsePaginationParams reads page and limit, clamping limit to maxLimit.
func parsePaginationParams(c *gin.Context) (int, int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", strconv.Itoa(defaultPage)))
	if err != nil || page < 1 {
		page = defaultPage
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultLimit)))
	if err != nil || limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return page, limit
}

func parseFloatParam(c *gin.Context, name string) (*float64, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, true
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 {
		return nil, false
	}
	return &v, true
}

func parseProductFilter(c *gin.Context) (models.ProductFilter, error) {
	page, limit := parsePaginationParams(c)
	f := models.ProductFilter{
		Category: strings.ToLower(strings.TrimSpace(c.Query("category"))),
		Search:   strings.TrimSpace(c.Query("search")),
		Season:   strings.ToLower(strings.TrimSpace(c.Query("season"))),
		Sort:     c.Query("sort"),
		Page:     page,
		Limit:    limit,
	}

	var ok bool
	if f.MinPrice, ok = parseFloatParam(c, "minPrice"); !ok {
		return f, apperrors.BadRequest("minPrice must be a non-negative number")
	}
	if f.MaxPrice, ok = parseFloatParam(c, "maxPrice"); !ok {
		return f, apperrors.BadRequest("maxPrice must be a non-negative number")
	}
	if f.MinPrice != nil && f.MaxPrice != nil && *f.MinPrice > *f.MaxPrice {
		return f, apperrors.BadRequest("minPrice cannot exceed maxPrice")
	}
	f.InStock, _ = strconv.ParseBool(c.Query("inStock"))
	f.Featured, _ = strconv.ParseBool(c.Query("featured"))

	switch f.Sort {
	case "", models.SortPriceAsc, models.SortPriceDesc, models.SortName, models.SortNewest:
	default:
		return f, apperrors.BadRequest("sort must be one of price_asc, price_desc, name, newest")
	}
	if f.Season != "" && !models.ValidSeason(f.Season) {
		return f, apperrors.BadRequest("unknown season")
	}
	return f, nil
}

// respondError writes err and logs anything that maps to a 5xx.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	appErr := apperrors.As(err)
	if repository.IsUnreachable(err) {
		appErr = apperrors.Wrap(apperrors.ErrServiceUnavailable, err)
	}
	if appErr.Code >= http.StatusInternalServerError {
		logger.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
	}
	apperrors.Respond(c, appErr)
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
}

// requireUser returns the authenticated user id or writes a 401.
func requireUser(c *gin.Context) (string, bool) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return "", false
	}
	return userID, true
}
