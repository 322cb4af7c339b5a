package services

import (
	"context"
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "organic-hub/common/errors"
	"organic-hub/models"
	awspkg "organic-hub/pkg/aws"
	"organic-hub/pricing"
	"organic-hub/repository"
)

type ProductPage struct {
	Products []models.Product `json:"products"`
	Meta     MetaData         `json:"meta"`
}

// ProductInput is the admin payload for creating or replacing a product.
type ProductInput struct {
	Name         string        `json:"name" validate:"required,min=2,max=120"`
	Description  string        `json:"description" validate:"max=2000"`
	Category     string        `json:"category" validate:"required,max=64"`
	Price        float64       `json:"price" validate:"gt=0"`
	Unit         string        `json:"unit" validate:"max=20"`
	Stock        int           `json:"stock" validate:"gte=0"`
	ImageURL     string        `json:"image_url" validate:"omitempty,url"`
	IsOrganic    bool          `json:"is_organic"`
	IsFeatured   bool          `json:"is_featured"`
	Season       string        `json:"season" validate:"omitempty,oneof=winter spring summer autumn"`
	BulkDiscount *pricing.Tier `json:"bulk_discount"`
}

// ImageUploader presigns direct-to-bucket uploads.
type ImageUploader interface {
	PresignPut(ctx context.Context, key, contentType string) (*awspkg.PresignedUpload, error)
}

var allowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

type ProductService interface {
	List(ctx context.Context, f models.ProductFilter) (*ProductPage, error)
	Get(ctx context.Context, id string) (*models.Product, error)
	// Lookup loads products by id; unknown ids are absent from the map.
	Lookup(ctx context.Context, ids []string) (map[string]models.Product, error)
	Seasonal(ctx context.Context, season string, limit int) (string, []models.Product, error)
	Categories(ctx context.Context) ([]models.CategoryCount, error)
	Create(ctx context.Context, in ProductInput) (*models.Product, error)
	Update(ctx context.Context, id string, in ProductInput) (*models.Product, error)
	Delete(ctx context.Context, id string) error
	AdjustStock(ctx context.Context, id string, delta int) (*models.Product, error)
	ImageUploadURL(ctx context.Context, filename, contentType string) (*awspkg.PresignedUpload, error)
}

type productServiceImpl struct {
	repo     repository.ProductRepository
	cache    ProductCache
	uploader ImageUploader
	validate *validator.Validate
	logger   *zap.Logger
	now      func() time.Time
}

func NewProductService(repo repository.ProductRepository, cache ProductCache, uploader ImageUploader, logger *zap.Logger) ProductService {
	if cache == nil {
		cache = NopCache{}
	}
	return &productServiceImpl{
		repo:     repo,
		cache:    cache,
		uploader: uploader,
		validate: validator.New(),
		logger:   logger,
		now:      time.Now,
	}
}

func (s *productServiceImpl) List(ctx context.Context, f models.ProductFilter) (*ProductPage, error) {
	if f.Season != "" && !models.ValidSeason(f.Season) {
		return nil, apperrors.BadRequest("unknown season")
	}
	if f.MinPrice != nil && f.MaxPrice != nil && *f.MinPrice > *f.MaxPrice {
		return nil, apperrors.BadRequest("min_price must not exceed max_price")
	}
	if page, ok := s.cache.GetList(ctx, f); ok {
		return page, nil
	}

	products, total, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, apperrors.Internal("failed to list products", err)
	}
	if products == nil {
		products = []models.Product{}
	}
	page := &ProductPage{Products: products, Meta: newMeta(f.Page, f.Limit, total)}
	s.cache.SetList(f, page)
	return page, nil
}

func (s *productServiceImpl) Get(ctx context.Context, id string) (*models.Product, error) {
	pid, err := uuid.Parse(id)
	if err != nil {
		return nil, apperrors.BadRequest("invalid product id")
	}
	if p, ok := s.cache.GetProduct(ctx, id); ok {
		return p, nil
	}

	p, err := s.repo.FindByID(ctx, pid)
	if err == repository.ErrNotFound {
		return nil, apperrors.ErrProductNotFound
	}
	if err != nil {
		return nil, apperrors.Internal("failed to load product", err)
	}
	s.cache.SetProduct(p)
	return p, nil
}

func (s *productServiceImpl) Lookup(ctx context.Context, ids []string) (map[string]models.Product, error) {
	parsed := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if pid, err := uuid.Parse(id); err == nil {
			parsed = append(parsed, pid)
		}
	}
	products, err := s.repo.FindByIDs(ctx, parsed)
	if repository.IsUnreachable(err) {
		return s.lookupCached(ctx, parsed, err)
	}
	if err != nil {
		return nil, err
	}
	out := make(map[string]models.Product, len(products))
	for i := range products {
		out[products[i].ID.String()] = products[i]
		s.cache.SetProduct(&products[i])
	}
	return out, nil
}

// lookupCached serves Lookup from the product cache while the database is
// down. It fails with cause unless every id is cached.
func (s *productServiceImpl) lookupCached(ctx context.Context, ids []uuid.UUID, cause error) (map[string]models.Product, error) {
	out := make(map[string]models.Product, len(ids))
	for _, id := range ids {
		p, ok := s.cache.GetProduct(ctx, id.String())
		if !ok {
			return nil, cause
		}
		out[id.String()] = *p
	}
	s.logger.Warn("product lookup served from cache", zap.Int("products", len(out)), zap.Error(cause))
	return out, nil
}

// Seasonal returns in-stock products for season, or for the current season
// when season is empty.
func (s *productServiceImpl) Seasonal(ctx context.Context, season string, limit int) (string, []models.Product, error) {
	if season == "" {
		season = models.SeasonOf(s.now())
	}
	if !models.ValidSeason(season) {
		return "", nil, apperrors.BadRequest("unknown season")
	}
	page, err := s.List(ctx, models.ProductFilter{Season: season, InStock: true, Page: 1, Limit: limit, Sort: models.SortNewest})
	if err != nil {
		return "", nil, err
	}
	return season, page.Products, nil
}

func (s *productServiceImpl) Categories(ctx context.Context) ([]models.CategoryCount, error) {
	cats, err := s.repo.Categories(ctx)
	if err != nil {
		return nil, apperrors.Internal("failed to list categories", err)
	}
	if cats == nil {
		cats = []models.CategoryCount{}
	}
	return cats, nil
}

func (s *productServiceImpl) checkInput(in ProductInput) error {
	if err := s.validate.Struct(in); err != nil {
		return apperrors.New(http.StatusBadRequest, "invalid product", err)
	}
	if t := in.BulkDiscount; t != nil && (t.MinQty < 2 || t.DiscountPercent <= 0 || t.DiscountPercent >= 100) {
		return apperrors.BadRequest("bulk discount needs min_qty >= 2 and 0 < discount_percent < 100")
	}
	return nil
}

func (s *productServiceImpl) Create(ctx context.Context, in ProductInput) (*models.Product, error) {
	if err := s.checkInput(in); err != nil {
		return nil, err
	}
	p := &models.Product{ID: uuid.New()}
	applyInput(p, in)

	if err := s.repo.Create(ctx, p); err != nil {
		return nil, apperrors.Internal("failed to create product", err)
	}
	s.cache.Invalidate(ctx, "")
	s.logger.Info("product created", zap.String("product_id", p.ID.String()), zap.String("name", p.Name))
	return p, nil
}

func (s *productServiceImpl) Update(ctx context.Context, id string, in ProductInput) (*models.Product, error) {
	if err := s.checkInput(in); err != nil {
		return nil, err
	}
	pid, err := uuid.Parse(id)
	if err != nil {
		return nil, apperrors.BadRequest("invalid product id")
	}
	p, err := s.repo.FindByID(ctx, pid)
	if err == repository.ErrNotFound {
		return nil, apperrors.ErrProductNotFound
	}
	if err != nil {
		return nil, apperrors.Internal("failed to load product", err)
	}

	applyInput(p, in)
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, apperrors.Internal("failed to update product", err)
	}
	s.cache.Invalidate(ctx, id)
	return p, nil
}

func applyInput(p *models.Product, in ProductInput) {
	p.Name = strings.TrimSpace(in.Name)
	p.Description = in.Description
	p.Category = strings.ToLower(strings.TrimSpace(in.Category))
	p.Price = in.Price
	p.Unit = in.Unit
	p.Stock = in.Stock
	p.ImageURL = in.ImageURL
	p.IsOrganic = in.IsOrganic
	p.IsFeatured = in.IsFeatured
	p.Season = in.Season
	p.BulkDiscount = in.BulkDiscount
}

func (s *productServiceImpl) Delete(ctx context.Context, id string) error {
	pid, err := uuid.Parse(id)
	if err != nil {
		return apperrors.BadRequest("invalid product id")
	}
	if err := s.repo.Delete(ctx, pid); err == repository.ErrNotFound {
		return apperrors.ErrProductNotFound
	} else if err != nil {
		return apperrors.Internal("failed to delete product", err)
	}
	s.cache.Invalidate(ctx, id)
	return nil
}

func (s *productServiceImpl) AdjustStock(ctx context.Context, id string, delta int) (*models.Product, error) {
	pid, err := uuid.Parse(id)
	if err != nil {
		return nil, apperrors.BadRequest("invalid product id")
	}
	switch err := s.repo.AdjustStock(ctx, pid, delta); err {
	case nil:
	case repository.ErrInsufficientStock:
		return nil, apperrors.ErrInsufficientStock
	default:
		return nil, apperrors.Internal("failed to adjust stock", err)
	}
	s.cache.Invalidate(ctx, id)
	return s.Get(ctx, id)
}

func (s *productServiceImpl) ImageUploadURL(ctx context.Context, filename, contentType string) (*awspkg.PresignedUpload, error) {
	if s.uploader == nil {
		return nil, apperrors.New(http.StatusServiceUnavailable, "image uploads are not configured", nil)
	}
	ext, ok := allowedImageTypes[contentType]
	if !ok {
		return nil, apperrors.BadRequest("unsupported image type")
	}
	base := strings.TrimSuffix(path.Base(filename), path.Ext(filename))
	key := fmt.Sprintf("products/%s/%s-%s%s", s.now().UTC().Format("2006/01"), slug(base), uuid.NewString()[:8], ext)

	up, err := s.uploader.PresignPut(ctx, key, contentType)
	if err != nil {
		return nil, apperrors.Internal("failed to presign upload", err)
	}
	return up, nil
}

func slug(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case b.Len() > 0 && !strings.HasSuffix(b.String(), "-"):
			b.WriteByte('-')
		}
	}
	out := strings.Trim(b.String(), "-")
	if out == "" {
		return "image"
	}
	return out
}
