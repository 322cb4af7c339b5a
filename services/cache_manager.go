package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"organic-hub/models"
)

const (
	productKeyPrefix = "product:detail:"
	listKeyPrefix    = "products:v:"
	cacheVersionKey  = "products:version"
)

// ProductCache is a read-through cache in front of the catalog.
type ProductCache interface {
	GetList(ctx context.Context, f models.ProductFilter) (*ProductPage, bool)
	SetList(f models.ProductFilter, page *ProductPage)
	GetProduct(ctx context.Context, id string) (*models.Product, bool)
	SetProduct(p *models.Product)
	Invalidate(ctx context.Context, productID string)
}

// CacheManager caches catalog reads in Redis. List entries embed a version
// number; bumping the version invalidates every cached list at once.
type CacheManager struct {
	redis  *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewCacheManager(client *redis.Client, ttl time.Duration, logger *zap.Logger) *CacheManager {
	return &CacheManager{redis: client, ttl: ttl, logger: logger}
}

func (cm *CacheManager) GetList(ctx context.Context, f models.ProductFilter) (*ProductPage, bool) {
	version, err := cm.version(ctx)
	if err != nil {
		return nil, false
	}
	raw, err := cm.redis.Get(ctx, listKey(version, f)).Bytes()
	if err != nil {
		return nil, false
	}
	var page ProductPage
	if err := json.Unmarshal(raw, &page); err != nil {
		cm.logger.Warn("cached product list unreadable", zap.Error(err))
		return nil, false
	}
	return &page, true
}

func (cm *CacheManager) SetList(f models.ProductFilter, page *ProductPage) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		version, err := cm.version(ctx)
		if err != nil {
			return
		}
		data, err := json.Marshal(page)
		if err != nil {
			return
		}
		if err := cm.redis.Set(ctx, listKey(version, f), data, cm.ttl).Err(); err != nil {
			cm.logger.Warn("failed to cache product list", zap.Error(err))
		}
	}()
}

func (cm *CacheManager) GetProduct(ctx context.Context, id string) (*models.Product, bool) {
	raw, err := cm.redis.Get(ctx, productKeyPrefix+id).Bytes()
	if err != nil {
		return nil, false
	}
	var p models.Product
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, false
	}
	return &p, true
}

func (cm *CacheManager) SetProduct(p *models.Product) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		data, err := json.Marshal(p)
		if err != nil {
			return
		}
		if err := cm.redis.Set(ctx, productKeyPrefix+p.ID.String(), data, cm.ttl).Err(); err != nil {
			cm.logger.Warn("failed to cache product", zap.String("product_id", p.ID.String()), zap.Error(err))
		}
	}()
}

// Invalidate bumps the list version and drops the product entry, if any.
func (cm *CacheManager) Invalidate(ctx context.Context, productID string) {
	if v, err := cm.redis.Incr(ctx, cacheVersionKey).Result(); err != nil {
		cm.logger.Error("failed to invalidate product lists", zap.Error(err))
	} else {
		cm.logger.Debug("product cache version bumped", zap.Int64("version", v))
	}
	if productID == "" {
		return
	}
	if err := cm.redis.Del(ctx, productKeyPrefix+productID).Err(); err != nil {
		cm.logger.Warn("failed to drop cached product", zap.String("product_id", productID), zap.Error(err))
	}
}

func (cm *CacheManager) version(ctx context.Context) (int64, error) {
	v, err := cm.redis.Get(ctx, cacheVersionKey).Int64()
	if err == redis.Nil {
		if err := cm.redis.SetNX(ctx, cacheVersionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return cm.redis.Get(ctx, cacheVersionKey).Int64()
	}
	return v, err
}

func listKey(version int64, f models.ProductFilter) string {
	return fmt.Sprintf("%s%d:p:%d:l:%d:c:%s:q:%s:min:%s:max:%s:stock:%t:season:%s:feat:%t:sort:%s",
		listKeyPrefix, version, f.Page, f.Limit, f.Category, f.Search,
		floatKey(f.MinPrice), floatKey(f.MaxPrice), f.InStock, f.Season, f.Featured, f.Sort)
}

func floatKey(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

// NopCache never caches.
type NopCache struct{}

func (NopCache) GetList(context.Context, models.ProductFilter) (*ProductPage, bool) {
	return nil, false
}

func (NopCache) SetList(models.ProductFilter, *ProductPage) {}

func (NopCache) GetProduct(context.Context, string) (*models.Product, bool) {
	return nil, false
}

func (NopCache) SetProduct(*models.Product) {}

func (NopCache) Invalidate(context.Context, string) {}
