package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"organic-hub/pricing"
)

type Product struct {
	ID           uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name         string         `gorm:"not null;index" json:"name"`
	Description  string         `json:"description"`
	Category     string         `gorm:"type:varchar(64);index" json:"category"`
	Price        float64        `gorm:"type:numeric(10,2);not null" json:"price"`
	Unit         string         `gorm:"type:varchar(20)" json:"unit"`
	Stock        int            `gorm:"not null" json:"stock"`
	ImageURL     string         `json:"image_url"`
	IsOrganic    bool           `json:"is_organic"`
	IsFeatured   bool           `gorm:"index" json:"is_featured"`
	Season       string         `gorm:"type:varchar(16);index" json:"season,omitempty"`
	BulkDiscount *pricing.Tier  `gorm:"embedded;embeddedPrefix:bulk_" json:"bulk_discount,omitempty"`
	CreatedAt    time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

// InStock reports whether qty units can be sold.
func (p *Product) InStock(qty int) bool {
	return qty > 0 && p.Stock >= qty
}

// Tier returns the bulk tier, or nil when the product has none.
func (p *Product) Tier() *pricing.Tier {
	if p.BulkDiscount == nil || p.BulkDiscount.MinQty <= 0 || p.BulkDiscount.DiscountPercent <= 0 {
		return nil
	}
	return p.BulkDiscount
}

// ProductFilter narrows catalog listings.
type ProductFilter struct {
	Category string
	Search   string
	MinPrice *float64
	MaxPrice *float64
	InStock  bool
	Season   string
	Featured bool
	Sort     string
	Page     int
	Limit    int
}

const (
	SortPriceAsc  = "price_asc"
	SortPriceDesc = "price_desc"
	SortName      = "name"
	SortNewest    = "newest"
)

// CategoryCount is one row of the category listing.
type CategoryCount struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}
