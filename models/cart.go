package models

import (
	"time"

	"organic-hub/pricing"
)

type CartItem = pricing.Item

// Cart is the stored form of a user or guest cart.
type Cart struct {
	OwnerID   string     `json:"owner_id"`
	Guest     bool       `json:"guest"`
	Items     []CartItem `json:"items"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Quantity returns the quantity held for productID.
func (c *Cart) Quantity(productID string) int {
	for _, it := range c.Items {
		if it.ProductID == productID {
			return it.Quantity
		}
	}
	return 0
}

// CartLine is a cart item joined with its product and priced.
type CartLine struct {
	ProductID    string        `json:"product_id"`
	Name         string        `json:"name"`
	ImageURL     string        `json:"image_url"`
	Unit         string        `json:"unit"`
	Stock        int           `json:"stock"`
	UnitPrice    float64       `json:"unit_price"`
	Quantity     int           `json:"quantity"`
	Subtotal     float64       `json:"subtotal"`
	Discount     float64       `json:"discount"`
	Total        float64       `json:"total"`
	BulkApplied  bool          `json:"bulk_applied"`
	BulkDiscount *pricing.Tier `json:"bulk_discount,omitempty"`
}

// CartView is what the cart endpoints return.
type CartView struct {
	OwnerID       string                          `json:"owner_id"`
	Guest         bool                            `json:"guest"`
	Items         []CartLine                      `json:"items"`
	TotalItems    int                             `json:"total_items"`
	Subtotal      float64                         `json:"subtotal"`
	TotalSavings  float64                         `json:"total_savings"`
	TotalPrice    float64                         `json:"total_price"`
	BulkDiscounts map[string]pricing.BulkDiscount `json:"bulk_discounts"`
	UpdatedAt     time.Time                       `json:"updated_at"`
}

// BuildCartView prices items against products. Items whose product is
// missing from the map are skipped.
func BuildCartView(items []CartItem, products map[string]Product) *CartView {
	lines := make([]pricing.Line, 0, len(items))
	kept := make([]Product, 0, len(items))
	for _, it := range items {
		p, ok := products[it.ProductID]
		if !ok {
			continue
		}
		lines = append(lines, pricing.Line{ProductID: it.ProductID, UnitPrice: p.Price, Quantity: it.Quantity, Tier: p.Tier()})
		kept = append(kept, p)
	}

	sum := pricing.Summarize(lines)
	v := &CartView{
		Items:         make([]CartLine, 0, len(sum.Lines)),
		TotalItems:    sum.TotalItems,
		Subtotal:      sum.Subtotal,
		TotalSavings:  sum.TotalSavings,
		TotalPrice:    sum.TotalPrice,
		BulkDiscounts: sum.BulkDiscounts,
	}
	for i, l := range sum.Lines {
		p := kept[i]
		v.Items = append(v.Items, CartLine{
			ProductID:    l.ProductID,
			Name:         p.Name,
			ImageURL:     p.ImageURL,
			Unit:         p.Unit,
			Stock:        p.Stock,
			UnitPrice:    l.UnitPrice,
			Quantity:     l.Quantity,
			Subtotal:     l.Subtotal,
			Discount:     l.Discount,
			Total:        l.Total,
			BulkApplied:  l.BulkApplied,
			BulkDiscount: p.Tier(),
		})
	}
	return v
}
