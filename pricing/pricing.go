// Package pricing computes cart money: the single-tier bulk discount,
// per-line totals and the cart summary. Amounts are computed with
// decimal arithmetic and every line is rounded half-up to two places
// before it is summed.
package pricing

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Tier is a product's bulk discount: DiscountPercent off the whole line
// once the quantity reaches MinQty.
type Tier struct {
	MinQty          int     `json:"min_qty"`
	DiscountPercent float64 `json:"discount_percent"`
}

// Applies reports whether qty qualifies. A nil or unset tier never applies.
func (t *Tier) Applies(qty int) bool {
	if t == nil || t.MinQty <= 0 || t.DiscountPercent <= 0 {
		return false
	}
	return qty >= t.MinQty
}

// Line is one cart line to be priced.
type Line struct {
	ProductID string
	UnitPrice float64
	Quantity  int
	Tier      *Tier
}

// LineTotal is a priced line.
type LineTotal struct {
	ProductID       string  `json:"product_id"`
	Quantity        int     `json:"quantity"`
	UnitPrice       float64 `json:"unit_price"`
	Subtotal        float64 `json:"subtotal"`
	Discount        float64 `json:"discount"`
	Total           float64 `json:"total"`
	DiscountPercent float64 `json:"discount_percent,omitempty"`
	BulkApplied     bool    `json:"bulk_applied"`
}

// BulkDiscount describes the tier applied to one product in a summary.
type BulkDiscount struct {
	MinQty          int     `json:"min_qty"`
	DiscountPercent float64 `json:"discount_percent"`
	Savings         float64 `json:"savings"`
}

// Summary aggregates priced lines. TotalPrice always equals
// Subtotal - TotalSavings.
type Summary struct {
	Lines         []LineTotal             `json:"lines"`
	TotalItems    int                     `json:"total_items"`
	Subtotal      float64                 `json:"subtotal"`
	TotalSavings  float64                 `json:"total_savings"`
	TotalPrice    float64                 `json:"total_price"`
	BulkDiscounts map[string]BulkDiscount `json:"bulk_discounts"`
}

type pricedLine struct {
	LineTotal
	subtotal decimal.Decimal
	discount decimal.Decimal
	total    decimal.Decimal
}

func price(l Line) pricedLine {
	qty := l.Quantity
	if qty < 0 {
		qty = 0
	}
	subtotal := decimal.NewFromFloat(l.UnitPrice).Mul(decimal.NewFromInt(int64(qty))).Round(2)
	discount := decimal.Zero
	var pct float64
	if l.Tier.Applies(qty) {
		pct = l.Tier.DiscountPercent
		discount = subtotal.Mul(decimal.NewFromFloat(pct)).Div(hundred).Round(2)
	}
	total := subtotal.Sub(discount)

	return pricedLine{
		LineTotal: LineTotal{
			ProductID:       l.ProductID,
			Quantity:        qty,
			UnitPrice:       l.UnitPrice,
			Subtotal:        subtotal.InexactFloat64(),
			Discount:        discount.InexactFloat64(),
			Total:           total.InexactFloat64(),
			DiscountPercent: pct,
			BulkApplied:     discount.IsPositive(),
		},
		subtotal: subtotal,
		discount: discount,
		total:    total,
	}
}

// PriceLine prices a single line.
func PriceLine(l Line) LineTotal {
	return price(l).LineTotal
}

// Summarize prices every line and totals the cart.
func Summarize(lines []Line) Summary {
	s := Summary{
		Lines:         make([]LineTotal, 0, len(lines)),
		BulkDiscounts: map[string]BulkDiscount{},
	}
	subtotal, savings, total := decimal.Zero, decimal.Zero, decimal.Zero

	for _, l := range lines {
		p := price(l)
		s.Lines = append(s.Lines, p.LineTotal)
		s.TotalItems += p.Quantity
		subtotal = subtotal.Add(p.subtotal)
		savings = savings.Add(p.discount)
		total = total.Add(p.total)

		if p.BulkApplied {
			prev := s.BulkDiscounts[l.ProductID]
			s.BulkDiscounts[l.ProductID] = BulkDiscount{
				MinQty:          l.Tier.MinQty,
				DiscountPercent: l.Tier.DiscountPercent,
				Savings:         decimal.NewFromFloat(prev.Savings).Add(p.discount).InexactFloat64(),
			}
		}
	}

	s.Subtotal = subtotal.InexactFloat64()
	s.TotalSavings = savings.InexactFloat64()
	s.TotalPrice = total.InexactFloat64()
	return s
}

// Add returns a+b rounded to two places.
func Add(a, b float64) float64 {
	return decimal.NewFromFloat(a).Add(decimal.NewFromFloat(b)).Round(2).InexactFloat64()
}

// ShippingFee is zero once total reaches freeThreshold, otherwise fee.
// A zero threshold disables free shipping.
func ShippingFee(total, freeThreshold, fee float64) float64 {
	if freeThreshold > 0 && total >= freeThreshold {
		return 0
	}
	return fee
}

// MinorUnits converts an amount to cents.
func MinorUnits(amount float64) int64 {
	return decimal.NewFromFloat(amount).Mul(hundred).Round(0).IntPart()
}
