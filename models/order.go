package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusProcessing OrderStatus = "processing"
	StatusShipped    OrderStatus = "shipped"
	StatusDelivered  OrderStatus = "delivered"
	StatusCancelled  OrderStatus = "cancelled"
)

var nextStatus = map[OrderStatus][]OrderStatus{
	StatusPending:    {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusDelivered, StatusCancelled},
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to OrderStatus) bool {
	for _, s := range nextStatus[from] {
		if s == to {
			return true
		}
	}
	return false
}

// CancelSources lists the statuses an order can be cancelled from.
func CancelSources() []OrderStatus {
	var out []OrderStatus
	for _, s := range []OrderStatus{StatusPending, StatusProcessing, StatusShipped, StatusDelivered} {
		if CanTransition(s, StatusCancelled) {
			out = append(out, s)
		}
	}
	return out
}

// Cancellable reports whether the customer may still cancel.
func (s OrderStatus) Cancellable() bool {
	return s == StatusPending || s == StatusProcessing
}

func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

type PaymentMethod string

const (
	PaymentCOD    PaymentMethod = "cod"
	PaymentOnline PaymentMethod = "online"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

// OrderSource is "local" for orders that were written to the fallback
// store because the database could not be reached.
type OrderSource string

const (
	SourceAPI   OrderSource = "api"
	SourceLocal OrderSource = "local"
)

type Address struct {
	FullName   string `json:"full_name" binding:"required"`
	Phone      string `json:"phone" binding:"required"`
	Line1      string `json:"line1" binding:"required"`
	Line2      string `json:"line2"`
	City       string `json:"city" binding:"required"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code" binding:"required"`
	Country    string `json:"country"`
}

// Customer is a snapshot of the buyer at order time.
type Customer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type Order struct {
	ID              uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderNumber     string         `gorm:"uniqueIndex;not null" json:"order_number"`
	UserID          uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	Customer        Customer       `gorm:"embedded;embeddedPrefix:customer_" json:"customer"`
	Items           []OrderItem    `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items"`
	ShippingAddress Address        `gorm:"embedded;embeddedPrefix:ship_" json:"shipping_address"`
	PaymentMethod   PaymentMethod  `gorm:"type:varchar(16);not null" json:"payment_method"`
	PaymentStatus   PaymentStatus  `gorm:"type:varchar(16);not null" json:"payment_status"`
	PaymentID       string         `gorm:"index" json:"payment_id,omitempty"`
	Status          OrderStatus    `gorm:"type:varchar(20);not null;index" json:"status"`
	Subtotal        float64        `gorm:"type:numeric(12,2)" json:"subtotal"`
	Savings         float64        `gorm:"type:numeric(12,2)" json:"savings"`
	ShippingFee     float64        `gorm:"type:numeric(12,2)" json:"shipping_fee"`
	Total           float64        `gorm:"type:numeric(12,2)" json:"total"`
	Source          OrderSource    `gorm:"type:varchar(10)" json:"source"`
	Notes           string         `json:"notes,omitempty"`
	PaidAt          *time.Time     `json:"paid_at,omitempty"`
	CancelledAt     *time.Time     `json:"cancelled_at,omitempty"`
	CreatedAt       time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
}

type OrderItem struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderID   uuid.UUID `gorm:"type:uuid;not null;index" json:"order_id"`
	ProductID uuid.UUID `gorm:"type:uuid;not null" json:"product_id"`
	Name      string    `json:"name"`
	UnitPrice float64   `gorm:"type:numeric(10,2)" json:"unit_price"`
	Quantity  int       `gorm:"not null" json:"quantity"`
	Discount  float64   `gorm:"type:numeric(10,2)" json:"discount"`
	Total     float64   `gorm:"type:numeric(12,2)" json:"total"`
}

// OrderStats feeds the admin dashboard.
type OrderStats struct {
	TotalOrders    int64                 `json:"total_orders"`
	Revenue        float64               `json:"revenue"`
	OrdersByStatus map[OrderStatus]int64 `json:"orders_by_status"`
}

// OrderNumber is human readable: OH-20240131-1A2B3C.
func OrderNumber(id uuid.UUID, at time.Time) string {
	return fmt.Sprintf("OH-%s-%s", at.Format("20060102"), strings.ToUpper(strings.ReplaceAll(id.String(), "-", "")[:6]))
}
