package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Order statuses
const (
	OrderPending    = "PENDING"
	OrderConfirmed  = "CONFIRMED"
	OrderProcessing = "PROCESSING"
	OrderShipped    = "SHIPPED"
	OrderDelivered  = "DELIVERED"
	OrderCancelled  = "CANCELLED"
	OrderRefunded   = "REFUNDED"
)

// RevenueStatuses are the order states that count toward realized revenue
// on the dashboard.
var RevenueStatuses = []string{OrderConfirmed, OrderShipped, OrderDelivered}

// Order is a placed order. UserID is nil for guest checkouts, which are
// keyed by the contact fields captured in the shipping address snapshot.
type Order struct {
	ID              uuid.UUID         `json:"id" db:"id"`
	OrderNumber     string            `json:"order_number" db:"order_number"`
	UserID          *uuid.UUID        `json:"user_id" db:"user_id"`
	Status          string            `json:"status" db:"status"`
	Subtotal        decimal.Decimal   `json:"subtotal" db:"subtotal"`
	Tax             decimal.Decimal   `json:"tax" db:"tax"`
	Discount        decimal.Decimal   `json:"discount" db:"discount"`
	Total           decimal.Decimal   `json:"total" db:"total"`
	ShippingAddress map[string]string `json:"shipping_address" db:"shipping_address"`
	CreatedAt       time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at" db:"updated_at"`

	Items []OrderItem `json:"items,omitempty"`
	User  *User       `json:"user,omitempty"`
}

// OrderItem is one line of an order. Price is the unit price captured at
// purchase time, deliberately not a live reference to the product's
// current price.
type OrderItem struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	OrderID   uuid.UUID       `json:"order_id" db:"order_id"`
	ProductID uuid.UUID       `json:"product_id" db:"product_id"`
	Quantity  int             `json:"quantity" db:"quantity"`
	Price     decimal.Decimal `json:"price" db:"price"`

	Product *Product `json:"product,omitempty"`
}
