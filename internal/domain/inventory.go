package domain

import (
	"time"

	"github.com/google/uuid"
)

// DefaultLowStockThreshold is applied when a product is created without
// an explicit threshold.
const DefaultLowStockThreshold = 5

// Adjustment reasons recorded in the inventory audit trail
const (
	ReasonRestock      = "restock"
	ReasonSale         = "sale"
	ReasonReturn       = "return"
	ReasonDamage       = "damage"
	ReasonAdjustment   = "adjustment"
	ReasonInitialStock = "initial_stock"
	ReasonOther        = "other"
)

// ValidAdjustmentReason reports whether reason is one of the known
// audit-trail reasons.
func ValidAdjustmentReason(reason string) bool {
	switch reason {
	case ReasonRestock, ReasonSale, ReasonReturn, ReasonDamage,
		ReasonAdjustment, ReasonInitialStock, ReasonOther:
		return true
	}
	return false
}

// Inventory is the stock-tracking record for one product.
//
// InStock is derived (quantity > 0) and computed at read time, never
// stored. IsVisible is the separately stored manual override used to
// hide a product without zeroing its stock.
type Inventory struct {
	ID                uuid.UUID `json:"id" db:"id"`
	ProductID         uuid.UUID `json:"product_id" db:"product_id"`
	Quantity          int       `json:"quantity" db:"quantity"`
	LowStockThreshold int       `json:"low_stock_threshold" db:"low_stock_threshold"`
	InStock           bool      `json:"in_stock" db:"-"`
	IsVisible         bool      `json:"is_visible" db:"is_visible"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`

	Product *Product `json:"product,omitempty"`
}

// LowStock reports whether the record is at or below its own threshold
// while still having stock on hand.
func (i *Inventory) LowStock() bool {
	return i.Quantity > 0 && i.Quantity <= i.LowStockThreshold
}

// InventoryLog is one append-only audit entry for a quantity change.
// Change records the requested delta as given by the caller; NewQuantity
// records the clamped result, so the two can disagree when a decrement
// exceeded stock on hand.
type InventoryLog struct {
	ID          uuid.UUID         `json:"id" db:"id"`
	InventoryID uuid.UUID         `json:"inventory_id" db:"inventory_id"`
	Change      int               `json:"change" db:"change"`
	NewQuantity int               `json:"new_quantity" db:"new_quantity"`
	Reason      string            `json:"reason" db:"reason"`
	Metadata    map[string]string `json:"metadata,omitempty" db:"metadata"`
	CreatedAt   time.Time         `json:"created_at" db:"created_at"`
}
