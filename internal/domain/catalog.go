package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product represents a sellable item in the catalog
type Product struct {
	ID          uuid.UUID        `json:"id" db:"id"`
	Name        string           `json:"name" db:"name"`
	Slug        string           `json:"slug" db:"slug"`
	Description string           `json:"description" db:"description"`
	Price       decimal.Decimal  `json:"price" db:"price"`
	CostPrice   *decimal.Decimal `json:"cost_price" db:"cost_price"`
	Tax         decimal.Decimal  `json:"tax" db:"tax"`
	Discount    decimal.Decimal  `json:"discount" db:"discount"`
	CategoryID  *uuid.UUID       `json:"category_id" db:"category_id"`
	AvgRating   float64          `json:"avg_rating" db:"avg_rating"`
	CreatedAt   time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at" db:"updated_at"`

	// Populated by joins where the caller asked for them
	Category *Category      `json:"category,omitempty"`
	Images   []ProductImage `json:"images,omitempty"`
}

// ProductImage is one image attached to a product
type ProductImage struct {
	ID        uuid.UUID `json:"id" db:"id"`
	ProductID uuid.UUID `json:"product_id" db:"product_id"`
	URL       string    `json:"url" db:"url"`
	AltText   string    `json:"alt_text" db:"alt_text"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Category represents a product category
type Category struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Slug        string    `json:"slug" db:"slug"`
	Description string    `json:"description" db:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`

	ProductCount int `json:"product_count,omitempty"`
}

// Review is a customer rating for a product
type Review struct {
	ID         uuid.UUID `json:"id" db:"id"`
	ProductID  uuid.UUID `json:"product_id" db:"product_id"`
	UserID     uuid.UUID `json:"user_id" db:"user_id"`
	Rating     int       `json:"rating" db:"rating"`
	Content    string    `json:"content" db:"content"`
	IsVerified bool      `json:"is_verified" db:"is_verified"`
	IsApproved bool      `json:"is_approved" db:"is_approved"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`

	User    *User    `json:"user,omitempty"`
	Product *Product `json:"product,omitempty"`
}
