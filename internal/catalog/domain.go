package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a sellable item tracked in stock.
type Product struct {
	ID            int64           `json:"id" db:"id"`
	Name          string          `json:"name" db:"name"`
	Barcode       string          `json:"barcode" db:"barcode"`
	Price         decimal.Decimal `json:"price" db:"price"`
	Category      string          `json:"category" db:"category"`
	Description   *string         `json:"description,omitempty" db:"description"`
	StockQuantity int             `json:"stock_quantity" db:"stock_quantity"`
	MinStockLevel int             `json:"min_stock_level" db:"min_stock_level"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`
}

// LowStock reports whether the product is at or below its minimum level.
func (p Product) LowStock() bool {
	return p.StockQuantity <= p.MinStockLevel
}

// CreateProductRequest captures add-product input.
type CreateProductRequest struct {
	Name          string  `json:"name" validate:"required,max=200"`
	Barcode       string  `json:"barcode" validate:"required,max=64"`
	Price         string  `json:"price" validate:"required"`
	Category      string  `json:"category" validate:"max=100"`
	Description   *string `json:"description,omitempty" validate:"omitempty,max=2000"`
	StockQuantity int     `json:"stock_quantity" validate:"gte=0"`
	MinStockLevel int     `json:"min_stock_level" validate:"gte=0"`
}

// UpdateProductRequest captures edit-product input; nil fields are unchanged.
type UpdateProductRequest struct {
	Name          *string `json:"name,omitempty" validate:"omitempty,max=200"`
	Barcode       *string `json:"barcode,omitempty" validate:"omitempty,max=64"`
	Price         *string `json:"price,omitempty"`
	Category      *string `json:"category,omitempty" validate:"omitempty,max=100"`
	Description   *string `json:"description,omitempty" validate:"omitempty,max=2000"`
	StockQuantity *int    `json:"stock_quantity,omitempty" validate:"omitempty,gte=0"`
	MinStockLevel *int    `json:"min_stock_level,omitempty" validate:"omitempty,gte=0"`
}

// ListFilter composes the predicate side of product queries.
type ListFilter struct {
	Category     string
	MinPrice     *decimal.Decimal
	MaxPrice     *decimal.Decimal
	LowStockOnly bool
	Limit        int
	Offset       int
}
