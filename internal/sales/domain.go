package sales

import (
	"time"

	"github.com/shopspring/decimal"
)

// Sale is the financial record of one checkout. Line items carry denormalized
// product name, barcode and unit price captured at sale time, so history
// stays accurate after the product is renamed or deleted.
//
// State machine: Active --void(reason)--> Voided --delete--> removed.
// Voided is terminal except for deletion; nothing returns a sale to Active.
type Sale struct {
	ID            int64           `json:"id" db:"id"`
	ReceiptNumber string          `json:"receipt_number" db:"receipt_number"`
	Items         []SaleItem      `json:"items"`
	Subtotal      decimal.Decimal `json:"subtotal" db:"subtotal"`
	Tax           decimal.Decimal `json:"tax" db:"tax"`
	Total         decimal.Decimal `json:"total" db:"total"`
	Timestamp     time.Time       `json:"timestamp" db:"timestamp"`
	CustomerName  *string         `json:"customer_name,omitempty" db:"customer_name"`
	PaymentMethod string          `json:"payment_method" db:"payment_method"`
	IsVoided      bool            `json:"is_voided" db:"is_voided"`
	VoidedAt      *time.Time      `json:"voided_at,omitempty" db:"voided_at"`
	VoidReason    *string         `json:"void_reason,omitempty" db:"void_reason"`
}

// SaleItem is one line of a sale, owned exclusively by its parent.
type SaleItem struct {
	ID             int64           `json:"id" db:"id"`
	SaleID         int64           `json:"sale_id" db:"sale_id"`
	ProductID      int64           `json:"product_id" db:"product_id"`
	ProductName    string          `json:"product_name" db:"product_name"`
	ProductBarcode string          `json:"product_barcode" db:"product_barcode"`
	UnitPrice      decimal.Decimal `json:"unit_price" db:"unit_price"`
	Quantity       int             `json:"quantity" db:"quantity"`
	TotalPrice     decimal.Decimal `json:"total_price" db:"total_price"`
}

// CreateSaleRequest captures checkout input. Name, barcode and unit price are
// snapshotted from the product inside the sale transaction, not trusted from
// the caller.
type CreateSaleRequest struct {
	Items         []CreateSaleItem `json:"items" validate:"required,min=1,dive"`
	CustomerName  *string          `json:"customer_name,omitempty" validate:"omitempty,max=200"`
	PaymentMethod string           `json:"payment_method" validate:"required,oneof=cash card transfer other"`
}

// CreateSaleItem is one requested line.
type CreateSaleItem struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Quantity  int   `json:"quantity" validate:"required,gt=0"`
}

// ListFilter bounds sale listings by date range and page. Voided narrows to
// voided (true) or active (false) sales; nil returns both.
type ListFilter struct {
	From   time.Time
	To     time.Time
	Voided *bool
	Limit  int
	Offset int
}
