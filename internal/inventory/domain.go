package inventory

import "time"

// Count is one line of a physical stock-take. It snapshots the product name
// and barcode plus the system count at counting time, and is never mutated
// after creation; variance reporting reads it as-is.
type Count struct {
	ID             int64     `json:"id" db:"id"`
	ProductID      int64     `json:"product_id" db:"product_id"`
	ProductName    string    `json:"product_name" db:"product_name"`
	ProductBarcode string    `json:"product_barcode" db:"product_barcode"`
	SystemCount    int       `json:"system_count" db:"system_count"`
	PhysicalCount  int       `json:"physical_count" db:"physical_count"`
	Variance       int       `json:"variance" db:"variance"`
	CountDate      time.Time `json:"count_date" db:"count_date"`
	Notes          *string   `json:"notes,omitempty" db:"notes"`
	CountedBy      string    `json:"counted_by" db:"counted_by"`
}

// CountInput is one counted product in a session.
type CountInput struct {
	ProductID     int64   `json:"product_id" validate:"required,gt=0"`
	PhysicalCount int     `json:"physical_count" validate:"gte=0"`
	Notes         *string `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

// SessionInput is a full counting session.
type SessionInput struct {
	CountedBy string       `json:"counted_by" validate:"required,max=200"`
	Counts    []CountInput `json:"counts" validate:"required,min=1,dive"`
	// ApplyCorrections sets each counted product's stock to its physical
	// count after the session is recorded.
	ApplyCorrections bool `json:"apply_corrections"`
}

// ListFilter bounds count listings.
type ListFilter struct {
	ProductID int64
	From      time.Time
	To        time.Time
	Limit     int
	Offset    int
}
