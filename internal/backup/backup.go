// Package backup exports the whole store as a single JSON document and
// restores it with a destructive replace inside one transaction.
package backup

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/stockpoint/stockpoint/internal/catalog"
	"github.com/stockpoint/stockpoint/internal/inventory"
	"github.com/stockpoint/stockpoint/internal/platform/db"
	"github.com/stockpoint/stockpoint/internal/sales"
	"github.com/stockpoint/stockpoint/internal/search"
)

// FormatVersion identifies the document layout.
const FormatVersion = 1

// Document is the backup/export format.
type Document struct {
	Version    int       `json:"version"`
	ExportDate time.Time `json:"exportDate"`
	Tables     Tables    `json:"tables"`
}

// Tables carries every persisted table.
type Tables struct {
	Products        []catalog.Product `json:"products"`
	Sales           []sales.Sale      `json:"sales"`
	SaleItems       []sales.SaleItem  `json:"sale_items"`
	InventoryCounts []inventory.Count `json:"inventory_counts"`
}

// Manager performs export and restore against the shared handle.
type Manager struct {
	handle   *sql.DB
	products *catalog.SQLRepository
	sales    *sales.Repository
	counts   *inventory.SQLRepository
	index    search.Strategy
}

// NewManager constructs Manager.
func NewManager(handle *sql.DB, products *catalog.SQLRepository, salesRepo *sales.Repository, counts *inventory.SQLRepository, index search.Strategy) *Manager {
	return &Manager{handle: handle, products: products, sales: salesRepo, counts: counts, index: index}
}

// Export reads all four tables into a Document.
func (m *Manager) Export(ctx context.Context) (*Document, error) {
	products, err := m.products.List(ctx, catalog.ListFilter{})
	if err != nil {
		return nil, fmt.Errorf("backup: export products: %w", err)
	}
	salesList, err := m.sales.List(ctx, sales.ListFilter{})
	if err != nil {
		return nil, fmt.Errorf("backup: export sales: %w", err)
	}
	counts, err := m.counts.List(ctx, inventory.ListFilter{})
	if err != nil {
		return nil, fmt.Errorf("backup: export inventory counts: %w", err)
	}

	items := []sales.SaleItem{}
	for i := range salesList {
		items = append(items, salesList[i].Items...)
		salesList[i].Items = nil
	}

	return &Document{
		Version:    FormatVersion,
		ExportDate: time.Now().UTC(),
		Tables: Tables{
			Products:        products,
			Sales:           salesList,
			SaleItems:       items,
			InventoryCounts: counts,
		},
	}, nil
}

// WriteTo streams the export as JSON.
func (m *Manager) WriteTo(ctx context.Context, w io.Writer) error {
	doc, err := m.Export(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// Restore replaces the entire store with the document's contents: all four
// tables are cleared, then bulk-inserted, inside one transaction. The search
// index is rebuilt afterwards so it cannot lag the restored products.
func (m *Manager) Restore(ctx context.Context, doc *Document) error {
	if doc == nil {
		return fmt.Errorf("backup: nil document")
	}
	if doc.Version > FormatVersion {
		return fmt.Errorf("backup: unsupported document version %d", doc.Version)
	}

	err := db.WithTx(ctx, m.handle, func(tx *sql.Tx) error {
		for _, stmt := range []string{
			`DELETE FROM sale_items`,
			`DELETE FROM sales`,
			`DELETE FROM inventory_counts`,
			`DELETE FROM products`,
		} {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return db.MapError(err)
			}
		}

		for _, p := range doc.Tables.Products {
			if _, err := tx.ExecContext(ctx, `INSERT INTO products
(id, name, barcode, price, category, description, stock_quantity, min_stock_level, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				p.ID, p.Name, p.Barcode, p.Price, p.Category, p.Description,
				p.StockQuantity, p.MinStockLevel, p.CreatedAt, p.UpdatedAt); err != nil {
				return db.MapError(err)
			}
		}
		for _, s := range doc.Tables.Sales {
			if _, err := tx.ExecContext(ctx, `INSERT INTO sales
(id, receipt_number, subtotal, tax, total, timestamp, customer_name, payment_method, is_voided, voided_at, void_reason)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				s.ID, s.ReceiptNumber, s.Subtotal, s.Tax, s.Total, s.Timestamp,
				s.CustomerName, s.PaymentMethod, s.IsVoided, s.VoidedAt, s.VoidReason); err != nil {
				return db.MapError(err)
			}
		}
		for _, item := range doc.Tables.SaleItems {
			if _, err := tx.ExecContext(ctx, `INSERT INTO sale_items
(id, sale_id, product_id, product_name, product_barcode, unit_price, quantity, total_price)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				item.ID, item.SaleID, item.ProductID, item.ProductName,
				item.ProductBarcode, item.UnitPrice, item.Quantity, item.TotalPrice); err != nil {
				return db.MapError(err)
			}
		}
		for _, c := range doc.Tables.InventoryCounts {
			if _, err := tx.ExecContext(ctx, `INSERT INTO inventory_counts
(id, product_id, product_name, product_barcode, system_count, physical_count, variance, count_date, notes, counted_by)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				c.ID, c.ProductID, c.ProductName, c.ProductBarcode, c.SystemCount,
				c.PhysicalCount, c.Variance, c.CountDate, c.Notes, c.CountedBy); err != nil {
				return db.MapError(err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	return m.index.Rebuild(ctx, m.handle)
}

// ReadFrom restores the store from a JSON stream.
func (m *Manager) ReadFrom(ctx context.Context, r io.Reader) error {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return fmt.Errorf("backup: decode document: %w", err)
	}
	return m.Restore(ctx, &doc)
}
