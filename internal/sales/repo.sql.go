package sales

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/shopspring/decimal"

	"github.com/stockpoint/stockpoint/internal/platform/db"
	"github.com/stockpoint/stockpoint/internal/shared"
)

// Repository persists sales in SQLite.
type Repository struct {
	handle *sql.DB
}

// NewRepository constructs Repository.
func NewRepository(handle *sql.DB) *Repository {
	return &Repository{handle: handle}
}

// ProductSnapshot is the slice of a product a sale line needs at checkout.
type ProductSnapshot struct {
	ID      int64
	Name    string
	Barcode string
	Price   decimal.Decimal
}

// TxRepository exposes the operations available inside a sale transaction.
// The service composes them so the sale row, its items and the stock
// mutations commit or roll back as one.
type TxRepository interface {
	GetProductSnapshot(ctx context.Context, productID int64) (ProductSnapshot, error)
	InsertSale(ctx context.Context, sale Sale) (int64, error)
	InsertSaleItems(ctx context.Context, saleID int64, items []SaleItem) error
	AdjustStock(ctx context.Context, productID int64, delta int, floor bool) error
	GetSale(ctx context.Context, saleID int64) (Sale, error)
	GetSaleItems(ctx context.Context, saleID int64) ([]SaleItem, error)
	MarkVoided(ctx context.Context, saleID int64, at time.Time, reason string) error
	DeleteSaleItems(ctx context.Context, saleID int64) error
	DeleteSale(ctx context.Context, saleID int64) error
}

type txRepository struct {
	tx *sql.Tx
}

// WithTx executes the callback inside one transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.handle, func(tx *sql.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const saleColumns = `id, receipt_number, subtotal, tax, total, timestamp, customer_name, payment_method, is_voided, voided_at, void_reason`

func scanSale(row interface{ Scan(...any) error }) (Sale, error) {
	var s Sale
	err := row.Scan(&s.ID, &s.ReceiptNumber, &s.Subtotal, &s.Tax, &s.Total, &s.Timestamp,
		&s.CustomerName, &s.PaymentMethod, &s.IsVoided, &s.VoidedAt, &s.VoidReason)
	return s, err
}

// GetByID loads a sale with its items.
func (r *Repository) GetByID(ctx context.Context, saleID int64) (Sale, error) {
	row := r.handle.QueryRowContext(ctx, `SELECT `+saleColumns+` FROM sales WHERE id = ?`, saleID)
	sale, err := scanSale(row)
	if err != nil {
		return Sale{}, fmt.Errorf("sales: get sale %d: %w", saleID, db.MapError(err))
	}
	items, err := querySaleItems(ctx, r.handle, saleID)
	if err != nil {
		return Sale{}, err
	}
	sale.Items = items
	return sale, nil
}

// List returns sales matching filter, newest first, items populated.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Sale, error) {
	builder := sq.Select(saleColumns).From("sales").OrderBy("timestamp DESC", "id DESC")
	if !filter.From.IsZero() {
		builder = builder.Where(sq.GtOrEq{"timestamp": filter.From})
	}
	if !filter.To.IsZero() {
		builder = builder.Where(sq.Lt{"timestamp": filter.To})
	}
	if filter.Voided != nil {
		builder = builder.Where(sq.Eq{"is_voided": *filter.Voided})
	}
	if filter.Limit > 0 {
		builder = builder.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		builder = builder.Offset(uint64(filter.Offset))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("sales: build list query: %w", err)
	}
	rows, err := r.handle.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, db.MapError(err)
	}
	defer rows.Close()

	salesList := []Sale{}
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		salesList = append(salesList, sale)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range salesList {
		items, err := querySaleItems(ctx, r.handle, salesList[i].ID)
		if err != nil {
			return nil, err
		}
		salesList[i].Items = items
	}
	return salesList, nil
}

// ListVoidedOlderThan returns IDs of sales voided before cutoff, feeding the
// retention cleanup. Retention is keyed on the void date, not the sale
// timestamp: an old sale voided yesterday is still within its window.
func (r *Repository) ListVoidedOlderThan(ctx context.Context, cutoff time.Time) ([]int64, error) {
	rows, err := r.handle.QueryContext(ctx,
		`SELECT id FROM sales WHERE is_voided = 1 AND voided_at IS NOT NULL AND voided_at < ? ORDER BY id ASC`, cutoff)
	if err != nil {
		return nil, db.MapError(err)
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

func querySaleItems(ctx context.Context, runner db.Runner, saleID int64) ([]SaleItem, error) {
	rows, err := runner.QueryContext(ctx, `SELECT id, sale_id, product_id, product_name, product_barcode, unit_price, quantity, total_price
FROM sale_items WHERE sale_id = ? ORDER BY id ASC`, saleID)
	if err != nil {
		return nil, db.MapError(err)
	}
	defer rows.Close()

	items := []SaleItem{}
	for rows.Next() {
		var item SaleItem
		if err := rows.Scan(&item.ID, &item.SaleID, &item.ProductID, &item.ProductName,
			&item.ProductBarcode, &item.UnitPrice, &item.Quantity, &item.TotalPrice); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *txRepository) GetProductSnapshot(ctx context.Context, productID int64) (ProductSnapshot, error) {
	var snap ProductSnapshot
	err := r.tx.QueryRowContext(ctx,
		`SELECT id, name, barcode, price FROM products WHERE id = ?`, productID).
		Scan(&snap.ID, &snap.Name, &snap.Barcode, &snap.Price)
	if err != nil {
		return ProductSnapshot{}, fmt.Errorf("sales: product %d: %w", productID, db.MapError(err))
	}
	return snap, nil
}

func (r *txRepository) InsertSale(ctx context.Context, sale Sale) (int64, error) {
	res, err := r.tx.ExecContext(ctx, `INSERT INTO sales
(receipt_number, subtotal, tax, total, timestamp, customer_name, payment_method, is_voided)
VALUES (?, ?, ?, ?, ?, ?, ?, 0)`,
		sale.ReceiptNumber, sale.Subtotal, sale.Tax, sale.Total, sale.Timestamp,
		sale.CustomerName, sale.PaymentMethod)
	if err != nil {
		return 0, db.MapError(err)
	}
	return res.LastInsertId()
}

func (r *txRepository) InsertSaleItems(ctx context.Context, saleID int64, items []SaleItem) error {
	for _, item := range items {
		if _, err := r.tx.ExecContext(ctx, `INSERT INTO sale_items
(sale_id, product_id, product_name, product_barcode, unit_price, quantity, total_price)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
			saleID, item.ProductID, item.ProductName, item.ProductBarcode,
			item.UnitPrice, item.Quantity, item.TotalPrice); err != nil {
			return db.MapError(err)
		}
	}
	return nil
}

func (r *txRepository) AdjustStock(ctx context.Context, productID int64, delta int, floor bool) error {
	var (
		res sql.Result
		err error
	)
	if floor && delta < 0 {
		res, err = r.tx.ExecContext(ctx,
			`UPDATE products SET stock_quantity = stock_quantity + ?, updated_at = ? WHERE id = ? AND stock_quantity >= ?`,
			delta, time.Now().UTC(), productID, -delta)
	} else {
		res, err = r.tx.ExecContext(ctx,
			`UPDATE products SET stock_quantity = stock_quantity + ?, updated_at = ? WHERE id = ?`,
			delta, time.Now().UTC(), productID)
	}
	if err != nil {
		return db.MapError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		var exists int
		if err := r.tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM products WHERE id = ?`, productID).Scan(&exists); err != nil {
			return db.MapError(err)
		}
		if exists == 0 {
			if delta > 0 {
				// Restoration targets a soft reference: the product may have
				// been deleted since the sale. The line item keeps the
				// history and there is no stock row left to restore onto.
				return nil
			}
			return fmt.Errorf("sales: stock for product %d: %w", productID, shared.ErrNotFound)
		}
		return fmt.Errorf("sales: stock for product %d: %w", productID, shared.ErrInsufficientStock)
	}
	return nil
}

func (r *txRepository) GetSale(ctx context.Context, saleID int64) (Sale, error) {
	row := r.tx.QueryRowContext(ctx, `SELECT `+saleColumns+` FROM sales WHERE id = ?`, saleID)
	sale, err := scanSale(row)
	if err != nil {
		return Sale{}, fmt.Errorf("sales: get sale %d: %w", saleID, db.MapError(err))
	}
	return sale, nil
}

func (r *txRepository) GetSaleItems(ctx context.Context, saleID int64) ([]SaleItem, error) {
	return querySaleItems(ctx, r.tx, saleID)
}

func (r *txRepository) MarkVoided(ctx context.Context, saleID int64, at time.Time, reason string) error {
	res, err := r.tx.ExecContext(ctx,
		`UPDATE sales SET is_voided = 1, voided_at = ?, void_reason = ? WHERE id = ? AND is_voided = 0`,
		at, reason, saleID)
	if err != nil {
		return db.MapError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("sales: mark sale %d voided: %w", saleID, shared.ErrAlreadyVoided)
	}
	return nil
}

// DeleteSaleItems removes line items; always called before DeleteSale to
// respect referential order.
func (r *txRepository) DeleteSaleItems(ctx context.Context, saleID int64) error {
	_, err := r.tx.ExecContext(ctx, `DELETE FROM sale_items WHERE sale_id = ?`, saleID)
	return db.MapError(err)
}

func (r *txRepository) DeleteSale(ctx context.Context, saleID int64) error {
	_, err := r.tx.ExecContext(ctx, `DELETE FROM sales WHERE id = ?`, saleID)
	return db.MapError(err)
}
