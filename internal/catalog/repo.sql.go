package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/stockpoint/stockpoint/internal/platform/db"
	"github.com/stockpoint/stockpoint/internal/search"
	"github.com/stockpoint/stockpoint/internal/shared"
)

// SQLRepository persists products in SQLite and keeps the search index in
// lockstep: every insert, update and delete touches the index inside the same
// transaction as the primary write.
type SQLRepository struct {
	handle *sql.DB
	index  search.Strategy
}

// NewSQLRepository constructs SQLRepository.
func NewSQLRepository(handle *sql.DB, index search.Strategy) *SQLRepository {
	return &SQLRepository{handle: handle, index: index}
}

const productColumns = `id, name, barcode, price, category, description, stock_quantity, min_stock_level, created_at, updated_at`

func scanProduct(row interface{ Scan(...any) error }) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.Barcode, &p.Price, &p.Category, &p.Description,
		&p.StockQuantity, &p.MinStockLevel, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func document(p Product) search.Document {
	desc := ""
	if p.Description != nil {
		desc = *p.Description
	}
	return search.Document{
		ProductID:   p.ID,
		Name:        p.Name,
		Barcode:     p.Barcode,
		Category:    p.Category,
		Description: desc,
	}
}

// Insert stores a new product and indexes it, returning the assigned ID.
func (r *SQLRepository) Insert(ctx context.Context, p Product) (int64, error) {
	var id int64
	err := db.WithTx(ctx, r.handle, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `INSERT INTO products
(name, barcode, price, category, description, stock_quantity, min_stock_level, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.Name, p.Barcode, p.Price, p.Category, p.Description,
			p.StockQuantity, p.MinStockLevel, p.CreatedAt, p.UpdatedAt)
		if err != nil {
			return db.MapError(err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return err
		}
		p.ID = id
		return r.index.Index(ctx, tx, document(p))
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// Update rewrites the product row and re-indexes it.
func (r *SQLRepository) Update(ctx context.Context, p Product) error {
	return db.WithTx(ctx, r.handle, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE products
SET name = ?, barcode = ?, price = ?, category = ?, description = ?, stock_quantity = ?, min_stock_level = ?, updated_at = ?
WHERE id = ?`,
			p.Name, p.Barcode, p.Price, p.Category, p.Description,
			p.StockQuantity, p.MinStockLevel, p.UpdatedAt, p.ID)
		if err != nil {
			return db.MapError(err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return fmt.Errorf("catalog: update product %d: %w", p.ID, shared.ErrNotFound)
		}
		return r.index.Index(ctx, tx, document(p))
	})
}

// Delete removes the product and its index row. Sale history is untouched:
// sale items carry denormalized name/barcode snapshots.
func (r *SQLRepository) Delete(ctx context.Context, id int64) error {
	return db.WithTx(ctx, r.handle, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
		if err != nil {
			return db.MapError(err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return fmt.Errorf("catalog: delete product %d: %w", id, shared.ErrNotFound)
		}
		return r.index.Deindex(ctx, tx, id)
	})
}

// GetByID returns a single product.
func (r *SQLRepository) GetByID(ctx context.Context, id int64) (Product, error) {
	row := r.handle.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = ?`, id)
	p, err := scanProduct(row)
	if err != nil {
		return Product{}, fmt.Errorf("catalog: get product %d: %w", id, db.MapError(err))
	}
	return p, nil
}

// GetByBarcode resolves a scanned barcode to its product.
func (r *SQLRepository) GetByBarcode(ctx context.Context, barcode string) (Product, error) {
	row := r.handle.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE barcode = ?`, barcode)
	p, err := scanProduct(row)
	if err != nil {
		return Product{}, fmt.Errorf("catalog: get product by barcode: %w", db.MapError(err))
	}
	return p, nil
}

// List returns products matching filter, name ascending.
func (r *SQLRepository) List(ctx context.Context, filter ListFilter) ([]Product, error) {
	builder := sq.Select(productColumns).From("products").OrderBy("name ASC")
	if filter.Category != "" {
		builder = builder.Where(sq.Eq{"category": filter.Category})
	}
	if filter.MinPrice != nil {
		builder = builder.Where(sq.GtOrEq{"price": *filter.MinPrice})
	}
	if filter.MaxPrice != nil {
		builder = builder.Where(sq.LtOrEq{"price": *filter.MaxPrice})
	}
	if filter.LowStockOnly {
		builder = builder.Where("stock_quantity <= min_stock_level")
	}
	if filter.Limit > 0 {
		builder = builder.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		builder = builder.Offset(uint64(filter.Offset))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("catalog: build list query: %w", err)
	}
	rows, err := r.handle.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, db.MapError(err)
	}
	defer rows.Close()

	products := []Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

// AdjustStock applies an atomic delta to stock. With floor set, the update is
// rejected when the result would go negative.
func (r *SQLRepository) AdjustStock(ctx context.Context, id int64, delta int, floor bool) error {
	return db.WithTx(ctx, r.handle, func(tx *sql.Tx) error {
		return adjustStockTx(ctx, tx, id, delta, floor)
	})
}

// SetStock sets the absolute stock quantity (inventory-count correction).
func (r *SQLRepository) SetStock(ctx context.Context, id int64, quantity int) error {
	if quantity < 0 {
		return fmt.Errorf("catalog: set stock: %w", shared.ErrConstraintViolation)
	}
	res, err := r.handle.ExecContext(ctx,
		`UPDATE products SET stock_quantity = ?, updated_at = ? WHERE id = ?`,
		quantity, time.Now().UTC(), id)
	if err != nil {
		return db.MapError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("catalog: set stock for product %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

// adjustStockTx is the shared atomic stock mutation: a single relative UPDATE,
// never read-then-write, so concurrent sales cannot lose updates.
func adjustStockTx(ctx context.Context, tx *sql.Tx, id int64, delta int, floor bool) error {
	var (
		res sql.Result
		err error
	)
	if floor && delta < 0 {
		res, err = tx.ExecContext(ctx,
			`UPDATE products SET stock_quantity = stock_quantity + ?, updated_at = ? WHERE id = ? AND stock_quantity >= ?`,
			delta, time.Now().UTC(), id, -delta)
	} else {
		res, err = tx.ExecContext(ctx,
			`UPDATE products SET stock_quantity = stock_quantity + ?, updated_at = ? WHERE id = ?`,
			delta, time.Now().UTC(), id)
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
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM products WHERE id = ?`, id).Scan(&exists); err != nil {
			return db.MapError(err)
		}
		if exists == 0 {
			return fmt.Errorf("catalog: adjust stock for product %d: %w", id, shared.ErrNotFound)
		}
		return fmt.Errorf("catalog: adjust stock for product %d: %w", id, shared.ErrInsufficientStock)
	}
	return nil
}

// Search answers a text query through the active index strategy. An empty
// query degrades to the unfiltered paginated list. If the index fails at
// query time the direct table scan takes over.
func (r *SQLRepository) Search(ctx context.Context, query string, limit, offset int) ([]Product, error) {
	if query == "" {
		return r.List(ctx, ListFilter{Limit: limit, Offset: offset})
	}
	if limit <= 0 {
		limit = 100
	}

	ids, err := r.index.Search(ctx, r.handle, query, limit, offset)
	if err != nil {
		if errors.Is(err, shared.ErrStorageUnavailable) {
			return nil, err
		}
		ids, err = search.ScanProducts(ctx, r.handle, query, limit, offset)
		if err != nil {
			return nil, err
		}
	}
	return r.byIDsOrdered(ctx, ids)
}

// byIDsOrdered fetches products preserving the index's result order.
func (r *SQLRepository) byIDsOrdered(ctx context.Context, ids []int64) ([]Product, error) {
	if len(ids) == 0 {
		return []Product{}, nil
	}
	query, args, err := sq.Select(productColumns).From("products").Where(sq.Eq{"id": ids}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("catalog: build search fetch: %w", err)
	}
	rows, err := r.handle.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, db.MapError(err)
	}
	defer rows.Close()

	byID := make(map[int64]Product, len(ids))
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		byID[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	products := make([]Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			products = append(products, p)
		}
	}
	return products, nil
}
