package inventory

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/stockpoint/stockpoint/internal/platform/db"
)

// SQLRepository persists inventory counts in SQLite.
type SQLRepository struct {
	handle *sql.DB
}

// NewSQLRepository constructs SQLRepository.
func NewSQLRepository(handle *sql.DB) *SQLRepository {
	return &SQLRepository{handle: handle}
}

// InsertBatch stores a counting session's records in one transaction.
func (r *SQLRepository) InsertBatch(ctx context.Context, counts []Count) ([]Count, error) {
	inserted := make([]Count, 0, len(counts))
	err := db.WithTx(ctx, r.handle, func(tx *sql.Tx) error {
		for _, c := range counts {
			res, err := tx.ExecContext(ctx, `INSERT INTO inventory_counts
(product_id, product_name, product_barcode, system_count, physical_count, variance, count_date, notes, counted_by)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				c.ProductID, c.ProductName, c.ProductBarcode, c.SystemCount,
				c.PhysicalCount, c.Variance, c.CountDate, c.Notes, c.CountedBy)
			if err != nil {
				return db.MapError(err)
			}
			id, err := res.LastInsertId()
			if err != nil {
				return err
			}
			c.ID = id
			inserted = append(inserted, c)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return inserted, nil
}

// List returns counts matching filter, newest first.
func (r *SQLRepository) List(ctx context.Context, filter ListFilter) ([]Count, error) {
	builder := sq.Select("id", "product_id", "product_name", "product_barcode",
		"system_count", "physical_count", "variance", "count_date", "notes", "counted_by").
		From("inventory_counts").
		OrderBy("count_date DESC", "id DESC")
	if filter.ProductID > 0 {
		builder = builder.Where(sq.Eq{"product_id": filter.ProductID})
	}
	if !filter.From.IsZero() {
		builder = builder.Where(sq.GtOrEq{"count_date": filter.From})
	}
	if !filter.To.IsZero() {
		builder = builder.Where(sq.Lt{"count_date": filter.To})
	}
	if filter.Limit > 0 {
		builder = builder.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		builder = builder.Offset(uint64(filter.Offset))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("inventory: build list query: %w", err)
	}
	rows, err := r.handle.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, db.MapError(err)
	}
	defer rows.Close()

	counts := []Count{}
	for rows.Next() {
		var c Count
		if err := rows.Scan(&c.ID, &c.ProductID, &c.ProductName, &c.ProductBarcode,
			&c.SystemCount, &c.PhysicalCount, &c.Variance, &c.CountDate, &c.Notes, &c.CountedBy); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return counts, nil
}
