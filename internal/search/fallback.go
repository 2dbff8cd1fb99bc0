package search

import (
	"context"
	"database/sql"
	"strings"

	"github.com/stockpoint/stockpoint/internal/platform/db"
)

const (
	createFallbackTable = `CREATE TABLE IF NOT EXISTS product_search_fallback (
	product_id INTEGER PRIMARY KEY,
	search_text TEXT NOT NULL
)`
	createFallbackIndex = `CREATE INDEX IF NOT EXISTS idx_product_search_fallback_text ON product_search_fallback(search_text)`
)

// fallbackStrategy stores one precomputed folded concatenation of the
// searchable fields per product and answers queries with substring matching.
type fallbackStrategy struct{}

func (s *fallbackStrategy) Name() string { return "fallback" }

// SearchText builds the indexed concatenation for a document.
func SearchText(doc Document) string {
	parts := []string{doc.Name, doc.Barcode, doc.Category, doc.Description}
	return Fold(strings.Join(parts, " "))
}

func (s *fallbackStrategy) Index(ctx context.Context, tx *sql.Tx, doc Document) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO product_search_fallback(product_id, search_text) VALUES (?, ?)
ON CONFLICT(product_id) DO UPDATE SET search_text = excluded.search_text`,
		doc.ProductID, SearchText(doc))
	return db.MapError(err)
}

func (s *fallbackStrategy) Deindex(ctx context.Context, tx *sql.Tx, productID int64) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM product_search_fallback WHERE product_id = ?`, productID)
	return db.MapError(err)
}

func (s *fallbackStrategy) Search(ctx context.Context, runner db.Runner, query string, limit, offset int) ([]int64, error) {
	folded := Fold(query)
	if folded == "" {
		return []int64{}, nil
	}
	pattern := "%" + escapeLike(folded) + "%"
	rows, err := runner.QueryContext(ctx, `SELECT f.product_id
FROM product_search_fallback f
JOIN products p ON p.id = f.product_id
WHERE f.search_text LIKE ? ESCAPE '\'
ORDER BY p.name ASC LIMIT ? OFFSET ?`, pattern, limit, offset)
	if err != nil {
		return nil, db.MapError(err)
	}
	defer rows.Close()
	return scanIDs(rows)
}

func (s *fallbackStrategy) Rebuild(ctx context.Context, handle *sql.DB) error {
	return db.WithTx(ctx, handle, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx,
			`SELECT id, name, barcode, category, COALESCE(description, '') FROM products`)
		if err != nil {
			return db.MapError(err)
		}
		docs := []Document{}
		for rows.Next() {
			var doc Document
			if err := rows.Scan(&doc.ProductID, &doc.Name, &doc.Barcode, &doc.Category, &doc.Description); err != nil {
				rows.Close()
				return err
			}
			docs = append(docs, doc)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return err
		}
		rows.Close()

		for _, doc := range docs {
			if err := s.Index(ctx, tx, doc); err != nil {
				return err
			}
		}
		return nil
	})
}
