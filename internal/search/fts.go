package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/stockpoint/stockpoint/internal/platform/db"
)

// createFTSTable is the capability probe itself: it fails on SQLite builds
// compiled without the fts5 extension.
const createFTSTable = `CREATE VIRTUAL TABLE IF NOT EXISTS product_search USING fts5(name, barcode, category, description)`

// ftsStrategy keeps an FTS5 virtual table whose rowid is the product ID.
type ftsStrategy struct{}

func (s *ftsStrategy) Name() string { return "fts5" }

func (s *ftsStrategy) Index(ctx context.Context, tx *sql.Tx, doc Document) error {
	// FTS5 has no upsert; delete-then-insert keyed on rowid is equivalent.
	if _, err := tx.ExecContext(ctx, `DELETE FROM product_search WHERE rowid = ?`, doc.ProductID); err != nil {
		return db.MapError(err)
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO product_search(rowid, name, barcode, category, description) VALUES (?, ?, ?, ?, ?)`,
		doc.ProductID, doc.Name, doc.Barcode, doc.Category, doc.Description)
	return db.MapError(err)
}

func (s *ftsStrategy) Deindex(ctx context.Context, tx *sql.Tx, productID int64) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM product_search WHERE rowid = ?`, productID)
	return db.MapError(err)
}

func (s *ftsStrategy) Search(ctx context.Context, runner db.Runner, query string, limit, offset int) ([]int64, error) {
	match := matchExpression(query)
	if match == "" {
		return []int64{}, nil
	}
	rows, err := runner.QueryContext(ctx,
		`SELECT rowid FROM product_search WHERE product_search MATCH ? ORDER BY rank LIMIT ? OFFSET ?`,
		match, limit, offset)
	if err != nil {
		return nil, db.MapError(err)
	}
	defer rows.Close()
	return scanIDs(rows)
}

func (s *ftsStrategy) Rebuild(ctx context.Context, handle *sql.DB) error {
	return db.WithTx(ctx, handle, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM product_search`); err != nil {
			return db.MapError(err)
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO product_search(rowid, name, barcode, category, description)
SELECT id, name, barcode, category, COALESCE(description, '') FROM products`)
		return db.MapError(err)
	})
}

// matchExpression turns free-form user input into a prefix term query,
// quoting each token so FTS5 operators in the input cannot break the query.
func matchExpression(query string) string {
	terms := strings.Fields(query)
	if len(terms) == 0 {
		return ""
	}
	quoted := make([]string, 0, len(terms))
	for _, term := range terms {
		term = strings.ReplaceAll(term, `"`, "")
		if term == "" {
			continue
		}
		quoted = append(quoted, fmt.Sprintf(`"%s"*`, term))
	}
	return strings.Join(quoted, " ")
}
