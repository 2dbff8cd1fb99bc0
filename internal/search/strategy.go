// Package search maintains the secondary product index and answers text
// queries over it. Two interchangeable strategies satisfy the same contract:
// a native FTS5 virtual table when the SQLite build carries it, and a plain
// indexed column of folded searchable text otherwise. Which one is active can
// only be learned by attempting to create the native structure and catching
// the failure.
package search

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"

	"golang.org/x/text/cases"

	"github.com/stockpoint/stockpoint/internal/platform/db"
)

// Document is the searchable projection of a product. The index row lives
// and dies with the product it mirrors: callers index and deindex inside the
// same transaction as the primary write.
type Document struct {
	ProductID   int64
	Name        string
	Barcode     string
	Category    string
	Description string
}

// Strategy is the capability-negotiated index contract.
type Strategy interface {
	// Name identifies the active strategy in logs.
	Name() string
	// Index inserts or replaces the document row, inside the caller's tx.
	Index(ctx context.Context, tx *sql.Tx, doc Document) error
	// Deindex removes the document row, inside the caller's tx.
	Deindex(ctx context.Context, tx *sql.Tx, productID int64) error
	// Search returns matching product IDs in result order: native rank when
	// available, product name ascending otherwise.
	Search(ctx context.Context, runner db.Runner, query string, limit, offset int) ([]int64, error)
	// Rebuild repopulates the index from the products table in one pass.
	// Idempotent; used after schema upgrades.
	Rebuild(ctx context.Context, handle *sql.DB) error
}

var folder = cases.Fold()

// Fold normalises text for the fallback index and for substring comparisons.
func Fold(s string) string {
	return folder.String(strings.TrimSpace(s))
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike neutralises LIKE metacharacters so query text matches literally.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// Probe selects the active strategy by attempting to create the native FTS5
// structure and falling back on failure. The fallback is logged, not
// surfaced: degraded search is non-fatal. The chosen index is rebuilt from
// existing rows so it never lags the products table across upgrades.
func Probe(ctx context.Context, handle *sql.DB, logger *slog.Logger) (Strategy, error) {
	if _, err := handle.ExecContext(ctx, createFTSTable); err == nil {
		strategy := &ftsStrategy{}
		if err := strategy.Rebuild(ctx, handle); err != nil {
			return nil, err
		}
		logger.Info("search index ready", slog.String("strategy", strategy.Name()))
		return strategy, nil
	} else {
		logger.Warn("native full-text index unavailable, falling back",
			slog.String("error", err.Error()))
	}

	strategy := &fallbackStrategy{}
	if _, err := handle.ExecContext(ctx, createFallbackTable); err != nil {
		return nil, db.MapError(err)
	}
	if _, err := handle.ExecContext(ctx, createFallbackIndex); err != nil {
		return nil, db.MapError(err)
	}
	if err := strategy.Rebuild(ctx, handle); err != nil {
		return nil, err
	}
	logger.Info("search index ready", slog.String("strategy", strategy.Name()))
	return strategy, nil
}

// ScanProducts is the last-resort path: a direct scan across the primary
// table's text columns, used when no index structure is usable. Matching runs
// in Go over folded text, so its result set stays identical to the fallback
// index and the snapshot matcher; SQL lower() is ASCII-only in SQLite and
// would diverge on non-ASCII queries.
func ScanProducts(ctx context.Context, runner db.Runner, query string, limit, offset int) ([]int64, error) {
	folded := Fold(query)
	if folded == "" {
		return []int64{}, nil
	}
	rows, err := runner.QueryContext(ctx, `SELECT id, name, barcode, category, COALESCE(description, '')
FROM products ORDER BY name ASC`)
	if err != nil {
		return nil, db.MapError(err)
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var (
			id                            int64
			name, barcode, category, desc string
		)
		if err := rows.Scan(&id, &name, &barcode, &category, &desc); err != nil {
			return nil, err
		}
		if strings.Contains(Fold(name+" "+barcode+" "+category+" "+desc), folded) {
			ids = append(ids, id)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if offset >= len(ids) {
		return []int64{}, nil
	}
	ids = ids[offset:]
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func scanIDs(rows *sql.Rows) ([]int64, error) {
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
