package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// migration is a single forward-only schema step. Statements are additive
// (new tables, new columns with defaults, new indexes); never destructive.
type migration struct {
	version    int
	statements []string
}

// migrations is the full schema history. SQLite cannot roll back every DDL
// statement, so steps are applied best-effort: a failed statement is logged
// and the remaining statements still run (known risk, documented).
var migrations = []migration{
	{
		version: 1,
		statements: []string{
			`CREATE TABLE IF NOT EXISTS products (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				name TEXT NOT NULL,
				barcode TEXT NOT NULL UNIQUE,
				price NUMERIC NOT NULL CHECK (price >= 0),
				category TEXT NOT NULL DEFAULT '',
				description TEXT,
				stock_quantity INTEGER NOT NULL DEFAULT 0,
				created_at TIMESTAMP NOT NULL,
				updated_at TIMESTAMP NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS sales (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				receipt_number TEXT NOT NULL DEFAULT '',
				subtotal NUMERIC NOT NULL,
				tax NUMERIC NOT NULL,
				total NUMERIC NOT NULL,
				timestamp TIMESTAMP NOT NULL,
				customer_name TEXT,
				payment_method TEXT NOT NULL DEFAULT 'cash',
				is_voided INTEGER NOT NULL DEFAULT 0
			)`,
			`CREATE TABLE IF NOT EXISTS sale_items (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				sale_id INTEGER NOT NULL REFERENCES sales(id),
				product_id INTEGER NOT NULL,
				product_name TEXT NOT NULL,
				product_barcode TEXT NOT NULL,
				unit_price NUMERIC NOT NULL,
				quantity INTEGER NOT NULL CHECK (quantity > 0),
				total_price NUMERIC NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS inventory_counts (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				product_id INTEGER NOT NULL,
				product_name TEXT NOT NULL,
				product_barcode TEXT NOT NULL,
				system_count INTEGER NOT NULL,
				physical_count INTEGER NOT NULL,
				variance INTEGER NOT NULL,
				count_date TIMESTAMP NOT NULL,
				notes TEXT,
				counted_by TEXT NOT NULL DEFAULT ''
			)`,
			`CREATE INDEX IF NOT EXISTS idx_products_barcode ON products(barcode)`,
			`CREATE INDEX IF NOT EXISTS idx_sale_items_sale ON sale_items(sale_id)`,
			`CREATE INDEX IF NOT EXISTS idx_sales_timestamp ON sales(timestamp)`,
		},
	},
	{
		version: 2,
		statements: []string{
			`ALTER TABLE products ADD COLUMN min_stock_level INTEGER NOT NULL DEFAULT 0`,
			`CREATE INDEX IF NOT EXISTS idx_products_category ON products(category)`,
			`CREATE INDEX IF NOT EXISTS idx_inventory_counts_date ON inventory_counts(count_date)`,
		},
	},
	{
		version: 3,
		statements: []string{
			`ALTER TABLE sales ADD COLUMN voided_at TIMESTAMP`,
			`ALTER TABLE sales ADD COLUMN void_reason TEXT`,
			`CREATE INDEX IF NOT EXISTS idx_sales_voided ON sales(is_voided)`,
		},
	},
}

// SchemaVersion is the version the current binary migrates to.
const SchemaVersion = 3

// Migrate applies every pending migration step exactly once, in order.
// Idempotent: already-applied versions are skipped via the schema_migrations
// ledger. The search index is bootstrapped separately (capability must be
// probed, not assumed), after Migrate returns.
func Migrate(ctx context.Context, handle *sql.DB, logger *slog.Logger) error {
	if _, err := handle.ExecContext(ctx,
		`CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER PRIMARY KEY, applied_at TIMESTAMP NOT NULL)`); err != nil {
		return fmt.Errorf("platform/db: create migrations ledger: %w", MapError(err))
	}

	current, err := currentVersion(ctx, handle)
	if err != nil {
		return err
	}

	for _, step := range migrations {
		if step.version <= current {
			continue
		}
		for _, stmt := range step.statements {
			if _, err := handle.ExecContext(ctx, stmt); err != nil {
				// Best-effort DDL: log and continue with the rest of the step.
				logger.Warn("migration statement failed",
					slog.Int("version", step.version),
					slog.String("error", err.Error()))
			}
		}
		if _, err := handle.ExecContext(ctx,
			`INSERT INTO schema_migrations (version, applied_at) VALUES (?, CURRENT_TIMESTAMP)`, step.version); err != nil {
			return fmt.Errorf("platform/db: record migration %d: %w", step.version, MapError(err))
		}
		logger.Info("applied migration", slog.Int("version", step.version))
	}

	return nil
}

func currentVersion(ctx context.Context, handle *sql.DB) (int, error) {
	var version sql.NullInt64
	err := handle.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_migrations`).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("platform/db: read schema version: %w", MapError(err))
	}
	return int(version.Int64), nil
}
