// Package db owns the file-backed SQLite store: opening the single shared
// handle, the transaction helper, and schema migrations.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/mattn/go-sqlite3"

	"github.com/stockpoint/stockpoint/internal/shared"
)

var (
	openMu sync.Mutex
	opened map[string]*sql.DB
)

// Open returns the shared handle for path, creating the backing file on first
// use. Repeated or concurrent calls for the same path return the same handle,
// so two callers can never race-create two schemas.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	openMu.Lock()
	defer openMu.Unlock()

	if opened == nil {
		opened = make(map[string]*sql.DB)
	}
	if handle, ok := opened[path]; ok {
		return handle, nil
	}

	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000", path)
	handle, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("platform/db: open: %w: %v", shared.ErrStorageUnavailable, err)
	}

	// SQLite supports one writer per connection; a single connection keeps
	// every transaction on the same writer.
	handle.SetMaxOpenConns(1)

	if err := handle.PingContext(ctx); err != nil {
		_ = handle.Close()
		return nil, fmt.Errorf("platform/db: ping: %w: %v", shared.ErrStorageUnavailable, err)
	}

	opened[path] = handle
	return handle, nil
}

// Close releases the shared handle for path.
func Close(path string) error {
	openMu.Lock()
	defer openMu.Unlock()
	handle, ok := opened[path]
	if !ok {
		return nil
	}
	delete(opened, path)
	return handle.Close()
}

// MapError converts driver errors to the shared taxonomy so callers can
// branch with errors.Is instead of inspecting SQLite error codes.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return shared.ErrNotFound
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code {
		case sqlite3.ErrConstraint:
			return fmt.Errorf("%w: %v", shared.ErrConstraintViolation, err)
		case sqlite3.ErrCantOpen, sqlite3.ErrCorrupt, sqlite3.ErrNotADB, sqlite3.ErrPerm, sqlite3.ErrReadonly:
			return fmt.Errorf("%w: %v", shared.ErrStorageUnavailable, err)
		}
	}
	return err
}

// IsConstraint reports whether err is a unique or foreign-key violation.
func IsConstraint(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint
}
