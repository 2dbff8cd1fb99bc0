package shared

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConstraintViolation indicates a unique or foreign-key constraint failed.
	ErrConstraintViolation = errors.New("constraint violation")
	// ErrInvalidState indicates the record is not in a state that permits the operation.
	ErrInvalidState = errors.New("invalid state")
	// ErrAlreadyVoided indicates an attempt to void a sale twice. It is a
	// specialisation of ErrInvalidState.
	ErrAlreadyVoided = fmt.Errorf("sale already voided: %w", ErrInvalidState)
	// ErrInsufficientStock indicates a sale would drive stock below zero.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrStorageUnavailable indicates the backing file could not be opened or read.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrSearchDegraded indicates the native search index is unavailable and a
	// fallback strategy is active. Non-fatal; logged, never surfaced to callers.
	ErrSearchDegraded = errors.New("search degraded")
)
