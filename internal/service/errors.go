package service

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// Common service errors
var (
	// ErrNotFound is returned when a resource is not found
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")

	// ErrConflict is returned when a guarded write lost to a concurrent writer
	ErrConflict = errors.New("resource conflict")

	// ErrPermissionDenied is returned when the caller may not touch the record
	ErrPermissionDenied = errors.New("permission denied")

	// ErrNotBillable is returned when a contract's status does not accrue invoices
	ErrNotBillable = errors.New("contract is not billable")
)

// notFound maps gorm's missing-row error onto ErrNotFound
func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("failed to load %s: %w", what, err)
}
