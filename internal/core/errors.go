package core

import (
	"errors"
	"fmt"
)

// Error classes every ledger operation maps to. Match with errors.Is.
var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("not found")
	ErrStorage    = errors.New("storage failure")
)

var (
	ErrEmptyName           = &ValidationError{Field: "name", Reason: "is required"}
	ErrNameTooLong         = &ValidationError{Field: "name", Reason: fmt.Sprintf("must be at most %d characters", MaxNameLength)}
	ErrInvalidCategory     = &ValidationError{Field: "category", Reason: "is not a known category"}
	ErrInvalidQuantity     = &ValidationError{Field: "quantity", Reason: "must be greater than zero"}
	ErrInvalidCost         = &ValidationError{Field: "cost_per_unit", Reason: "must not be negative"}
	ErrInvalidSellingPrice = &ValidationError{Field: "selling_price_per_unit", Reason: "must not be negative"}
	ErrInvalidPrice        = &ValidationError{Field: "price_per_unit", Reason: "must be greater than zero"}
)

// ValidationError is a client fixable input problem. No write happens when
// an operation returns one.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Field + " " + e.Reason
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// StorageError wraps an unexpected persistence failure.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}

// Storage wraps err as a StorageError unless it is nil or already classified.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrValidation) || errors.Is(err, ErrStorage) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return &StorageError{Op: op, Err: err}
}
