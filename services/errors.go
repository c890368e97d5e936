package services

import (
	"fmt"
	"strings"
)

// ValidationError is a rejection of the request itself. AvailableSizes is
// set when the requested size is not tracked for the product.
type ValidationError struct {
	Fields         map[string]string
	AvailableSizes []string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, field+": "+msg)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func newValidationError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

type NotFoundError struct {
	Resource string
	ID       any
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %v not found", e.Resource, e.ID)
}

type InsufficientStockError struct {
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("Only %d available", e.Available)
}

// TransitionError rejects a status change the order lifecycle does not allow.
type TransitionError struct {
	From string
	To   string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot change order status from %s to %s", e.From, e.To)
}

// ConflictError means the stock transaction kept losing lock races after
// all retries.
type ConflictError struct {
	Err error
}

func (e *ConflictError) Error() string {
	return "order could not be placed due to concurrent updates, please retry"
}

func (e *ConflictError) Unwrap() error { return e.Err }

// InternalError hides the storage failure from callers. The cause is kept
// for logging only.
type InternalError struct {
	Err error
}

func (e *InternalError) Error() string {
	return "internal error"
}

func (e *InternalError) Unwrap() error { return e.Err }
