package store

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrValidation        = errors.New("validation failed")
	ErrConflict          = errors.New("conflict")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrAlreadyCheckedIn  = errors.New("member is already checked in")
	ErrNotCheckedIn      = errors.New("member is not checked in")
	ErrForbidden         = errors.New("forbidden")
)

// ValidationError reports caller input problems. Fields maps a request
// field to a human readable reason.
type ValidationError struct {
	Message string
	Fields  map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return fmt.Sprintf("%s (%s)", e.Message, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func Invalid(message string) error {
	return &ValidationError{Message: message}
}

func InvalidField(field string, reason string) error {
	return &ValidationError{Message: "invalid request", Fields: map[string]string{field: reason}}
}

type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s not found", e.Entity)
	}
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

func NotFound(entity string, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

func (e *ConflictError) Unwrap() error { return ErrConflict }

func Conflict(format string, args ...any) error {
	return &ConflictError{Message: fmt.Sprintf(format, args...)}
}

type InsufficientStockError struct {
	SKU       string
	Required  int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: required %d, available %d", e.SKU, e.Required, e.Available)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// AppError wraps unexpected failures so internal details stay out of
// client-facing messages.
type AppError struct {
	Op  string
	Err error
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *AppError) Unwrap() error { return e.Err }

// IsKnown reports whether err belongs to the caller-facing taxonomy.
func IsKnown(err error) bool {
	for _, target := range []error{
		ErrNotFound,
		ErrValidation,
		ErrConflict,
		ErrInsufficientStock,
		ErrAlreadyCheckedIn,
		ErrNotCheckedIn,
		ErrForbidden,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	var appErr *AppError
	return errors.As(err, &appErr)
}
