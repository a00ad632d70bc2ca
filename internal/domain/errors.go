// Package domain defines the catalog's core types, interfaces, and errors.
package domain

import "fmt"

// NotFoundError indicates a target, location, or collection does not exist.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// ValidationError indicates structurally invalid input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ConflictError indicates a duplicate resource other than an identifier.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// IDCollisionError indicates an attempt to register or add an identifier
// that is already in use.
type IDCollisionError struct {
	ID ID
}

func (e *IDCollisionError) Error() string {
	return fmt.Sprintf("identifier %d is already in use", uint32(e.ID))
}

// UnsupportedConstraintError indicates that no serializer is registered for
// a constraint kind. It signals a wiring mistake, not bad input.
type UnsupportedConstraintError struct {
	Kind ConstraintKind
}

func (e *UnsupportedConstraintError) Error() string {
	return fmt.Sprintf("no serializer registered for constraint kind %q", string(e.Kind))
}

// StoreError wraps a failure of the backing row store.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *StoreError) Unwrap() error { return e.Err }

// ErrNotFound creates a NotFoundError with a formatted message.
func ErrNotFound(format string, args ...interface{}) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

// ErrValidation creates a ValidationError with a formatted message.
func ErrValidation(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ErrConflict creates a ConflictError with a formatted message.
func ErrConflict(format string, args ...interface{}) *ConflictError {
	return &ConflictError{Message: fmt.Sprintf(format, args...)}
}

// ErrIDCollision creates an IDCollisionError for id.
func ErrIDCollision(id ID) *IDCollisionError {
	return &IDCollisionError{ID: id}
}

// ErrStore wraps err as a StoreError for op. A nil err stays nil.
func ErrStore(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}
