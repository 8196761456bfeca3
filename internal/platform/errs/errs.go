// Package errs defines the typed error taxonomy shared by the domain
// services: validation failures, missing resources, optimistic-concurrency
// conflicts, and wrapped storage faults. Handlers map these to HTTP statuses;
// services never return raw driver errors to callers.
package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// CodeVersionConflict is the conflict code reported when an optimistic
// concurrency check detects a stale write.
const CodeVersionConflict = "VERSION_CONFLICT"

// ValidationError reports malformed input caught before any write. Field
// names the offending field when known.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Msg)
	}
	return "validation failed: " + e.Msg
}

// Validation creates a ValidationError for the given field.
func Validation(field, msg string) error {
	return &ValidationError{Field: field, Msg: msg}
}

// Validationf creates a ValidationError with a formatted message and no field.
func Validationf(format string, args ...interface{}) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// NotFoundError reports a referenced entry, version, or patient that does
// not exist.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// NotFound creates a NotFoundError for the given resource and identifier.
func NotFound(resource, id string) error {
	return &NotFoundError{Resource: resource, ID: id}
}

// ConflictError reports an optimistic-concurrency conflict: another editor
// committed a change after the client last read the resource.
type ConflictError struct {
	Code string
	Msg  string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

// VersionConflict creates a ConflictError with code VERSION_CONFLICT.
func VersionConflict(msg string) error {
	return &ConflictError{Code: CodeVersionConflict, Msg: msg}
}

// DatabaseError wraps an underlying storage fault with the operation that
// failed. The original cause stays reachable through Unwrap for diagnostics.
type DatabaseError struct {
	Op  string
	Err error
}

func (e *DatabaseError) Error() string {
	return fmt.Sprintf("database error in %s: %v", e.Op, e.Err)
}

func (e *DatabaseError) Unwrap() error { return e.Err }

// Database wraps err as a DatabaseError for the named operation. Returns nil
// if err is nil so repos can wrap unconditionally.
func Database(op string, err error) error {
	if err == nil {
		return nil
	}
	return &DatabaseError{Op: op, Err: err}
}

// HTTPStatus maps the taxonomy to an HTTP status code. Unknown errors map
// to 500 without leaking internal detail decisions to callers.
func HTTPStatus(err error) int {
	switch {
	case IsValidation(err):
		return http.StatusBadRequest
	case IsNotFound(err):
		return http.StatusNotFound
	case IsConflict(err):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsConflict reports whether err is (or wraps) a ConflictError.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

// IsDatabase reports whether err is (or wraps) a DatabaseError.
func IsDatabase(err error) bool {
	var de *DatabaseError
	return errors.As(err, &de)
}
