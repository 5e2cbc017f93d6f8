// Package fault defines the error taxonomy shared by every stow layer.
//
// All failures delivered to a completion callback are either a *Error or
// wrap one, so callers can branch on Code with errors.As or the IsXxx helpers.
package fault

import (
	"errors"
	"fmt"
)

// Code categorizes a failure.
type Code string

const (
	// CodeMissingField indicates reconstruction asked for a field absent from a record.
	CodeMissingField Code = "MISSING_FIELD"

	// CodeUnknownFilterField indicates a query or index referenced a field outside the type's shape.
	CodeUnknownFilterField Code = "UNKNOWN_FILTER_FIELD"

	// CodeSchemaConflict indicates columns could not be reconciled with the declared shape.
	CodeSchemaConflict Code = "SCHEMA_CONFLICT"

	// CodeStorageEngine indicates the storage engine rejected a statement.
	CodeStorageEngine Code = "STORAGE_ENGINE_FAILURE"

	// CodeInvalidIdentifier indicates an object was written with a null identifier.
	CodeInvalidIdentifier Code = "INVALID_IDENTIFIER"

	// CodeUnregisteredType indicates an entity has no registered factory.
	CodeUnregisteredType Code = "UNREGISTERED_TYPE"

	// CodeClosed indicates an operation was submitted after the store closed.
	CodeClosed Code = "STORE_CLOSED"

	// CodeUnknown is any uncategorized failure from a lower layer.
	CodeUnknown Code = "UNKNOWN"
)

// Error is the typed failure carried through every operation.
type Error struct {
	Code    Code
	Message string

	// Entity is the persistable type involved, when known.
	Entity string

	// Field is the offending field or column, when known.
	Field string

	// Err is the underlying cause (optional).
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	switch {
	case e.Entity != "" && e.Field != "":
		msg = fmt.Sprintf("%s (entity=%s, field=%s)", msg, e.Entity, e.Field)
	case e.Entity != "":
		msg = fmt.Sprintf("%s (entity=%s)", msg, e.Entity)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// MissingField reports a field absent from a record during reconstruction.
func MissingField(entity, field string) *Error {
	return &Error{
		Code:    CodeMissingField,
		Message: "field not present in record",
		Entity:  entity,
		Field:   field,
	}
}

// UnknownFilterField reports a query or index field not declared by the type.
func UnknownFilterField(entity, field string) *Error {
	return &Error{
		Code:    CodeUnknownFilterField,
		Message: "field is not part of the type's shape",
		Entity:  entity,
		Field:   field,
	}
}

// SchemaConflict reports columns that cannot be reconciled.
func SchemaConflict(entity, field, message string) *Error {
	return &Error{
		Code:    CodeSchemaConflict,
		Message: message,
		Entity:  entity,
		Field:   field,
	}
}

// StorageEngine wraps an error reported by the storage engine.
func StorageEngine(message string, err error) *Error {
	return &Error{
		Code:    CodeStorageEngine,
		Message: message,
		Err:     err,
	}
}

// InvalidIdentifier reports a null or malformed identifier on write.
func InvalidIdentifier(entity, field, message string) *Error {
	return &Error{
		Code:    CodeInvalidIdentifier,
		Message: message,
		Entity:  entity,
		Field:   field,
	}
}

// UnregisteredType reports an entity without a factory.
func UnregisteredType(entity string) *Error {
	return &Error{
		Code:    CodeUnregisteredType,
		Message: "no factory registered",
		Entity:  entity,
	}
}

// Closed reports a submission against a closed store.
func Closed() *Error {
	return &Error{
		Code:    CodeClosed,
		Message: "store is closed",
	}
}

// Wrap adds context to err. A taxonomy error keeps its code; anything else
// becomes CodeUnknown. Wrap returns nil for a nil err.
func Wrap(err error, context string) error {
	if err == nil {
		return nil
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fmt.Errorf("%s: %w", context, err)
	}
	return &Error{
		Code:    CodeUnknown,
		Message: context,
		Err:     err,
	}
}

// CodeOf returns the taxonomy code of err, or CodeUnknown for foreign errors.
// Uses errors.As to handle wrapped errors.
func CodeOf(err error) Code {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return CodeUnknown
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}

// IsMissingField returns true if err is a missing field error.
func IsMissingField(err error) bool { return Is(err, CodeMissingField) }

// IsUnknownFilterField returns true if err is an unknown filter field error.
func IsUnknownFilterField(err error) bool { return Is(err, CodeUnknownFilterField) }

// IsSchemaConflict returns true if err is a schema conflict.
func IsSchemaConflict(err error) bool { return Is(err, CodeSchemaConflict) }

// IsStorageEngine returns true if err came from the storage engine.
func IsStorageEngine(err error) bool { return Is(err, CodeStorageEngine) }
