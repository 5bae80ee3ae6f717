package engine

import (
	"errors"
	"fmt"
)

// ErrorClass categorises a failure for reporting and retry decisions.
type ErrorClass string

const (
	// ErrorClassNotFound indicates that a target file, manifest key or
	// release asset does not exist.
	ErrorClassNotFound ErrorClass = "not_found"

	// ErrorClassFormatMismatch indicates that a document could not be
	// parsed or an anchor expected in it is missing.
	ErrorClassFormatMismatch ErrorClass = "format_mismatch"

	// ErrorClassTransport indicates a failed network call, a non-2xx
	// response or a truncated body.
	ErrorClassTransport ErrorClass = "transport"

	// ErrorClassIntegrity indicates that a download is smaller than the
	// length the server advertised.
	ErrorClassIntegrity ErrorClass = "integrity"

	// ErrorClassUnknownKind indicates an unrecognised format tag, plugin
	// origin or archive type.
	ErrorClassUnknownKind ErrorClass = "unknown_kind"

	// ErrorClassFilesystem indicates a local read, write or rename failure.
	ErrorClassFilesystem ErrorClass = "filesystem"

	// ErrorClassInvalid indicates a manifest item that fails validation.
	ErrorClassInvalid ErrorClass = "invalid"

	// ErrorClassInternal indicates a recovered panic.
	ErrorClassInternal ErrorClass = "internal"
)

// Error is a classified error with context about the item that failed.
type Error struct {
	// Class is the error classification.
	Class ErrorClass `json:"class"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Resource names the file or plugin the error refers to, if any.
	Resource string `json:"resource,omitempty"`

	// Operation is the step being performed when the error occurred.
	Operation string `json:"operation,omitempty"`

	// Err is the underlying cause.
	Err error `json:"-"`

	// Details contains additional context-specific information.
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Class, e.Message)
	switch {
	case e.Resource != "" && e.Operation != "":
		msg += fmt.Sprintf(" (resource=%s, operation=%s)", e.Resource, e.Operation)
	case e.Resource != "":
		msg += fmt.Sprintf(" (resource=%s)", e.Resource)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error for error chain inspection.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same class.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Class == t.Class
}

func newError(class ErrorClass, message string, err error) *Error {
	return &Error{Class: class, Message: message, Err: err}
}

// NewNotFoundError creates a not_found error.
func NewNotFoundError(message string, err error) *Error {
	return newError(ErrorClassNotFound, message, err)
}

// NewFormatMismatchError creates a format_mismatch error.
func NewFormatMismatchError(message string, err error) *Error {
	return newError(ErrorClassFormatMismatch, message, err)
}

// NewTransportError creates a transport error.
func NewTransportError(message string, err error) *Error {
	return newError(ErrorClassTransport, message, err)
}

// NewIntegrityError creates an integrity error.
func NewIntegrityError(message string, err error) *Error {
	return newError(ErrorClassIntegrity, message, err)
}

// NewUnknownKindError creates an unknown_kind error.
func NewUnknownKindError(message string, err error) *Error {
	return newError(ErrorClassUnknownKind, message, err)
}

// NewFilesystemError creates a filesystem error.
func NewFilesystemError(message string, err error) *Error {
	return newError(ErrorClassFilesystem, message, err)
}

// NewInvalidError creates an invalid error.
func NewInvalidError(message string, err error) *Error {
	return newError(ErrorClassInvalid, message, err)
}

// NewInternalError creates an internal error.
func NewInternalError(message string, err error) *Error {
	return newError(ErrorClassInternal, message, err)
}

// WithResource adds resource context to an error.
func (e *Error) WithResource(resource string) *Error {
	e.Resource = resource
	return e
}

// WithOperation adds operation context to an error.
func (e *Error) WithOperation(operation string) *Error {
	e.Operation = operation
	return e
}

// WithDetail adds a detail field to the error context.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// ClassOf returns the class of the first *Error in err's chain, or an
// empty class if there is none.
func ClassOf(err error) ErrorClass {
	var e *Error
	if errors.As(err, &e) {
		return e.Class
	}
	return ""
}

// IsNotFound returns true if the error is classified as not_found.
func IsNotFound(err error) bool {
	return ClassOf(err) == ErrorClassNotFound
}

// IsFormatMismatch returns true if the error is classified as format_mismatch.
func IsFormatMismatch(err error) bool {
	return ClassOf(err) == ErrorClassFormatMismatch
}

// IsTransport returns true if the error is classified as transport.
func IsTransport(err error) bool {
	return ClassOf(err) == ErrorClassTransport
}

// IsIntegrity returns true if the error is classified as integrity.
func IsIntegrity(err error) bool {
	return ClassOf(err) == ErrorClassIntegrity
}

// IsUnknownKind returns true if the error is classified as unknown_kind.
func IsUnknownKind(err error) bool {
	return ClassOf(err) == ErrorClassUnknownKind
}

// IsRetryable returns true if running again later may succeed without a
// manifest change. Transport and integrity failures are retryable.
func IsRetryable(err error) bool {
	switch ClassOf(err) {
	case ErrorClassTransport, ErrorClassIntegrity:
		return true
	}
	return false
}
