package domain

import (
	"errors"
	"fmt"
)

// ErrorKind partitions domain failures into the categories callers map to
// user-facing responses.
type ErrorKind string

const (
	// KindNotFound indicates a referenced entity does not exist.
	KindNotFound ErrorKind = "not_found"
	// KindForbidden indicates the actor lacks access to the owning project.
	KindForbidden ErrorKind = "forbidden"
	// KindValidation indicates the request violates a domain rule.
	KindValidation ErrorKind = "validation"
	// KindFieldValidation indicates a validation failure attributable to a
	// single input field, surfaced with the field name for UI attachment.
	KindFieldValidation ErrorKind = "field_validation"
)

// Error is the typed failure every core operation raises for expected
// precondition violations. Infrastructure failures are never wrapped in it.
type Error struct {
	Kind     ErrorKind
	Resource string
	Field    string
	Message  string
	cause    error
}

func (e *Error) Error() string {
	switch {
	case e.Resource != "":
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Resource, e.Message)
	case e.Field != "":
		return fmt.Sprintf("%s: field %s: %s", e.Kind, e.Field, e.Message)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
}

func (e *Error) Unwrap() error {
	return e.cause
}

// NotFound reports an absent entity by resource name.
func NotFound(resource string) *Error {
	return &Error{Kind: KindNotFound, Resource: resource, Message: "does not exist"}
}

// Forbidden reports a failed project-access check.
func Forbidden(message string) *Error {
	return &Error{Kind: KindForbidden, Message: message}
}

// Validation reports a domain-rule violation not tied to a single field.
func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

// FieldValidation reports a violation attributable to one input field.
func FieldValidation(field, message string) *Error {
	return &Error{Kind: KindFieldValidation, Field: field, Message: message}
}

// FieldValidationCause is FieldValidation with the underlying storage error
// retained, used when a uniqueness race is translated after the fact.
func FieldValidationCause(field, message string, cause error) *Error {
	return &Error{Kind: KindFieldValidation, Field: field, Message: message, cause: cause}
}

// AsError unwraps err into a domain *Error when one is present in its chain.
func AsError(err error) (*Error, bool) {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr, true
	}
	return nil, false
}

// IsKind reports whether err carries a domain Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	domainErr, ok := AsError(err)
	return ok && domainErr.Kind == kind
}
