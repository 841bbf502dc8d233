// Package apperr defines the error taxonomy shared by every layer.
// Each error carries a stable Kind so transports can map it without
// inspecting messages.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an application error
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindUnauthenticated
	KindForbidden
	KindNotFound
	KindStorage
)

var kindNames = map[Kind]string{
	KindUnknown:         "unknown",
	KindValidation:      "validation_error",
	KindUnauthenticated: "unauthenticated",
	KindForbidden:       "forbidden",
	KindNotFound:        "not_found",
	KindStorage:         "storage_error",
}

// String returns the stable wire name of the kind
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return kindNames[KindUnknown]
}

// Error is an application error with a kind and a human readable message
type Error struct {
	Kind    Kind
	Message string

	// RequiredRoles lists the roles that would have been allowed (Forbidden only)
	RequiredRoles []string

	// Fields lists offending input fields (Validation only)
	Fields []string

	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Validation reports input the caller must correct and resubmit
func Validation(msg string, fields ...string) *Error {
	return &Error{Kind: KindValidation, Message: msg, Fields: fields}
}

// Unauthenticated reports a missing or invalid principal
func Unauthenticated(msg string) *Error {
	return &Error{Kind: KindUnauthenticated, Message: msg}
}

// Forbidden reports a principal whose role is insufficient
func Forbidden(msg string, requiredRoles []string) *Error {
	return &Error{Kind: KindForbidden, Message: msg, RequiredRoles: requiredRoles}
}

// NotFound reports an id that does not resolve to a record
func NotFound(resource string, id interface{}) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s %v not found", resource, id)}
}

// Storage wraps a collaborator failure
func Storage(op string, err error) *Error {
	return &Error{Kind: KindStorage, Message: op, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// MissingFields builds a validation error naming every empty required field
func MissingFields(fields []string) *Error {
	return Validation(
		fmt.Sprintf("missing required fields: %s", strings.Join(fields, ", ")),
		fields...,
	)
}
