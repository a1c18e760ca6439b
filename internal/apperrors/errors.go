// Package apperrors defines the kind-tagged failures returned by domain services.
//
// A service never encodes transport status. It returns an *Error whose Kind the
// HTTP boundary maps to a status family; anything that is not an *Error is
// treated as KindUnexpected.
package apperrors

import "errors"

// Kind classifies a failure.
type Kind string

const (
	KindValidationFailed     Kind = "validation_failed"
	KindUnauthenticated      Kind = "unauthenticated"
	KindForbidden            Kind = "forbidden"
	KindNotFound             Kind = "not_found"
	KindConflict             Kind = "conflict"
	KindPayloadTooLarge      Kind = "payload_too_large"
	KindUnsupportedMediaType Kind = "unsupported_media_type"
	KindRateLimited          Kind = "rate_limited"
	KindUnexpected           Kind = "unexpected"
)

// Error is a domain failure with a machine-readable code.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target carries the same code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

func New(kind Kind, code, message string) *Error {
	return &Error{
		Kind:    kind,
		Code:    code,
		Message: message,
	}
}

// Wrap returns a copy of e that records cause.
func Wrap(e *Error, cause error) *Error {
	if e == nil {
		return nil
	}
	return &Error{
		Kind:    e.Kind,
		Code:    e.Code,
		Message: e.Message,
		Cause:   cause,
	}
}

// As returns the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) && appErr != nil {
		return appErr, true
	}
	return nil, false
}

// KindOf returns the kind of err, or KindUnexpected for foreign errors.
func KindOf(err error) Kind {
	if appErr, ok := As(err); ok {
		return appErr.Kind
	}
	return KindUnexpected
}

// Shared failures used across domains.
var (
	ErrNotMember       = New(KindForbidden, "not_member", "caller is not a member of the organisation")
	ErrOrgNotFound     = New(KindNotFound, "org_not_found", "organisation not found")
	ErrTargetNotFound  = New(KindNotFound, "target_not_found", "target user not found")
	ErrRoleMismatch    = New(KindForbidden, "role_mismatch", "target user role does not match")
	ErrAlreadyMember   = New(KindConflict, "already_member", "user is already a member of the organisation")
	ErrManagersOnly    = New(KindForbidden, "managers_only", "managers only")
	ErrUnauthenticated = New(KindUnauthenticated, "unauthenticated", "authentication required")
	ErrRateLimited     = New(KindRateLimited, "rate_limited", "too many requests")
)
