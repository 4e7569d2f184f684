package apperr

import (
	"errors"
	"fmt"
)

const (
	CodeValidation             = "VALIDATION_ERROR"
	CodeNotFound               = "NOT_FOUND"
	CodeRemoteUnavailable      = "REMOTE_UNAVAILABLE"
	CodePermissionDenied       = "PERMISSION_DENIED"
	CodeUnauthenticated        = "UNAUTHENTICATED"
	CodeInvalidCredentials     = "INVALID_CREDENTIALS"
	CodeAccountExists          = "ACCOUNT_EXISTS"
	CodeCredentialAlreadyInUse = "CREDENTIAL_ALREADY_IN_USE"
	CodeRequiresRecentLogin    = "REQUIRES_RECENT_LOGIN"
	CodeLinkFailed             = "LINK_FAILED"
	CodeFetchFailed            = "FETCH_FAILED"
	CodeSuggestionFailed       = "SUGGESTION_FAILED"
)

// Error is the user-facing failure every component returns.
type Error struct {
	Code    string
	Message string
	Details map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Err.Error())
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

type Detail struct {
	Key     string
	Payload any
}

func ToDetail(key string, payload any) Detail {
	return Detail{Key: key, Payload: payload}
}

func New(code, message string, details ...Detail) *Error {
	e := &Error{
		Code:    code,
		Message: message,
		Details: make(map[string]any),
	}
	for _, d := range details {
		e.Details[d.Key] = d.Payload
	}
	return e
}

// Wrap attaches cause to a new Error with the given code.
func Wrap(code, message string, cause error, details ...Detail) *Error {
	e := New(code, message, details...)
	e.Err = cause
	return e
}

// As returns the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Is reports whether err carries the given code.
func Is(err error, code string) bool {
	e, ok := As(err)
	return ok && e.Code == code
}

func NewValidation(field, reason string) *Error {
	return New(CodeValidation,
		fmt.Sprintf("invalid value for %q: %s", field, reason),
		ToDetail("field", field),
		ToDetail("reason", reason),
	)
}

func NewNotFound(resource, id string) *Error {
	return New(CodeNotFound,
		fmt.Sprintf("%s %s not found", resource, id),
		ToDetail("resource", resource),
		ToDetail("id", id),
	)
}

func NewFetchFailed(cause error) *Error {
	return Wrap(CodeFetchFailed,
		"Could not load Google Fit data. Try reconnecting Google Fit.",
		cause,
		ToDetail("hint", "reconnect"),
	)
}
