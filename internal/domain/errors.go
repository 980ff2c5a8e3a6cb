package domain

import (
	"errors"
	"fmt"
)

// ErrKind is used to map domain errors to HTTP status codes consistently.
type ErrKind string

const (
	KindValidation  ErrKind = "validation"   // 400
	KindAuth        ErrKind = "auth"         // 401
	KindForbidden   ErrKind = "forbidden"    // 403
	KindNotFound    ErrKind = "not_found"    // 404
	KindRateLimited ErrKind = "rate_limited" // 429
	KindService     ErrKind = "service"      // 500, message is safe, cause is logged
	KindInternal    ErrKind = "internal"     // 500, message is generic
)

// Error is a structured domain error.
// - Kind: high-level category for HTTP mapping
// - Code: stable machine code (do not change casually)
// - Message: safe summary for clients (avoid leaking sensitive details)
// - Meta: optional details (field, reason, etc.)
// - Cause: wrapped internal error for logging/diagnostics
type Error struct {
	Kind    ErrKind
	Code    string
	Message string
	Meta    map[string]string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Kind, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s (%s): %s", e.Kind, e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func New(kind ErrKind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

func Wrap(kind ErrKind, code, msg string, cause error) *Error {
	return &Error{Kind: kind, Code: code, Message: msg, Cause: cause}
}

func WithMeta(err *Error, meta map[string]string) *Error {
	err.Meta = meta
	return err
}

func Is(err error, code string) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// KindOf returns the kind of a domain error, or "" for anything else.
func KindOf(err error) ErrKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// ----------------------
// Validation errors (400)
// ----------------------

func ErrInvalidJSON(cause error) *Error {
	return Wrap(KindValidation, "invalid_json", "invalid JSON body", cause)
}

func ErrMissingField(field string) *Error {
	return WithMeta(New(KindValidation, "missing_field", "missing required field"), map[string]string{
		"field": field,
	})
}

func ErrInvalidField(field, reason string) *Error {
	return WithMeta(New(KindValidation, "invalid_field", "invalid field"), map[string]string{
		"field":  field,
		"reason": reason,
	})
}

func ErrPasswordMismatch() *Error {
	return New(KindValidation, "password_mismatch", "Password not matched")
}

func ErrEmailTaken() *Error {
	return New(KindValidation, "email_taken", "Email already registered, please use another one")
}

func ErrMissingCredentials() *Error {
	return New(KindValidation, "missing_credentials", "Please provide email and password")
}

func ErrMissingEmail() *Error {
	return New(KindValidation, "missing_email", "Please provide an email address")
}

func ErrPasswordNotAllowed() *Error {
	return New(KindValidation, "password_not_allowed", "This route is not for password updates. Please use /update-password")
}

func ErrNothingToUpdate() *Error {
	return New(KindValidation, "nothing_to_update", "Please provide a name or email to update")
}

// Used for unknown, expired, and already-consumed reset tokens alike.
func ErrInvalidResetToken() *Error {
	return New(KindValidation, "invalid_reset_token", "No user found or Invalid token, please try again.")
}

func ErrInvalidRole(role string) *Error {
	return WithMeta(
		New(KindValidation, "invalid_role", "invalid role"),
		map[string]string{"role": role},
	)
}

// ----------------------
// Auth errors (401)
// ----------------------

// IMPORTANT: login returns this for unknown emails too, to avoid user enumeration.
func ErrIncorrectPassword() *Error {
	return New(KindAuth, "incorrect_password", "Incorrect password")
}

func ErrCurrentPasswordWrong() *Error {
	return New(KindAuth, "current_password_wrong", "Your current password is wrong")
}

func ErrTokenMissing() *Error {
	return New(KindAuth, "token_missing", "Please login to get access")
}

// Malformed and badly signed tokens are not distinguished.
func ErrTokenInvalid() *Error {
	return New(KindAuth, "token_invalid", "Invalid token please login in again.")
}

func ErrTokenExpired() *Error {
	return New(KindAuth, "token_expired", "Your session has expired, please log in again.")
}

func ErrAccountGone() *Error {
	return New(KindAuth, "account_gone", "The user belonging to this token does no longer exist")
}

func ErrPasswordChanged() *Error {
	return New(KindAuth, "password_changed", "Password recently changed, please log in again.")
}

// ----------------------
// Forbidden (403)
// ----------------------

func ErrForbidden() *Error {
	return New(KindForbidden, "forbidden", "you don't have permission to perform this action")
}

// An admin cannot perform this action on themselves.
func ErrCannotAffectSelf() *Error {
	return New(KindForbidden, "cannot_affect_self", "cannot perform this action on self")
}

// ----------------------
// Not Found (404)
// ----------------------

func ErrUserNotFound() *Error {
	return New(KindNotFound, "user_not_found", "No user found with that ID")
}

func ErrNoUserWithEmail() *Error {
	return New(KindNotFound, "user_not_found", "No user found with the given email address")
}

func ErrRouteNotFound(path string) *Error {
	return WithMeta(New(KindNotFound, "route_not_found", fmt.Sprintf("Can't find %s on this server!", path)), map[string]string{
		"path": path,
	})
}

// ----------------------
// Rate limit (429)
// ----------------------

func ErrRateLimited(scope string) *Error {
	return WithMeta(New(KindRateLimited, "rate_limited", "Too many requests, please try again later"), map[string]string{
		"scope": scope,
	})
}

// Returned when the hashing pool queue is full.
func ErrServerBusy() *Error {
	return New(KindRateLimited, "server_busy", "Too many requests, please try again later")
}

// ----------------------
// Service (500, safe message)
// ----------------------

func ErrDeliveryFailed(cause error) *Error {
	return Wrap(KindService, "delivery_failed", "There was a problem sending the email, please try again later", cause)
}

func ErrStoreUnavailable(cause error) *Error {
	return Wrap(KindService, "store_unavailable", "service temporarily unavailable", cause)
}

// ----------------------
// Internal (500, generic)
// ----------------------

func ErrHashFailed(cause error) *Error {
	return Wrap(KindInternal, "hash_failed", "password hashing failed", cause)
}

func ErrTokenSignFailed(cause error) *Error {
	return Wrap(KindInternal, "token_sign_failed", "token signing failed", cause)
}

func ErrRandomFailed(cause error) *Error {
	return Wrap(KindInternal, "random_failed", "random generation failed", cause)
}

func ErrInternal(cause error) *Error {
	return Wrap(KindInternal, "internal_error", "Something went very wrong!", cause)
}
