package notify

import "errors"

// TemporaryError marks a failure worth retrying (network, 4xx SMTP replies).
type TemporaryError struct{ msg string }

func (e TemporaryError) Error() string   { return e.msg }
func (e TemporaryError) Temporary() bool { return true }

// PermanentError marks a failure that will not go away on retry
// (bad address, rejected credentials).
type PermanentError struct{ msg string }

func (e PermanentError) Error() string   { return e.msg }
func (e PermanentError) Temporary() bool { return false }

// Temporary returns a TemporaryError carrying msg.
func Temporary(msg string) error { return TemporaryError{msg: msg} }

// Permanent returns a PermanentError carrying msg.
func Permanent(msg string) error { return PermanentError{msg: msg} }

// IsTemporary reports whether err, or anything it wraps, says it is temporary.
func IsTemporary(err error) bool {
	var t interface{ Temporary() bool }
	if errors.As(err, &t) {
		return t.Temporary()
	}
	return false
}
