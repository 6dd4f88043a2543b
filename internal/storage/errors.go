package storage

import (
	"errors"
	"fmt"
)

var (
	ErrQuotaExceeded = errors.New("storage quota exceeded")
	ErrSerialization = errors.New("value cannot be serialized")
	ErrMalformed     = errors.New("stored value is malformed")
	ErrUnavailable   = errors.New("storage unavailable")
)

// Error records the operation and key that failed along with one of the
// sentinel kinds above, so callers can branch with errors.Is.
type Error struct {
	Op   string
	Key  string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := fmt.Sprintf("%s %q: %s", e.Op, e.Key, e.Kind.Error())
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(op, key string, kind, err error) error {
	return &Error{Op: op, Key: key, Kind: kind, Err: err}
}
