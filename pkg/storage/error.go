package storage

import "errors"

// NotFoundError is returned when no entry is archived under CallID.
type NotFoundError struct {
	CallID string
}

func (e NotFoundError) Error() string {
	if e.CallID == "" {
		return "call not found"
	}
	return "call not found: " + e.CallID
}

// IsNotFound reports whether err is, or wraps, a NotFoundError.
func IsNotFound(err error) bool {
	var nf NotFoundError
	return errors.As(err, &nf)
}

// ErrNilEntry is returned by Put for a nil entry or one without a call id.
var ErrNilEntry = errors.New("cannot store entry without call id")
