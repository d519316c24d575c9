package protocol

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyFrame       = errors.New("empty frame")
	ErrUnknownTag       = errors.New("unknown message tag")
	ErrArity            = errors.New("wrong number of fields")
	ErrNumber           = errors.New("malformed integer")
	ErrRange            = errors.New("value out of range")
	ErrUnknownShortCode = errors.New("unknown short code")
)

// DecodeError reports a frame that could not be decoded. Err wraps one of
// the sentinel errors above.
type DecodeError struct {
	Frame string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %q: %v", e.Frame, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
