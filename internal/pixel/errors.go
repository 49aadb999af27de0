package pixel

import (
	"errors"
	"fmt"
)

// Sentinel errors matched with errors.Is.
var (
	ErrDecode   = errors.New("decode failed")
	ErrOversize = errors.New("input exceeds size limit")
)

// DecodeError reports a corrupt or unsupported payload.
type DecodeError struct {
	// Format is the sniffed or declared format, "" when unknown.
	Format string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Format != "" {
		return fmt.Sprintf("decode %s: %v", e.Format, e.Err)
	}
	return fmt.Sprintf("decode: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Is matches ErrDecode.
func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

// OversizeError reports an input rejected before decoding.
type OversizeError struct {
	Size  int64
	Limit int64
}

func (e *OversizeError) Error() string {
	return fmt.Sprintf("input of %d bytes exceeds limit of %d bytes", e.Size, e.Limit)
}

// Is matches ErrOversize.
func (e *OversizeError) Is(target error) bool { return target == ErrOversize }
