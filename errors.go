package proxyhdr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Error kinds, matched with errors.Is. Validation, encoding, decoding and
// transport errors match at least one; a decoded header with a bad address
// matches both ErrMalformedHeader and ErrInvalidAddress. Programming errors
// such as a nil transport match none.
var (
	ErrInvalidVersion  = errors.New("invalid version")
	ErrInvalidSrcAddr  = errors.New("invalid source address")
	ErrInvalidFamily   = errors.New("invalid address family")
	ErrInvalidAddress  = errors.New("invalid address")
	ErrMalformedHeader = errors.New("malformed header")
	ErrTransportWrite  = errors.New("transport write failed")
)

// InvalidVersionErr is returned for a version token or value that is not V1 or V2.
type InvalidVersionErr struct {
	Value string
}

func (e *InvalidVersionErr) Error() string { return fmt.Sprintf("Invalid version %q", e.Value) }

// Is reports whether target is ErrInvalidVersion.
func (e *InvalidVersionErr) Is(target error) bool { return target == ErrInvalidVersion }

// InvalidSrcAddrErr is returned when a source address override is malformed.
type InvalidSrcAddrErr struct {
	// Value is the rejected override.
	Value interface{}

	// Port is the rejected port when the override had the right shape.
	Port interface{}

	// BadPort is set when Port is not an integer.
	BadPort bool

	// OutOfRange is set when Port is an integer outside 0-65535.
	OutOfRange bool
}

func (e *InvalidSrcAddrErr) Error() string {
	switch {
	case e.OutOfRange:
		return fmt.Sprintf("Invalid port \"%v\" provided in src_addr. Must be between 0 and 65535.", e.Port)
	case e.BadPort:
		return fmt.Sprintf("Invalid port \"%v\" provided in src_addr. Must be an integer.", e.Port)
	}
	return fmt.Sprintf("Invalid src_addr \"%v\". Must be tuple of form (ip, port).", e.Value)
}

// Is reports whether target is ErrInvalidSrcAddr.
func (e *InvalidSrcAddrErr) Is(target error) bool { return target == ErrInvalidSrcAddr }

// InvalidHeaderErr contains the parsing error as well as all data read from the reader.
type InvalidHeaderErr struct {
	error
	Read []byte
}

func (e *InvalidHeaderErr) Error() string { return "malformed PROXY header: " + e.error.Error() }

// Unwrap returns the underlying cause.
func (e *InvalidHeaderErr) Unwrap() error { return e.error }

// Is reports whether target is ErrMalformedHeader.
func (e *InvalidHeaderErr) Is(target error) bool { return target == ErrMalformedHeader }

// TransportWriteErr is returned when a header could not be written in full.
type TransportWriteErr struct {
	Err error

	// Written is the number of header bytes the transport accepted before failing.
	Written int
}

func (e *TransportWriteErr) Error() string {
	return fmt.Sprintf("write PROXY header (%d bytes sent): %v", e.Written, e.Err)
}

// Unwrap returns the transport error.
func (e *TransportWriteErr) Unwrap() error { return e.Err }

// Is reports whether target is ErrTransportWrite.
func (e *TransportWriteErr) Is(target error) bool { return target == ErrTransportWrite }

func invalidHeader(read []byte, format string, args ...interface{}) error {
	return &InvalidHeaderErr{Read: read, error: errors.Errorf(format, args...)}
}
