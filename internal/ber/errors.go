package ber

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidTagClass  = errors.New("ber: invalid tag class")
	ErrInvalidTagNumber = errors.New("ber: invalid tag number")
	ErrLengthOverflow   = errors.New("ber: length value overflow")
	ErrNegativeLength   = errors.New("ber: negative length not allowed")
	ErrUnbalanced       = errors.New("ber: constructed value closed out of order")

	ErrUnexpectedEOF    = errors.New("ber: unexpected end of data")
	ErrInvalidLength    = errors.New("ber: invalid length encoding")
	ErrIndefiniteLength = errors.New("ber: indefinite length not supported")
	ErrInvalidBoolean   = errors.New("ber: invalid boolean encoding")
	ErrInvalidInteger   = errors.New("ber: invalid integer encoding")
	ErrInvalidNull      = errors.New("ber: invalid null encoding")
	ErrTagMismatch      = errors.New("ber: tag mismatch")

	// ErrPacketTooLarge is returned by ReadPacket when an element declares a
	// length above the caller's limit.
	ErrPacketTooLarge = errors.New("ber: packet exceeds maximum size")
)

// DecodeError reports where in the input a decode failed.
type DecodeError struct {
	Offset  int
	Message string
	Err     error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ber: decode error at offset %d: %s: %v", e.Offset, e.Message, e.Err)
	}
	return fmt.Sprintf("ber: decode error at offset %d: %s", e.Offset, e.Message)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// NewDecodeError creates a DecodeError.
func NewDecodeError(offset int, message string, err error) *DecodeError {
	return &DecodeError{Offset: offset, Message: message, Err: err}
}

// TagMismatchError describes an identifier octet that was not the one expected.
// ExpectedNumber is -1 when any number of the expected class is acceptable.
type TagMismatchError struct {
	Offset            int
	ExpectedClass     int
	ExpectedNumber    int
	ActualClass       int
	ActualNumber      int
	ActualConstructed int
}

func (e *TagMismatchError) Error() string {
	return fmt.Sprintf("ber: tag mismatch at offset %d: expected class=%#x number=%d, got class=%#x number=%d constructed=%t",
		e.Offset, e.ExpectedClass, e.ExpectedNumber, e.ActualClass, e.ActualNumber, e.ActualConstructed == TypeConstructed)
}

// Is lets errors.Is(err, ErrTagMismatch) match.
func (e *TagMismatchError) Is(target error) bool {
	return target == ErrTagMismatch
}
