package client

import (
	"errors"
	"fmt"
)

// ErrorKind classifies the failures a handle can complete with.
type ErrorKind int

const (
	// KindTimeout means no terminal response arrived within the handle's timeout.
	KindTimeout ErrorKind = iota + 1
	// KindAbandoned means the caller abandoned the operation.
	KindAbandoned
	// KindLocal covers cancellation of the waiting context and internal
	// invariant violations.
	KindLocal
	// KindConnection means the connection closed or failed underneath the operation.
	KindConnection
	// KindEncoding means the request could not be encoded or the response
	// could not be decoded.
	KindEncoding
	// KindSASLConfiguration means a SASL mechanism lacked the configuration
	// needed to produce its next credentials.
	KindSASLConfiguration
	// KindSASLVerification means the server failed a SASL mechanism's
	// cryptographic check.
	KindSASLVerification
)

func (k ErrorKind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindAbandoned:
		return "abandoned"
	case KindLocal:
		return "local"
	case KindConnection:
		return "connection"
	case KindEncoding:
		return "encoding"
	case KindSASLConfiguration:
		return "sasl configuration"
	case KindSASLVerification:
		return "sasl verification"
	default:
		return "unknown"
	}
}

// Sentinel errors. errors.Is(err, ErrTimeout) holds for any *Error of kind
// KindTimeout, and likewise for the other kinds.
var (
	ErrTimeout           = errors.New("ldapc: operation timed out")
	ErrAbandoned         = errors.New("ldapc: operation abandoned")
	ErrLocal             = errors.New("ldapc: local error")
	ErrConnectionClosed  = errors.New("ldapc: connection closed")
	ErrEncoding          = errors.New("ldapc: encoding error")
	ErrSASLConfiguration = errors.New("ldapc: sasl configuration error")
	ErrSASLVerification  = errors.New("ldapc: sasl verification failed")

	ErrAlreadySent  = errors.New("ldapc: operation already sent")
	ErrNotSent      = errors.New("ldapc: operation not sent")
	ErrNoConnection = errors.New("ldapc: operation has no connection")
)

var kindSentinels = map[ErrorKind]error{
	KindTimeout:           ErrTimeout,
	KindAbandoned:         ErrAbandoned,
	KindLocal:             ErrLocal,
	KindConnection:        ErrConnectionClosed,
	KindEncoding:          ErrEncoding,
	KindSASLConfiguration: ErrSASLConfiguration,
	KindSASLVerification:  ErrSASLVerification,
}

// Error is the single failure type delivered to exception callbacks and
// returned from Await.
type Error struct {
	Kind      ErrorKind
	MessageID int    // 0 when the operation was never assigned an ID
	Op        string // operation name, e.g. "SearchRequest"
	Err       error
}

// NewError creates an Error of the given kind.
func NewError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	msg := "ldapc: " + e.Kind.String()
	if e.Op != "" {
		msg = fmt.Sprintf("ldapc: %s %s", e.Op, e.Kind)
	}
	if e.MessageID != 0 {
		msg += fmt.Sprintf(" (message %d)", e.MessageID)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel belonging to e.Kind.
func (e *Error) Is(target error) bool {
	s, ok := kindSentinels[e.Kind]
	return ok && s == target
}

// KindOf returns the kind of the first *Error in err's chain, or 0.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
