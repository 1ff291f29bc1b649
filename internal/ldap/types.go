package ldap

import (
	"errors"
	"fmt"
)

// Protocol operation tags, [APPLICATION n] per RFC 4511 §4.2.
const (
	ApplicationBindRequest           = 0
	ApplicationBindResponse          = 1
	ApplicationUnbindRequest         = 2
	ApplicationSearchRequest         = 3
	ApplicationSearchResultEntry     = 4
	ApplicationSearchResultDone      = 5
	ApplicationModifyRequest         = 6
	ApplicationModifyResponse        = 7
	ApplicationAddRequest            = 8
	ApplicationAddResponse           = 9
	ApplicationDelRequest            = 10
	ApplicationDelResponse           = 11
	ApplicationModifyDNRequest       = 12
	ApplicationModifyDNResponse      = 13
	ApplicationCompareRequest        = 14
	ApplicationCompareResponse       = 15
	ApplicationAbandonRequest        = 16
	ApplicationSearchResultReference = 19
	ApplicationExtendedRequest       = 23
	ApplicationExtendedResponse      = 24
	ApplicationIntermediateResponse  = 25
)

// OperationType is the APPLICATION tag of a protocol operation.
type OperationType int

var operationNames = map[OperationType]string{
	ApplicationBindRequest:           "BindRequest",
	ApplicationBindResponse:          "BindResponse",
	ApplicationUnbindRequest:         "UnbindRequest",
	ApplicationSearchRequest:         "SearchRequest",
	ApplicationSearchResultEntry:     "SearchResultEntry",
	ApplicationSearchResultDone:      "SearchResultDone",
	ApplicationModifyRequest:         "ModifyRequest",
	ApplicationModifyResponse:        "ModifyResponse",
	ApplicationAddRequest:            "AddRequest",
	ApplicationAddResponse:           "AddResponse",
	ApplicationDelRequest:            "DelRequest",
	ApplicationDelResponse:           "DelResponse",
	ApplicationModifyDNRequest:       "ModifyDNRequest",
	ApplicationModifyDNResponse:      "ModifyDNResponse",
	ApplicationCompareRequest:        "CompareRequest",
	ApplicationCompareResponse:       "CompareResponse",
	ApplicationAbandonRequest:        "AbandonRequest",
	ApplicationSearchResultReference: "SearchResultReference",
	ApplicationExtendedRequest:       "ExtendedRequest",
	ApplicationExtendedResponse:      "ExtendedResponse",
	ApplicationIntermediateResponse:  "IntermediateResponse",
}

func (o OperationType) String() string {
	if name, ok := operationNames[o]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(%d)", int(o))
}

// ContextTagControls is the [0] tag of the message controls field.
const ContextTagControls = 0

// Message ID bounds. MessageID ::= INTEGER (0 .. maxInt); 0 is reserved for
// unsolicited notifications.
const (
	MinMessageID = 0
	MaxMessageID = 2147483647
)

// ProtocolOp is anything that can sit in the protocolOp slot of an
// LDAPMessage: the tag plus the encoded body without the APPLICATION header.
type ProtocolOp interface {
	OperationType() OperationType
	Encode() ([]byte, error)
}

// Control is an RFC 4511 §4.1.11 control.
type Control struct {
	OID         string
	Criticality bool
	Value       []byte
}

// RawOperation is a protocolOp whose body has not been decoded yet.
type RawOperation struct {
	Tag  int
	Data []byte
}

// LDAPMessage is the RFC 4511 §4.1.1 envelope.
type LDAPMessage struct {
	MessageID int
	Operation *RawOperation
	Controls  []Control
}

// OperationType returns the tag of the enclosed operation, or -1.
func (m *LDAPMessage) OperationType() OperationType {
	if m.Operation == nil {
		return -1
	}
	return OperationType(m.Operation.Tag)
}

var (
	ErrInvalidMessageID       = errors.New("ldap: message ID out of valid range (0 to 2147483647)")
	ErrMissingOperation       = errors.New("ldap: missing protocol operation")
	ErrInvalidOperation       = errors.New("ldap: protocol operation must have APPLICATION tag class")
	ErrInvalidControlSequence = errors.New("ldap: invalid control sequence")
	ErrEmptyMessage           = errors.New("ldap: empty message data")
	ErrUnexpectedResponse     = errors.New("ldap: unexpected response operation")
)

// ParseError reports a decode failure inside an LDAP operation body.
type ParseError struct {
	Offset  int
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ldap: parse error at offset %d: %s: %v", e.Offset, e.Message, e.Err)
	}
	return fmt.Sprintf("ldap: parse error at offset %d: %s", e.Offset, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// NewParseError creates a ParseError.
func NewParseError(offset int, message string, err error) *ParseError {
	return &ParseError{Offset: offset, Message: message, Err: err}
}
