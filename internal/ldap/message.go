package ldap

import (
	"github.com/KilimcininKorOglu/ldapc/internal/ber"
)

// NewMessage wraps op in an envelope with the given ID and controls.
func NewMessage(id int, op ProtocolOp, controls []Control) (*LDAPMessage, error) {
	if op == nil {
		return nil, ErrMissingOperation
	}
	body, err := op.Encode()
	if err != nil {
		return nil, err
	}
	return &LDAPMessage{
		MessageID: id,
		Operation: &RawOperation{Tag: int(op.OperationType()), Data: body},
		Controls:  controls,
	}, nil
}

// ParseLDAPMessage decodes one complete LDAPMessage. The operation body is
// left raw; DecodeResponse or the Parse*Request functions interpret it.
func ParseLDAPMessage(data []byte) (*LDAPMessage, error) {
	if len(data) == 0 {
		return nil, ErrEmptyMessage
	}
	outer := ber.NewBERDecoder(data)
	dec, err := outer.ReadSequenceContents()
	if err != nil {
		return nil, NewParseError(0, "expected SEQUENCE for LDAPMessage", err)
	}

	id, err := dec.ReadInteger()
	if err != nil {
		return nil, NewParseError(dec.Offset(), "failed to read messageID", err)
	}
	if id < MinMessageID || id > MaxMessageID {
		return nil, ErrInvalidMessageID
	}

	opStart := dec.Offset()
	class, _, tag, err := dec.ReadTag()
	if err != nil {
		return nil, NewParseError(opStart, "failed to read protocolOp tag", err)
	}
	if class != ber.ClassApplication {
		return nil, NewParseError(opStart, "protocolOp must have APPLICATION tag class", ErrInvalidOperation)
	}
	length, err := dec.ReadLength()
	if err != nil {
		return nil, NewParseError(dec.Offset(), "failed to read protocolOp length", err)
	}
	body, err := dec.ReadBytes(length)
	if err != nil {
		return nil, NewParseError(dec.Offset(), "truncated protocolOp data", err)
	}

	msg := &LDAPMessage{
		MessageID: int(id),
		Operation: &RawOperation{Tag: tag, Data: body},
	}
	if dec.Remaining() > 0 && dec.IsContextTag(ContextTagControls) {
		controls, err := parseControls(dec)
		if err != nil {
			return nil, NewParseError(dec.Offset(), "failed to parse controls", err)
		}
		msg.Controls = controls
	}
	return msg, nil
}

// Encode serializes the envelope.
func (m *LDAPMessage) Encode() ([]byte, error) {
	if m.MessageID < MinMessageID || m.MessageID > MaxMessageID {
		return nil, ErrInvalidMessageID
	}
	if m.Operation == nil {
		return nil, ErrMissingOperation
	}

	enc := ber.NewBEREncoder(64 + len(m.Operation.Data))
	seq := enc.BeginSequence()
	if err := enc.WriteInteger(int64(m.MessageID)); err != nil {
		return nil, err
	}
	app := enc.WriteApplicationTag(m.Operation.Tag, isConstructedOperation(m.Operation.Tag))
	enc.WriteRaw(m.Operation.Data)
	if err := enc.EndApplicationTag(app); err != nil {
		return nil, err
	}
	if len(m.Controls) > 0 {
		if err := encodeControls(enc, m.Controls); err != nil {
			return nil, err
		}
	}
	if err := enc.EndSequence(seq); err != nil {
		return nil, err
	}
	return enc.Bytes(), nil
}

// isConstructedOperation reports whether the operation's body is a
// constructed type. Unbind (NULL), Abandon (INTEGER) and Delete (LDAPDN)
// are primitive.
func isConstructedOperation(tag int) bool {
	switch tag {
	case ApplicationUnbindRequest, ApplicationAbandonRequest, ApplicationDelRequest:
		return false
	}
	return true
}
