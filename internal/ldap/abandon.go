package ldap

import (
	"github.com/KilimcininKorOglu/ldapc/internal/ber"
)

// AbandonRequest is [APPLICATION 16] MessageID, a primitive INTEGER body.
type AbandonRequest struct {
	MessageID int
}

func (r *AbandonRequest) OperationType() OperationType { return ApplicationAbandonRequest }

// Encode returns the integer content octets.
func (r *AbandonRequest) Encode() ([]byte, error) {
	if r.MessageID < MinMessageID || r.MessageID > MaxMessageID {
		return nil, ErrInvalidMessageID
	}
	return ber.EncodeIntegerContent(int64(r.MessageID)), nil
}

// ParseAbandonRequest decodes an AbandonRequest body.
func ParseAbandonRequest(data []byte) (*AbandonRequest, error) {
	if len(data) == 0 || len(data) > 4 {
		return nil, NewParseError(0, "invalid abandon request length", ber.ErrInvalidInteger)
	}
	id := int64(int8(data[0]))
	for _, b := range data[1:] {
		id = id<<8 | int64(b)
	}
	if id < MinMessageID || id > MaxMessageID {
		return nil, ErrInvalidMessageID
	}
	return &AbandonRequest{MessageID: int(id)}, nil
}

// UnbindRequest is [APPLICATION 2] NULL.
type UnbindRequest struct{}

func (UnbindRequest) OperationType() OperationType { return ApplicationUnbindRequest }

// Encode returns the empty body.
func (UnbindRequest) Encode() ([]byte, error) { return nil, nil }
