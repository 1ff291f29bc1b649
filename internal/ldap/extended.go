package ldap

import (
	"errors"

	"github.com/KilimcininKorOglu/ldapc/internal/ber"
)

// Well-known extended operation and notification OIDs.
const (
	WhoAmIOID                = "1.3.6.1.4.1.4203.1.11.3" // RFC 4532
	PasswordModifyOID        = "1.3.6.1.4.1.4203.1.11.1" // RFC 3062
	NoticeOfDisconnectionOID = "1.3.6.1.4.1.1466.20036"  // RFC 4511 §4.4.1
)

// Context tags in ExtendedRequest and IntermediateResponse.
const (
	ContextTagRequestName       = 0
	ContextTagRequestValue      = 1
	ContextTagIntermediateName  = 0
	ContextTagIntermediateValue = 1
)

var ErrMissingRequestName = errors.New("ldap: extended request name is required")

// ExtendedRequest is [APPLICATION 23].
type ExtendedRequest struct {
	Name  string
	Value []byte
}

func (r *ExtendedRequest) OperationType() OperationType { return ApplicationExtendedRequest }

// Encode returns the request body.
func (r *ExtendedRequest) Encode() ([]byte, error) {
	if r.Name == "" {
		return nil, ErrMissingRequestName
	}
	enc := ber.NewBEREncoder(64)
	if err := enc.WriteTaggedValue(ContextTagRequestName, false, []byte(r.Name)); err != nil {
		return nil, err
	}
	if r.Value != nil {
		if err := enc.WriteTaggedValue(ContextTagRequestValue, false, r.Value); err != nil {
			return nil, err
		}
	}
	return enc.Bytes(), nil
}

// ParseExtendedRequest decodes an ExtendedRequest body.
func ParseExtendedRequest(data []byte) (*ExtendedRequest, error) {
	dec := ber.NewBERDecoder(data)
	req := &ExtendedRequest{}
	for dec.Remaining() > 0 {
		tag, _, v, err := dec.ReadTaggedValue()
		if err != nil {
			return nil, NewParseError(dec.Offset(), "failed to read extended request", err)
		}
		switch tag {
		case ContextTagRequestName:
			req.Name = string(v)
		case ContextTagRequestValue:
			req.Value = v
		}
	}
	if req.Name == "" {
		return nil, ErrMissingRequestName
	}
	return req, nil
}

// NewWhoAmIRequest builds the RFC 4532 "Who am I?" request.
func NewWhoAmIRequest() *ExtendedRequest {
	return &ExtendedRequest{Name: WhoAmIOID}
}

// NewPasswordModifyRequest builds an RFC 3062 request. Empty fields are
// omitted so the server applies its defaults.
func NewPasswordModifyRequest(userIdentity string, oldPassword, newPassword []byte) (*ExtendedRequest, error) {
	enc := ber.NewBEREncoder(64)
	seq := enc.BeginSequence()
	if userIdentity != "" {
		if err := enc.WriteTaggedValue(0, false, []byte(userIdentity)); err != nil {
			return nil, err
		}
	}
	if oldPassword != nil {
		if err := enc.WriteTaggedValue(1, false, oldPassword); err != nil {
			return nil, err
		}
	}
	if newPassword != nil {
		if err := enc.WriteTaggedValue(2, false, newPassword); err != nil {
			return nil, err
		}
	}
	if err := enc.EndSequence(seq); err != nil {
		return nil, err
	}
	return &ExtendedRequest{Name: PasswordModifyOID, Value: enc.Bytes()}, nil
}

// ParsePasswordModifyResponse extracts the server-generated password, if any.
func ParsePasswordModifyResponse(value []byte) ([]byte, error) {
	if len(value) == 0 {
		return nil, nil
	}
	seq, err := ber.NewBERDecoder(value).ReadSequenceContents()
	if err != nil {
		return nil, err
	}
	for seq.Remaining() > 0 {
		tag, _, v, err := seq.ReadTaggedValue()
		if err != nil {
			return nil, err
		}
		if tag == 0 {
			return v, nil
		}
	}
	return nil, nil
}

// IntermediateResponse is [APPLICATION 25].
type IntermediateResponse struct {
	Name  string
	Value []byte
}

func (r *IntermediateResponse) OperationType() OperationType {
	return ApplicationIntermediateResponse
}

// Encode returns the response body.
func (r *IntermediateResponse) Encode() ([]byte, error) {
	enc := ber.NewBEREncoder(64)
	if r.Name != "" {
		if err := enc.WriteTaggedValue(ContextTagIntermediateName, false, []byte(r.Name)); err != nil {
			return nil, err
		}
	}
	if r.Value != nil {
		if err := enc.WriteTaggedValue(ContextTagIntermediateValue, false, r.Value); err != nil {
			return nil, err
		}
	}
	return enc.Bytes(), nil
}

// ParseIntermediateResponse decodes an IntermediateResponse body.
func ParseIntermediateResponse(data []byte) (*IntermediateResponse, error) {
	dec := ber.NewBERDecoder(data)
	r := &IntermediateResponse{}
	for dec.Remaining() > 0 {
		tag, _, v, err := dec.ReadTaggedValue()
		if err != nil {
			return nil, NewParseError(dec.Offset(), "failed to read intermediate response", err)
		}
		switch tag {
		case ContextTagIntermediateName:
			r.Name = string(v)
		case ContextTagIntermediateValue:
			r.Value = v
		}
	}
	return r, nil
}
