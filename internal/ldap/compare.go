package ldap

import (
	"errors"

	"github.com/KilimcininKorOglu/ldapc/internal/ber"
)

// CompareRequest is [APPLICATION 14]:
//
//	CompareRequest ::= [APPLICATION 14] SEQUENCE {
//	     entry           LDAPDN,
//	     ava             AttributeValueAssertion }
type CompareRequest struct {
	DN        string
	Attribute string
	Value     []byte
}

var (
	ErrEmptyCompareDN        = errors.New("ldap: compare DN cannot be empty")
	ErrEmptyCompareAttribute = errors.New("ldap: compare attribute cannot be empty")
)

func (r *CompareRequest) OperationType() OperationType { return ApplicationCompareRequest }

// Validate checks the fields a server would reject outright.
func (r *CompareRequest) Validate() error {
	if r.DN == "" {
		return ErrEmptyCompareDN
	}
	if r.Attribute == "" {
		return ErrEmptyCompareAttribute
	}
	return nil
}

// Encode returns the request body.
func (r *CompareRequest) Encode() ([]byte, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	enc := ber.NewBEREncoder(64)
	if err := enc.WriteOctetString([]byte(r.DN)); err != nil {
		return nil, err
	}
	ava := enc.BeginSequence()
	if err := enc.WriteOctetString([]byte(r.Attribute)); err != nil {
		return nil, err
	}
	if err := enc.WriteOctetString(r.Value); err != nil {
		return nil, err
	}
	if err := enc.EndSequence(ava); err != nil {
		return nil, err
	}
	return enc.Bytes(), nil
}

// ParseCompareRequest decodes a CompareRequest body.
func ParseCompareRequest(data []byte) (*CompareRequest, error) {
	if len(data) == 0 {
		return nil, NewParseError(0, "empty compare request data", nil)
	}
	dec := ber.NewBERDecoder(data)
	dn, err := dec.ReadOctetString()
	if err != nil {
		return nil, NewParseError(dec.Offset(), "failed to read entry DN", err)
	}
	ava, err := dec.ReadSequenceContents()
	if err != nil {
		return nil, NewParseError(dec.Offset(), "failed to read AttributeValueAssertion", err)
	}
	attr, err := ava.ReadOctetString()
	if err != nil {
		return nil, NewParseError(dec.Offset(), "failed to read attribute description", err)
	}
	value, err := ava.ReadOctetString()
	if err != nil {
		return nil, NewParseError(dec.Offset(), "failed to read assertion value", err)
	}
	return &CompareRequest{DN: string(dn), Attribute: string(attr), Value: value}, nil
}
