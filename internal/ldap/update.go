package ldap

import (
	"errors"

	"github.com/KilimcininKorOglu/ldapc/internal/ber"
)

var ErrEmptyEntryDN = errors.New("ldap: entry DN cannot be empty")

// Attribute is a full attribute (type plus at least one value).
type Attribute struct {
	Type   string
	Values [][]byte
}

// AddRequest is [APPLICATION 8].
type AddRequest struct {
	DN         string
	Attributes []Attribute
}

func (r *AddRequest) OperationType() OperationType { return ApplicationAddRequest }

// Encode returns the request body.
func (r *AddRequest) Encode() ([]byte, error) {
	if r.DN == "" {
		return nil, ErrEmptyEntryDN
	}
	enc := ber.NewBEREncoder(128)
	if err := enc.WriteOctetString([]byte(r.DN)); err != nil {
		return nil, err
	}
	list := enc.BeginSequence()
	for _, a := range r.Attributes {
		if err := writeAttribute(enc, a.Type, a.Values); err != nil {
			return nil, err
		}
	}
	if err := enc.EndSequence(list); err != nil {
		return nil, err
	}
	return enc.Bytes(), nil
}

// DelRequest is [APPLICATION 10], a bare LDAPDN.
type DelRequest struct {
	DN string
}

func (r *DelRequest) OperationType() OperationType { return ApplicationDelRequest }

// Encode returns the DN octets.
func (r *DelRequest) Encode() ([]byte, error) {
	if r.DN == "" {
		return nil, ErrEmptyEntryDN
	}
	return []byte(r.DN), nil
}

// ModifyOperation is the operation ENUMERATED of a change.
type ModifyOperation int

const (
	ModifyAdd     ModifyOperation = 0
	ModifyDelete  ModifyOperation = 1
	ModifyReplace ModifyOperation = 2
)

// Change is one modification of a ModifyRequest.
type Change struct {
	Operation ModifyOperation
	Attribute PartialAttribute
}

// ModifyRequest is [APPLICATION 6].
type ModifyRequest struct {
	DN      string
	Changes []Change
}

func (r *ModifyRequest) OperationType() OperationType { return ApplicationModifyRequest }

// Encode returns the request body.
func (r *ModifyRequest) Encode() ([]byte, error) {
	if r.DN == "" {
		return nil, ErrEmptyEntryDN
	}
	enc := ber.NewBEREncoder(128)
	if err := enc.WriteOctetString([]byte(r.DN)); err != nil {
		return nil, err
	}
	list := enc.BeginSequence()
	for _, c := range r.Changes {
		seq := enc.BeginSequence()
		if err := enc.WriteEnumerated(int64(c.Operation)); err != nil {
			return nil, err
		}
		if err := writeAttribute(enc, c.Attribute.Type, c.Attribute.Values); err != nil {
			return nil, err
		}
		if err := enc.EndSequence(seq); err != nil {
			return nil, err
		}
	}
	if err := enc.EndSequence(list); err != nil {
		return nil, err
	}
	return enc.Bytes(), nil
}

func writeAttribute(enc *ber.BEREncoder, typ string, values [][]byte) error {
	seq := enc.BeginSequence()
	if err := enc.WriteOctetString([]byte(typ)); err != nil {
		return err
	}
	set := enc.BeginSet()
	for _, v := range values {
		if err := enc.WriteOctetString(v); err != nil {
			return err
		}
	}
	if err := enc.EndSet(set); err != nil {
		return err
	}
	return enc.EndSequence(seq)
}
