package ldap

import (
	"errors"

	"github.com/KilimcininKorOglu/ldapc/internal/ber"
	"github.com/KilimcininKorOglu/ldapc/internal/filter"
)

// SearchScope is the scope ENUMERATED of a SearchRequest.
type SearchScope int

const (
	ScopeBaseObject   SearchScope = 0
	ScopeSingleLevel  SearchScope = 1
	ScopeWholeSubtree SearchScope = 2
)

func (s SearchScope) String() string {
	switch s {
	case ScopeBaseObject:
		return "base"
	case ScopeSingleLevel:
		return "one"
	case ScopeWholeSubtree:
		return "sub"
	default:
		return "unknown"
	}
}

// ParseScope maps the usual short names (base, one, sub) to a scope.
func ParseScope(s string) (SearchScope, error) {
	switch s {
	case "base", "baseObject":
		return ScopeBaseObject, nil
	case "one", "onelevel", "singleLevel":
		return ScopeSingleLevel, nil
	case "sub", "subtree", "wholeSubtree":
		return ScopeWholeSubtree, nil
	}
	return 0, ErrInvalidSearchScope
}

// DerefAliases is the derefAliases ENUMERATED of a SearchRequest.
type DerefAliases int

const (
	DerefNever          DerefAliases = 0
	DerefInSearching    DerefAliases = 1
	DerefFindingBaseObj DerefAliases = 2
	DerefAlways         DerefAliases = 3
)

var (
	ErrInvalidSearchScope  = errors.New("ldap: invalid search scope")
	ErrInvalidDerefAliases = errors.New("ldap: invalid deref aliases value")
)

// SearchRequest is [APPLICATION 3]. A nil Filter is sent as (objectClass=*).
type SearchRequest struct {
	BaseObject   string
	Scope        SearchScope
	DerefAliases DerefAliases
	SizeLimit    int
	TimeLimit    int
	TypesOnly    bool
	Filter       *filter.Filter
	Attributes   []string
}

func (r *SearchRequest) OperationType() OperationType { return ApplicationSearchRequest }

// Encode returns the request body.
func (r *SearchRequest) Encode() ([]byte, error) {
	if r.Scope < ScopeBaseObject || r.Scope > ScopeWholeSubtree {
		return nil, ErrInvalidSearchScope
	}
	if r.DerefAliases < DerefNever || r.DerefAliases > DerefAlways {
		return nil, ErrInvalidDerefAliases
	}

	enc := ber.NewBEREncoder(128)
	if err := enc.WriteOctetString([]byte(r.BaseObject)); err != nil {
		return nil, err
	}
	if err := enc.WriteEnumerated(int64(r.Scope)); err != nil {
		return nil, err
	}
	if err := enc.WriteEnumerated(int64(r.DerefAliases)); err != nil {
		return nil, err
	}
	if err := enc.WriteInteger(int64(r.SizeLimit)); err != nil {
		return nil, err
	}
	if err := enc.WriteInteger(int64(r.TimeLimit)); err != nil {
		return nil, err
	}
	if err := enc.WriteBoolean(r.TypesOnly); err != nil {
		return nil, err
	}
	f := r.Filter
	if f == nil {
		f = filter.NewPresentFilter("objectClass")
	}
	if err := f.Encode(enc); err != nil {
		return nil, err
	}
	seq := enc.BeginSequence()
	for _, a := range r.Attributes {
		if err := enc.WriteOctetString([]byte(a)); err != nil {
			return nil, err
		}
	}
	if err := enc.EndSequence(seq); err != nil {
		return nil, err
	}
	return enc.Bytes(), nil
}

// ParseSearchRequest decodes a SearchRequest body.
func ParseSearchRequest(data []byte) (*SearchRequest, error) {
	if len(data) == 0 {
		return nil, NewParseError(0, "empty search request data", nil)
	}
	dec := ber.NewBERDecoder(data)
	req := &SearchRequest{}

	base, err := dec.ReadOctetString()
	if err != nil {
		return nil, NewParseError(dec.Offset(), "failed to read baseObject", err)
	}
	req.BaseObject = string(base)

	scope, err := dec.ReadEnumerated()
	if err != nil {
		return nil, NewParseError(dec.Offset(), "failed to read scope", err)
	}
	if scope < 0 || scope > 2 {
		return nil, ErrInvalidSearchScope
	}
	req.Scope = SearchScope(scope)

	deref, err := dec.ReadEnumerated()
	if err != nil {
		return nil, NewParseError(dec.Offset(), "failed to read derefAliases", err)
	}
	if deref < 0 || deref > 3 {
		return nil, ErrInvalidDerefAliases
	}
	req.DerefAliases = DerefAliases(deref)

	size, err := dec.ReadInteger()
	if err != nil {
		return nil, NewParseError(dec.Offset(), "failed to read sizeLimit", err)
	}
	req.SizeLimit = int(size)

	tl, err := dec.ReadInteger()
	if err != nil {
		return nil, NewParseError(dec.Offset(), "failed to read timeLimit", err)
	}
	req.TimeLimit = int(tl)

	if req.TypesOnly, err = dec.ReadBoolean(); err != nil {
		return nil, NewParseError(dec.Offset(), "failed to read typesOnly", err)
	}
	if req.Filter, err = filter.Decode(dec); err != nil {
		return nil, NewParseError(dec.Offset(), "failed to read filter", err)
	}

	attrs, err := dec.ReadSequenceContents()
	if err != nil {
		return nil, NewParseError(dec.Offset(), "failed to read attributes", err)
	}
	for attrs.Remaining() > 0 {
		a, err := attrs.ReadOctetString()
		if err != nil {
			return nil, NewParseError(dec.Offset(), "failed to read attribute", err)
		}
		req.Attributes = append(req.Attributes, string(a))
	}
	return req, nil
}

// PartialAttribute is an attribute description with its values.
type PartialAttribute struct {
	Type   string
	Values [][]byte
}

// SearchResultEntry is [APPLICATION 4].
type SearchResultEntry struct {
	ObjectName string
	Attributes []PartialAttribute
}

func (e *SearchResultEntry) OperationType() OperationType { return ApplicationSearchResultEntry }

// Encode returns the entry body.
func (e *SearchResultEntry) Encode() ([]byte, error) {
	enc := ber.NewBEREncoder(128)
	if err := enc.WriteOctetString([]byte(e.ObjectName)); err != nil {
		return nil, err
	}
	list := enc.BeginSequence()
	for _, attr := range e.Attributes {
		seq := enc.BeginSequence()
		if err := enc.WriteOctetString([]byte(attr.Type)); err != nil {
			return nil, err
		}
		set := enc.BeginSet()
		for _, v := range attr.Values {
			if err := enc.WriteOctetString(v); err != nil {
				return nil, err
			}
		}
		if err := enc.EndSet(set); err != nil {
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

// ParseSearchResultEntry decodes an entry body.
func ParseSearchResultEntry(data []byte) (*SearchResultEntry, error) {
	dec := ber.NewBERDecoder(data)
	name, err := dec.ReadOctetString()
	if err != nil {
		return nil, NewParseError(dec.Offset(), "failed to read objectName", err)
	}
	e := &SearchResultEntry{ObjectName: string(name)}

	list, err := dec.ReadSequenceContents()
	if err != nil {
		return nil, NewParseError(dec.Offset(), "failed to read attribute list", err)
	}
	for list.Remaining() > 0 {
		seq, err := list.ReadSequenceContents()
		if err != nil {
			return nil, NewParseError(dec.Offset(), "failed to read attribute", err)
		}
		typ, err := seq.ReadOctetString()
		if err != nil {
			return nil, NewParseError(dec.Offset(), "failed to read attribute type", err)
		}
		set, err := seq.ReadSetContents()
		if err != nil {
			return nil, NewParseError(dec.Offset(), "failed to read attribute values", err)
		}
		attr := PartialAttribute{Type: string(typ)}
		for set.Remaining() > 0 {
			v, err := set.ReadOctetString()
			if err != nil {
				return nil, NewParseError(dec.Offset(), "failed to read attribute value", err)
			}
			attr.Values = append(attr.Values, v)
		}
		e.Attributes = append(e.Attributes, attr)
	}
	return e, nil
}

// SearchResultReference is [APPLICATION 19], a list of continuation URIs.
type SearchResultReference struct {
	URIs []string
}

func (r *SearchResultReference) OperationType() OperationType {
	return ApplicationSearchResultReference
}

// Encode returns the reference body.
func (r *SearchResultReference) Encode() ([]byte, error) {
	enc := ber.NewBEREncoder(64)
	for _, uri := range r.URIs {
		if err := enc.WriteOctetString([]byte(uri)); err != nil {
			return nil, err
		}
	}
	return enc.Bytes(), nil
}

// ParseSearchResultReference decodes a reference body.
func ParseSearchResultReference(data []byte) (*SearchResultReference, error) {
	dec := ber.NewBERDecoder(data)
	r := &SearchResultReference{}
	for dec.Remaining() > 0 {
		uri, err := dec.ReadOctetString()
		if err != nil {
			return nil, NewParseError(dec.Offset(), "failed to read reference URI", err)
		}
		r.URIs = append(r.URIs, string(uri))
	}
	return r, nil
}
