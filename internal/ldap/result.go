package ldap

import (
	"github.com/KilimcininKorOglu/ldapc/internal/ber"
)

// Context tags inside responses.
const (
	ContextTagReferral        = 3  // LDAPResult.referral
	ContextTagServerSASLCreds = 7  // BindResponse.serverSaslCreds
	ContextTagResponseName    = 10 // ExtendedResponse.responseName
	ContextTagResponseValue   = 11 // ExtendedResponse.responseValue
)

// LDAPResult is the component shared by every final response.
type LDAPResult struct {
	ResultCode        ResultCode
	MatchedDN         string
	DiagnosticMessage string
	Referral          []string
}

// Encode appends the LDAPResult components (no outer tag).
func (r *LDAPResult) Encode(enc *ber.BEREncoder) error {
	if err := enc.WriteEnumerated(int64(r.ResultCode)); err != nil {
		return err
	}
	if err := enc.WriteOctetString([]byte(r.MatchedDN)); err != nil {
		return err
	}
	if err := enc.WriteOctetString([]byte(r.DiagnosticMessage)); err != nil {
		return err
	}
	if len(r.Referral) > 0 {
		pos := enc.WriteContextTag(ContextTagReferral, true)
		for _, uri := range r.Referral {
			if err := enc.WriteOctetString([]byte(uri)); err != nil {
				return err
			}
		}
		if err := enc.EndContextTag(pos); err != nil {
			return err
		}
	}
	return nil
}

func parseLDAPResult(dec *ber.BERDecoder) (LDAPResult, error) {
	var r LDAPResult
	code, err := dec.ReadEnumerated()
	if err != nil {
		return r, NewParseError(dec.Offset(), "failed to read resultCode", err)
	}
	r.ResultCode = ResultCode(code)

	matched, err := dec.ReadOctetString()
	if err != nil {
		return r, NewParseError(dec.Offset(), "failed to read matchedDN", err)
	}
	r.MatchedDN = string(matched)

	diag, err := dec.ReadOctetString()
	if err != nil {
		return r, NewParseError(dec.Offset(), "failed to read diagnosticMessage", err)
	}
	r.DiagnosticMessage = string(diag)

	if dec.IsContextTag(ContextTagReferral) {
		refs, err := dec.ReadContextTagContents(ContextTagReferral)
		if err != nil {
			return r, NewParseError(dec.Offset(), "failed to read referral", err)
		}
		for refs.Remaining() > 0 {
			uri, err := refs.ReadOctetString()
			if err != nil {
				return r, NewParseError(dec.Offset(), "failed to read referral URI", err)
			}
			r.Referral = append(r.Referral, string(uri))
		}
	}
	return r, nil
}

// Result is a final response: BindResponse, SearchResultDone,
// CompareResponse, ExtendedResponse or any other LDAPResult-shaped reply.
// The Bind and Extended extras are only encoded for their own types.
type Result struct {
	Type OperationType
	LDAPResult
	ServerSASLCreds []byte
	ResponseName    string
	ResponseValue   []byte
}

func (r *Result) OperationType() OperationType { return r.Type }

// Encode returns the response body.
func (r *Result) Encode() ([]byte, error) {
	enc := ber.NewBEREncoder(64)
	if err := r.LDAPResult.Encode(enc); err != nil {
		return nil, err
	}
	switch r.Type {
	case ApplicationBindResponse:
		if r.ServerSASLCreds != nil {
			if err := enc.WriteTaggedValue(ContextTagServerSASLCreds, false, r.ServerSASLCreds); err != nil {
				return nil, err
			}
		}
	case ApplicationExtendedResponse:
		if r.ResponseName != "" {
			if err := enc.WriteTaggedValue(ContextTagResponseName, false, []byte(r.ResponseName)); err != nil {
				return nil, err
			}
		}
		if r.ResponseValue != nil {
			if err := enc.WriteTaggedValue(ContextTagResponseValue, false, r.ResponseValue); err != nil {
				return nil, err
			}
		}
	}
	return enc.Bytes(), nil
}

// ParseResult decodes a final response body of the given type.
func ParseResult(t OperationType, data []byte) (*Result, error) {
	dec := ber.NewBERDecoder(data)
	lr, err := parseLDAPResult(dec)
	if err != nil {
		return nil, err
	}
	res := &Result{Type: t, LDAPResult: lr}

	for dec.Remaining() > 0 {
		tag, _, value, err := dec.ReadTaggedValue()
		if err != nil {
			return nil, NewParseError(dec.Offset(), "failed to read response extension", err)
		}
		switch {
		case t == ApplicationBindResponse && tag == ContextTagServerSASLCreds:
			res.ServerSASLCreds = value
		case t == ApplicationExtendedResponse && tag == ContextTagResponseName:
			res.ResponseName = string(value)
		case t == ApplicationExtendedResponse && tag == ContextTagResponseValue:
			res.ResponseValue = value
		}
	}
	return res, nil
}

// isFinalResponse reports whether t is a response that ends an operation.
func isFinalResponse(t OperationType) bool {
	switch t {
	case ApplicationBindResponse, ApplicationSearchResultDone, ApplicationModifyResponse,
		ApplicationAddResponse, ApplicationDelResponse, ApplicationModifyDNResponse,
		ApplicationCompareResponse, ApplicationExtendedResponse:
		return true
	}
	return false
}
