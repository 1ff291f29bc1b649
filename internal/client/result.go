package client

import (
	"bytes"
	"slices"
	"strings"

	"github.com/KilimcininKorOglu/ldapc/internal/ldap"
)

func cloneControls(in []ldap.Control) []ldap.Control {
	if in == nil {
		return nil
	}
	out := make([]ldap.Control, len(in))
	for i, c := range in {
		out[i] = ldap.Control{OID: c.OID, Criticality: c.Criticality, Value: bytes.Clone(c.Value)}
	}
	return out
}

// Result is the final response of an operation. It is read-only: every
// accessor returns a copy, so callbacks sharing a Result cannot affect each
// other.
type Result struct {
	op          ldap.OperationType
	code        ldap.ResultCode
	matchedDN   string
	diagnostic  string
	referrals   []string
	serverCreds []byte
	name        string
	value       []byte
	controls    []ldap.Control
}

func newResult(r *ldap.Result, controls []ldap.Control) *Result {
	return &Result{
		op:          r.Type,
		code:        r.ResultCode,
		matchedDN:   r.MatchedDN,
		diagnostic:  r.DiagnosticMessage,
		referrals:   slices.Clone(r.Referral),
		serverCreds: bytes.Clone(r.ServerSASLCreds),
		name:        r.ResponseName,
		value:       bytes.Clone(r.ResponseValue),
		controls:    cloneControls(controls),
	}
}

// OperationType returns the response tag, e.g. ldap.ApplicationBindResponse.
func (r *Result) OperationType() ldap.OperationType { return r.op }

func (r *Result) Code() ldap.ResultCode { return r.code }

func (r *Result) MatchedDN() string { return r.matchedDN }

func (r *Result) DiagnosticMessage() string { return r.diagnostic }

func (r *Result) Referrals() []string { return slices.Clone(r.referrals) }

// ServerSASLCreds returns the serverSaslCreds of a BindResponse, nil if absent.
func (r *Result) ServerSASLCreds() []byte { return bytes.Clone(r.serverCreds) }

// ResponseName returns the responseName of an ExtendedResponse.
func (r *Result) ResponseName() string { return r.name }

// ResponseValue returns the responseValue of an ExtendedResponse, nil if absent.
func (r *Result) ResponseValue() []byte { return bytes.Clone(r.value) }

// Controls returns the response controls.
func (r *Result) Controls() []ldap.Control { return cloneControls(r.controls) }

// IsSuccess reports whether the result code is success.
func (r *Result) IsSuccess() bool { return r.code == ldap.ResultSuccess }

func (r *Result) String() string {
	var b strings.Builder
	b.WriteString(r.op.String())
	b.WriteString(": ")
	b.WriteString(r.code.String())
	if r.diagnostic != "" {
		b.WriteString(" (")
		b.WriteString(r.diagnostic)
		b.WriteString(")")
	}
	return b.String()
}

// Entry is one SearchResultEntry.
type Entry struct {
	dn       string
	attrs    []ldap.PartialAttribute
	controls []ldap.Control
}

func newEntry(e *ldap.SearchResultEntry, controls []ldap.Control) *Entry {
	attrs := make([]ldap.PartialAttribute, len(e.Attributes))
	for i, a := range e.Attributes {
		attrs[i] = ldap.PartialAttribute{Type: a.Type, Values: cloneValues(a.Values)}
	}
	return &Entry{dn: e.ObjectName, attrs: attrs, controls: cloneControls(controls)}
}

func cloneValues(in [][]byte) [][]byte {
	out := make([][]byte, len(in))
	for i, v := range in {
		out[i] = bytes.Clone(v)
	}
	return out
}

func (e *Entry) DN() string { return e.dn }

// AttributeNames returns the attribute descriptions in server order.
func (e *Entry) AttributeNames() []string {
	names := make([]string, len(e.attrs))
	for i, a := range e.attrs {
		names[i] = a.Type
	}
	return names
}

// RawValues returns the values of the named attribute (case-insensitive).
func (e *Entry) RawValues(name string) [][]byte {
	for _, a := range e.attrs {
		if strings.EqualFold(a.Type, name) {
			return cloneValues(a.Values)
		}
	}
	return nil
}

// Values returns the values of the named attribute as strings.
func (e *Entry) Values(name string) []string {
	raw := e.RawValues(name)
	if raw == nil {
		return nil
	}
	out := make([]string, len(raw))
	for i, v := range raw {
		out[i] = string(v)
	}
	return out
}

// Controls returns the controls that accompanied the entry.
func (e *Entry) Controls() []ldap.Control { return cloneControls(e.controls) }

// Intermediate is an IntermediateResponse.
type Intermediate struct {
	name  string
	value []byte
}

func (i *Intermediate) Name() string  { return i.name }
func (i *Intermediate) Value() []byte { return bytes.Clone(i.value) }

// Notice is an unsolicited notification (message ID 0).
type Notice struct {
	name       string
	value      []byte
	code       ldap.ResultCode
	diagnostic string
}

func newNotice(n *ldap.Notice) *Notice {
	return &Notice{
		name:       n.Name,
		value:      bytes.Clone(n.Value),
		code:       n.ResultCode,
		diagnostic: n.DiagnosticMessage,
	}
}

func (n *Notice) Name() string              { return n.name }
func (n *Notice) Value() []byte             { return bytes.Clone(n.value) }
func (n *Notice) Code() ldap.ResultCode     { return n.code }
func (n *Notice) DiagnosticMessage() string { return n.diagnostic }

// IsDisconnection reports whether this is a Notice of Disconnection.
func (n *Notice) IsDisconnection() bool { return n.name == ldap.NoticeOfDisconnectionOID }
