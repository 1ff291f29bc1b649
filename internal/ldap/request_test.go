package ldap

import (
	"testing"

	"github.com/KilimcininKorOglu/ldapc/internal/ber"
	"github.com/KilimcininKorOglu/ldapc/internal/filter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimpleBindBytes(t *testing.T) {
	body, err := NewSimpleBind("", nil).Encode()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x02, 0x01, 0x03, 0x04, 0x00, 0x80, 0x00}, body)
}

func TestSASLBindCredentials(t *testing.T) {
	tests := []struct {
		name  string
		creds []byte
		want  []byte
	}{
		{"absent", nil, nil},
		{"empty", []byte{}, []byte{}},
		{"present", []byte("n,,n=user,r=abc"), []byte("n,,n=user,r=abc")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, err := NewSASLBind("SCRAM-SHA-256", tt.creds).Encode()
			require.NoError(t, err)
			req, err := ParseBindRequest(body)
			require.NoError(t, err)
			require.Equal(t, AuthMethodSASL, req.AuthMethod)
			assert.Equal(t, "SCRAM-SHA-256", req.SASLCredentials.Mechanism)
			assert.Equal(t, tt.want, req.SASLCredentials.Credentials)
		})
	}
}

func TestSASLBindRequiresMechanism(t *testing.T) {
	_, err := NewSASLBind("", nil).Encode()
	assert.ErrorIs(t, err, ErrInvalidSASLCredentials)

	_, err = (&BindRequest{Version: 0}).Encode()
	assert.ErrorIs(t, err, ErrInvalidBindVersion)
}

func TestSearchRequestRoundTrip(t *testing.T) {
	f, err := filter.Parse("(&(objectClass=person)(cn=J*))")
	require.NoError(t, err)
	req := &SearchRequest{
		BaseObject: "dc=example,dc=com",
		Scope:      ScopeWholeSubtree,
		SizeLimit:  10,
		TimeLimit:  5,
		Filter:     f,
		Attributes: []string{"cn", "mail"},
	}
	body, err := req.Encode()
	require.NoError(t, err)

	got, err := ParseSearchRequest(body)
	require.NoError(t, err)
	assert.Equal(t, req.BaseObject, got.BaseObject)
	assert.Equal(t, req.Scope, got.Scope)
	assert.Equal(t, 10, got.SizeLimit)
	assert.Equal(t, 5, got.TimeLimit)
	assert.Equal(t, "(&(objectClass=person)(cn=J*))", got.Filter.String())
	assert.Equal(t, []string{"cn", "mail"}, got.Attributes)
}

func TestSearchRequestDefaults(t *testing.T) {
	body, err := (&SearchRequest{}).Encode()
	require.NoError(t, err)
	got, err := ParseSearchRequest(body)
	require.NoError(t, err)
	assert.Equal(t, "(objectClass=*)", got.Filter.String())
	assert.Empty(t, got.Attributes)

	_, err = (&SearchRequest{Scope: 7}).Encode()
	assert.ErrorIs(t, err, ErrInvalidSearchScope)
}

func TestParseScope(t *testing.T) {
	s, err := ParseScope("one")
	require.NoError(t, err)
	assert.Equal(t, ScopeSingleLevel, s)
	_, err = ParseScope("deep")
	assert.ErrorIs(t, err, ErrInvalidSearchScope)
}

func TestCompareRequest(t *testing.T) {
	req := &CompareRequest{DN: "uid=a,dc=x", Attribute: "mail", Value: []byte("a@x")}
	body, err := req.Encode()
	require.NoError(t, err)
	got, err := ParseCompareRequest(body)
	require.NoError(t, err)
	assert.Equal(t, req, got)

	_, err = (&CompareRequest{Attribute: "cn"}).Encode()
	assert.ErrorIs(t, err, ErrEmptyCompareDN)
	_, err = (&CompareRequest{DN: "cn=x"}).Encode()
	assert.ErrorIs(t, err, ErrEmptyCompareAttribute)
}

func TestExtendedRequest(t *testing.T) {
	body, err := NewWhoAmIRequest().Encode()
	require.NoError(t, err)
	got, err := ParseExtendedRequest(body)
	require.NoError(t, err)
	assert.Equal(t, WhoAmIOID, got.Name)
	assert.Nil(t, got.Value)

	_, err = (&ExtendedRequest{}).Encode()
	assert.ErrorIs(t, err, ErrMissingRequestName)
}

func TestPasswordModifyRequest(t *testing.T) {
	req, err := NewPasswordModifyRequest("uid=a,dc=x", []byte("old"), nil)
	require.NoError(t, err)
	assert.Equal(t, PasswordModifyOID, req.Name)

	seq, err := ber.NewBERDecoder(req.Value).ReadSequenceContents()
	require.NoError(t, err)
	tag, _, v, err := seq.ReadTaggedValue()
	require.NoError(t, err)
	assert.Equal(t, 0, tag)
	assert.Equal(t, []byte("uid=a,dc=x"), v)
	tag, _, v, err = seq.ReadTaggedValue()
	require.NoError(t, err)
	assert.Equal(t, 1, tag)
	assert.Equal(t, []byte("old"), v)
	assert.Equal(t, 0, seq.Remaining())

	enc := ber.NewBEREncoder(16)
	s := enc.BeginSequence()
	require.NoError(t, enc.WriteTaggedValue(0, false, []byte("generated")))
	require.NoError(t, enc.EndSequence(s))
	pw, err := ParsePasswordModifyResponse(enc.Bytes())
	require.NoError(t, err)
	assert.Equal(t, []byte("generated"), pw)
}

func TestUpdateRequests(t *testing.T) {
	body, err := (&DelRequest{DN: "cn=x"}).Encode()
	require.NoError(t, err)
	assert.Equal(t, []byte("cn=x"), body)

	body, err = (&AddRequest{DN: "cn=x", Attributes: []Attribute{{Type: "cn", Values: [][]byte{[]byte("x")}}}}).Encode()
	require.NoError(t, err)
	dec := ber.NewBERDecoder(body)
	dn, err := dec.ReadOctetString()
	require.NoError(t, err)
	assert.Equal(t, "cn=x", string(dn))
	list, err := dec.ReadSequenceContents()
	require.NoError(t, err)
	attr, err := list.ReadSequenceContents()
	require.NoError(t, err)
	typ, err := attr.ReadOctetString()
	require.NoError(t, err)
	assert.Equal(t, "cn", string(typ))

	body, err = (&ModifyRequest{DN: "cn=x", Changes: []Change{{
		Operation: ModifyReplace,
		Attribute: PartialAttribute{Type: "mail", Values: [][]byte{[]byte("x@y")}},
	}}}).Encode()
	require.NoError(t, err)
	dec = ber.NewBERDecoder(body)
	_, err = dec.ReadOctetString()
	require.NoError(t, err)
	changes, err := dec.ReadSequenceContents()
	require.NoError(t, err)
	change, err := changes.ReadSequenceContents()
	require.NoError(t, err)
	op, err := change.ReadEnumerated()
	require.NoError(t, err)
	assert.EqualValues(t, ModifyReplace, op)

	_, err = (&ModifyRequest{}).Encode()
	assert.ErrorIs(t, err, ErrEmptyEntryDN)
}
