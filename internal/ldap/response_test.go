package ldap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, id int, op ProtocolOp, controls ...Control) (*LDAPMessage, Response) {
	t.Helper()
	msg, err := NewMessage(id, op, controls)
	require.NoError(t, err)
	data, err := msg.Encode()
	require.NoError(t, err)
	parsed, err := ParseLDAPMessage(data)
	require.NoError(t, err)
	resp, err := DecodeResponse(parsed)
	require.NoError(t, err)
	return parsed, resp
}

func TestDecodeBindResponse(t *testing.T) {
	_, resp := roundTrip(t, 1, &Result{
		Type:            ApplicationBindResponse,
		LDAPResult:      LDAPResult{ResultCode: ResultSaslBindInProgress},
		ServerSASLCreds: []byte("r=abc,s=c2FsdA==,i=4096"),
	})
	res, ok := resp.(*Result)
	require.True(t, ok)
	assert.Equal(t, ResultSaslBindInProgress, res.ResultCode)
	assert.Equal(t, []byte("r=abc,s=c2FsdA==,i=4096"), res.ServerSASLCreds)
}

func TestDecodeResultWithReferral(t *testing.T) {
	_, resp := roundTrip(t, 5, &Result{
		Type: ApplicationSearchResultDone,
		LDAPResult: LDAPResult{
			ResultCode:        ResultReferral,
			MatchedDN:         "dc=example,dc=com",
			DiagnosticMessage: "go elsewhere",
			Referral:          []string{"ldap://a/", "ldap://b/"},
		},
	})
	res := resp.(*Result)
	assert.Equal(t, OperationType(ApplicationSearchResultDone), res.Type)
	assert.Equal(t, "dc=example,dc=com", res.MatchedDN)
	assert.Equal(t, "go elsewhere", res.DiagnosticMessage)
	assert.Equal(t, []string{"ldap://a/", "ldap://b/"}, res.Referral)
	assert.Nil(t, res.ServerSASLCreds)
}

func TestDecodeExtendedResponse(t *testing.T) {
	_, resp := roundTrip(t, 3, &Result{
		Type:          ApplicationExtendedResponse,
		ResponseName:  WhoAmIOID,
		ResponseValue: []byte("dn:cn=admin"),
	})
	res := resp.(*Result)
	assert.Equal(t, WhoAmIOID, res.ResponseName)
	assert.Equal(t, []byte("dn:cn=admin"), res.ResponseValue)
}

func TestDecodeNotice(t *testing.T) {
	_, resp := roundTrip(t, 0, &Result{
		Type:         ApplicationExtendedResponse,
		LDAPResult:   LDAPResult{ResultCode: ResultUnavailable, DiagnosticMessage: "shutting down"},
		ResponseName: NoticeOfDisconnectionOID,
	})
	n, ok := resp.(*Notice)
	require.True(t, ok)
	assert.True(t, n.IsDisconnection())
	assert.Equal(t, ResultUnavailable, n.ResultCode)
	assert.Equal(t, "shutting down", n.DiagnosticMessage)
}

func TestDecodeEntryAndReference(t *testing.T) {
	ec, err := (&EntryChange{ChangeType: ChangeTypeModDN, PreviousDN: "cn=old", ChangeNumber: 12}).Control()
	require.NoError(t, err)

	msg, resp := roundTrip(t, 4, &SearchResultEntry{
		ObjectName: "cn=new,dc=x",
		Attributes: []PartialAttribute{
			{Type: "cn", Values: [][]byte{[]byte("new")}},
			{Type: "objectClass", Values: [][]byte{[]byte("top"), []byte("person")}},
		},
	}, ec)
	entry := resp.(*SearchResultEntry)
	assert.Equal(t, "cn=new,dc=x", entry.ObjectName)
	require.Len(t, entry.Attributes, 2)
	assert.Len(t, entry.Attributes[1].Values, 2)

	c, ok := FindControl(msg.Controls, EntryChangeNotificationOID)
	require.True(t, ok)
	got, err := ParseEntryChange(c)
	require.NoError(t, err)
	assert.Equal(t, ChangeTypeModDN, got.ChangeType)
	assert.Equal(t, "cn=old", got.PreviousDN)
	assert.EqualValues(t, 12, got.ChangeNumber)

	_, resp = roundTrip(t, 4, &SearchResultReference{URIs: []string{"ldap://c/dc=x"}})
	assert.Equal(t, []string{"ldap://c/dc=x"}, resp.(*SearchResultReference).URIs)
}

func TestDecodeIntermediate(t *testing.T) {
	_, resp := roundTrip(t, 8, &IntermediateResponse{Name: "1.2.3", Value: []byte{1, 2}})
	ir := resp.(*IntermediateResponse)
	assert.Equal(t, "1.2.3", ir.Name)
	assert.Equal(t, []byte{1, 2}, ir.Value)
}

func TestDecodeUnexpected(t *testing.T) {
	msg, err := NewMessage(1, NewSimpleBind("", nil), nil)
	require.NoError(t, err)
	_, err = DecodeResponse(msg)
	assert.ErrorIs(t, err, ErrUnexpectedResponse)

	_, err = DecodeResponse(&LDAPMessage{MessageID: 1})
	assert.ErrorIs(t, err, ErrMissingOperation)
}

func TestPagedResultsControl(t *testing.T) {
	c, err := (&PagedResults{Size: 100, Cookie: []byte("next")}).Control(false)
	require.NoError(t, err)
	p, err := ParsePagedResults(c)
	require.NoError(t, err)
	assert.Equal(t, 100, p.Size)
	assert.Equal(t, []byte("next"), p.Cookie)

	_, err = ParsePagedResults(Control{OID: "1.2.3"})
	assert.ErrorIs(t, err, ErrControlMismatch)
}

func TestPersistentSearchControl(t *testing.T) {
	c, err := (&PersistentSearch{ChangeTypes: ChangeTypeAdd | ChangeTypeDelete, ChangesOnly: true, ReturnECs: true}).Control()
	require.NoError(t, err)
	assert.Equal(t, PersistentSearchOID, c.OID)
	assert.True(t, c.Criticality)
	assert.Equal(t, []byte{0x30, 0x09, 0x02, 0x01, 0x03, 0x01, 0x01, 0xFF, 0x01, 0x01, 0xFF}, c.Value)
}
