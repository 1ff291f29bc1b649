// Package ldap encodes LDAP v3 requests and decodes server responses
// (RFC 4511), plus the response encoders a scripted test server needs.
//
// Every protocol operation implements ProtocolOp and is wrapped in an
// envelope with NewMessage:
//
//	msg, err := ldap.NewMessage(7, ldap.NewSimpleBind("cn=admin", pw), nil)
//	data, err := msg.Encode()
//
// Incoming bytes are parsed with ParseLDAPMessage and the operation body is
// turned into one of the Response variants by DecodeResponse:
//
//	switch r := resp.(type) {
//	case *ldap.Result:                // final result of an operation
//	case *ldap.SearchResultEntry:     // partial search entry
//	case *ldap.SearchResultReference: // continuation reference
//	case *ldap.IntermediateResponse:  // partial intermediate
//	case *ldap.Notice:                // unsolicited, message ID 0
//	}
package ldap
