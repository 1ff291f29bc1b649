package ldaptest

import "github.com/KilimcininKorOglu/ldapc/internal/ldap"

// Done builds a final response of type t with the given code.
func Done(t ldap.OperationType, code ldap.ResultCode) *ldap.Result {
	return &ldap.Result{Type: t, LDAPResult: ldap.LDAPResult{ResultCode: code}}
}

// BindResponse builds a BindResponse carrying serverSaslCreds.
func BindResponse(code ldap.ResultCode, creds []byte) *ldap.Result {
	return &ldap.Result{
		Type:            ldap.ApplicationBindResponse,
		LDAPResult:      ldap.LDAPResult{ResultCode: code},
		ServerSASLCreds: creds,
	}
}

// ExtendedResponse builds a successful ExtendedResponse.
func ExtendedResponse(name string, value []byte) *ldap.Result {
	return &ldap.Result{
		Type:          ldap.ApplicationExtendedResponse,
		LDAPResult:    ldap.LDAPResult{ResultCode: ldap.ResultSuccess},
		ResponseName:  name,
		ResponseValue: value,
	}
}

// Entry builds a SearchResultEntry from alternating attribute names and values.
func Entry(dn string, attrs ...string) *ldap.SearchResultEntry {
	e := &ldap.SearchResultEntry{ObjectName: dn}
	for i := 0; i+1 < len(attrs); i += 2 {
		e.Attributes = append(e.Attributes, ldap.PartialAttribute{
			Type:   attrs[i],
			Values: [][]byte{[]byte(attrs[i+1])},
		})
	}
	return e
}
