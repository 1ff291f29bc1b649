// Package ldaptest provides a scripted in-process directory server for
// tests. It speaks the real wire codec over net.Pipe; tests register a
// handler per operation type and decide what to send back and when.
//
//	srv := ldaptest.NewServer(t)
//	srv.Handle(ldap.ApplicationSearchRequest, func(r *ldaptest.Request) {
//		r.ReplyAfter(2*time.Second, ldaptest.Done(ldap.ApplicationSearchResultDone, ldap.ResultSuccess))
//	})
//	conn := client.NewConn(srv.ClientConn())
package ldaptest
