// Package client implements the asynchronous LDAP operation engine.
//
// A Conn owns one socket and a single reader goroutine. Each request is
// wrapped in a Handle that is configured with callbacks, sent, and then
// awaited:
//
//	conn, err := client.Dial(ctx, "ldap.example.com:389")
//	...
//	h := conn.Search(&ldap.SearchRequest{BaseObject: "dc=example,dc=com", Scope: ldap.ScopeWholeSubtree})
//	h.OnEntry(func(e *client.Entry) { fmt.Println(e.DN()) })
//	res, err := h.Execute(ctx)
//
// A handle completes exactly once, with either a *Result or an *Error. A
// non-success result code is still a result; errors are reserved for
// timeouts, abandons, cancellation, connection loss and local failures.
//
// Callbacks run on the connection's reader goroutine (or on the goroutine
// that completed the handle) and must not block. The terminal callback is
// always the last one a handle delivers.
package client
