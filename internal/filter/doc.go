// Package filter parses RFC 4515 string filters and converts them to and
// from the RFC 4511 Filter CHOICE carried in search requests.
//
// Filters can be built programmatically:
//
//	// (&(objectClass=person)(uid=alice))
//	f := filter.NewAndFilter(
//	    filter.NewEqualityFilter("objectClass", []byte("person")),
//	    filter.NewEqualityFilter("uid", []byte("alice")),
//	)
//
// or parsed from their string form:
//
//	f, err := filter.Parse("(&(objectClass=person)(cn=J*n))")
//
// Encode writes a filter into a ber.BEREncoder; Decode reads one back. The
// numeric value of each Type is its context tag on the wire.
package filter
