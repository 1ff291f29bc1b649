// Package ber encodes and decodes the subset of ASN.1 BER (ITU-T X.690)
// that LDAP messages use on the wire.
//
// Encoding is append-only. Constructed values are opened with one of the
// Begin/Write*Tag helpers, which reserve a length octet, and closed with the
// matching End call, which back-patches the final length:
//
//	enc := ber.NewBEREncoder(128)
//	pos := enc.BeginSequence()
//	enc.WriteInteger(7)
//	enc.WriteOctetString([]byte("cn=admin"))
//	enc.EndSequence(pos)
//
// Decoding works on a fully framed element. ReadPacket pulls exactly one
// definite-length element off a stream, so a reader goroutine can hand each
// message to NewBERDecoder without buffering partial input.
//
// Indefinite lengths and constructed OCTET STRINGs are rejected; LDAP
// (RFC 4511 §5.1) forbids both.
package ber
