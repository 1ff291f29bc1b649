// Package sasl drives SASL authentication over LDAP Bind.
//
// The Negotiator runs the generic loop: every round is one Bind operation
// executed through a client.Conn; while the server answers
// saslBindInProgress, its challenge is fed to the Mechanism to produce the
// next credentials. Any other result code ends the exchange and is returned
// as the result.
//
// Mechanisms provided: PLAIN, EXTERNAL, CRAM-MD5, DIGEST-MD5, GSSAPI
// (Kerberos V5 via gokrb5) and SCRAM-SHA-1/256/512. The SCRAM message
// pipeline is exposed as pure functions so it can be checked against
// published test vectors.
package sasl
