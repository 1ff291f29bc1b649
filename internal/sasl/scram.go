package sasl

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"fmt"
	"hash"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/text/secure/precis"
)

// ScramHash selects the SCRAM hash function.
type ScramHash int

const (
	SHA1 ScramHash = iota + 1
	SHA256
	SHA512
)

// Name returns the SASL mechanism name for h.
func (h ScramHash) Name() string {
	switch h {
	case SHA1:
		return "SCRAM-SHA-1"
	case SHA256:
		return "SCRAM-SHA-256"
	case SHA512:
		return "SCRAM-SHA-512"
	}
	return "SCRAM-UNKNOWN"
}

func (h ScramHash) valid() bool {
	return h >= SHA1 && h <= SHA512
}

func (h ScramHash) new() func() hash.Hash {
	switch h {
	case SHA256:
		return sha256.New
	case SHA512:
		return sha512.New
	}
	return sha1.New
}

func (h ScramHash) hmac(key []byte, parts ...string) []byte {
	mac := hmac.New(h.new(), key)
	for _, p := range parts {
		mac.Write([]byte(p))
	}
	return mac.Sum(nil)
}

func (h ScramHash) sum(b []byte) []byte {
	d := h.new()()
	d.Write(b)
	return d.Sum(nil)
}

// ClientFirst is the client-first-message.
type ClientFirst struct {
	mech     string
	username string
	authzID  string
	nonce    string
}

// NewClientFirst builds the client-first-message for username with the
// given client nonce. authzID may be empty. The username is prepared with
// the OpaqueString profile like the password.
func NewClientFirst(h ScramHash, username, authzID, nonce string) (*ClientFirst, error) {
	if username == "" {
		return nil, configError(h.Name(), ErrMissingCredentials, "username is required")
	}
	if nonce == "" || strings.ContainsRune(nonce, ',') {
		return nil, configError(h.Name(), ErrMissingNonce, "client nonce must be non-empty printable text")
	}
	username, err := precis.OpaqueString.String(username)
	if err != nil {
		return nil, configError(h.Name(), err, "username cannot be prepared")
	}
	return &ClientFirst{mech: h.Name(), username: username, authzID: authzID, nonce: nonce}, nil
}

// Nonce returns the client nonce.
func (m *ClientFirst) Nonce() string { return m.nonce }

func (m *ClientFirst) gs2Header() string {
	if m.authzID == "" {
		return "n,,"
	}
	return "n,a=" + escapeName(m.authzID) + ","
}

// Bare returns client-first-message-bare.
func (m *ClientFirst) Bare() string {
	return "n=" + escapeName(m.username) + ",r=" + m.nonce
}

// Message returns the full client-first-message.
func (m *ClientFirst) Message() string {
	return m.gs2Header() + m.Bare()
}

// ServerFirst is the parsed server-first-message.
type ServerFirst struct {
	raw        string
	nonce      string
	salt       []byte
	iterations int
}

func (m *ServerFirst) Nonce() string   { return m.nonce }
func (m *ServerFirst) Salt() []byte    { return append([]byte(nil), m.salt...) }
func (m *ServerFirst) Iterations() int { return m.iterations }

// ParseServerFirst parses the server-first-message that answers cf. The
// combined nonce must extend the client nonce.
func ParseServerFirst(cf *ClientFirst, b []byte) (*ServerFirst, error) {
	attrs, err := scramAttributes(string(b))
	if err != nil {
		return nil, verifyError(cf.mech, err, "server-first-message")
	}
	if len(attrs) > 0 && attrs[0].key == 'm' {
		return nil, verifyError(cf.mech, ErrMalformedChallenge, "unsupported mandatory extension")
	}
	if e, ok := lookup(attrs, 'e'); ok {
		return nil, verifyError(cf.mech, ErrServerError, "%s", e)
	}

	sf := &ServerFirst{raw: string(b)}
	r, ok := lookup(attrs, 'r')
	if !ok {
		return nil, verifyError(cf.mech, ErrMalformedChallenge, "missing nonce")
	}
	if len(r) <= len(cf.nonce) || !strings.HasPrefix(r, cf.nonce) {
		return nil, verifyError(cf.mech, ErrNonceMismatch, "got %q", r)
	}
	sf.nonce = r

	s, ok := lookup(attrs, 's')
	if !ok {
		return nil, verifyError(cf.mech, ErrMalformedChallenge, "missing salt")
	}
	if sf.salt, err = base64.StdEncoding.DecodeString(s); err != nil || len(sf.salt) == 0 {
		return nil, verifyError(cf.mech, ErrMalformedChallenge, "invalid salt %q", s)
	}

	i, ok := lookup(attrs, 'i')
	if !ok {
		return nil, verifyError(cf.mech, ErrMalformedChallenge, "missing iteration count")
	}
	if sf.iterations, err = strconv.Atoi(i); err != nil || sf.iterations <= 0 {
		return nil, verifyError(cf.mech, ErrMalformedChallenge, "invalid iteration count %q", i)
	}
	return sf, nil
}

// ClientFinal is the client-final-message together with the server
// signature the client expects in return.
type ClientFinal struct {
	mech         string
	withoutProof string
	proof        []byte
	serverSig    []byte
}

// NewClientFinal derives the proof for password. The password is prepared
// with the OpaqueString profile before PBKDF2.
func NewClientFinal(h ScramHash, cf *ClientFirst, sf *ServerFirst, password string) (*ClientFinal, error) {
	if password == "" {
		return nil, configError(h.Name(), ErrMissingCredentials, "password is required")
	}
	prepared, err := precis.OpaqueString.String(password)
	if err != nil {
		return nil, configError(h.Name(), err, "password cannot be prepared")
	}

	salted := pbkdf2.Key([]byte(prepared), sf.salt, sf.iterations, h.new()().Size(), h.new())
	clientKey := h.hmac(salted, "Client Key")
	storedKey := h.sum(clientKey)
	serverKey := h.hmac(salted, "Server Key")

	withoutProof := "c=" + base64.StdEncoding.EncodeToString([]byte(cf.gs2Header())) + ",r=" + sf.nonce
	authMessage := cf.Bare() + "," + sf.raw + "," + withoutProof

	proof := h.hmac(storedKey, authMessage)
	for i := range proof {
		proof[i] ^= clientKey[i]
	}
	return &ClientFinal{
		mech:         h.Name(),
		withoutProof: withoutProof,
		proof:        proof,
		serverSig:    h.hmac(serverKey, authMessage),
	}, nil
}

// Proof returns the client proof.
func (m *ClientFinal) Proof() []byte { return append([]byte(nil), m.proof...) }

// Message returns the full client-final-message.
func (m *ClientFinal) Message() string {
	return m.withoutProof + ",p=" + base64.StdEncoding.EncodeToString(m.proof)
}

// ServerFinal is the parsed server-final-message.
type ServerFinal struct {
	verifier []byte
}

// ParseServerFinal parses a server-final-message. An e= attribute is
// reported as ErrServerError.
func ParseServerFinal(mech string, b []byte) (*ServerFinal, error) {
	attrs, err := scramAttributes(string(b))
	if err != nil {
		return nil, verifyError(mech, err, "server-final-message")
	}
	if e, ok := lookup(attrs, 'e'); ok {
		return nil, verifyError(mech, ErrServerError, "%s", e)
	}
	v, ok := lookup(attrs, 'v')
	if !ok {
		return nil, verifyError(mech, ErrMalformedChallenge, "missing verifier")
	}
	sig, err := base64.StdEncoding.DecodeString(v)
	if err != nil {
		return nil, verifyError(mech, ErrMalformedChallenge, "invalid verifier %q", v)
	}
	return &ServerFinal{verifier: sig}, nil
}

// VerifyServerFinal checks the server signature against the one derived
// for cf.
func VerifyServerFinal(cf *ClientFinal, sf *ServerFinal) error {
	if !hmac.Equal(cf.serverSig, sf.verifier) {
		return verifyError(cf.mech, ErrSignatureMismatch, "server signature does not match")
	}
	return nil
}

// SCRAM is the SCRAM-SHA-* mechanism family (RFC 5802, RFC 7677) without
// channel binding. The server-final-message is accepted either in the
// success result or as an extra saslBindInProgress challenge.
type SCRAM struct {
	Hash     ScramHash
	Username string
	Password string
	AuthzID  string

	nonce    func() (string, error)
	first    *ClientFirst
	final    *ClientFinal
	verified bool
}

func NewSCRAMSHA1(username, password string) *SCRAM {
	return &SCRAM{Hash: SHA1, Username: username, Password: password}
}

func NewSCRAMSHA256(username, password string) *SCRAM {
	return &SCRAM{Hash: SHA256, Username: username, Password: password}
}

func NewSCRAMSHA512(username, password string) *SCRAM {
	return &SCRAM{Hash: SHA512, Username: username, Password: password}
}

func (s *SCRAM) Name() string { return s.Hash.Name() }

func (s *SCRAM) Step(challenge []byte) ([]byte, error) {
	switch {
	case challenge == nil:
		return s.start()
	case s.first != nil && s.final == nil:
		sf, err := ParseServerFirst(s.first, challenge)
		if err != nil {
			return nil, err
		}
		if s.final, err = NewClientFinal(s.Hash, s.first, sf, s.Password); err != nil {
			return nil, err
		}
		return []byte(s.final.Message()), nil
	case s.final != nil && !s.verified:
		if err := s.verify(challenge); err != nil {
			return nil, err
		}
		return []byte{}, nil
	}
	return nil, verifyError(s.Name(), ErrUnexpectedChallenge, "exchange already complete")
}

// Complete verifies the server signature unless an earlier challenge
// already carried it.
func (s *SCRAM) Complete(serverCreds []byte) error {
	if s.verified {
		return nil
	}
	if s.final == nil {
		return verifyError(s.Name(), ErrUnexpectedChallenge, "success before client-final-message")
	}
	if len(serverCreds) == 0 {
		return verifyError(s.Name(), ErrSignatureMismatch, "server-final-message missing")
	}
	return s.verify(serverCreds)
}

func (s *SCRAM) start() ([]byte, error) {
	if !s.Hash.valid() {
		return nil, configError(s.Name(), fmt.Errorf("hash %d", s.Hash), "unsupported hash")
	}
	if s.Password == "" {
		return nil, configError(s.Name(), ErrMissingCredentials, "password is required")
	}
	newNonce := s.nonce
	if newNonce == nil {
		newNonce = randomNonce
	}
	nonce, err := newNonce()
	if err != nil {
		return nil, configError(s.Name(), err, "cannot create client nonce")
	}
	s.first, err = NewClientFirst(s.Hash, s.Username, s.AuthzID, nonce)
	if err != nil {
		return nil, err
	}
	s.final, s.verified = nil, false
	return []byte(s.first.Message()), nil
}

func (s *SCRAM) verify(b []byte) error {
	sf, err := ParseServerFinal(s.Name(), b)
	if err != nil {
		return err
	}
	if err := VerifyServerFinal(s.final, sf); err != nil {
		return err
	}
	s.verified = true
	return nil
}

type scramAttr struct {
	key   byte
	value string
}

func scramAttributes(s string) ([]scramAttr, error) {
	if s == "" {
		return nil, ErrMalformedChallenge
	}
	parts := strings.Split(s, ",")
	out := make([]scramAttr, 0, len(parts))
	for _, p := range parts {
		if len(p) < 2 || p[1] != '=' {
			return nil, ErrMalformedChallenge
		}
		out = append(out, scramAttr{key: p[0], value: p[2:]})
	}
	return out, nil
}

func lookup(attrs []scramAttr, key byte) (string, bool) {
	for _, a := range attrs {
		if a.key == key {
			return a.value, true
		}
	}
	return "", false
}

func escapeName(s string) string {
	return strings.NewReplacer("=", "=3D", ",", "=2C").Replace(s)
}
