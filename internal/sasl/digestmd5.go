package sasl

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"strings"

	"golang.org/x/text/encoding/charmap"
)

// DigestMD5 is the DIGEST-MD5 mechanism (RFC 2831) with qop=auth.
//
// If the server offers several realms, Realm must be set. A single offered
// realm is used when Realm is empty.
type DigestMD5 struct {
	Username string
	Password string
	AuthzID  string
	Realm    string
	Service  string // digest-uri service, "ldap" when empty
	Host     string // digest-uri host

	cnonce  func() (string, error)
	stage   int
	rspauth string
	checked bool
}

func (d *DigestMD5) Name() string { return "DIGEST-MD5" }

func (d *DigestMD5) Step(challenge []byte) ([]byte, error) {
	if challenge == nil {
		if d.Username == "" || d.Password == "" {
			return nil, configError(d.Name(), ErrMissingCredentials, "username and password are required")
		}
		if d.Host == "" {
			return nil, configError(d.Name(), ErrMissingCredentials, "host is required for the digest-uri")
		}
		return nil, nil
	}
	switch d.stage {
	case 0:
		d.stage = 1
		return d.respond(challenge)
	case 1:
		d.stage = 2
		if err := d.verify(challenge); err != nil {
			return nil, err
		}
		return []byte{}, nil
	}
	return nil, verifyError(d.Name(), ErrUnexpectedChallenge, "exchange already complete")
}

// Complete accepts rspauth carried in the success result when the server
// skipped the extra round.
func (d *DigestMD5) Complete(serverCreds []byte) error {
	if d.checked {
		return nil
	}
	if len(serverCreds) == 0 {
		return verifyError(d.Name(), ErrSignatureMismatch, "server did not send rspauth")
	}
	return d.verify(serverCreds)
}

func (d *DigestMD5) respond(challenge []byte) ([]byte, error) {
	dirs, err := parseDirectives(string(challenge))
	if err != nil {
		return nil, verifyError(d.Name(), err, "cannot parse challenge")
	}

	nonce := first(dirs["nonce"])
	if nonce == "" {
		return nil, configError(d.Name(), ErrMissingNonce, "challenge has no nonce")
	}
	if qops, ok := dirs["qop"]; ok && !offers(qops, "auth") {
		return nil, configError(d.Name(), ErrUnsupportedQOP, "server offers %q", strings.Join(qops, ","))
	}

	realm := d.Realm
	if realm == "" {
		switch offered := dirs["realm"]; len(offered) {
		case 0:
		case 1:
			realm = offered[0]
		default:
			return nil, configError(d.Name(), ErrMissingRealm, "server offers %d realms", len(offered))
		}
	}

	newCnonce := d.cnonce
	if newCnonce == nil {
		newCnonce = randomNonce
	}
	cnonce, err := newCnonce()
	if err != nil {
		return nil, configError(d.Name(), err, "cannot create client nonce")
	}

	service := d.Service
	if service == "" {
		service = "ldap"
	}
	utf8 := strings.EqualFold(first(dirs["charset"]), "utf-8")
	p := digestParams{
		username:  latin1(d.Username, utf8),
		realm:     latin1(realm, utf8),
		password:  latin1(d.Password, utf8),
		nonce:     nonce,
		cnonce:    cnonce,
		nc:        "00000001",
		qop:       "auth",
		digestURI: service + "/" + d.Host,
		authzID:   d.AuthzID,
	}
	d.rspauth = p.digest("")

	var b strings.Builder
	if utf8 {
		b.WriteString("charset=utf-8,")
	}
	b.WriteString(`username="` + quote(d.Username) + `"`)
	if realm != "" {
		b.WriteString(`,realm="` + quote(realm) + `"`)
	}
	b.WriteString(`,nonce="` + quote(nonce) + `"`)
	b.WriteString(`,cnonce="` + quote(cnonce) + `"`)
	b.WriteString(",nc=" + p.nc)
	b.WriteString(",qop=" + p.qop)
	b.WriteString(`,digest-uri="` + quote(p.digestURI) + `"`)
	b.WriteString(",response=" + p.digest("AUTHENTICATE"))
	if d.AuthzID != "" {
		b.WriteString(`,authzid="` + quote(d.AuthzID) + `"`)
	}
	return []byte(b.String()), nil
}

func (d *DigestMD5) verify(challenge []byte) error {
	dirs, err := parseDirectives(string(challenge))
	if err != nil {
		return verifyError(d.Name(), err, "cannot parse rspauth")
	}
	got := first(dirs["rspauth"])
	if d.rspauth == "" || !hmac.Equal([]byte(got), []byte(d.rspauth)) {
		return verifyError(d.Name(), ErrSignatureMismatch, "rspauth does not match")
	}
	d.checked = true
	return nil
}

type digestParams struct {
	username, realm, password string
	nonce, cnonce, nc, qop    string
	digestURI, authzID        string
}

// digest computes the response value; method is "AUTHENTICATE" for the
// client response and empty for the expected rspauth.
func (p digestParams) digest(method string) string {
	secret := md5.Sum([]byte(p.username + ":" + p.realm + ":" + p.password))
	a1 := string(secret[:]) + ":" + p.nonce + ":" + p.cnonce
	if p.authzID != "" {
		a1 += ":" + p.authzID
	}
	a2 := method + ":" + p.digestURI
	return hexMD5(hexMD5(a1) + ":" + p.nonce + ":" + p.nc + ":" + p.cnonce + ":" + p.qop + ":" + hexMD5(a2))
}

func hexMD5(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// latin1 converts s to ISO 8859-1 when the server announced utf-8 and every
// rune is representable, as the digest calculation requires.
func latin1(s string, utf8 bool) string {
	if !utf8 {
		return s
	}
	out, err := charmap.ISO8859_1.NewEncoder().String(s)
	if err != nil {
		return s
	}
	return out
}

func quote(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

func offers(values []string, want string) bool {
	for _, v := range values {
		for _, item := range strings.Split(v, ",") {
			if strings.EqualFold(strings.TrimSpace(item), want) {
				return true
			}
		}
	}
	return false
}

// parseDirectives parses a comma separated list of key=value pairs where
// values may be quoted strings with backslash escapes. Repeated keys keep
// every value.
func parseDirectives(s string) (map[string][]string, error) {
	out := make(map[string][]string)
	i := 0
	for i < len(s) {
		for i < len(s) && (s[i] == ',' || s[i] == ' ' || s[i] == '\t') {
			i++
		}
		if i >= len(s) {
			break
		}
		eq := strings.IndexByte(s[i:], '=')
		if eq <= 0 {
			return nil, ErrMalformedChallenge
		}
		key := strings.ToLower(strings.TrimSpace(s[i : i+eq]))
		i += eq + 1

		var val strings.Builder
		if i < len(s) && s[i] == '"' {
			i++
			closed := false
			for i < len(s) {
				c := s[i]
				if c == '\\' && i+1 < len(s) {
					val.WriteByte(s[i+1])
					i += 2
					continue
				}
				i++
				if c == '"' {
					closed = true
					break
				}
				val.WriteByte(c)
			}
			if !closed {
				return nil, ErrMalformedChallenge
			}
		} else {
			end := strings.IndexByte(s[i:], ',')
			if end < 0 {
				end = len(s) - i
			}
			val.WriteString(strings.TrimSpace(s[i : i+end]))
			i += end
		}
		out[key] = append(out[key], val.String())
	}
	return out, nil
}

func randomNonce() (string, error) {
	b := make([]byte, 18)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawStdEncoding.EncodeToString(b), nil
}
