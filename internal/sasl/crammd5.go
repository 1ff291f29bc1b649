package sasl

import (
	"crypto/hmac"
	"crypto/md5"
	"encoding/hex"
)

// CRAMMD5 is the CRAM-MD5 mechanism (RFC 2195). The server sends a
// challenge and the client answers with its name and the keyed MD5 digest
// of the challenge.
type CRAMMD5 struct {
	Username string
	Password string

	answered bool
}

func (c *CRAMMD5) Name() string { return "CRAM-MD5" }

func (c *CRAMMD5) Step(challenge []byte) ([]byte, error) {
	if challenge == nil {
		if c.Username == "" || c.Password == "" {
			return nil, configError(c.Name(), ErrMissingCredentials, "username and password are required")
		}
		return nil, nil
	}
	if c.answered {
		return nil, verifyError(c.Name(), ErrUnexpectedChallenge, "challenge already answered")
	}
	if len(challenge) == 0 {
		return nil, configError(c.Name(), ErrMissingNonce, "empty challenge")
	}
	c.answered = true
	return cramResponse(c.Username, c.Password, challenge), nil
}

func cramResponse(user, password string, challenge []byte) []byte {
	mac := hmac.New(md5.New, []byte(password))
	mac.Write(challenge)
	return []byte(user + " " + hex.EncodeToString(mac.Sum(nil)))
}
