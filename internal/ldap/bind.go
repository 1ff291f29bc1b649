package ldap

import (
	"errors"

	"github.com/KilimcininKorOglu/ldapc/internal/ber"
)

// Authentication choice tags.
const (
	AuthSimple = 0
	AuthSASL   = 3
)

// AuthMethod selects simple or SASL authentication.
type AuthMethod int

const (
	AuthMethodSimple AuthMethod = iota
	AuthMethodSASL
)

func (a AuthMethod) String() string {
	switch a {
	case AuthMethodSimple:
		return "simple"
	case AuthMethodSASL:
		return "sasl"
	default:
		return "unknown"
	}
}

// SASLCredentials is the SaslCredentials SEQUENCE. Nil Credentials are
// omitted on the wire; an empty non-nil slice is sent as an empty OCTET STRING.
type SASLCredentials struct {
	Mechanism   string
	Credentials []byte
}

// BindRequest is [APPLICATION 0].
type BindRequest struct {
	Version         int
	Name            string
	AuthMethod      AuthMethod
	SimplePassword  []byte
	SASLCredentials *SASLCredentials
}

var (
	ErrInvalidBindVersion     = errors.New("ldap: bind version must be between 1 and 127")
	ErrUnknownAuthMethod      = errors.New("ldap: unknown authentication method")
	ErrInvalidSASLCredentials = errors.New("ldap: invalid SASL credentials")
)

// NewSimpleBind builds a version 3 simple bind.
func NewSimpleBind(dn string, password []byte) *BindRequest {
	return &BindRequest{Version: 3, Name: dn, AuthMethod: AuthMethodSimple, SimplePassword: password}
}

// NewSASLBind builds a version 3 SASL bind round.
func NewSASLBind(mechanism string, credentials []byte) *BindRequest {
	return &BindRequest{
		Version:         3,
		AuthMethod:      AuthMethodSASL,
		SASLCredentials: &SASLCredentials{Mechanism: mechanism, Credentials: credentials},
	}
}

func (r *BindRequest) OperationType() OperationType { return ApplicationBindRequest }

// Encode returns the request body.
func (r *BindRequest) Encode() ([]byte, error) {
	if r.Version < 1 || r.Version > 127 {
		return nil, ErrInvalidBindVersion
	}
	enc := ber.NewBEREncoder(128)
	if err := enc.WriteInteger(int64(r.Version)); err != nil {
		return nil, err
	}
	if err := enc.WriteOctetString([]byte(r.Name)); err != nil {
		return nil, err
	}

	switch r.AuthMethod {
	case AuthMethodSimple:
		if err := enc.WriteTaggedValue(AuthSimple, false, r.SimplePassword); err != nil {
			return nil, err
		}
	case AuthMethodSASL:
		if r.SASLCredentials == nil || r.SASLCredentials.Mechanism == "" {
			return nil, ErrInvalidSASLCredentials
		}
		pos := enc.WriteContextTag(AuthSASL, true)
		if err := enc.WriteOctetString([]byte(r.SASLCredentials.Mechanism)); err != nil {
			return nil, err
		}
		if r.SASLCredentials.Credentials != nil {
			if err := enc.WriteOctetString(r.SASLCredentials.Credentials); err != nil {
				return nil, err
			}
		}
		if err := enc.EndContextTag(pos); err != nil {
			return nil, err
		}
	default:
		return nil, ErrUnknownAuthMethod
	}
	return enc.Bytes(), nil
}

// ParseBindRequest decodes a BindRequest body.
func ParseBindRequest(data []byte) (*BindRequest, error) {
	if len(data) == 0 {
		return nil, NewParseError(0, "empty bind request data", nil)
	}
	dec := ber.NewBERDecoder(data)
	req := &BindRequest{}

	version, err := dec.ReadInteger()
	if err != nil {
		return nil, NewParseError(dec.Offset(), "failed to read bind version", err)
	}
	if version < 1 || version > 127 {
		return nil, ErrInvalidBindVersion
	}
	req.Version = int(version)

	name, err := dec.ReadOctetString()
	if err != nil {
		return nil, NewParseError(dec.Offset(), "failed to read bind name", err)
	}
	req.Name = string(name)

	tag, constructed, auth, err := dec.ReadTaggedValue()
	if err != nil {
		return nil, NewParseError(dec.Offset(), "failed to read authentication", err)
	}
	switch tag {
	case AuthSimple:
		req.AuthMethod = AuthMethodSimple
		req.SimplePassword = auth
	case AuthSASL:
		if !constructed {
			return nil, NewParseError(dec.Offset(), "SASL credentials must be constructed", ErrInvalidSASLCredentials)
		}
		sd := ber.NewBERDecoder(auth)
		mech, err := sd.ReadOctetString()
		if err != nil {
			return nil, NewParseError(dec.Offset(), "failed to read SASL mechanism", err)
		}
		creds := &SASLCredentials{Mechanism: string(mech)}
		if sd.Remaining() > 0 {
			if creds.Credentials, err = sd.ReadOctetString(); err != nil {
				return nil, NewParseError(dec.Offset(), "failed to read SASL credentials", err)
			}
		}
		req.AuthMethod = AuthMethodSASL
		req.SASLCredentials = creds
	default:
		return nil, NewParseError(dec.Offset(), "unknown authentication method tag", ErrUnknownAuthMethod)
	}
	return req, nil
}
