package sasl

import (
	"sort"
	"strings"

	krbclient "github.com/jcmturner/gokrb5/v8/client"
)

// Credentials carries everything a mechanism may need. Each mechanism uses
// only the fields it understands.
type Credentials struct {
	Username string
	Password string
	AuthzID  string
	Realm    string
	Host     string // server host name for DIGEST-MD5 and the default SPN

	Kerberos *krbclient.Client
	SPN      string // defaults to "ldap/" + Host
}

var mechanisms = map[string]func(Credentials) Mechanism{
	"PLAIN": func(c Credentials) Mechanism {
		return &Plain{AuthzID: c.AuthzID, Username: c.Username, Password: c.Password}
	},
	"EXTERNAL": func(c Credentials) Mechanism {
		return &External{AuthzID: c.AuthzID}
	},
	"CRAM-MD5": func(c Credentials) Mechanism {
		return &CRAMMD5{Username: c.Username, Password: c.Password}
	},
	"DIGEST-MD5": func(c Credentials) Mechanism {
		return &DigestMD5{Username: c.Username, Password: c.Password, AuthzID: c.AuthzID, Realm: c.Realm, Host: c.Host}
	},
	"GSSAPI": func(c Credentials) Mechanism {
		spn := c.SPN
		if spn == "" && c.Host != "" {
			spn = "ldap/" + c.Host
		}
		return NewGSSAPI(NewKerberosContextFactory(c.Kerberos, spn), c.AuthzID)
	},
	"SCRAM-SHA-1": func(c Credentials) Mechanism {
		return &SCRAM{Hash: SHA1, Username: c.Username, Password: c.Password, AuthzID: c.AuthzID}
	},
	"SCRAM-SHA-256": func(c Credentials) Mechanism {
		return &SCRAM{Hash: SHA256, Username: c.Username, Password: c.Password, AuthzID: c.AuthzID}
	},
	"SCRAM-SHA-512": func(c Credentials) Mechanism {
		return &SCRAM{Hash: SHA512, Username: c.Username, Password: c.Password, AuthzID: c.AuthzID}
	},
}

// New returns a fresh mechanism by SASL name (case-insensitive).
func New(name string, c Credentials) (Mechanism, error) {
	f, ok := mechanisms[strings.ToUpper(name)]
	if !ok {
		return nil, configError(name, ErrUnknownMechanism, "supported: %s", strings.Join(Names(), ", "))
	}
	return f(c), nil
}

// Names lists the supported mechanism names.
func Names() []string {
	names := make([]string, 0, len(mechanisms))
	for n := range mechanisms {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
