package sasl

import (
	"errors"
	"fmt"
	"sync/atomic"

	krbclient "github.com/jcmturner/gokrb5/v8/client"
	"github.com/jcmturner/gokrb5/v8/crypto"
	"github.com/jcmturner/gokrb5/v8/gssapi"
	"github.com/jcmturner/gokrb5/v8/iana/flags"
	"github.com/jcmturner/gokrb5/v8/iana/keyusage"
	"github.com/jcmturner/gokrb5/v8/messages"
	"github.com/jcmturner/gokrb5/v8/spnego"
	"github.com/jcmturner/gokrb5/v8/types"
)

// Security layer bits of the GSSAPI negotiation token (RFC 4752 §3.3).
const (
	layerNone      byte = 0x01
	layerIntegrity byte = 0x02
	layerPrivacy   byte = 0x04
)

// SecurityContext is an initiator GSS-API security context.
type SecurityContext interface {
	// InitSecContext returns the initial context token.
	InitSecContext() ([]byte, error)
	// VerifyReply checks the acceptor's reply token (mutual authentication).
	VerifyReply(token []byte) error
	Unwrap(token []byte) ([]byte, error)
	Wrap(payload []byte) ([]byte, error)
}

// ContextFactory creates the security context for one negotiation.
type ContextFactory func() (SecurityContext, error)

// GSSAPI is the GSSAPI mechanism (RFC 4752). It selects no security layer.
//
// The context factory is consumed by the first Step; a GSSAPI value serves
// a single negotiation.
type GSSAPI struct {
	AuthzID string

	factory atomic.Pointer[ContextFactory]
	sc      SecurityContext
	stage   int
}

// NewGSSAPI returns a GSSAPI mechanism that will create its context with f.
func NewGSSAPI(f ContextFactory, authzID string) *GSSAPI {
	g := &GSSAPI{AuthzID: authzID}
	if f != nil {
		g.factory.Store(&f)
	}
	return g
}

func (g *GSSAPI) Name() string { return "GSSAPI" }

func (g *GSSAPI) Step(challenge []byte) ([]byte, error) {
	if challenge == nil {
		f := g.factory.Swap(nil)
		if f == nil {
			return nil, configError(g.Name(), ErrContextConsumed, "mechanism cannot be reused")
		}
		sc, err := (*f)()
		if err != nil {
			return nil, configError(g.Name(), err, "cannot create security context")
		}
		token, err := sc.InitSecContext()
		if err != nil {
			return nil, configError(g.Name(), err, "cannot initialize security context")
		}
		g.sc, g.stage = sc, 1
		return token, nil
	}
	if g.sc == nil {
		return nil, verifyError(g.Name(), ErrUnexpectedChallenge, "no security context")
	}

	switch g.stage {
	case 1:
		g.stage = 2
		if len(challenge) > 0 {
			if err := g.sc.VerifyReply(challenge); err != nil {
				return nil, verifyError(g.Name(), err, "acceptor reply rejected")
			}
		}
		return []byte{}, nil
	case 2:
		g.stage = 3
		return g.negotiateLayer(challenge)
	}
	return nil, verifyError(g.Name(), ErrUnexpectedChallenge, "exchange already complete")
}

func (g *GSSAPI) negotiateLayer(token []byte) ([]byte, error) {
	offer, err := g.sc.Unwrap(token)
	if err != nil {
		return nil, verifyError(g.Name(), err, "cannot unwrap layer offer")
	}
	if len(offer) != 4 {
		return nil, verifyError(g.Name(), ErrMalformedChallenge, "layer offer has %d bytes", len(offer))
	}
	if offer[0]&layerNone == 0 {
		return nil, configError(g.Name(), ErrSecurityLayer, "server offers layers %#02x", offer[0]&(layerIntegrity|layerPrivacy))
	}

	reply := make([]byte, 4, 4+len(g.AuthzID))
	reply[0] = layerNone
	reply = append(reply, g.AuthzID...)
	out, err := g.sc.Wrap(reply)
	if err != nil {
		return nil, configError(g.Name(), err, "cannot wrap layer selection")
	}
	return out, nil
}

var errKRBError = errors.New("kerberos error")

// NewKerberosContextFactory returns a factory for Kerberos V5 contexts
// that use cl's tickets for the service principal spn, such as
// "ldap/dc1.example.com".
func NewKerberosContextFactory(cl *krbclient.Client, spn string) ContextFactory {
	return func() (SecurityContext, error) {
		if cl == nil {
			return nil, ErrMissingCredentials
		}
		return &kerberosContext{cl: cl, spn: spn}, nil
	}
}

type kerberosContext struct {
	cl  *krbclient.Client
	spn string
	key types.EncryptionKey
}

func (k *kerberosContext) InitSecContext() ([]byte, error) {
	tkt, key, err := k.cl.GetServiceTicket(k.spn)
	if err != nil {
		return nil, fmt.Errorf("service ticket for %s: %w", k.spn, err)
	}
	k.key = key
	token, err := spnego.NewKRB5TokenAPREQ(k.cl, tkt, key,
		[]int{gssapi.ContextFlagInteg, gssapi.ContextFlagConf, gssapi.ContextFlagMutual},
		[]int{flags.APOptionMutualRequired})
	if err != nil {
		return nil, err
	}
	return token.Marshal()
}

func (k *kerberosContext) VerifyReply(b []byte) error {
	var token spnego.KRB5Token
	if err := token.Unmarshal(b); err != nil {
		return err
	}
	if token.IsKRBError() {
		return fmt.Errorf("%w: %s", errKRBError, token.KRBError.Error())
	}
	if !token.IsAPRep() {
		return ErrMalformedChallenge
	}
	plain, err := crypto.DecryptEncPart(token.APRep.EncPart, k.key, keyusage.AP_REP_ENCPART)
	if err != nil {
		return err
	}
	var part messages.EncAPRepPart
	if err := part.Unmarshal(plain); err != nil {
		return err
	}
	if len(part.Subkey.KeyValue) > 0 {
		k.key = part.Subkey
	}
	return nil
}

func (k *kerberosContext) Unwrap(b []byte) ([]byte, error) {
	var wt gssapi.WrapToken
	if err := wt.Unmarshal(b, true); err != nil {
		return nil, err
	}
	ok, err := wt.Verify(k.key, keyusage.GSSAPI_ACCEPTOR_SEAL)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrSignatureMismatch
	}
	return wt.Payload, nil
}

func (k *kerberosContext) Wrap(payload []byte) ([]byte, error) {
	wt, err := gssapi.NewInitiatorWrapToken(payload, k.key)
	if err != nil {
		return nil, err
	}
	return wt.Marshal()
}
