package sasl

import (
	"errors"
	"fmt"

	"github.com/KilimcininKorOglu/ldapc/internal/client"
)

const bindOp = "BindRequest"

var (
	ErrMissingCredentials  = errors.New("sasl: missing credentials")
	ErrMissingRealm        = errors.New("sasl: realm required")
	ErrMissingNonce        = errors.New("sasl: server challenge has no nonce")
	ErrUnsupportedQOP      = errors.New("sasl: no supported quality of protection")
	ErrUnexpectedChallenge = errors.New("sasl: unexpected server challenge")
	ErrMalformedChallenge  = errors.New("sasl: malformed server challenge")
	ErrNonceMismatch       = errors.New("sasl: server nonce does not extend client nonce")
	ErrSignatureMismatch   = errors.New("sasl: server signature mismatch")
	ErrServerError         = errors.New("sasl: server reported an error")
	ErrContextConsumed     = errors.New("sasl: security context already created")
	ErrSecurityLayer       = errors.New("sasl: server requires a security layer")
	ErrTooManyRounds       = errors.New("sasl: too many rounds")
	ErrUnknownMechanism    = errors.New("sasl: unknown mechanism")
)

// configError reports missing or unusable local configuration. It is raised
// before the round's request is written.
func configError(mech string, err error, format string, args ...interface{}) error {
	return client.NewError(client.KindSASLConfiguration, bindOp,
		fmt.Errorf("%s: %s: %w", mech, fmt.Sprintf(format, args...), err))
}

// verifyError reports a server that failed authentication checks.
func verifyError(mech string, err error, format string, args ...interface{}) error {
	return client.NewError(client.KindSASLVerification, bindOp,
		fmt.Errorf("%s: %s: %w", mech, fmt.Sprintf(format, args...), err))
}
