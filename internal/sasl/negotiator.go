package sasl

import (
	"context"
	"errors"
	"time"

	"github.com/KilimcininKorOglu/ldapc/internal/client"
	"github.com/KilimcininKorOglu/ldapc/internal/ldap"
	"github.com/KilimcininKorOglu/ldapc/internal/logging"
)

// DefaultMaxRounds bounds one negotiation.
const DefaultMaxRounds = 10

// Mechanism produces the credentials for each round. Step is first called
// with a nil challenge and returns the initial response (nil for none);
// later calls always get a non-nil, possibly empty, challenge.
type Mechanism interface {
	Name() string
	Step(challenge []byte) ([]byte, error)
}

// Completer is implemented by mechanisms that must check the server's
// final credentials once the bind has succeeded.
type Completer interface {
	Complete(serverCreds []byte) error
}

// Binder creates bind handles. *client.Conn implements it.
type Binder interface {
	Bind(req *ldap.BindRequest, controls ...ldap.Control) *client.Handle
}

// Metrics receives one event per finished negotiation.
type Metrics interface {
	BindCompleted(mechanism string, outcome string, rounds int)
}

// Negotiator runs SASL exchanges. The zero value is ready to use.
type Negotiator struct {
	MaxRounds int
	Timeout   time.Duration // per-round Await timeout; 0 keeps the connection default
	Controls  []ldap.Control
	Logger    logging.Logger
	Metrics   Metrics
}

// Bind authenticates with mech using a default Negotiator.
func Bind(ctx context.Context, b Binder, mech Mechanism) (*client.Result, error) {
	var n Negotiator
	return n.Bind(ctx, b, mech)
}

// Bind runs the exchange. A final result other than saslBindInProgress is
// returned as is, success or not; errors are reserved for failures of the
// operation engine and of the mechanism.
func (n *Negotiator) Bind(ctx context.Context, b Binder, mech Mechanism) (*client.Result, error) {
	log := n.Logger
	if log == nil {
		log = logging.NewNop()
	}
	log = log.WithFields("mechanism", mech.Name())
	limit := n.MaxRounds
	if limit <= 0 {
		limit = DefaultMaxRounds
	}

	res, rounds, err := n.run(ctx, b, mech, limit, log)
	if n.Metrics != nil {
		n.Metrics.BindCompleted(mech.Name(), outcome(res, err), rounds)
	}
	if err != nil {
		log.Warn("sasl bind failed", "rounds", rounds, "error", err)
		return nil, err
	}
	log.Info("sasl bind finished", "rounds", rounds, "result", res.Code().String())
	return res, nil
}

func (n *Negotiator) run(ctx context.Context, b Binder, mech Mechanism, limit int, log logging.Logger) (*client.Result, int, error) {
	creds, err := mech.Step(nil)
	if err != nil {
		return nil, 0, normalize(mech, err)
	}
	for rounds := 1; ; rounds++ {
		if rounds > limit {
			return nil, limit, configError(mech.Name(), ErrTooManyRounds, "no outcome after %d rounds", limit)
		}

		h := b.Bind(ldap.NewSASLBind(mech.Name(), creds), n.Controls...)
		if n.Timeout > 0 {
			h.SetTimeout(n.Timeout)
		}
		res, err := h.Execute(ctx)
		if err != nil {
			return nil, rounds, err
		}
		log.Debug("sasl round", "round", rounds, "result", res.Code().String())

		switch res.Code() {
		case ldap.ResultSaslBindInProgress:
			challenge := res.ServerSASLCreds()
			if challenge == nil {
				challenge = []byte{}
			}
			if creds, err = mech.Step(challenge); err != nil {
				return nil, rounds, normalize(mech, err)
			}
		case ldap.ResultSuccess:
			if c, ok := mech.(Completer); ok {
				if err := c.Complete(res.ServerSASLCreds()); err != nil {
					return nil, rounds, normalize(mech, err)
				}
			}
			return res, rounds, nil
		default:
			return res, rounds, nil
		}
	}
}

// normalize makes sure mechanism failures carry a client error kind.
func normalize(mech Mechanism, err error) error {
	var e *client.Error
	if errors.As(err, &e) {
		return err
	}
	return configError(mech.Name(), err, "step failed")
}

func outcome(res *client.Result, err error) string {
	if err != nil {
		if k := client.KindOf(err); k != 0 {
			return k.String()
		}
		return "error"
	}
	return res.Code().String()
}
