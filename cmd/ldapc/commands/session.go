package commands

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/KilimcininKorOglu/ldapc/internal/client"
	"github.com/KilimcininKorOglu/ldapc/internal/config"
	"github.com/KilimcininKorOglu/ldapc/internal/ldap"
	"github.com/KilimcininKorOglu/ldapc/internal/logging"
	"github.com/KilimcininKorOglu/ldapc/internal/metrics"
	"github.com/KilimcininKorOglu/ldapc/internal/sasl"
	"github.com/KilimcininKorOglu/ldapc/internal/telemetry"
)

// dialTransport opens the TCP connection. Tests replace it.
var dialTransport = func(ctx context.Context, address string) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, "tcp", address)
}

// session carries what a command needs to talk to the server: validated
// configuration, logger, metrics and the telemetry shutdown hooks.
type session struct {
	cfg      *config.Config
	log      logging.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	closers  []func(context.Context) error
}

func openSession(ctx context.Context, opts *globalOptions) (*session, error) {
	cfg, err := opts.loadConfig()
	if err != nil {
		return nil, err
	}
	if errs := config.ValidateConfig(cfg); len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}

	reg := prometheus.NewRegistry()
	s := &session{
		cfg: cfg,
		log: logging.New(logging.Config{
			Level:  cfg.Logging.Level,
			Format: cfg.Logging.Format,
			Output: cfg.Logging.Output,
		}),
		registry: reg,
		metrics:  metrics.New(reg),
	}

	shutdown, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.Tracing.Enabled,
		ServiceName:    "ldapc",
		ServiceVersion: Version,
		Endpoint:       cfg.Tracing.Endpoint,
		Insecure:       cfg.Tracing.Insecure,
		SampleRate:     cfg.Tracing.SampleRate,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	s.closers = append(s.closers, shutdown)

	stopProfiling, err := telemetry.InitProfiling(telemetry.ProfilingConfig{
		Enabled:        cfg.Profiling.Enabled,
		ServiceName:    "ldapc",
		ServiceVersion: Version,
		Endpoint:       cfg.Profiling.Endpoint,
		ProfileTypes:   cfg.Profiling.ProfileTypes,
	})
	if err != nil {
		s.Close(ctx)
		return nil, fmt.Errorf("failed to initialize profiling: %w", err)
	}
	s.closers = append(s.closers, func(context.Context) error { return stopProfiling() })

	return s, nil
}

// Close runs the shutdown hooks in reverse order.
func (s *session) Close(ctx context.Context) {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](ctx); err != nil {
			s.log.Warn("shutdown error", "error", err)
		}
	}
	s.closers = nil
}

// connect dials the server and performs the configured bind.
func (s *session) connect(ctx context.Context) (*client.Conn, error) {
	dialCtx := ctx
	if d := s.cfg.Connection.DialTimeout; d > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	nc, err := dialTransport(dialCtx, s.cfg.Connection.Address)
	if err != nil {
		return nil, client.NewError(client.KindConnection, "dial", err)
	}

	conn := client.NewConn(nc,
		client.WithLogger(s.log),
		client.WithMetrics(s.metrics),
		client.WithResponseTimeout(s.cfg.Connection.ResponseTimeout),
		client.WithMaxMessageSize(int(s.cfg.Connection.MaxMessageSize)),
		client.WithUnsolicitedListener(func(n *client.Notice) {
			s.log.Warn("unsolicited notification",
				"oid", n.Name(),
				"result", n.Code().String(),
				"diagnostic", n.DiagnosticMessage())
		}),
	)
	s.log.Debug("connected", "address", s.cfg.Connection.Address, "conn_id", conn.ID())

	if err := s.bind(ctx, conn); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return conn, nil
}

func (s *session) bind(ctx context.Context, conn *client.Conn) error {
	b := s.cfg.Bind
	mech := strings.ToUpper(b.Mechanism)

	var (
		res *client.Result
		err error
	)
	switch mech {
	case "":
		return nil
	case "SIMPLE":
		res, err = conn.Bind(ldap.NewSimpleBind(b.DN, []byte(b.Password))).Execute(ctx)
	default:
		res, err = s.saslBind(ctx, conn, mech)
	}
	if err != nil {
		return err
	}
	if !res.IsSuccess() {
		return fmt.Errorf("%s bind failed: %s", mech, res)
	}
	s.log.Debug("bound", "mechanism", mech)
	return nil
}

func (s *session) saslBind(ctx context.Context, conn *client.Conn, mech string) (*client.Result, error) {
	b := s.cfg.Bind
	creds := sasl.Credentials{
		Username: b.Username,
		Password: b.Password,
		AuthzID:  b.AuthzID,
		Realm:    b.Realm,
		Host:     s.cfg.BindHost(),
		SPN:      s.cfg.Kerberos.SPN,
	}
	if mech == "GSSAPI" {
		kc, err := kerberosClient(s.cfg)
		if err != nil {
			return nil, err
		}
		defer kc.Destroy()
		creds.Kerberos = kc
	}

	m, err := sasl.New(mech, creds)
	if err != nil {
		return nil, err
	}
	n := sasl.Negotiator{
		Timeout: s.cfg.Connection.ResponseTimeout,
		Logger:  s.log.WithConnID(conn.ID()),
		Metrics: s.metrics,
	}
	return n.Bind(ctx, conn, m)
}
