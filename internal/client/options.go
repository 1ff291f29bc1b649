package client

import (
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/KilimcininKorOglu/ldapc/internal/logging"
)

const (
	// DefaultMaxMessageSize bounds a single inbound LDAPMessage.
	DefaultMaxMessageSize = 10 * 1024 * 1024

	tracerName = "github.com/KilimcininKorOglu/ldapc/internal/client"
)

type options struct {
	logger          logging.Logger
	metrics         Metrics
	tracer          trace.Tracer
	responseTimeout time.Duration
	maxMessageSize  int
	listeners       []func(*Notice)
}

func defaultOptions() options {
	return options{
		logger:         logging.NewNop(),
		tracer:         otel.Tracer(tracerName),
		maxMessageSize: DefaultMaxMessageSize,
	}
}

// Option configures a Conn.
type Option func(*options)

// WithLogger sets the connection logger.
func WithLogger(l logging.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics sets the metrics sink. nil disables metrics.
func WithMetrics(m Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithTracer overrides the tracer used for operation spans.
func WithTracer(t trace.Tracer) Option {
	return func(o *options) {
		if t != nil {
			o.tracer = t
		}
	}
}

// WithResponseTimeout sets the default Await timeout of new handles.
// Zero waits until the context passed to Await ends.
func WithResponseTimeout(d time.Duration) Option {
	return func(o *options) { o.responseTimeout = d }
}

// WithMaxMessageSize bounds inbound messages; larger ones close the connection.
func WithMaxMessageSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxMessageSize = n
		}
	}
}

// WithUnsolicitedListener registers a connection-wide listener for
// unsolicited notifications.
func WithUnsolicitedListener(f func(*Notice)) Option {
	return func(o *options) {
		if f != nil {
			o.listeners = append(o.listeners, f)
		}
	}
}
