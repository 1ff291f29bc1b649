package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/KilimcininKorOglu/ldapc/internal/client"
	"github.com/KilimcininKorOglu/ldapc/internal/sasl"
)

const namespace = "ldapc"

// Metrics records operation, notification and SASL bind statistics.
type Metrics struct {
	operationsStarted   *prometheus.CounterVec
	operationsCompleted *prometheus.CounterVec
	operationDuration   *prometheus.HistogramVec
	outstanding         *prometheus.GaugeVec
	notifications       *prometheus.CounterVec
	binds               *prometheus.CounterVec
	bindRounds          *prometheus.HistogramVec
}

var (
	_ client.Metrics = (*Metrics)(nil)
	_ sasl.Metrics   = (*Metrics)(nil)
)

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		operationsStarted: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_started_total",
				Help:      "Operations written to the wire by request type",
			},
			[]string{"operation"},
		),
		operationsCompleted: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_completed_total",
				Help:      "Completed operations by request type and outcome (result code or error kind)",
			},
			[]string{"operation", "outcome"},
		),
		operationDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Time from send to completion",
				Buckets: []float64{
					0.001, // 1ms - local directory
					0.005,
					0.01,
					0.05,
					0.1,
					0.5,
					1,
					5,
					30, // long searches
				},
			},
			[]string{"operation"},
		),
		outstanding: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "operations_outstanding",
				Help:      "Operations sent and not yet completed",
			},
			[]string{"operation"},
		),
		notifications: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "unsolicited_notifications_total",
				Help:      "Unsolicited notifications received by OID",
			},
			[]string{"oid"},
		),
		binds: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sasl_binds_total",
				Help:      "Finished SASL negotiations by mechanism and outcome",
			},
			[]string{"mechanism", "outcome"},
		),
		bindRounds: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "sasl_bind_rounds",
				Help:      "Bind rounds per SASL negotiation",
				Buckets:   []float64{1, 2, 3, 4, 6, 10},
			},
			[]string{"mechanism"},
		),
	}
}

func (m *Metrics) OperationStarted(op string) {
	m.operationsStarted.WithLabelValues(op).Inc()
	m.outstanding.WithLabelValues(op).Inc()
}

func (m *Metrics) OperationCompleted(op, outcome string, d time.Duration) {
	m.operationsCompleted.WithLabelValues(op, outcome).Inc()
	m.operationDuration.WithLabelValues(op).Observe(d.Seconds())
	m.outstanding.WithLabelValues(op).Dec()
}

func (m *Metrics) UnsolicitedNotification(oid string) {
	m.notifications.WithLabelValues(oid).Inc()
}

func (m *Metrics) BindCompleted(mechanism, outcome string, rounds int) {
	m.binds.WithLabelValues(mechanism, outcome).Inc()
	if rounds > 0 {
		m.bindRounds.WithLabelValues(mechanism).Observe(float64(rounds))
	}
}

// Handler serves the metrics gathered by g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
