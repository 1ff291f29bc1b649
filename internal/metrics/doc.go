// Package metrics is the Prometheus implementation of client.Metrics and
// sasl.Metrics.
//
// All collectors are registered on the Registerer passed to New, so tests
// can use a private registry:
//
//	reg := prometheus.NewRegistry()
//	m := metrics.New(reg)
//	conn := client.NewConn(nc, client.WithMetrics(m))
//	n := sasl.Negotiator{Metrics: m}
//
// Handler exposes a registry over HTTP for scraping.
package metrics
