// Package metrics exposes Prometheus counters for votes, uploads, queries and requests.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics methods are safe on a nil receiver so tests can skip wiring a registry.
type Metrics struct {
	registry *prometheus.Registry

	votesTotal       *prometheus.CounterVec
	uploadsTotal     *prometheus.CounterVec
	queryErrorsTotal *prometheus.CounterVec
	requestsTotal    *prometheus.CounterVec
}

func New(registry *prometheus.Registry) (*Metrics, error) {
	m := &Metrics{
		registry: registry,
		votesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "captionrate_votes_total",
				Help: "Votes handed to the vote writer, by value and write status",
			},
			[]string{"value", "status"}, // status: queued, written, dropped
		),
		uploadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "captionrate_uploads_total",
				Help: "Image uploads by outcome",
			},
			[]string{"status"},
		),
		queryErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "captionrate_query_errors_total",
				Help: "Failed table queries by operation",
			},
			[]string{"op"},
		),
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "captionrate_http_requests_total",
				Help: "HTTP requests by method, route pattern and status",
			},
			[]string{"method", "route", "status"},
		),
	}

	for _, c := range []prometheus.Collector{m.votesTotal, m.uploadsTotal, m.queryErrorsTotal, m.requestsTotal} {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) Vote(value int, status string) {
	if m == nil {
		return
	}
	m.votesTotal.WithLabelValues(strconv.Itoa(value), status).Inc()
}

func (m *Metrics) Upload(status string) {
	if m == nil {
		return
	}
	m.uploadsTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) QueryError(op string) {
	if m == nil {
		return
	}
	m.queryErrorsTotal.WithLabelValues(op).Inc()
}

func (m *Metrics) Request(method, route string, status int) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
