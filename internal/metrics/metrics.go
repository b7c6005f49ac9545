// Package metrics exposes Prometheus counters for bidding, closing and
// fan-out.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Bid outcomes used as the "result" label.
const (
	ResultAccepted = "accepted"
	ResultTooLow   = "too_low"
	ResultClosed   = "closed"
	ResultNotFound = "not_found"
	ResultInvalid  = "invalid"
	ResultError    = "error"
)

type Metrics struct {
	registry *prometheus.Registry

	bids        *prometheus.CounterVec
	closed      prometheus.Counter
	subscribers prometheus.Gauge
	dropped     prometheus.Counter
}

// New builds a Metrics instance on its own registry so tests and multiple
// instances never collide on registration.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		bids: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auction_bids_total",
			Help: "Bid submissions by result.",
		}, []string{"result"}),
		closed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "auction_closed_total",
			Help: "Auctions transitioned from open to closed.",
		}),
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "auction_subscribers",
			Help: "Live subscriptions across all auctions.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "auction_fanout_dropped_total",
			Help: "Events not delivered because a subscriber queue was full or closed.",
		}),
	}

	m.registry.MustRegister(m.bids, m.closed, m.subscribers, m.dropped)
	return m
}

func (m *Metrics) ObserveBid(result string) {
	m.bids.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveClose() {
	m.closed.Inc()
}

func (m *Metrics) SubscriberAdded() {
	m.subscribers.Inc()
}

func (m *Metrics) SubscriberRemoved() {
	m.subscribers.Dec()
}

func (m *Metrics) ObserveDropped() {
	m.dropped.Inc()
}

// Registry is exposed for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
