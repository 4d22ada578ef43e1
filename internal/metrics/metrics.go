// Package metrics holds the prometheus collectors exported at /metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for OrdersTotal.
const (
	OutcomeSettled  = "settled"
	OutcomeRejected = "rejected"
	OutcomeBusy     = "busy"
	OutcomeFailed   = "failed"
	OutcomeCanceled = "canceled"
)

// Metrics groups the service collectors. A nil *Metrics is valid and
// records nothing, which keeps tests free of registry setup.
type Metrics struct {
	registry *prometheus.Registry

	OrdersTotal        *prometheus.CounterVec
	SettlementDuration prometheus.Histogram
	SettlementRetries  prometheus.Counter
	Ticks              prometheus.Counter
	WSConnections      prometheus.Gauge
	Subscriptions      prometheus.Gauge
	DroppedClients     prometheus.Counter
}

// New creates the collectors and registers them, together with the Go and
// process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		OrdersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "papertrade_orders_total",
			Help: "Orders processed, by mode and outcome.",
		}, []string{"mode", "outcome"}),
		SettlementDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "papertrade_settlement_duration_seconds",
			Help:    "Time spent settling an order, including lock wait.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
		SettlementRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "papertrade_settlement_retries_total",
			Help: "Settlement attempts retried after a concurrency conflict.",
		}),
		Ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "papertrade_price_ticks_total",
			Help: "Price oracle ticks.",
		}),
		WSConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "papertrade_ws_connections",
			Help: "Open websocket connections.",
		}),
		Subscriptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "papertrade_ws_subscriptions",
			Help: "Connections with an active watchlist subscription.",
		}),
		DroppedClients: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "papertrade_ws_dropped_clients_total",
			Help: "Websocket clients disconnected for falling behind.",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.OrdersTotal,
		m.SettlementDuration,
		m.SettlementRetries,
		m.Ticks,
		m.WSConnections,
		m.Subscriptions,
		m.DroppedClients,
	)
	return m
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveOrder(mode, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.OrdersTotal.WithLabelValues(mode, outcome).Inc()
	m.SettlementDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveRetry() {
	if m == nil {
		return
	}
	m.SettlementRetries.Inc()
}

func (m *Metrics) ObserveTick() {
	if m == nil {
		return
	}
	m.Ticks.Inc()
}

func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.WSConnections.Inc()
}

func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.WSConnections.Dec()
}

// SetSubscriptions records the current registry size.
func (m *Metrics) SetSubscriptions(n int) {
	if m == nil {
		return
	}
	m.Subscriptions.Set(float64(n))
}

func (m *Metrics) ObserveDroppedClient() {
	if m == nil {
		return
	}
	m.DroppedClients.Inc()
}
