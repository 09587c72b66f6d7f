// Package metrics exposes the relay's Prometheus collectors and the /metrics
// handler.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Connections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "relay_connections",
		Help: "Currently connected clients.",
	})

	Rooms = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "relay_rooms",
		Help: "Rooms currently in the room table.",
	})

	Events = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_events_total",
		Help: "Inbound events handled, by event name.",
	}, []string{"event"})

	EventErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_event_errors_total",
		Help: "Inbound events rejected, by event name and error kind.",
	}, []string{"event", "kind"})

	PendingReceipts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_pending_receipts_total",
		Help: "Read receipts buffered for unreachable recipients.",
	})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
