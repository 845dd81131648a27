// Package metrics declares the Prometheus counters and gauges required by
// §4.7 and §6 of this service's metrics contract. Unlike a namespaced
// application metric surface, the names here are mandated literally
// (bs_ws_connections_total, etc.), so Name is set directly rather than
// split across Namespace/Subsystem.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

var (
	// ConnectionsTotal counts every admitted signaling connection.
	ConnectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bs_ws_connections_total",
		Help: "Total signaling connections admitted.",
	})

	// ActiveConnections is the current count of live sessions.
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bs_ws_active_connections",
		Help: "Current number of live signaling sessions.",
	})

	// MessagesTotal counts every inbound frame accepted for dispatch.
	MessagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bs_ws_messages_total",
		Help: "Total inbound signaling messages dispatched.",
	})

	// AuthFailuresTotal counts handshake and rendezvous-register auth rejections.
	AuthFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bs_ws_auth_failures_total",
		Help: "Total authentication failures.",
	})

	// RateLimitedTotal counts connection and message rate-limit rejections.
	RateLimitedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bs_ws_rate_limited_total",
		Help: "Total requests rejected by rate limiting.",
	})

	// RelayUsageTotal counts telemetry reports where relayUsed was truthy.
	RelayUsageTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bs_relay_usage_total",
		Help: "Total telemetry reports indicating TURN relay usage.",
	})

	// IceStateTotal is a labeled counter over reported ICE connection states.
	IceStateTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bs_ice_state_total",
		Help: "Total telemetry reports by ICE connection state.",
	}, []string{"ice_state"})

	// FailureReasonTotal is a labeled counter over reported failure reasons.
	FailureReasonTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bs_failure_reason_total",
		Help: "Total telemetry reports by failure reason.",
	}, []string{"reason"})

	// RegionCarrierTotal is a labeled counter over reported region/carrier pairs.
	RegionCarrierTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bs_region_carrier_total",
		Help: "Total telemetry reports by region and carrier.",
	}, []string{"region", "carrier"})
)

// IncConnection increments ActiveConnections.
func IncConnection() {
	ActiveConnections.Inc()
}

// DecConnection decrements ActiveConnections, never dropping below zero.
func DecConnection() {
	var m dto.Metric
	if err := ActiveConnections.Write(&m); err == nil && m.GetGauge().GetValue() <= 0 {
		return
	}
	ActiveConnections.Dec()
}
