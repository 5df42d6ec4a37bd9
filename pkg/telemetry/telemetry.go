// Package telemetry registers the subsystem's prometheus metrics.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Connections tracks live websocket connections on this process.
	Connections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fonana_rt_connections",
		Help: "Live websocket connections.",
	})

	// Subscriptions tracks active channel subscriptions on this process.
	Subscriptions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fonana_rt_subscriptions",
		Help: "Active channel subscriptions.",
	})

	// EventsPublished counts events handed to the fanout path, by kind.
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fonana_rt_events_published_total",
		Help: "Events published for fanout.",
	}, []string{"kind"})

	// EventsDelivered counts frames delivered to local connections.
	EventsDelivered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fonana_rt_events_delivered_total",
		Help: "Event frames delivered to local subscribers.",
	})

	// BusErrors counts failed bus publishes/relays.
	BusErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fonana_rt_bus_errors_total",
		Help: "Bus publish or relay failures.",
	})

	// FramesDropped counts outbound frames dropped on slow consumers.
	FramesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fonana_rt_frames_dropped_total",
		Help: "Outbound frames dropped because a connection send buffer was full.",
	})

	// LivenessEvictions counts connections terminated by the heartbeat.
	LivenessEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fonana_rt_liveness_evictions_total",
		Help: "Connections evicted after missing liveness pings.",
	})
)
