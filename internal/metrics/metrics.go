// Package metrics declares all Prometheus instruments used by the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Session registry metrics
var (
	// RegistryLiveSessions tracks the number of currently live sessions.
	RegistryLiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "registry_live_sessions",
			Help: "Number of currently live sessions",
		},
	)

	// RegistryConnectedViewers tracks connected viewers across all sessions.
	RegistryConnectedViewers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "registry_connected_viewers",
			Help: "Connected viewers across all live sessions",
		},
	)

	// RegistryViewerJoinsTotal counts viewer count increments.
	RegistryViewerJoinsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "registry_viewer_joins_total",
			Help: "Total viewer join increments applied",
		},
	)

	// RegistryClampedDecrementsTotal counts decrements on an already-zero count.
	RegistryClampedDecrementsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "registry_clamped_decrements_total",
			Help: "Viewer decrements clamped at zero (logic bug indicator)",
		},
	)
)

// Fan-out bus metrics
var (
	// BusEventsPublishedTotal counts published events by kind.
	BusEventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bus_events_published_total",
			Help: "Fan-out events published by kind",
		},
		[]string{"kind"},
	)

	// BusEventsDroppedTotal counts events dropped for slow subscribers.
	BusEventsDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bus_events_dropped_total",
			Help: "Events dropped because a subscriber buffer was full",
		},
	)

	// BusSubscribers tracks the current number of subscriptions.
	BusSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bus_subscribers",
			Help: "Current fan-out bus subscriptions",
		},
	)

	// BusHandlerPanicsTotal counts recovered subscriber handler panics.
	BusHandlerPanicsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bus_handler_panics_total",
			Help: "Subscriber handler panics recovered by the bus",
		},
	)
)

// Cross-process relay metrics
var (
	// RelayEventsForwardedTotal counts events forwarded to other workers.
	RelayEventsForwardedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_events_forwarded_total",
			Help: "Events forwarded to the inter-process channel",
		},
	)

	// RelayEventsReceivedTotal counts events received from other workers.
	RelayEventsReceivedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_events_received_total",
			Help: "Events received from the inter-process channel",
		},
	)

	// RelayEventsDroppedTotal counts outbound events dropped on queue overflow.
	RelayEventsDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_events_dropped_total",
			Help: "Outbound events dropped because the relay queue was full",
		},
	)

	// RelayFailuresTotal counts relay channel failures (non-fatal).
	RelayFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_failures_total",
			Help: "Relay channel failures, local delivery unaffected",
		},
	)
)

// Scheduling reconciler metrics
var (
	// ReconcileRunsTotal counts reconciler passes by outcome.
	ReconcileRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconcile_runs_total",
			Help: "Reconciler passes by outcome (ok/partial/error)",
		},
		[]string{"outcome"},
	)

	// ReconcileEntriesTotal counts processed scheduled entries by status.
	ReconcileEntriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconcile_entries_total",
			Help: "Scheduled entries processed by status (applied/failed)",
		},
		[]string{"status"},
	)

	// ReconcileDurationSeconds tracks reconciler pass duration.
	ReconcileDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reconcile_duration_seconds",
			Help:    "Duration of a reconciler pass in seconds",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)
)

// Gateway and transport metrics
var (
	// GatewayConnectionsTotal counts viewer connections by result.
	GatewayConnectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_connections_total",
			Help: "Viewer connections by result (joined/not_live)",
		},
		[]string{"result"},
	)

	// GatewayChatMessagesTotal counts accepted chat submissions.
	GatewayChatMessagesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gateway_chat_messages_total",
			Help: "Chat messages accepted and published",
		},
	)

	// WebSocketRejectedTotal counts rejected websocket upgrades by reason.
	WebSocketRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_rejected_total",
			Help: "WebSocket connections rejected by limit reason",
		},
		[]string{"reason"},
	)

	// WebSocketPingFailures counts failed keepalive pings.
	WebSocketPingFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_ping_failures_total",
			Help: "Failed WebSocket keepalive pings",
		},
	)
)

// Cross-cutting metrics
var (
	// ReportedErrorsTotal counts errors sent to the error reporting sink.
	ReportedErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reported_errors_total",
			Help: "Errors reported by background components",
		},
		[]string{"component"},
	)
)
