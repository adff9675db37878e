package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Broker listener metrics
var (
	// MessagesReceivedTotal tracks broker messages received by channel
	MessagesReceivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broker_messages_received_total",
			Help: "Total broker messages received by channel",
		},
		[]string{"channel"},
	)

	// DecodeFailuresTotal tracks malformed payloads dropped by channel
	DecodeFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broker_decode_failures_total",
			Help: "Total malformed broker payloads dropped by channel",
		},
		[]string{"channel"},
	)
)

// Bridge (dispatcher) metrics
var (
	// EventsDispatchedTotal tracks events dispatched by outbound event name
	EventsDispatchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_events_dispatched_total",
			Help: "Total events dispatched by event name",
		},
		[]string{"event"},
	)

	// FramesSentTotal tracks WebSocket frames queued for delivery by scope (global/room)
	FramesSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_frames_sent_total",
			Help: "Total WebSocket frames queued for delivery by scope",
		},
		[]string{"scope"},
	)

	// ConnectedClients tracks currently connected WebSocket clients
	ConnectedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bridge_connected_clients",
			Help: "Currently connected WebSocket clients",
		},
	)

	// RoomMembers tracks current room membership by room
	RoomMembers = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bridge_room_members",
			Help: "Current room membership by room",
		},
		[]string{"room"},
	)

	// SlowClientsEvicted tracks clients disconnected for not keeping up
	SlowClientsEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bridge_slow_clients_evicted_total",
			Help: "Clients disconnected because their send buffer was full",
		},
	)

	// CommandChannelDepth tracks bridge actor command channel depth
	CommandChannelDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bridge_command_channel_depth",
			Help: "Current bridge command channel depth",
		},
	)

	// StopTimeoutsTotal tracks bridge shutdowns that exceeded the stop timeout
	StopTimeoutsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bridge_stop_timeouts_total",
			Help: "Bridge shutdowns that exceeded the stop timeout",
		},
	)
)

// WebSocket writer metrics
var (
	// MessageSendDuration tracks WebSocket write latency in seconds
	MessageSendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "websocket_message_send_duration_seconds",
			Help:    "WebSocket message send duration in seconds",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5},
		},
	)

	// PingFailures tracks failed keepalive pings
	PingFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_ping_failures_total",
			Help: "Total failed WebSocket keepalive pings",
		},
	)
)
